package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cms-admin-service/internal/access"
	"cms-admin-service/internal/identity"
	"cms-admin-service/internal/profile"
)

// ---------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------

type fakeProfiles struct {
	rows      map[string]profile.Profile
	upsertErr error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{rows: map[string]profile.Profile{}}
}

func (f *fakeProfiles) Get(_ context.Context, id string) (*profile.Profile, error) {
	p, ok := f.rows[id]
	if !ok {
		return nil, profile.ErrNotFound
	}
	cp := p
	return &cp, nil
}

func (f *fakeProfiles) RoleOf(_ context.Context, id string) (access.Role, bool, error) {
	p, ok := f.rows[id]
	if !ok {
		return "", false, nil
	}
	return p.Role, true, nil
}

func (f *fakeProfiles) Upsert(_ context.Context, p profile.UpsertParams) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	existing, ok := f.rows[p.ID]
	row := profile.Profile{
		ID:       p.ID,
		Email:    strings.ToLower(p.Email),
		Role:     p.Role,
		FullName: p.FullName,
	}
	// Mirrors the COALESCE in the Postgres store: a set full_name
	// survives later upserts.
	if ok && existing.FullName != nil {
		row.FullName = existing.FullName
	}
	f.rows[p.ID] = row
	return nil
}

func (f *fakeProfiles) Delete(_ context.Context, id string) error {
	if _, ok := f.rows[id]; !ok {
		return profile.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeProfiles) CompleteSetup(_ context.Context, id, fullName string) error {
	p, ok := f.rows[id]
	if !ok {
		return profile.ErrNotFound
	}
	if p.FullName != nil {
		return profile.ErrNameAlreadySet
	}
	p.FullName = &fullName
	f.rows[id] = p
	return nil
}

func (f *fakeProfiles) List(_ context.Context) ([]profile.Profile, error) {
	var out []profile.Profile
	for _, p := range f.rows {
		out = append(out, p)
	}
	return out, nil
}

type fakeProvisioner struct {
	identities map[string]*identity.Identity // keyed by lowercase email

	createCalls int
	updateCalls int
	linkCalls   int
	inviteCalls int
	deleteCalls int

	lastPassword string

	createErr error
	linkErr   error
	inviteErr error
	deleteErr error
	updateErr error
}

func newFakeProvisioner() *fakeProvisioner {
	return &fakeProvisioner{identities: map[string]*identity.Identity{}}
}

func (f *fakeProvisioner) FindByEmail(_ context.Context, email string) (*identity.Identity, error) {
	if id, ok := f.identities[strings.ToLower(email)]; ok {
		cp := *id
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeProvisioner) Create(_ context.Context, p identity.CreateParams) (*identity.Identity, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	key := strings.ToLower(p.Email)
	if _, ok := f.identities[key]; ok {
		return nil, fmt.Errorf("%w: %s", identity.ErrEmailExists, p.Email)
	}
	id := &identity.Identity{
		ID:       uuid.NewString(),
		Email:    p.Email,
		Metadata: p.Metadata,
	}
	f.identities[key] = id
	f.lastPassword = p.Password
	cp := *id
	return &cp, nil
}

func (f *fakeProvisioner) UpdatePassword(_ context.Context, id, newPassword string) error {
	f.updateCalls++
	if f.updateErr != nil {
		return f.updateErr
	}
	f.lastPassword = newPassword
	return nil
}

func (f *fakeProvisioner) GenerateLink(_ context.Context, email, redirectTo string) (string, error) {
	f.linkCalls++
	if f.linkErr != nil {
		return "", f.linkErr
	}
	return fmt.Sprintf("https://idp.example/verify?token=tok-%d&redirect_to=%s", f.linkCalls, redirectTo), nil
}

func (f *fakeProvisioner) SendInvite(_ context.Context, email, redirectTo string) error {
	f.inviteCalls++
	return f.inviteErr
}

func (f *fakeProvisioner) Delete(_ context.Context, id string) error {
	f.deleteCalls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for k, v := range f.identities {
		if v.ID == id {
			delete(f.identities, k)
			return nil
		}
	}
	return identity.ErrNotFound
}

// ---------------------------------------------------------------
// Harness
// ---------------------------------------------------------------

type harness struct {
	svc         *Service
	profiles    *fakeProfiles
	provisioner *fakeProvisioner
	adminID     string
	editorID    string
}

func newHarness() *harness {
	profiles := newFakeProfiles()
	provisioner := newFakeProvisioner()

	adminID := uuid.NewString()
	editorID := uuid.NewString()
	profiles.rows[adminID] = profile.Profile{ID: adminID, Email: "admin@x.com", Role: access.RoleAdmin}
	profiles.rows[editorID] = profile.Profile{ID: editorID, Email: "editor@x.com", Role: access.RoleEditor}

	gate := access.NewGate(profiles)
	return &harness{
		svc:         NewService(gate, provisioner, profiles, "https://example.com"),
		profiles:    profiles,
		provisioner: provisioner,
		adminID:     adminID,
		editorID:    editorID,
	}
}

// ---------------------------------------------------------------
// InviteUser
// ---------------------------------------------------------------

func TestInviteUserFreshEmail(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	res, err := h.svc.InviteUser(ctx, h.adminID, "new@x.com", access.RoleEditor)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.True(t, res.EmailSent)
	assert.NotEmpty(t, res.InviteLink)
	assert.Contains(t, res.InviteLink, "https://example.com/admin/setup")

	// Exactly one identity and one profile, role as requested,
	// full_name still pending.
	require.Len(t, h.provisioner.identities, 1)
	ident := h.provisioner.identities["new@x.com"]
	p, err := h.profiles.Get(ctx, ident.ID)
	require.NoError(t, err)
	assert.Equal(t, access.RoleEditor, p.Role)
	assert.Nil(t, p.FullName)
	assert.Equal(t, "new@x.com", p.Email)

	// Invite metadata is recorded on the identity.
	assert.Equal(t, "editor", ident.Metadata["invited_role"])
	assert.NotEmpty(t, ident.Metadata["invited_at"])
}

func TestInviteUserExistingIdentityReused(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	h.provisioner.identities["old@x.com"] = &identity.Identity{ID: uuid.NewString(), Email: "old@x.com"}

	res, err := h.svc.InviteUser(ctx, h.adminID, "old@x.com", access.RoleViewer)
	require.NoError(t, err)
	assert.True(t, res.Success)

	assert.Equal(t, 0, h.provisioner.createCalls)
	assert.Equal(t, 0, h.provisioner.updateCalls, "invite must not touch credentials")
	require.Len(t, h.provisioner.identities, 1)
}

func TestInviteUserEmailFailureIsNonFatal(t *testing.T) {
	h := newHarness()
	h.provisioner.inviteErr = errors.New("smtp unreachable")

	res, err := h.svc.InviteUser(context.Background(), h.adminID, "new@x.com", access.RoleViewer)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.False(t, res.EmailSent)
	assert.Contains(t, res.EmailError, "smtp unreachable")
	assert.Contains(t, res.Message, "manually")
	assert.NotEmpty(t, res.InviteLink)
}

// Scenario: link generation fails. The whole call fails and no
// profile row may be written.
func TestInviteUserLinkFailureAbortsBeforeProfile(t *testing.T) {
	h := newHarness()
	h.provisioner.linkErr = &identity.ProviderError{Status: 500, Message: "link service down"}

	_, err := h.svc.InviteUser(context.Background(), h.adminID, "new@x.com", access.RoleEditor)
	require.Error(t, err)

	ident := h.provisioner.identities["new@x.com"]
	require.NotNil(t, ident, "identity creation precedes the link step")
	_, perr := h.profiles.Get(context.Background(), ident.ID)
	assert.ErrorIs(t, perr, profile.ErrNotFound)
	assert.Equal(t, 0, h.provisioner.inviteCalls, "no email without a link")
}

func TestInviteUserProfileUpsertFailure(t *testing.T) {
	h := newHarness()
	h.profiles.upsertErr = errors.New("db down")

	_, err := h.svc.InviteUser(context.Background(), h.adminID, "new@x.com", access.RoleEditor)

	var syncErr *SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.NotEmpty(t, syncErr.UserID)
}

func TestInviteUserRequiresAdmin(t *testing.T) {
	h := newHarness()

	_, err := h.svc.InviteUser(context.Background(), h.editorID, "new@x.com", access.RoleViewer)
	assert.ErrorIs(t, err, access.ErrUnauthorized)
	assert.Equal(t, 0, h.provisioner.createCalls)
	assert.Equal(t, 0, h.provisioner.linkCalls)
}

func TestInviteUserInvalidRole(t *testing.T) {
	h := newHarness()

	_, err := h.svc.InviteUser(context.Background(), h.adminID, "new@x.com", access.Role("owner"))
	require.Error(t, err)
	assert.Equal(t, 0, h.provisioner.createCalls)
}

// ---------------------------------------------------------------
// CreateUserDirectly
// ---------------------------------------------------------------

func TestCreateUserDirectlyFresh(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	res, err := h.svc.CreateUserDirectly(ctx, h.adminID, "direct@x.com", "Passw0rd!", access.RoleViewer)
	require.NoError(t, err)
	assert.True(t, res.Success)

	ident := h.provisioner.identities["direct@x.com"]
	require.NotNil(t, ident)
	assert.Equal(t, "Passw0rd!", h.provisioner.lastPassword)
	assert.Equal(t, true, ident.Metadata["created_by_admin"])

	p, err := h.profiles.Get(ctx, ident.ID)
	require.NoError(t, err)
	require.NotNil(t, p.FullName)
	assert.Equal(t, "New User", *p.FullName)
	assert.Equal(t, access.RoleViewer, p.Role)
}

// Scenario: the email already has an identity. No second identity is
// created; the existing credential is reset and a previously-set
// full_name survives.
func TestCreateUserDirectlyConflictReuses(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	existingID := uuid.NewString()
	h.provisioner.identities["dup@x.com"] = &identity.Identity{ID: existingID, Email: "dup@x.com"}
	name := "Jane Doe"
	h.profiles.rows[existingID] = profile.Profile{
		ID: existingID, Email: "dup@x.com", Role: access.RoleEditor, FullName: &name,
	}

	res, err := h.svc.CreateUserDirectly(ctx, h.adminID, "dup@x.com", "NewPass123", access.RoleViewer)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, existingID, res.UserID)

	require.Len(t, h.provisioner.identities, 1, "no second identity")
	assert.Equal(t, 1, h.provisioner.updateCalls)
	assert.Equal(t, "NewPass123", h.provisioner.lastPassword)

	p, err := h.profiles.Get(ctx, existingID)
	require.NoError(t, err)
	assert.Equal(t, access.RoleViewer, p.Role, "role follows the new request")
	require.NotNil(t, p.FullName)
	assert.Equal(t, "Jane Doe", *p.FullName, "existing name must not be clobbered")
}

// A reused account that is still mid-setup must keep its NULL
// full_name; otherwise the placeholder would permanently block the
// user's own setup action.
func TestCreateUserDirectlyReuseKeepsPendingName(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.svc.InviteUser(ctx, h.adminID, "pending@x.com", access.RoleEditor)
	require.NoError(t, err)
	ident := h.provisioner.identities["pending@x.com"]

	_, err = h.svc.CreateUserDirectly(ctx, h.adminID, "pending@x.com", "NewPass123", access.RoleViewer)
	require.NoError(t, err)

	p, err := h.profiles.Get(ctx, ident.ID)
	require.NoError(t, err)
	assert.Nil(t, p.FullName, "reuse path must not plant the placeholder")

	require.NoError(t, h.profiles.CompleteSetup(ctx, ident.ID, "Real Name"))
	p, err = h.profiles.Get(ctx, ident.ID)
	require.NoError(t, err)
	require.NotNil(t, p.FullName)
	assert.Equal(t, "Real Name", *p.FullName)
}

// Full lifecycle: invite, the user completes setup, then an admin
// re-provisions the same email directly. The chosen name survives.
func TestSetupNameSurvivesReprovisioning(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.svc.InviteUser(ctx, h.adminID, "ada@x.com", access.RoleEditor)
	require.NoError(t, err)
	ident := h.provisioner.identities["ada@x.com"]

	require.NoError(t, h.profiles.CompleteSetup(ctx, ident.ID, "Ada Lovelace"))
	assert.ErrorIs(t, h.profiles.CompleteSetup(ctx, ident.ID, "Someone Else"),
		profile.ErrNameAlreadySet)

	_, err = h.svc.CreateUserDirectly(ctx, h.adminID, "ada@x.com", "NewPass123", access.RoleViewer)
	require.NoError(t, err)

	p, err := h.profiles.Get(ctx, ident.ID)
	require.NoError(t, err)
	require.NotNil(t, p.FullName)
	assert.Equal(t, "Ada Lovelace", *p.FullName)
	assert.Equal(t, access.RoleViewer, p.Role)
}

func TestCreateUserDirectlyConflictNotLocatable(t *testing.T) {
	h := newHarness()
	// Provider signals a conflict but the listing cannot surface the
	// identity.
	h.provisioner.createErr = fmt.Errorf("%w: shadow record", identity.ErrEmailExists)

	_, err := h.svc.CreateUserDirectly(context.Background(), h.adminID, "ghost@x.com", "Passw0rd!", access.RoleViewer)

	var syncErr *SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Contains(t, err.Error(), "not locatable")
}

func TestCreateUserDirectlyFatalProviderError(t *testing.T) {
	h := newHarness()
	h.provisioner.createErr = &identity.ProviderError{Status: 500, Message: "provider exploded"}

	_, err := h.svc.CreateUserDirectly(context.Background(), h.adminID, "a@x.com", "Passw0rd!", access.RoleViewer)
	var pe *identity.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 0, h.provisioner.updateCalls, "fatal errors are not reconciled")
}

func TestCreateUserDirectlyProfileFailureIsPartial(t *testing.T) {
	h := newHarness()
	h.profiles.upsertErr = errors.New("constraint violation")

	_, err := h.svc.CreateUserDirectly(context.Background(), h.adminID, "a@x.com", "Passw0rd!", access.RoleViewer)

	var syncErr *SyncError
	require.ErrorAs(t, err, &syncErr)
	require.Len(t, h.provisioner.identities, 1, "identity-side step already happened")
}

// ---------------------------------------------------------------
// GetInviteLink / ResetUserPassword
// ---------------------------------------------------------------

func TestGetInviteLinkIdempotentOnIdentityCount(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	h.provisioner.identities["resend@x.com"] = &identity.Identity{ID: uuid.NewString(), Email: "resend@x.com"}

	link1, err := h.svc.GetInviteLink(ctx, h.adminID, "resend@x.com")
	require.NoError(t, err)
	link2, err := h.svc.GetInviteLink(ctx, h.adminID, "resend@x.com")
	require.NoError(t, err)

	assert.NotEqual(t, link1, link2, "each link carries a fresh token")
	assert.Equal(t, 0, h.provisioner.createCalls, "resend never creates identities")
	require.Len(t, h.provisioner.identities, 1)
}

// Scenario: an editor calls resetUserPassword. The call is rejected
// and nothing reaches the identity provider.
func TestResetUserPasswordRequiresAdmin(t *testing.T) {
	h := newHarness()

	err := h.svc.ResetUserPassword(context.Background(), h.editorID, uuid.NewString(), "x12345678")
	assert.ErrorIs(t, err, access.ErrUnauthorized)
	assert.Equal(t, 0, h.provisioner.updateCalls)
}

func TestResetUserPassword(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.svc.ResetUserPassword(context.Background(), h.adminID, uuid.NewString(), "Fresh12345"))
	assert.Equal(t, 1, h.provisioner.updateCalls)
	assert.Equal(t, "Fresh12345", h.provisioner.lastPassword)
}

// ---------------------------------------------------------------
// DeleteUser
// ---------------------------------------------------------------

func TestDeleteUserRemovesProfileThenIdentity(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	userID := uuid.NewString()
	h.provisioner.identities["gone@x.com"] = &identity.Identity{ID: userID, Email: "gone@x.com"}
	h.profiles.rows[userID] = profile.Profile{ID: userID, Email: "gone@x.com", Role: access.RoleViewer}

	res, err := h.svc.DeleteUser(ctx, h.adminID, userID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.Warning)

	_, perr := h.profiles.Get(ctx, userID)
	assert.ErrorIs(t, perr, profile.ErrNotFound)
	assert.Empty(t, h.provisioner.identities)
}

// The orphan case: identity deletion fails after the profile row is
// gone. The profile stays deleted and the failure surfaces as a
// warning, not an error.
func TestDeleteUserOrphanedIdentityWarning(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	userID := uuid.NewString()
	h.profiles.rows[userID] = profile.Profile{ID: userID, Email: "stuck@x.com", Role: access.RoleViewer}
	h.provisioner.deleteErr = &identity.ProviderError{Status: 500, Message: "provider timeout"}

	res, err := h.svc.DeleteUser(ctx, h.adminID, userID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.Warning)
	require.Error(t, res.IdentityErr)

	_, perr := h.profiles.Get(ctx, userID)
	assert.ErrorIs(t, perr, profile.ErrNotFound, "profile deletion is not rolled back")
}

// Identity-without-profile is a known partial state; deleteUser must
// still be able to clean up the orphaned identity.
func TestDeleteUserCleansUpOrphanedIdentity(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	orphanID := uuid.NewString()
	h.provisioner.identities["orphan@x.com"] = &identity.Identity{ID: orphanID, Email: "orphan@x.com"}

	res, err := h.svc.DeleteUser(ctx, h.adminID, orphanID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.Warning)
	assert.Empty(t, h.provisioner.identities, "orphaned identity is removed")
}

func TestDeleteUserIdentityAlreadyGone(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	userID := uuid.NewString()
	h.profiles.rows[userID] = profile.Profile{ID: userID, Email: "left@x.com", Role: access.RoleViewer}

	res, err := h.svc.DeleteUser(ctx, h.adminID, userID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.Warning, "an already-deleted identity is not an orphan")

	_, perr := h.profiles.Get(ctx, userID)
	assert.ErrorIs(t, perr, profile.ErrNotFound)
}

func TestDeleteUserNothingToDelete(t *testing.T) {
	h := newHarness()

	_, err := h.svc.DeleteUser(context.Background(), h.adminID, uuid.NewString())
	assert.ErrorIs(t, err, profile.ErrNotFound)
	assert.Equal(t, 1, h.provisioner.deleteCalls, "the provider is still consulted")
}

// ---------------------------------------------------------------
// Configuration gating
// ---------------------------------------------------------------

func TestOperationsFailWithoutServiceKey(t *testing.T) {
	profiles := newFakeProfiles()
	adminID := uuid.NewString()
	profiles.rows[adminID] = profile.Profile{ID: adminID, Role: access.RoleAdmin}
	svc := NewService(access.NewGate(profiles), nil, profiles, "https://example.com")
	ctx := context.Background()

	_, err := svc.InviteUser(ctx, adminID, "a@x.com", access.RoleViewer)
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = svc.CreateUserDirectly(ctx, adminID, "a@x.com", "Passw0rd!", access.RoleViewer)
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = svc.GetInviteLink(ctx, adminID, "a@x.com")
	assert.ErrorIs(t, err, ErrNotConfigured)

	err = svc.ResetUserPassword(ctx, adminID, uuid.NewString(), "Passw0rd!")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = svc.DeleteUser(ctx, adminID, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestGateRunsBeforeConfigCheck(t *testing.T) {
	profiles := newFakeProfiles()
	editorID := uuid.NewString()
	profiles.rows[editorID] = profile.Profile{ID: editorID, Role: access.RoleEditor}
	svc := NewService(access.NewGate(profiles), nil, profiles, "https://example.com")

	_, err := svc.InviteUser(context.Background(), editorID, "a@x.com", access.RoleViewer)
	assert.ErrorIs(t, err, access.ErrUnauthorized,
		"an unauthorized caller must not learn about provider configuration")
}
