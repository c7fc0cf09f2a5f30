package provision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cms-admin-service/internal/access"
	"cms-admin-service/internal/identity"
	"cms-admin-service/internal/logger"
	"cms-admin-service/internal/profile"
)

// setupPath is where a consumed one-time link drops the user to
// finish their profile.
const setupPath = "/admin/setup"

// Service orchestrates the identity provider and the profile
// projection. Every operation is admin-gated and re-checks the
// caller's role on entry; the identity-side mutation always happens
// before the profile upsert.
type Service struct {
	gate        *access.Gate
	provisioner identity.Provisioner // nil when credentials are absent
	profiles    profile.Store
	siteBaseURL string
}

func NewService(
	gate *access.Gate,
	provisioner identity.Provisioner,
	profiles profile.Store,
	siteBaseURL string,
) *Service {
	return &Service{
		gate:        gate,
		provisioner: provisioner,
		profiles:    profiles,
		siteBaseURL: siteBaseURL,
	}
}

func (s *Service) setupRedirect() string {
	return s.siteBaseURL + setupPath
}

// admit runs the gate and the configuration check shared by every
// operation, in that order: an unauthorized caller learns nothing
// about provider configuration.
func (s *Service) admit(ctx context.Context, callerID string) error {
	if err := s.gate.EnsureRole(ctx, callerID, access.RoleAdmin); err != nil {
		return err
	}
	if s.provisioner == nil {
		return ErrNotConfigured
	}
	return nil
}

// InviteUser provisions a passwordless account and a one-time setup
// link. The profile row is only written once a usable link exists; an
// account nobody can enter is not provisioned.
func (s *Service) InviteUser(ctx context.Context, callerID, email string, role access.Role) (*InviteResult, error) {
	if err := s.admit(ctx, callerID); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, fmt.Errorf("provision: invalid role %q", role)
	}

	ident, err := s.provisioner.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if ident == nil {
		ident, err = s.provisioner.Create(ctx, identity.CreateParams{
			Email: email,
			Metadata: map[string]any{
				"invited_at":   time.Now().UTC().Format(time.RFC3339),
				"invited_role": string(role),
			},
		})
		if errors.Is(err, identity.ErrEmailExists) {
			// Lost a create race; reuse whatever won.
			ident, err = s.provisioner.FindByEmail(ctx, email)
			if err == nil && ident == nil {
				err = &SyncError{Email: email, Err: errors.New("identity exists but not locatable")}
			}
		}
		if err != nil {
			return nil, err
		}
	}

	link, err := s.provisioner.GenerateLink(ctx, email, s.setupRedirect())
	if err != nil {
		return nil, err
	}

	emailErr := s.provisioner.SendInvite(ctx, email, s.setupRedirect())
	if emailErr != nil {
		logger.Warn("invite email delivery failed", map[string]any{
			"email": email,
			"error": emailErr.Error(),
		})
	}

	// full_name stays unset until the user finishes setup.
	if err := s.profiles.Upsert(ctx, profile.UpsertParams{
		ID:    ident.ID,
		Email: email,
		Role:  role,
	}); err != nil {
		return nil, &SyncError{UserID: ident.ID, Email: email, Err: err}
	}

	res := &InviteResult{
		Success:    true,
		EmailSent:  emailErr == nil,
		InviteLink: link,
		Message:    "invitation email sent",
	}
	if emailErr != nil {
		res.EmailError = emailErr.Error()
		res.Message = "user created, share the invite link manually"
	}

	logger.Info("user invited", map[string]any{
		"user_id":    ident.ID,
		"role":       string(role),
		"email_sent": res.EmailSent,
	})
	return res, nil
}

// CreateUserDirectly provisions an account with an admin-chosen
// password. The provider has no create-or-update, so a duplicate
// email is reconciled by finding the existing identity and resetting
// its password.
func (s *Service) CreateUserDirectly(ctx context.Context, callerID, email, password string, role access.Role) (*CreateResult, error) {
	if err := s.admit(ctx, callerID); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, fmt.Errorf("provision: invalid role %q", role)
	}

	ident, reused, err := s.createOrReuse(ctx, email, password)
	if err != nil {
		return nil, err
	}

	// The placeholder applies to first-time creation only. A reused
	// account may still be mid-setup: writing anything into its NULL
	// full_name would block the user's own setup action later.
	params := profile.UpsertParams{
		ID:    ident.ID,
		Email: email,
		Role:  role,
	}
	if !reused {
		placeholder := "New User"
		params.FullName = &placeholder
	}
	if err := s.profiles.Upsert(ctx, params); err != nil {
		return nil, &SyncError{UserID: ident.ID, Email: email, Err: err}
	}

	msg := "user created"
	if reused {
		msg = "existing account reused, password updated"
	}

	logger.Info("user created directly", map[string]any{
		"user_id": ident.ID,
		"role":    string(role),
		"reused":  reused,
	})
	return &CreateResult{Success: true, UserID: ident.ID, Message: msg}, nil
}

// createOrReuse is the conflict-tolerant creation step. reused is
// true when the email already had an identity and its credential was
// reset instead.
func (s *Service) createOrReuse(ctx context.Context, email, password string) (*identity.Identity, bool, error) {
	ident, err := s.provisioner.Create(ctx, identity.CreateParams{
		Email:    email,
		Password: password,
		Metadata: map[string]any{"created_by_admin": true},
	})
	if err == nil {
		return ident, false, nil
	}
	if !errors.Is(err, identity.ErrEmailExists) {
		return nil, false, err
	}

	existing, findErr := s.provisioner.FindByEmail(ctx, email)
	if findErr != nil {
		return nil, false, findErr
	}
	if existing == nil {
		return nil, false, &SyncError{Email: email, Err: errors.New("identity exists but not locatable")}
	}

	if err := s.provisioner.UpdatePassword(ctx, existing.ID, password); err != nil {
		return nil, false, err
	}
	return existing, true, nil
}

// GetInviteLink regenerates a one-time link for an existing identity.
// It never creates one; resending an invite must not mint accounts.
func (s *Service) GetInviteLink(ctx context.Context, callerID, email string) (string, error) {
	if err := s.admit(ctx, callerID); err != nil {
		return "", err
	}
	return s.provisioner.GenerateLink(ctx, email, s.setupRedirect())
}

// ResetUserPassword resets the provider-side credential. No profile
// write happens here.
func (s *Service) ResetUserPassword(ctx context.Context, callerID, userID, newPassword string) error {
	if err := s.admit(ctx, callerID); err != nil {
		return err
	}
	return s.provisioner.UpdatePassword(ctx, userID, newPassword)
}

// DeleteUser removes the profile row first, then the identity. A
// failed identity deletion is surfaced as a warning on an otherwise
// successful result; the profile stays gone.
func (s *Service) DeleteUser(ctx context.Context, callerID, userID string) (*DeleteResult, error) {
	if err := s.admit(ctx, callerID); err != nil {
		return nil, err
	}

	profileMissing := false
	if err := s.profiles.Delete(ctx, userID); err != nil {
		if !errors.Is(err, profile.ErrNotFound) {
			return nil, err
		}
		// Identity-without-profile is a known partial state; deletion
		// proceeds so the orphaned identity can still be cleaned up.
		profileMissing = true
	}

	err := s.provisioner.Delete(ctx, userID)
	switch {
	case err == nil:

	case errors.Is(err, identity.ErrNotFound):
		if profileMissing {
			return nil, profile.ErrNotFound
		}
		// The projection row was the leftover; nothing to warn about.

	default:
		logger.Warn("identity deletion failed after profile removal", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		return &DeleteResult{
			Success:     true,
			Warning:     "profile deleted, but the identity could not be removed: " + err.Error(),
			IdentityErr: err,
		}, nil
	}

	logger.Info("user deleted", map[string]any{"user_id": userID})
	return &DeleteResult{Success: true}, nil
}
