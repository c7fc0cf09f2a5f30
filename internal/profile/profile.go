package profile

import (
	"context"
	"errors"
	"time"

	"cms-admin-service/internal/access"
)

var (
	ErrNotFound       = errors.New("profile: not found")
	ErrNameAlreadySet = errors.New("profile: full name already set")
)

// Profile is the local projection of an identity-provider record.
// ID always equals the provider's identity id.
type Profile struct {
	ID        string
	Email     string
	FullName  *string // nil until the user completes setup
	AvatarURL *string
	Role      access.Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UpsertParams describes an idempotent write keyed on ID. FullName is
// only ever applied when the stored full_name is still unset; resend
// and update paths must not clobber a name the user chose.
type UpsertParams struct {
	ID       string
	Email    string
	Role     access.Role
	FullName *string
}

// Store is the profile projection. Writers converge through
// upsert-by-id; there is no destructive update path.
type Store interface {
	Get(ctx context.Context, id string) (*Profile, error)
	RoleOf(ctx context.Context, id string) (access.Role, bool, error)
	Upsert(ctx context.Context, p UpsertParams) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Profile, error)

	// CompleteSetup records the name the user chose. It applies only
	// while full_name is unset; provisioning paths can never undo it
	// and neither can a second setup call.
	CompleteSetup(ctx context.Context, id, fullName string) error
}
