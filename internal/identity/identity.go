package identity

import (
	"context"
	"time"
)

// Identity is the external authentication record held by the
// provider. It contains facts only; the provider owns and mutates it,
// this service only calls provider operations.
type Identity struct {
	ID        string
	Email     string
	Confirmed bool
	Metadata  map[string]any
	CreatedAt time.Time
}

// CreateParams describes a provider-side account creation. Password
// empty means a passwordless account awaiting link-based setup.
type CreateParams struct {
	Email    string
	Password string
	Metadata map[string]any
}

// Provisioner is the privileged port to the identity provider. The
// concrete client holds the service-level key and must never be
// reachable from non-admin-gated code paths.
type Provisioner interface {
	// FindByEmail matches case-insensitively against the provider's
	// identity listing. Returns nil when no identity exists.
	FindByEmail(ctx context.Context, email string) (*Identity, error)

	Create(ctx context.Context, p CreateParams) (*Identity, error)

	UpdatePassword(ctx context.Context, id, newPassword string) error

	// GenerateLink produces a single-use authentication link bound to
	// email, redirecting to redirectTo after consumption.
	GenerateLink(ctx context.Context, email, redirectTo string) (string, error)

	// SendInvite asks the provider to deliver an invite email. Callers
	// treat failures here as non-fatal.
	SendInvite(ctx context.Context, email, redirectTo string) error

	Delete(ctx context.Context, id string) error
}
