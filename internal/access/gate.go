package access

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNoSession       = errors.New("access: no session")
	ErrProfileNotFound = errors.New("access: profile not found")
	ErrUnauthorized    = errors.New("access: unauthorized")
)

// RoleReader is the read-only slice of the profile store the gate
// needs. The gate never writes. found=false means the caller has no
// profile row, which is treated as no access.
type RoleReader interface {
	RoleOf(ctx context.Context, id string) (role Role, found bool, err error)
}

// Gate decides whether the current caller may run a privileged
// operation. Every check re-reads the caller's role; a role change
// takes effect on the very next call.
type Gate struct {
	roles RoleReader
}

func NewGate(roles RoleReader) *Gate {
	return &Gate{roles: roles}
}

// EnsureRole succeeds only if the caller identified by callerID
// currently holds one of the allowed roles. It performs no side
// effects and caches nothing.
func (g *Gate) EnsureRole(ctx context.Context, callerID string, allowed ...Role) error {
	if callerID == "" {
		return ErrNoSession
	}

	role, found, err := g.roles.RoleOf(ctx, callerID)
	if err != nil {
		return fmt.Errorf("access: load role: %w", err)
	}
	if !found {
		return ErrProfileNotFound
	}

	for _, r := range allowed {
		if role == r {
			return nil
		}
	}

	return ErrUnauthorized
}
