package provision

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned by every operation when the privileged
// provider credentials are absent. Nothing is attempted against the
// provider in that state.
var ErrNotConfigured = errors.New("provision: identity provider credentials not configured")

// SyncError reports a partial state: the identity-side step succeeded
// but the local projection could not be brought in line. Callers must
// not treat it as "nothing happened".
type SyncError struct {
	UserID string
	Email  string
	Err    error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("provision: identity %s exists but profile sync failed: %v", e.UserID, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }
