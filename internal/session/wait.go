package session

import (
	"context"
	"errors"
	"time"

	"cms-admin-service/internal/profile"
	"cms-admin-service/internal/retry"
)

// Profile creation lags identity creation when the account was
// provisioned elsewhere; three reads half a second apart cover the
// observed gap.
const (
	defaultWaitAttempts = 3
	defaultWaitDelay    = 500 * time.Millisecond
)

// ProfileWaiter tolerates read-after-write lag between identity
// creation and the profile projection. Login-only; provisioning flows
// never wait.
type ProfileWaiter struct {
	Profiles profile.Store
	Attempts int
	Delay    time.Duration
}

func NewProfileWaiter(profiles profile.Store) *ProfileWaiter {
	return &ProfileWaiter{
		Profiles: profiles,
		Attempts: defaultWaitAttempts,
		Delay:    defaultWaitDelay,
	}
}

// Wait reads the profile for userID, retrying while it is absent.
// profile.ErrNotFound after the last attempt means the caller has no
// profile and gets routed to the default destination.
func (w *ProfileWaiter) Wait(ctx context.Context, userID string) (*profile.Profile, error) {
	var found *profile.Profile

	err := retry.Bounded(ctx, w.Attempts, w.Delay, func(ctx context.Context) (bool, error) {
		p, err := w.Profiles.Get(ctx, userID)
		if errors.Is(err, profile.ErrNotFound) {
			return false, err
		}
		if err != nil {
			return true, err
		}
		found = p
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}
