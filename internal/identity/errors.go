package identity

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmailExists marks a creation attempt against an email the
// provider already knows. Flows recover from it by reconciling with
// the existing identity instead of failing.
var ErrEmailExists = errors.New("identity: email already registered")

// ErrNotFound marks lookups and deletes against an unknown identity.
var ErrNotFound = errors.New("identity: not found")

// ProviderError carries a provider-reported failure. Code is the
// structured error code when the provider supplies one, otherwise
// empty.
type ProviderError struct {
	Status  int
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("identity provider: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("identity provider: %s", e.Message)
}

// conflictCodes are the structured codes providers use for duplicate
// emails. Checked before the substring fallback.
var conflictCodes = map[string]bool{
	"email_exists":        true,
	"user_already_exists": true,
	"duplicate_email":     true,
}

// conflictWords is the fallback vocabulary for providers that only
// return free-form messages.
var conflictWords = []string{"already", "exists", "registered", "duplicate"}

// classifyCreateError maps a raw creation failure onto the tagged
// taxonomy. Structured codes win; the substring match is a known
// fragility kept only as a fallback.
func classifyCreateError(err error) error {
	if err == nil {
		return nil
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		if conflictCodes[pe.Code] {
			return fmt.Errorf("%w: %s", ErrEmailExists, pe.Message)
		}
		if pe.Code == "" && containsConflictWord(pe.Message) {
			return fmt.Errorf("%w: %s", ErrEmailExists, pe.Message)
		}
		return err
	}

	if containsConflictWord(err.Error()) {
		return fmt.Errorf("%w: %v", ErrEmailExists, err)
	}
	return err
}

func containsConflictWord(msg string) bool {
	lower := strings.ToLower(msg)
	for _, w := range conflictWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
