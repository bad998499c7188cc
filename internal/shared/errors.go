// Package shared holds cross-cutting helpers used by every domain package.
package shared

import "errors"

// Error categories. Domain packages wrap their sentinel errors around one of
// these so transports can map them to a response without knowing each domain.
var (
	// ErrValidation marks input rejected before any mutation.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrStateConflict marks a business-rule violation against current state.
	ErrStateConflict = errors.New("state conflict")
	// ErrConcurrent marks a unit of work lost to a concurrent transaction.
	// The whole command is safe to retry once.
	ErrConcurrent = errors.New("concurrent modification")
)

// UserSafeMessage returns an error message suitable for display. Categorised
// errors carry curated text; anything else collapses to a generic message so
// infrastructure details never leak to the user.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrStateConflict),
		errors.Is(err, ErrConcurrent):
		return err.Error()
	default:
		return "an unexpected error occurred, please try again"
	}
}
