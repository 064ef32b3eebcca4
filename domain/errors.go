package domain

import "fmt"

// ValidationError reports input rejected locally, before any network call.
// The failed action stays re-triggerable.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// WriteError wraps a rejected or failed create, update or delete. Writes
// are never retried automatically; the store snapshot stays authoritative.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	if e.Err == nil {
		return e.Op + " failed"
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// SubscriptionError reports that the live task query could not be
// established, was interrupted, or failed to refresh after a change event.
type SubscriptionError struct {
	Reason string
	Err    error
}

func (e *SubscriptionError) Error() string {
	if e.Err == nil {
		return "subscription " + e.Reason
	}
	return fmt.Sprintf("subscription %s: %v", e.Reason, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

// AuthError carries the provider error code of a rejected sign-in or
// sign-up together with the fixed user-facing message it maps to.
type AuthError struct {
	Code    string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

func (e *AuthError) Unwrap() error { return e.Err }
