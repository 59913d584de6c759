package credential

import (
	"errors"
	"fmt"
)

// Sentinel errors for credential validation. Middleware matches these with
// errors.Is to pick the terminal response for a failed request.
var (
	// ErrMissingCredential indicates that no credential was supplied.
	ErrMissingCredential = errors.New("missing credential")

	// ErrInvalidCredential indicates that the credential is malformed or its
	// signature did not verify.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrExpiredCredential indicates that the credential's expiration instant
	// is not strictly after the current clock reading.
	ErrExpiredCredential = errors.New("expired credential")
)

// ValidationError carries the validation failure kind plus the underlying
// parser or verifier error.
type ValidationError struct {
	Kind  error // one of the sentinel errors above
	Cause error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("credential: %v: %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("credential: %v", e.Kind)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// Is reports whether the error matches one of the sentinel kinds.
func (e *ValidationError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

func newValidationError(kind, cause error) *ValidationError {
	return &ValidationError{Kind: kind, Cause: cause}
}
