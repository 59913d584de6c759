// Package credential verifies signed, time-bound credentials and extracts the
// claims they carry. Validation is stateless: replaying the same credential
// produces identical claims every time.
package credential

import (
	"time"
)

// Claims is the immutable record produced by a successful validation. It is
// created at validation time, attached to the request context by the
// authentication middleware, and discarded when the request completes. Claims
// are never mutated after construction.
type Claims struct {
	// Subject is the authenticated subject identifier.
	Subject string

	// Scopes is the role/scope set granted to the subject.
	Scopes []string

	// ExpiresAt is the instant after which the credential is no longer valid.
	ExpiresAt time.Time
}

// HasScope reports whether the claims grant the given scope.
func (c *Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// HasAnyScope reports whether the claims grant at least one of the given
// scopes.
func (c *Claims) HasAnyScope(scopes ...string) bool {
	for _, s := range scopes {
		if c.HasScope(s) {
			return true
		}
	}
	return false
}
