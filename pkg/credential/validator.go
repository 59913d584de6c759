package credential

import (
	"context"
	"errors"

	"github.com/benbjohnson/clock"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.uber.org/zap"
)

// DefaultScopeClaim is the token claim read for the role/scope set when no
// other claim name is configured.
const DefaultScopeClaim = "scopes"

// Validator verifies a signed credential blob and extracts its claims.
type Validator interface {
	// Validate verifies the credential's signature and expiration and returns
	// the claims it carries. The returned error matches ErrInvalidCredential
	// or ErrExpiredCredential via errors.Is.
	Validate(ctx context.Context, raw string) (*Claims, error)
}

// Config configures a Validator. It is immutable after NewValidator returns.
type Config struct {
	// Algorithm is the expected signature algorithm, e.g. jwa.HS256.
	Algorithm jwa.SignatureAlgorithm

	// Key is the verification key: []byte for HMAC algorithms, the public key
	// for asymmetric ones.
	Key any

	// ScopeClaim is the claim holding the role/scope set. Defaults to
	// DefaultScopeClaim.
	ScopeClaim string

	// Clock supplies the current time for the expiration check. Defaults to
	// the real clock.
	Clock clock.Clock

	// Logger is used for validation debug logging. Defaults to a no-op
	// logger.
	Logger *zap.Logger
}

type validator struct {
	alg        jwa.SignatureAlgorithm
	key        any
	scopeClaim string
	clock      clock.Clock
	logger     *zap.Logger
}

// NewValidator creates a Validator from the given configuration.
func NewValidator(cfg *Config) (Validator, error) {
	if cfg == nil {
		return nil, errors.New("credential: config is required")
	}
	if cfg.Key == nil {
		return nil, errors.New("credential: verification key is required")
	}

	v := &validator{
		alg:        cfg.Algorithm,
		key:        cfg.Key,
		scopeClaim: cfg.ScopeClaim,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
	}
	if v.alg == "" {
		v.alg = jwa.HS256
	}
	if v.scopeClaim == "" {
		v.scopeClaim = DefaultScopeClaim
	}
	if v.clock == nil {
		v.clock = clock.New()
	}
	if v.logger == nil {
		v.logger = zap.NewNop()
	}
	return v, nil
}

// Validate verifies the credential and extracts its claims. Expiration is a
// hard boundary: the expiration instant must be strictly after the current
// clock reading, with no skew compensation.
func (v *validator) Validate(ctx context.Context, raw string) (*Claims, error) {
	if raw == "" {
		return nil, newValidationError(ErrMissingCredential, nil)
	}

	// Signature and structure are checked here; the expiration comparison is
	// done against the injected clock below, so jwx's own time validation is
	// disabled.
	token, err := jwt.Parse([]byte(raw),
		jwt.WithContext(ctx),
		jwt.WithKey(v.alg, v.key),
		jwt.WithValidate(false),
	)
	if err != nil {
		v.logger.Debug("credential rejected", zap.Error(err))
		return nil, newValidationError(ErrInvalidCredential, err)
	}

	exp := token.Expiration()
	if exp.IsZero() {
		// A credential without an expiration is not time-bound and is
		// treated as invalid rather than eternal.
		return nil, newValidationError(ErrInvalidCredential, errors.New("no expiration claim"))
	}
	if !exp.After(v.clock.Now()) {
		return nil, newValidationError(ErrExpiredCredential, nil)
	}

	claims := &Claims{
		Subject:   token.Subject(),
		ExpiresAt: exp,
	}
	if raw, ok := token.Get(v.scopeClaim); ok {
		claims.Scopes = toStringSlice(raw)
	}

	v.logger.Debug("credential validated",
		zap.String("subject", claims.Subject),
		zap.Time("expires_at", claims.ExpiresAt),
	)
	return claims, nil
}

// toStringSlice normalizes a scope claim decoded from JSON, which arrives as
// []interface{}, a []string, or a single string.
func toStringSlice(v any) []string {
	switch val := v.(type) {
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{val}
	default:
		return nil
	}
}

var _ Validator = (*validator)(nil)
