// Package middleware provides the HTTP interceptors that compose into an
// SPipeline: authentication, rate limiting, circuit breaking, plus the
// supporting concerns (client IP, tracing, logging, timeout, CORS).
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Suhaibinator/SPipeline/pkg/common"
	"github.com/Suhaibinator/SPipeline/pkg/credential"
	"github.com/Suhaibinator/SPipeline/pkg/pipeline"
	"go.uber.org/zap"
)

const (
	// DefaultCredentialHeader is the request header the authentication
	// interceptor reads the credential from.
	DefaultCredentialHeader = "Authorization"

	// DefaultCredentialScheme is the prefix stripped from the header value,
	// as in "Bearer <token>".
	DefaultCredentialScheme = "Bearer"

	// AttachmentClaims is the request scope attachment key under which the
	// authentication interceptor records the validated claims.
	AttachmentClaims = "claims"
)

// claimsKey is the context key for validated credential claims.
type claimsKey struct{}

// ClaimsFromContext returns the claims a successful authentication
// interceptor stored in ctx, or nil if the request was not authenticated.
func ClaimsFromContext(ctx context.Context) *credential.Claims {
	if claims, ok := ctx.Value(claimsKey{}).(*credential.Claims); ok {
		return claims
	}
	return nil
}

// ClaimsFromRequest returns the claims stored in the request context.
func ClaimsFromRequest(r *http.Request) *credential.Claims {
	return ClaimsFromContext(r.Context())
}

// AuthConfig configures the authentication interceptor.
type AuthConfig struct {
	// Validator checks raw credentials. Required.
	Validator credential.Validator

	// Header is the request header carrying the credential.
	// Defaults to DefaultCredentialHeader.
	Header string

	// Scheme is the expected prefix of the header value ("Bearer" by
	// default). Set to "-" to read the header value verbatim.
	Scheme string

	// SkipPaths lists paths that may be served without a credential.
	// An entry is either an exact path or a prefix ending in "/*".
	// A credential that IS presented on a skip path is still validated.
	SkipPaths []string

	// Logger receives warnings about rejected requests. Optional.
	Logger *zap.Logger

	// Metrics, if non-nil, counts rejections by reason.
	Metrics *Metrics
}

// Authentication creates a middleware that authenticates requests with the
// configured validator. Requests without a credential are rejected with 401
// unless the path is in SkipPaths; requests with an invalid or expired
// credential are always rejected, skip path or not. On success the validated
// claims are placed in the request context (see ClaimsFromRequest) and in the
// request scope under AttachmentClaims.
func Authentication(config *AuthConfig) common.Middleware {
	header := config.Header
	if header == "" {
		header = DefaultCredentialHeader
	}
	scheme := config.Scheme
	if scheme == "" {
		scheme = DefaultCredentialScheme
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractCredential(r, header, scheme)

			if raw == "" {
				if pathSkipped(r.URL.Path, config.SkipPaths) {
					next.ServeHTTP(w, r)
					return
				}
				logger.Warn("Missing credential",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
				)
				config.Metrics.recordAuthFailure("missing")
				unauthorized(w, scheme, "missing credential")
				return
			}

			claims, err := config.Validator.Validate(r.Context(), raw)
			if err != nil {
				reason := "invalid"
				message := "invalid credential"
				if errors.Is(err, credential.ErrExpiredCredential) {
					reason = "expired"
					message = "expired credential"
				}
				logger.Warn("Credential rejected",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("reason", reason),
					zap.Error(err),
				)
				config.Metrics.recordAuthFailure(reason)
				unauthorized(w, scheme, message)
				return
			}

			if scope, ok := pipeline.ScopeFromRequest(r); ok {
				scope.Set(AttachmentClaims, claims)
			}
			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractCredential reads the credential from the configured header, stripping
// the scheme prefix when one is expected. A header value that does not match
// the expected scheme is treated as absent.
func extractCredential(r *http.Request, header, scheme string) string {
	value := r.Header.Get(header)
	if value == "" {
		return ""
	}
	if scheme == "-" {
		return value
	}
	prefix := scheme + " "
	if len(value) < len(prefix) || !strings.EqualFold(value[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(value[len(prefix):])
}

// pathSkipped reports whether path matches one of the skip entries.
func pathSkipped(path string, skipPaths []string) bool {
	for _, p := range skipPaths {
		if prefix, ok := strings.CutSuffix(p, "/*"); ok {
			if path == prefix || strings.HasPrefix(path, prefix+"/") {
				return true
			}
			continue
		}
		if path == p {
			return true
		}
	}
	return false
}

func unauthorized(w http.ResponseWriter, scheme, message string) {
	if scheme != "-" {
		w.Header().Set("WWW-Authenticate", scheme)
	}
	http.Error(w, message, http.StatusUnauthorized)
}
