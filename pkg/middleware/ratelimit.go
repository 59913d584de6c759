package middleware

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/Suhaibinator/SPipeline/pkg/common"
	"github.com/Suhaibinator/SPipeline/pkg/pipeline"
	"github.com/Suhaibinator/SPipeline/pkg/ratelimit"
	"go.uber.org/zap"
)

// RateLimitStrategy defines how the rate limiting interceptor derives the
// bucket key from a request.
type RateLimitStrategy string

const (
	// StrategyIP keys buckets by client IP address.
	StrategyIP RateLimitStrategy = "ip"

	// StrategySubject keys buckets by the authenticated subject. Requests
	// without claims in the context fall back to the client IP, so the
	// interceptor can run before or after Authentication.
	StrategySubject RateLimitStrategy = "subject"

	// StrategyCustom keys buckets with a caller-provided extractor.
	StrategyCustom RateLimitStrategy = "custom"
)

// AttachmentRateLimitKey is the request scope attachment key under which the
// rate limiting interceptor records the bucket key it charged.
const AttachmentRateLimitKey = "ratelimit.key"

// RateLimitConfig configures the rate limiting interceptor.
type RateLimitConfig struct {
	// BucketName namespaces the bucket keys so independent interceptors
	// sharing one limiter don't collide. Required.
	BucketName string

	// Strategy selects how the bucket key is derived. Defaults to StrategyIP.
	Strategy RateLimitStrategy

	// KeyExtractor derives the key for StrategyCustom.
	KeyExtractor func(r *http.Request) (string, error)

	// ExceededHandler is invoked instead of the default 429 response when a
	// request is rejected. The rate limit headers are already set. Optional.
	ExceededHandler http.Handler

	// Metrics, if non-nil, counts rejections by bucket.
	Metrics *Metrics
}

// RateLimit creates a middleware that admits or rejects requests according to
// the limiter's verdict for the derived bucket key. Admitted and rejected
// responses both carry X-RateLimit-Limit and X-RateLimit-Remaining headers;
// rejections additionally carry Retry-After and status 429.
func RateLimit(config *RateLimitConfig, limiter ratelimit.Limiter, logger *zap.Logger) common.Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := bucketKey(r, config)
			if err != nil {
				logger.Error("Failed to extract rate limit key",
					zap.String("bucket", config.BucketName),
					zap.Error(err),
				)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			if scope, ok := pipeline.ScopeFromRequest(r); ok {
				scope.Set(AttachmentRateLimitKey, key)
			}

			result := limiter.Allow(key)
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", result.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))

			if !result.Allowed {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSeconds(result.RetryAfter)))
				logger.Warn("Rate limit exceeded",
					zap.String("bucket", config.BucketName),
					zap.String("key", key),
					zap.Duration("retry_after", result.RetryAfter),
				)
				config.Metrics.recordRateLimitRejected(config.BucketName)
				if config.ExceededHandler != nil {
					config.ExceededHandler.ServeHTTP(w, r)
					return
				}
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// bucketKey derives the namespaced limiter key for the request.
func bucketKey(r *http.Request, config *RateLimitConfig) (string, error) {
	var key string
	switch config.Strategy {
	case StrategySubject:
		if claims := ClaimsFromRequest(r); claims != nil && claims.Subject != "" {
			key = claims.Subject
		} else {
			key = requestIP(r)
		}
	case StrategyCustom:
		if config.KeyExtractor == nil {
			return "", fmt.Errorf("rate limit bucket %q: custom strategy requires a key extractor", config.BucketName)
		}
		extracted, err := config.KeyExtractor(r)
		if err != nil {
			return "", fmt.Errorf("rate limit bucket %q: %w", config.BucketName, err)
		}
		key = extracted
	default:
		key = requestIP(r)
	}
	return config.BucketName + ":" + key, nil
}

// requestIP prefers the IP the ClientIPMiddleware resolved, falling back to
// RemoteAddr when that middleware is not in the chain.
func requestIP(r *http.Request) string {
	if ip := ClientIP(r); ip != "" {
		return ip
	}
	return cleanIP(r.RemoteAddr)
}

// retryAfterSeconds rounds the retry hint up to whole seconds, with a floor
// of one second so clients never retry immediately.
func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
