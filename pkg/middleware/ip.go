package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Suhaibinator/SPipeline/pkg/common"
)

// IPSourceType defines the source for client IP addresses
type IPSourceType string

const (
	// IPSourceRemoteAddr uses the request's RemoteAddr field
	IPSourceRemoteAddr IPSourceType = "remote_addr"

	// IPSourceXForwardedFor uses the X-Forwarded-For header
	IPSourceXForwardedFor IPSourceType = "x_forwarded_for"

	// IPSourceXRealIP uses the X-Real-IP header
	IPSourceXRealIP IPSourceType = "x_real_ip"

	// IPSourceCustomHeader uses a custom header specified in the configuration
	IPSourceCustomHeader IPSourceType = "custom_header"
)

// IPConfig defines configuration for IP extraction
type IPConfig struct {
	// Source specifies where to extract the client IP from
	Source IPSourceType

	// CustomHeader is the name of the custom header to use when Source is IPSourceCustomHeader
	CustomHeader string

	// TrustProxy determines whether to trust proxy headers like X-Forwarded-For
	// If false, RemoteAddr will be used as a fallback for all sources
	TrustProxy bool
}

// DefaultIPConfig returns the default IP configuration
func DefaultIPConfig() *IPConfig {
	return &IPConfig{
		Source:     IPSourceXForwardedFor,
		TrustProxy: true,
	}
}

// clientIPKey is the context key for the resolved client IP.
type clientIPKey struct{}

// ClientIP returns the client IP the ClientIPMiddleware resolved for this
// request, or an empty string if the middleware is not in the chain.
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// ClientIPMiddleware creates a middleware that resolves the client IP from
// the configured source and adds it to the request context. The rate limiting
// interceptor's IP strategy consumes it.
func ClientIPMiddleware(config *IPConfig) common.Middleware {
	if config == nil {
		config = DefaultIPConfig()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), clientIPKey{}, extractClientIP(r, config))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractClientIP extracts the client IP from the request based on the configuration
func extractClientIP(r *http.Request, config *IPConfig) string {
	var ip string

	switch config.Source {
	case IPSourceXRealIP:
		ip = r.Header.Get("X-Real-IP")
	case IPSourceCustomHeader:
		ip = r.Header.Get(config.CustomHeader)
	case IPSourceRemoteAddr:
		ip = r.RemoteAddr
	default:
		ip = leftmostForwardedFor(r)
	}

	// Without proxy trust, or when the header was absent, RemoteAddr wins.
	if !config.TrustProxy || ip == "" {
		ip = r.RemoteAddr
	}

	return cleanIP(ip)
}

// leftmostForwardedFor returns the original client entry of the
// X-Forwarded-For header, which is a comma-separated proxy chain.
func leftmostForwardedFor(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return ""
	}
	first, _, _ := strings.Cut(xff, ",")
	return strings.TrimSpace(first)
}

// cleanIP removes the port from an IP address if present
func cleanIP(ip string) string {
	// IPv6 addresses with ports are formatted as [IPv6]:port
	if strings.HasPrefix(ip, "[") {
		end := strings.LastIndex(ip, "]")
		if end > 0 {
			return ip[:end+1]
		}
	}

	// More than one colon without brackets means bare IPv6, no port
	if strings.Count(ip, ":") > 1 {
		return ip
	}

	// IPv4 addresses with ports are formatted as IPv4:port
	if end := strings.LastIndex(ip, ":"); end > 0 {
		return ip[:end]
	}

	return ip
}
