// Package common provides the shared interception contract used across the
// SPipeline framework.
package common

import (
	"net/http"
)

// Middleware is a unit of cross-cutting request/response behavior. It wraps an
// http.Handler (the remainder of the chain, ultimately the terminal handler)
// and may inspect or reject the request before calling it, and may inspect or
// transform the response after. A middleware that writes a response without
// invoking the wrapped handler short-circuits the chain.
type Middleware func(http.Handler) http.Handler
