package testutil

import (
	"net/http"

	"mywill/pkg/requestcontext"
)

// WithCaller marks the request as authenticated for email, the way the bearer
// auth middleware does.
func WithCaller(req *http.Request, email string) *http.Request {
	return req.WithContext(requestcontext.WithCallerEmail(req.Context(), email))
}
