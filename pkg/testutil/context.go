package testutil

import (
	"net/http"

	"nagoya/pkg/requestcontext"
)

// WithRequestID attaches a request ID the way the RequestID middleware would,
// for handler tests that bypass the middleware chain.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
