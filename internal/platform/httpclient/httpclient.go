// Package httpclient builds the outbound HTTP clients used for upstream
// services.
package httpclient

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

// New returns a non-shared, pooled client with the given overall timeout.
// Callers should still bound individual requests with a context deadline.
func New(timeout time.Duration) *http.Client {
	client := cleanhttp.DefaultPooledClient()
	client.Timeout = timeout
	return client
}
