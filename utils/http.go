// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// HTTPClient is the shared client for outbound calls without a dedicated
// per-service client.
var HTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}