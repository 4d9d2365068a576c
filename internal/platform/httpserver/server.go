// Package httpserver wraps the standard http.Server with the timeouts the
// service always wants set.
package httpserver

import (
	"net/http"
	"time"
)

// New returns an http.Server with conservative timeouts applied.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
