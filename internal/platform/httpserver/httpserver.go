package httpserver

import (
	"net/http"
	"time"
)

// New builds the storefront API server. Write and idle timeouts are generous
// because catalogue responses proxy a slow upstream; the header timeout stays
// tight to shed slowloris connections.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
