// Package models defines the rate limit decision shape shared by the
// memory and Redis stores.
package models

import "time"

// Result is the outcome of counting one request against a fixed window.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAt is when the current window closes and the count restarts.
	ResetAt time.Time
	// RetryAfter is how long a rejected caller must wait. Zero when Allowed.
	// Never exceeds the window length.
	RetryAfter time.Duration
}
