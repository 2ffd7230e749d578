// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/ManuGH/vidref/internal/api/problem"
)

// RateLimit limits requests per client IP with a sliding window.
func RateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", strconv.Itoa(max(int(window.Seconds()), 1)))
			problem.Write(w, r, http.StatusTooManyRequests,
				"system/rate_limited", "Too Many Requests", "RATE_LIMIT_EXCEEDED",
				"Too many requests. Please try again later.")
		}),
	)
}

// APIRateLimit allows rps requests per second per client IP.
func APIRateLimit(rps int) func(http.Handler) http.Handler {
	return RateLimit(rps, time.Second)
}
