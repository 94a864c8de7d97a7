package server

import (
	"math"
	"net/http"
	"strconv"

	"golang.org/x/time/rate"
)

// rateLimit returns middleware sharing one token bucket across every
// wrapped route. The gateway serves a single box, so the limit guards
// the box rather than any one client. rps <= 0 disables it.
func rateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	if burst < 1 {
		burst = 1
	}

	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				// Report when the next token will be available without
				// consuming it.
				reservation := limiter.Reserve()
				delay := reservation.Delay()
				reservation.Cancel()

				retryAfter := max(int(math.Ceil(delay.Seconds())), 1)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				writeJSON(w, http.StatusTooManyRequests, errorResponse{
					Error: "rate limit exceeded",
				})

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
