package idempotency

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Cooldown rate-limits an endpoint per client: a request inside the
// window after a previous one gets 429 with a Retry-After hint. Keys
// are derived from the client IP plus the request path.
func Cooldown(log *slog.Logger, marker Marker, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			key := fmt.Sprintf("cooldown:%s:%s", host, r.URL.Path)

			seen, err := marker.Seen(r.Context(), key)
			if err != nil {
				// Rate limiting is advisory, never block on its failure.
				log.Warn("cooldown check failed", "err", err)
				next.ServeHTTP(w, r)
				return
			}
			if seen {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
