package v1

import (
	"net/http"

	"argus/internal/metrics"
	"argus/pkg/errors"
)

// rateLimited guards a route with the shared token bucket. Requests
// over the limit are rejected with 429 before any body is read.
func (h *Handler) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.limiter != nil && !h.limiter.Allow() {
			metrics.RateLimitedRequests.WithLabelValues(r.URL.Path).Inc()
			h.log.Debugw("Request rate limited",
				"method", r.Method,
				"path", r.URL.Path,
			)
			h.writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": errors.ErrRateLimitExceeded.Error(),
			})
			return
		}
		next(w, r)
	}
}
