package api

import (
	"net/http"
	"time"

	"argus/pkg/logger"
)

// accessLog logs every HTTP request with its status and duration.
// WebSocket upgrades are passed through untouched since the wrapped
// writer would hide the http.Hijacker the upgrader needs.
func accessLog(next http.Handler, log *logger.Logger) http.Handler {
	accessLogger := log.With("component", "http")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Upgrade") == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		accessLogger.Debugw("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
