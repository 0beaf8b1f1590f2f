package middleware

import (
	"net/http"
	"time"

	"algoforge/internal/platform/logger"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// RequestLog logs each request once after it completes.
func RequestLog(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			kv := []interface{}{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", chiMiddleware.GetReqID(r.Context()),
			}
			switch {
			case status >= 500:
				log.Error("http request", kv...)
			case status >= 400:
				log.Warn("http request", kv...)
			default:
				log.Info("http request", kv...)
			}
		})
	}
}
