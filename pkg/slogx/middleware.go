package slogx

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/tokengate/pkg/idx"
)

// HTTPMiddleware attaches a request scoped logger to the context, echoes the
// request ID back to the caller and logs one line per completed request.
func HTTPMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			reqID := idx.FromHeader(r.Header.Get(idx.HeaderRequestID))
			rw.Header().Set(idx.HeaderRequestID, reqID.String())

			logger := base.With(
				"req_id", reqID.String(),
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			r = r.WithContext(WithContext(r.Context(), logger))

			next.ServeHTTP(rw, r)

			// Handlers deeper in the chain may have enriched the logger
			// (the authenticated user, for example); use theirs if so.
			if rw.logger != nil {
				logger = rw.logger
			}
			logger.Info("http_request",
				"status", rw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"user_agent", r.UserAgent(),
			)
		})
	}
}

// Recover turns a handler panic into a 500 and an error log line instead of
// a dropped connection.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				FromContext(r.Context()).Error("panic in handler", "err", fmt.Sprint(v))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Promote makes logger the one used for the request summary line. It is a
// no-op when w did not pass through HTTPMiddleware.
func Promote(w http.ResponseWriter, logger *slog.Logger) {
	if rw, ok := w.(*responseWriter); ok {
		rw.logger = logger
	}
}

type responseWriter struct {
	http.ResponseWriter

	status int
	logger *slog.Logger
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }
