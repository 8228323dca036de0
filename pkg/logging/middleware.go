package logging

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID in both directions
const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware tags each status API request with an ID (the
// client's, when it sends one) and logs it when done. Server errors log at
// ERROR, everything else at DEBUG so a polling client does not flood the
// build log. Event streams also log when they open, since they can stay
// open for the whole watch session.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := WithRequestID(r.Context(), requestID)
		w.Header().Set(RequestIDHeader, requestID)

		stream := isEventStream(r)
		if stream {
			DebugContext(ctx, "event stream opened", "path", r.URL.Path, "remote", r.RemoteAddr)
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))
		elapsed := time.Since(start).Round(time.Millisecond)

		level, msg := slog.LevelDebug, "request completed"
		switch {
		case rec.status >= http.StatusInternalServerError:
			level, msg = slog.LevelError, "request failed"
		case stream:
			msg = "event stream closed"
		}
		current().Log(ctx, level, msg, withContextIDs(ctx, []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", elapsed,
		})...)
	})
}

func isEventStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream") ||
		strings.HasPrefix(r.URL.Path, "/api/subscribe/")
}

// statusRecorder remembers the status code written through it
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// Flush keeps server-sent events working through the wrapper
func (rec *statusRecorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
