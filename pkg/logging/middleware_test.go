package logging

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestIDMiddleware(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, slog.LevelDebug)
	defer SetOutput(&bytes.Buffer{}, slog.LevelInfo)

	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		if r.URL.Path == "/boom" {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))

	tests := []struct {
		name     string
		path     string
		header   string
		wantLogs []string
	}{
		{"generated id", "/api/state", "", []string{"[DEBUG]", "request completed", "status=200"}},
		{"client id kept", "/api/files", "0123456789abcdef", []string{"req=01234567"}},
		{"server error", "/boom", "", []string{"[ERROR]", "request failed", "status=500"}},
		{"event stream", "/api/subscribe/build_status", "", []string{"event stream opened", "event stream closed"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(RequestIDHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			got := rec.Header().Get(RequestIDHeader)
			if got == "" || got != seen {
				t.Errorf("response ID %q, handler saw %q", got, seen)
			}
			if tt.header != "" && got != tt.header {
				t.Errorf("Expected client ID %q, got %q", tt.header, got)
			}
			for _, want := range tt.wantLogs {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("Expected %q in log:\n%s", want, buf.String())
				}
			}
		})
	}
}
