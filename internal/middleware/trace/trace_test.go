package trace

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applog "webbudget/internal/log"
)

func TestMiddleware_AssignsRequestID(t *testing.T) {
	var seen string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r)
		w.WriteHeader(http.StatusTeapot)
	}))

	tests := []struct {
		name   string
		header string
		check  func(string) bool
	}{
		{"generated", "", func(id string) bool { return strings.HasPrefix(id, "req_") && len(id) == 20 }},
		{"propagated", "abc-123", func(id string) bool { return id == "abc-123" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/periods", nil)
			if tt.header != "" {
				req.Header.Set(HeaderRequestID, tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if !tt.check(seen) {
				t.Errorf("unexpected request id %q", seen)
			}
			if rec.Header().Get(HeaderRequestID) != seen {
				t.Errorf("response header = %q, want %q", rec.Header().Get(HeaderRequestID), seen)
			}
			if rec.Code != http.StatusTeapot {
				t.Errorf("status = %d", rec.Code)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		remoteAddr string
		want       string
	}{
		{"forwarded", "10.0.0.1, 10.0.0.2", "192.168.1.1:1234", "10.0.0.1"},
		{"remote addr", "", "192.168.1.1:1234", "192.168.1.1"},
		{"remote without port", "", "192.168.1.1", "192.168.1.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := ClientIP(req); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMiddleware_LogsRequestOutcome(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/movements/missing?period_id=3", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	want := map[string]any{
		"level":                "WARN",
		applog.FieldRequestID:  "req-42",
		applog.FieldPath:       "/api/movements/missing",
		applog.FieldQuery:      "period_id=3",
		applog.FieldStatusCode: float64(http.StatusNotFound),
		applog.FieldSuccess:    false,
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %v", k, entry[k], v)
		}
	}
	if _, ok := entry[applog.FieldDuration]; !ok {
		t.Errorf("missing %s in %v", applog.FieldDuration, entry)
	}
}
