package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"client id kept", "req-123", true},
		{"empty generated", "", false},
		{"too long replaced", strings.Repeat("a", maxRequestIDLen+1), false},
		{"control chars replaced", "abc\x00def", false},
		{"spaces replaced", "two words", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(HeaderRequestID, tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			got := w.Header().Get(HeaderRequestID)
			if got != seen {
				t.Fatalf("response id %q != context id %q", got, seen)
			}
			if tt.keep && got != tt.header {
				t.Errorf("expected client id %q, got %q", tt.header, got)
			}
			if !tt.keep && (got == tt.header || len(got) != 36) {
				t.Errorf("expected a generated UUID, got %q", got)
			}
		})
	}
}

func TestAccessLog_LevelAndFields(t *testing.T) {
	tests := []struct {
		name   string
		status int
		level  zapcore.Level
	}{
		{"ok", http.StatusCreated, zapcore.InfoLevel},
		{"client error", http.StatusConflict, zapcore.WarnLevel},
		{"server error", http.StatusServiceUnavailable, zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			h := RequestID(AccessLog(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.WriteHeader(http.StatusTeapot) // 重复写头不改变记录的状态码
				_, _ = w.Write([]byte("hello"))
			})))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/checkout", nil)
			req.Header.Set(HeaderIdempotencyKey, "k-1")
			req.Header.Set(HeaderRequestID, "rid-1")
			h.ServeHTTP(httptest.NewRecorder(), req)

			entries := logs.All()
			if len(entries) != 1 {
				t.Fatalf("expected one access log entry, got %d", len(entries))
			}
			e := entries[0]
			if e.Level != tt.level {
				t.Errorf("expected level %s, got %s", tt.level, e.Level)
			}
			fields := e.ContextMap()
			if fields["status"] != int64(tt.status) {
				t.Errorf("expected status %d, got %v", tt.status, fields["status"])
			}
			if fields["bytes"] != int64(5) {
				t.Errorf("expected 5 bytes, got %v", fields["bytes"])
			}
			if fields["idempotency_key"] != "k-1" || fields["request_id"] != "rid-1" {
				t.Errorf("unexpected fields %v", fields)
			}
		})
	}
}

func TestAccessLog_NoIdempotencyKey(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := AccessLog(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if _, ok := logs.All()[0].ContextMap()["idempotency_key"]; ok {
		t.Error("idempotency_key should be omitted when the header is absent")
	}
	if logs.All()[0].ContextMap()["status"] != int64(http.StatusOK) {
		t.Error("implicit 200 expected")
	}
}
