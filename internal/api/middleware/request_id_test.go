package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/routecast/routecast/internal/api/middleware"
)

func TestRequestID_Generates(t *testing.T) {
	var got string
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = middleware.GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	assert.True(t, strings.HasPrefix(got, "req_"), "got %q", got)
	assert.Equal(t, got, rec.Header().Get("X-Request-Id"))
}

func TestRequestID_PropagatesClientID(t *testing.T) {
	var got string
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = middleware.GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("X-Request-Id", "client-abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "client-abc", got)
	assert.Equal(t, "client-abc", rec.Header().Get("X-Request-Id"))
}

func TestRequestID_ReplacesUnusableID(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{"oversized", strings.Repeat("x", 65)},
		{"spaces", "abc def"},
		{"control characters", "abc\x00def"},
		{"non ascii", "träce"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = middleware.GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.Header.Set("X-Request-Id", tt.id)
			handler.ServeHTTP(httptest.NewRecorder(), req)

			assert.True(t, strings.HasPrefix(got, "req_"), "got %q", got)
		})
	}
}

func TestRequestID_CharacterSet(t *testing.T) {
	var got string
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = middleware.GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("X-Request-Id", "projects/x:trace.1-a_b")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, strings.HasPrefix(got, "req_"), "slash is rejected, got %q", got)

	req.Header.Set("X-Request-Id", "trace:1.a-b_C")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "trace:1.a-b_C", got)
}

func TestRequestID_UniquePerRequest(t *testing.T) {
	seen := make(map[string]bool)
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen[middleware.GetRequestID(r.Context())] = true
	}))

	for i := 0; i < 10; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	}

	assert.Len(t, seen, 10)
}
