package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"attendance-sync-api/internal/auth"
	"attendance-sync-api/internal/config"
	"attendance-sync-api/internal/metrics"
	"attendance-sync-api/internal/model"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func securityConfig() *config.SecurityConfig {
	return &config.SecurityConfig{
		RateLimitRPS:   1,
		RateLimitBurst: 2,
		RequestTimeout: time.Second,
		EnableCORS:     true,
		AllowedOrigins: []string{"http://panel.local"},
		TrustedProxies: []string{"10.0.0.1"},
	}
}

var ok = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRateLimit_PerClient(t *testing.T) {
	sm := NewSecurityMiddleware(securityConfig())
	h := sm.TrustedProxy(sm.RateLimit(ok))

	send := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/employees", nil)
		req.RemoteAddr = remote
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, send("192.168.1.5:1000"))
	assert.Equal(t, http.StatusOK, send("192.168.1.5:1001"))
	assert.Equal(t, http.StatusTooManyRequests, send("192.168.1.5:1002"))
	assert.Equal(t, http.StatusOK, send("192.168.1.6:1000"), "other clients keep their own budget")
}

func TestRateLimit_EvictsIdleClients(t *testing.T) {
	sm := NewSecurityMiddleware(securityConfig())
	now := time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC)
	sm.now = func() time.Time { return now }

	sm.limiter("a")
	now = now.Add(idleLimiterTTL + time.Minute)
	sm.limiter("b")

	assert.NotContains(t, sm.clients, "a")
	assert.Contains(t, sm.clients, "b")
}

func TestGetClientIP(t *testing.T) {
	sm := NewSecurityMiddleware(securityConfig())

	tests := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"direct", "192.168.1.5:4000", "", "192.168.1.5"},
		{"untrusted forwarder", "192.168.1.5:4000", "1.2.3.4", "192.168.1.5"},
		{"trusted proxy", "10.0.0.1:4000", "1.2.3.4, 10.0.0.1", "1.2.3.4"},
		{"ipv6", "[::1]:4000", "", "::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, sm.getClientIP(req))
		})
	}
}

func TestCORS(t *testing.T) {
	sm := NewSecurityMiddleware(securityConfig())
	h := sm.CORS(ok)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/devices", nil)
	req.Header.Set("Origin", "http://panel.local")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://panel.local", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil)
	req.Header.Set("Origin", "http://evil.local")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestTimeout(t *testing.T) {
	sm := NewSecurityMiddleware(securityConfig())

	var hasDeadline bool
	h := sm.RequestTimeout(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/employees", nil))
	assert.True(t, hasDeadline)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/attendances/sync", nil))
	assert.False(t, hasDeadline, "sync is exempt")
}

func TestSecurityHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	NewSecurityMiddleware(securityConfig()).SecurityHeaders(ok).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}

func TestLogRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	var buf bytes.Buffer
	lm := NewLoggingMiddleware(zerolog.New(&buf), m)

	r := mux.NewRouter()
	r.Use(RequestID, lm.LogRequests)
	r.HandleFunc("/api/v1/devices/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/devices/42", nil))

	assert.NotEmpty(t, rr.Header().Get(RequestIDHeader))
	assert.Contains(t, buf.String(), `"route":"/api/v1/devices/{id}"`)
	assert.Contains(t, buf.String(), `"status":404`)
	assert.Contains(t, buf.String(), `"level":"warn"`)

	count, err := testutil.GatherAndCount(reg, "attendance_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRequestID_KeepsIncoming(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rr := httptest.NewRecorder()
	RequestID(ok).ServeHTTP(rr, req)
	assert.Equal(t, "abc", rr.Header().Get(RequestIDHeader))
}

func TestRequireToken(t *testing.T) {
	tokens, err := auth.NewTokens("test-secret", time.Hour, "attendance-sync-api")
	require.NoError(t, err)
	token, _, err := tokens.Issue(model.User{ID: uuid.New(), Email: "ops@example.com"})
	require.NoError(t, err)

	var claims *auth.Claims
	h := NewAuthMiddleware(tokens, zerolog.Nop(), "/api/v1/auth/login", "/health").RequireToken(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, _ = auth.ClaimsFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"public path", "/api/v1/auth/login", "", http.StatusOK},
		{"health", "/health", "", http.StatusOK},
		{"missing token", "/api/v1/employees", "", http.StatusUnauthorized},
		{"garbage token", "/api/v1/employees", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "/api/v1/employees", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code)
		})
	}
	require.NotNil(t, claims)
	assert.Equal(t, "ops@example.com", claims.Email)
}

func TestRequireToken_Disabled(t *testing.T) {
	rr := httptest.NewRecorder()
	NewAuthMiddleware(nil, zerolog.Nop()).RequireToken(ok).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/employees", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
