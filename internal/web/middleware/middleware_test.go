package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/validata/internal/auth"
)

type stubValidator struct {
	valid string
}

func (v stubValidator) ValidateToken(ctx context.Context, token string) (*auth.Claims, error) {
	if token != v.valid {
		return nil, errors.New("bad token")
	}
	c := &auth.Claims{Email: "ana@example.com"}
	return c, nil
}

func TestBearerAuth(t *testing.T) {
	var actor string
	h := BearerAuth(stubValidator{valid: "good"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.GetClaims(r.Context())
		require.True(t, ok)
		actor = claims.Actor()
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"header", "Bearer good", "", http.StatusNoContent},
		{"lower-case scheme", "bearer good", "", http.StatusNoContent},
		{"query", "", "good", http.StatusNoContent},
		{"missing", "", "", http.StatusUnauthorized},
		{"invalid", "Bearer bad", "", http.StatusUnauthorized},
		{"basic scheme", "Basic good", "", http.StatusUnauthorized},
		{"header wins over query", "Bearer bad", "good", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor = ""
			target := "/x"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
				assert.Empty(t, actor)
			} else {
				assert.Equal(t, "ana@example.com", actor)
			}
		})
	}
}

func TestTrustedRealIP(t *testing.T) {
	var seen string
	h := TrustedRealIP([]string{"10.0.0.0/8", "192.168.1.5", "not-an-ip"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.RemoteAddr
	}))

	tests := []struct {
		name    string
		remote  string
		realIP  string
		forward string
		want    string
	}{
		{"trusted cidr uses X-Real-IP", "10.1.2.3:5000", "203.0.113.7", "", "203.0.113.7"},
		{"trusted single address uses first forwarded hop", "192.168.1.5:80", "", "198.51.100.1, 10.1.2.3", "198.51.100.1"},
		{"untrusted keeps remote addr", "8.8.8.8:1234", "203.0.113.7", "", "8.8.8.8:1234"},
		{"garbage header ignored", "10.1.2.3:5000", "nope", "", "10.1.2.3:5000"},
		{"no headers", "10.1.2.3:5000", "", "", "10.1.2.3:5000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.forward != "" {
				req.Header.Set("X-Forwarded-For", tt.forward)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, seen)
		})
	}
}

func TestLogger_CapturesStatusAndSize(t *testing.T) {
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code, "first WriteHeader wins")
	assert.Equal(t, "hello", rec.Body.String())

	ww := &responseWriter{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	_, _ = ww.Write([]byte("abc"))
	assert.Equal(t, http.StatusOK, ww.status)
	assert.Equal(t, 3, ww.bytes)
	assert.NotNil(t, ww.Unwrap())
}
