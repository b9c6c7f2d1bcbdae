package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/catalog_api/internal/models"
	"github.com/GTDGit/catalog_api/internal/utils"
)

type fakeSessions struct {
	sessions map[string]*models.AdminSession
	err      error
}

func (f *fakeSessions) CheckSession(_ context.Context, token string) (*models.AdminSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.sessions[token]
	if !ok {
		return nil, utils.ErrInvalidToken
	}
	return s, nil
}

func newProtectedRouter(checker SessionChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewJWTMiddleware(checker).Handle())
	r.GET("/admin", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"session": c.GetString("session_id"),
			"client":  c.GetString("client_key"),
		})
	})
	return r
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp.Error.Code
}

func TestJWTMiddleware(t *testing.T) {
	checker := &fakeSessions{sessions: map[string]*models.AdminSession{
		"good": {ID: "sess-1", ClientKey: "192.0.2.1", Valid: true},
	}}
	r := newProtectedRouter(checker)

	tests := []struct {
		name     string
		path     string
		header   string
		wantCode int
		wantErr  string
	}{
		{name: "bearer header", path: "/admin", header: "Bearer good", wantCode: http.StatusOK},
		{name: "query token", path: "/admin?token=good", wantCode: http.StatusOK},
		{name: "missing", path: "/admin", wantCode: http.StatusUnauthorized, wantErr: "UNAUTHORIZED"},
		{name: "wrong scheme", path: "/admin", header: "Basic Z29vZA==", wantCode: http.StatusUnauthorized, wantErr: "UNAUTHORIZED"},
		{name: "unknown token", path: "/admin", header: "Bearer nope", wantCode: http.StatusUnauthorized, wantErr: "INVALID_TOKEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, errorCode(t, w.Body.Bytes()))
				return
			}
			assert.JSONEq(t, `{"session":"sess-1","client":"192.0.2.1"}`, w.Body.String())
		})
	}
}

func TestJWTMiddlewareSessionErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{name: "expired", err: utils.ErrSessionExpired, wantCode: http.StatusUnauthorized, wantErr: "SESSION_EXPIRED"},
		{name: "store down", err: errors.New("dial tcp: connection refused"), wantCode: http.StatusServiceUnavailable, wantErr: "SESSION_STORE_UNAVAILABLE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newProtectedRouter(&fakeSessions{err: tt.err})
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.Header.Set("Authorization", "Bearer anything")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantErr, errorCode(t, w.Body.Bytes()))
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware([]string{"loja.example.com", "localhost:5173"}))
	r.GET("/v1/catalog/products", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		name   string
		method string
		origin string
		want   string
		status int
	}{
		{name: "allowed", method: http.MethodGet, origin: "https://loja.example.com", want: "https://loja.example.com", status: http.StatusOK},
		{name: "default port stripped", method: http.MethodGet, origin: "https://loja.example.com:443", want: "https://loja.example.com:443", status: http.StatusOK},
		{name: "dev port", method: http.MethodGet, origin: "http://localhost:5173", want: "http://localhost:5173", status: http.StatusOK},
		{name: "foreign", method: http.MethodGet, origin: "https://evil.example.net", want: "", status: http.StatusOK},
		{name: "preflight", method: http.MethodOptions, origin: "https://loja.example.com", want: "https://loja.example.com", status: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/v1/catalog/products", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.want, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Retry-After")
		})
	}
}

func TestLoggingMiddlewareSetsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(LoggingMiddleware())
	var seen string
	r.GET("/v1/health", func(c *gin.Context) {
		seen = c.GetString("request_id")
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	assert.Len(t, seen, 8)
	assert.Equal(t, seen, w.Header().Get("X-Request-Id"))
}
