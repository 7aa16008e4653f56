package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	authUsecase "karmaterra-backend/internal/auth/usecase"
	pushDelivery "karmaterra-backend/internal/push/delivery"
	"karmaterra-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth := authUsecase.NewAuthUsecase(&config.Config{JWTSecret: "test", JWTAccessExpiry: time.Minute})
	// handlers behind auth are never reached in these tests
	return NewHandler(auth, pushDelivery.NewPushHandler(nil, nil, nil, nil)).Engine()
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestEngine(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/push/tokens", nil)
	req.Header.Set("Origin", "https://app.karmaterra.in")
	rec := httptest.NewRecorder()
	newTestEngine(t).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.karmaterra.in" {
		t.Errorf("allow origin = %q", got)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	engine := newTestEngine(t)
	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/push/tokens"},
		{http.MethodGet, "/api/push/notifications"},
		{http.MethodPost, "/api/admin/notifications"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}
