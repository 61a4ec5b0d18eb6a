package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"jornadas/backend/config"
	"jornadas/backend/internal/api/handler"
	"jornadas/backend/internal/service"
)

func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.BodyLimit = 64
	cfg.Server.CORS.AllowOrigins = []string{"http://localhost:5173"}
	h := handler.NewHandler(&service.Service{})
	return Setup(cfg, h, nil, nil, zap.NewNop())
}

func TestHealth_NoDependencies(t *testing.T) {
	r := setupTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("期望 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"database":"skipped"`) {
		t.Errorf("未连接数据库时应标记 skipped: %s", w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("响应应携带 X-Request-ID")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("缺少安全响应头")
	}
}

func TestCORS_Preflight(t *testing.T) {
	r := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/shifts", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("期望 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/shifts", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("未授权来源不应返回 Allow-Origin, got %q", got)
	}
}

func TestBodyLimit(t *testing.T) {
	r := setupTestRouter(t)

	body := strings.NewReader(strings.Repeat("x", 128))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/shifts", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("期望 413, got %d", w.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	r := setupTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/unknown", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("期望 404, got %d", w.Code)
	}
}
