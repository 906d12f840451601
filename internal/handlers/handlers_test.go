package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"payment-terminal/internal/config"
	"payment-terminal/internal/credentials"
	"payment-terminal/internal/ratelimit"
	"payment-terminal/internal/services"
	"payment-terminal/internal/services/mock"
	"payment-terminal/internal/sessions"
	"payment-terminal/internal/storage"
)

func testConfig() *config.ParsedConfig {
	cfg := &config.ParsedConfig{
		RateLimitWindow: time.Minute,
	}
	cfg.Server.Port = 8080
	cfg.StandaloneMode = true
	cfg.RateLimit.Requests = 2
	return cfg
}

func newTestRouter(t *testing.T) (*gin.Engine, *TerminalHandler, *storage.MemoryStorage) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	store := storage.NewMemoryStorage(false)
	credManager := credentials.NewManager(t.TempDir(), false)
	endpoints := services.Endpoints{
		SettlementTestURL: "https://settlement-test.example",
		BrokerTestURL:     "ssl://broker-test.example:8883",
		RemoteTimeout:     time.Second,
		ListenWindow:      50 * time.Millisecond,
	}

	registry := sessions.NewRegistry()
	txService := services.NewTransactionService(mock.NewMockInvoker(false), credManager, store, endpoints, false)
	notifService := services.NewNotificationService(mock.NewMockBroker(false), credManager, store, registry, endpoints, false)
	disputeService := services.NewDisputeService(store, false)

	handler := NewTerminalHandler(txService, notifService, disputeService, store, ratelimit.NewLimiter(false), cfg)

	router := gin.New()
	router.GET("/health", handler.HealthCheck)
	router.GET("/api/view-confirmation/:id", handler.ViewConfirmation)
	router.POST("/api/unsubscribe-notifications", handler.UnsubscribeNotifications)
	router.POST("/api/limited", handler.RateLimit("limited"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router, handler, store
}

func TestHealthCheck(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	router, _, _ := newTestRouter(t)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("POST", "/api/limited", nil))
		if w.Code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i+1, w.Code)
		}
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/api/limited", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("expected X-RateLimit-Remaining 0, got %q", w.Header().Get("X-RateLimit-Remaining"))
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected a Retry-After header")
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if body["code"] != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("unexpected denial body %v", body)
	}
}

func TestViewConfirmationNotFound(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/view-confirmation/unknown", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestUnsubscribeWithoutActiveSession(t *testing.T) {
	router, _, _ := newTestRouter(t)

	body := strings.NewReader(`{"transaction_id":"tx-gone"}`)
	req := httptest.NewRequest("POST", "/api/unsubscribe-notifications", body)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if resp["found"] != false {
		t.Errorf("expected found=false, got %v", resp)
	}
}
