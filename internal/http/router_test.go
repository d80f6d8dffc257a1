package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vellixao/go-receipt-backend/internal/config"
	"github.com/vellixao/go-receipt-backend/internal/domain"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:routerdb?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// schema so handlers don't explode on data endpoints
	if err := db.AutoMigrate(&domain.Receipt{}, &domain.SequenceCounter{}, &domain.Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath:      "/api",
		DatabaseURL:      "/var/data",
		DatabaseName:     "receipts",
		Brand:            config.BrandConfig{Name: "ACME", Phone: "555-0100"},
		ListDefaultLimit: 20,
		ListMaxLimit:     100,
		RateRPS:          100,
		RateBurst:        50,
		CORS:             config.CORSConfig{AllowedOrigins: nil}, // AllowAllOrigins branch
		Security:         config.SecurityConfig{EnableHSTS: false, HSTSMaxAge: 0},
		OTEL:             config.OTELConfig{ServiceName: "test-svc"},
	}
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newTestDB(t), testConfig())

	// /health works
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || len(w.Body.Bytes()) == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (POST /health)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	cfg := testConfig()
	cfg.CORS.AllowedOrigins = []string{"http://example.com"}
	RegisterRoutes(r, newTestDB(t), cfg)

	// Any request runs through CORS middleware; header should reflect origin.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected origin echo, got %q", got)
	}
}

func TestRegisterRoutes_BannerAndDiag(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newTestDB(t), testConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("Receipt API is running")) {
		t.Fatalf("GET / = %d body=%s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /test = %d", w.Code)
	}
	var diag map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &diag); err != nil {
		t.Fatalf("diag json: %v", err)
	}
	if diag["backend"] != "running" || diag["store"] != "connected" {
		t.Fatalf("unexpected diag: %v", diag)
	}
	if diag["database_url_set"] != true || diag["database_name_set"] != true {
		t.Fatalf("env flags not wired from config: %v", diag)
	}
}

func TestRegisterRoutes_ReceiptLifecycle_EndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// in-memory shared-cache DSN is process-wide; use a router-scoped DB
	db, err := gorm.Open(sqlite.Open("file:router_e2e?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Receipt{}, &domain.SequenceCounter{}, &domain.Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	RegisterRoutes(r, db, testConfig())

	// Create two receipts through the full middleware stack.
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/receipts",
			bytes.NewBufferString(`{"items":[{"name":"coffee","quantity":2,"price":3.5}]}`))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("create #%d = %d body=%s", i+1, w.Code, w.Body.String())
		}
		if rid := w.Header().Get("X-Request-ID"); rid == "" {
			t.Fatalf("request id middleware not wired")
		}
	}

	// Latest resolves through the static route, not the :number param.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/receipts/latest", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET latest = %d body=%s", w.Code, w.Body.String())
	}
	var latest domain.Receipt
	if err := json.Unmarshal(w.Body.Bytes(), &latest); err != nil {
		t.Fatalf("latest json: %v", err)
	}
	if latest.Number != 2 || latest.Subtotal != 7.0 {
		t.Fatalf("unexpected latest: %+v", latest)
	}
	if latest.Brand.Name != "ACME" || latest.Brand.Phone == nil || *latest.Brand.Phone != "555-0100" {
		t.Fatalf("brand snapshot not wired from config: %+v", latest.Brand)
	}

	// Point lookup.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/receipts/1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/receipts/1 = %d", w.Code)
	}

	// Listing.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/receipts?limit=1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET list = %d", w.Code)
	}
	var items []domain.Receipt
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatalf("list json: %v", err)
	}
	if len(items) != 1 || items[0].Number != 2 {
		t.Fatalf("unexpected list page: %+v", items)
	}
}

func TestRegisterRoutes_NilDB_ServesWithUnconfiguredStore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	cfg := testConfig()
	cfg.DatabaseURL = ""
	cfg.DatabaseName = ""
	RegisterRoutes(r, nil, cfg)

	// Banner still up
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET / = %d", w.Code)
	}

	// Diag reports not_configured
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /test = %d", w.Code)
	}
	var diag map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &diag); err != nil {
		t.Fatalf("diag json: %v", err)
	}
	if diag["store"] != "not_configured" || diag["database_url_set"] != false {
		t.Fatalf("unexpected diag: %v", diag)
	}

	// Data endpoints answer 500 with a uniform code
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/receipts", bytes.NewBufferString(`{"items":[]}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("POST with nil DB = %d body=%s", w.Code, w.Body.String())
	}
	var er map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("error json: %v", err)
	}
	if er["code"] != "store_unconfigured" {
		t.Fatalf("unexpected error code: %v", er)
	}
}

func TestBrandFromConfig(t *testing.T) {
	b := brandFromConfig(config.BrandConfig{Name: "ACME"})
	if b.Name != "ACME" || b.Phone != nil || b.LogoURL != nil {
		t.Fatalf("empty optionals must stay absent: %+v", b)
	}
	b = brandFromConfig(config.BrandConfig{Name: "ACME", Phone: "1", LogoURL: "u"})
	if b.Phone == nil || *b.Phone != "1" || b.LogoURL == nil || *b.LogoURL != "u" {
		t.Fatalf("optionals not carried: %+v", b)
	}
}

func TestGroupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := groupWithPrefix(r, "/")
	g.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("root-mounted group not reachable: %d", w.Code)
	}
}
