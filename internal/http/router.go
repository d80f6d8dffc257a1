// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Allow-all CORS posture by default (public-demo deployment), with an
//     allowlist override via configuration
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/vellixao/go-receipt-backend/internal/config"
	"github.com/vellixao/go-receipt-backend/internal/domain"
	"github.com/vellixao/go-receipt-backend/internal/http/handlers"
	"github.com/vellixao/go-receipt-backend/internal/http/middleware"
	"github.com/vellixao/go-receipt-backend/internal/repo"
	"github.com/vellixao/go-receipt-backend/internal/services"
)

// receiptStoreShim adapts the repository free functions to the
// services.ReceiptStore interface expected by the ReceiptService. This keeps
// services decoupled from the concrete repo package while reusing existing
// functions.
type receiptStoreShim struct{}

// NextReceiptNumber proxies repo.NextReceiptNumber.
func (receiptStoreShim) NextReceiptNumber(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.NextReceiptNumber(ctx, db)
}

// InsertReceipt proxies repo.InsertReceipt.
func (receiptStoreShim) InsertReceipt(ctx context.Context, db *gorm.DB, r *domain.Receipt) error {
	return repo.InsertReceipt(ctx, db, r)
}

// GetReceiptByNumber proxies repo.GetReceiptByNumber.
func (receiptStoreShim) GetReceiptByNumber(ctx context.Context, db *gorm.DB, number int64) (*domain.Receipt, error) {
	return repo.GetReceiptByNumber(ctx, db, number)
}

// GetLatestReceipt proxies repo.GetLatestReceipt.
func (receiptStoreShim) GetLatestReceipt(ctx context.Context, db *gorm.DB) (*domain.Receipt, error) {
	return repo.GetLatestReceipt(ctx, db)
}

// ListRecentReceipts proxies repo.ListRecentReceipts.
func (receiptStoreShim) ListRecentReceipts(ctx context.Context, db *gorm.DB, limit int) ([]domain.Receipt, error) {
	return repo.ListRecentReceipts(ctx, db, limit)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and
// rate limiting, CORS and security headers, health/metrics/diagnostic
// endpoints, and then mounts the receipt API under cfg.APIBasePath.
//
// db may be nil: the process serves normally with an unconfigured store, and
// every data-dependent endpoint answers with a uniform error.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter, gzip
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per IP, bypass on replay)
//  9. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction (customer names travel in bodies,
	// which are never logged; phone-shaped values in queries/headers are
	// scrubbed).
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB) and response compression
	r.Use(limitBody(1 << 20))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, key string, now time.Time) (bool, error) {
			if db == nil {
				return false, nil
			}
			rec, err := repo.GetIdempotency(ctx, db, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 8) Token-bucket rate limiter per client IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientIP())
	r.Use(rl.Handler())

	// 9) CORS posture (allow all when no allowlist is configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: service ← repo/db, brand from config
	rcptSvc := services.NewReceiptService(db, receiptStoreShim{}, brandFromConfig(cfg.Brand))
	rcptSvc.DefaultLimit = cfg.ListDefaultLimit
	rcptSvc.MaxLimit = cfg.ListMaxLimit

	h := handlers.New(rcptSvc)
	h.IdempotencyTTL = cfg.IdempotencyTTL
	diag := handlers.NewDiag(db, cfg.DatabaseURL != "", cfg.DatabaseName != "")

	// Banner + diagnostics (outside the API base path, as deployed)
	r.GET("/", diag.Root)
	r.GET("/test", diag.Status)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api"
	api := groupWithPrefix(r, apiBase)
	{
		api.POST("/receipts", h.CreateReceipt)
		api.GET("/receipts", h.ListReceipts)
		api.GET("/receipts/latest", h.GetLatestReceipt)
		api.GET("/receipts/:number", h.GetReceiptByNumber)
	}
}

// brandFromConfig converts the configured brand into its domain snapshot
// form, mapping empty optional fields to absent ones.
func brandFromConfig(b config.BrandConfig) domain.Brand {
	out := domain.Brand{Name: b.Name}
	if b.Phone != "" {
		phone := b.Phone
		out.Phone = &phone
	}
	if b.LogoURL != "" {
		logo := b.LogoURL
		out.LogoURL = &logo
	}
	return out
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
