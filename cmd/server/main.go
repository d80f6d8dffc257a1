// Command server runs the receipt HTTP API.
//
// Startup order:
//  1. Load .env (best effort) and typed configuration.
//  2. Configure zerolog (level, optional pretty console output).
//  3. Open the receipt store when DATABASE_URL and DATABASE_NAME are both
//     present; otherwise serve with an unconfigured store so deploys
//     without credentials still answer the banner and diagnostics.
//  4. Set up OpenTelemetry tracing (opt-in).
//  5. Mount routes and serve with tuned timeouts and graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/vellixao/go-receipt-backend/internal/config"
	httpapi "github.com/vellixao/go-receipt-backend/internal/http"
	"github.com/vellixao/go-receipt-backend/internal/observability"
	"github.com/vellixao/go-receipt-backend/internal/repo"
	"github.com/vellixao/go-receipt-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Local development convenience; absence of a .env file is not an error.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	gin.SetMode(cfg.GinMode)

	db := openStore(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, db, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("version", version).
			Bool("store_configured", db != nil).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

// openStore opens and migrates the receipt store, or returns nil when the
// store settings are absent. An open/migrate failure is treated the same as
// an absent configuration: the process keeps serving and data endpoints
// report the store as unconfigured, instead of crash-looping the deploy.
func openStore(cfg config.Config) *gorm.DB {
	if !cfg.StoreConfigured() {
		log.Warn().Msg("DATABASE_URL or DATABASE_NAME not set; store unconfigured")
		return nil
	}

	path := filepath.Join(cfg.DatabaseURL, cfg.DatabaseName+".db")
	db, err := repo.OpenSQLite(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("store open failed; continuing unconfigured")
		return nil
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Error().Err(err).Msg("store migration failed; continuing unconfigured")
		return nil
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			log.Warn().Err(err).Msg("gorm tracing plugin failed; continuing without it")
		}
	}
	log.Info().Str("path", path).Msg("store ready")
	return db
}
