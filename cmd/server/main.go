// Command server runs the sales-assistant HTTP API.
//
// Startup order:
//  1. Load .env (best effort) and the typed configuration
//  2. Configure zerolog (level, optional pretty console output)
//  3. Open the catalog database and build the in-memory search index
//  4. Pick the oracle backend (Gemini when a key is configured, the
//     deterministic fallback otherwise)
//  5. Wire the session store, engine, and hand-off sweeper
//  6. Register routes and serve with graceful shutdown
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/QHanh/ChatbotHM/internal/catalog"
	"github.com/QHanh/ChatbotHM/internal/config"
	"github.com/QHanh/ChatbotHM/internal/engine"
	httpapi "github.com/QHanh/ChatbotHM/internal/http"
	"github.com/QHanh/ChatbotHM/internal/observability"
	"github.com/QHanh/ChatbotHM/internal/oracle"
	"github.com/QHanh/ChatbotHM/internal/repo"
	"github.com/QHanh/ChatbotHM/internal/store"
	"github.com/QHanh/ChatbotHM/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Optional .env for local development; real deployments use the environment.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOTel(c)
	}()

	// Catalog: SQLite on disk, searched via the in-memory index.
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open catalog database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}
	products, err := repo.ListProducts(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("load catalog failed")
	}
	idx := catalog.NewIndex(products)
	log.Info().Int("products", len(products)).Msg("catalog index built")

	// Oracle backend.
	var (
		orc    oracle.Oracle
		gemini *oracle.Gemini
	)
	if cfg.LLM.GeminiAPIKey != "" {
		gemini, err = oracle.NewGemini(ctx, cfg.LLM.GeminiAPIKey, cfg.LLM.GeminiModel)
		if err != nil {
			log.Fatal().Err(err).Msg("gemini client failed")
		}
		orc = gemini
		log.Info().Str("model", cfg.LLM.GeminiModel).Msg("gemini oracle enabled")
	} else {
		log.Warn().Msg("GEMINI_API_KEY not set; using deterministic fallback oracle")
	}

	sessions := store.New(cfg.Engine.SessionTTL, 10*time.Minute)
	eng := engine.New(cfg.Engine, sessions, idx, orc, repo.NewOrderSink(db))

	// Background sweeper resets expired human hand-offs.
	go engine.NewSweeper(sessions, cfg.Engine.SweepInterval).Run(ctx)

	r := gin.New()
	httpapi.RegisterRoutes(r, eng, sessions, cfg)

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
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if gemini != nil {
		_ = gemini.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
