// Command server runs the group-moderation bot: it opens the moderation
// store, configures observability, and serves the chat-platform webhook until
// interrupted.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Gtajisan/p2a-modbot/internal/config"
	httpapi "github.com/Gtajisan/p2a-modbot/internal/http"
	"github.com/Gtajisan/p2a-modbot/internal/observability"
	"github.com/Gtajisan/p2a-modbot/internal/repo"
	"github.com/Gtajisan/p2a-modbot/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

// updateLedgerRetention is how long processed-update rows are kept before the
// background sweeper removes them.
const updateLedgerRetention = 48 * time.Hour

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	if strings.TrimSpace(cfg.Telegram.BotToken) == "" {
		log.Fatal().Msg("TELEGRAM_BOT_TOKEN must be set")
	}
	if strings.TrimSpace(cfg.OpenAI.APIKey) == "" {
		log.Fatal().Msg("OPENAI_API_KEY must be set")
	}

	gin.SetMode(cfg.GinMode)

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observability.SetupOTel(shutdownCtx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("setup tracing")
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

	// Sweep the processed-update ledger in the background.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-shutdownCtx.Done():
				return
			case <-ticker.C:
				n, err := repo.PurgeUpdatesBefore(shutdownCtx, db, time.Now().Add(-updateLedgerRetention))
				if err != nil {
					log.Warn().Err(err).Msg("update ledger sweep failed")
				} else if n > 0 {
					log.Debug().Int64("purged", n).Msg("update ledger swept")
				}
			}
		}
	}()

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-shutdownCtx.Done()
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	if err := otelShutdown(ctx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("stopped")
}
