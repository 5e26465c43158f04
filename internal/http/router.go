// Package httpapi wires the HTTP transport (Gin) to the moderation services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, security
// headers, and rate limiting.
//
// Design goals:
//   - Observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/Gtajisan/p2a-modbot/internal/config"
	"github.com/Gtajisan/p2a-modbot/internal/http/handlers"
	"github.com/Gtajisan/p2a-modbot/internal/http/middleware"
	"github.com/Gtajisan/p2a-modbot/internal/repo"
	"github.com/Gtajisan/p2a-modbot/internal/services"
	"github.com/Gtajisan/p2a-modbot/internal/telegram"
)

// updateLedgerShim adapts the processed-update repo functions to the
// handlers.UpdateDeduper interface, keeping handlers decoupled from the
// concrete repo package.
type updateLedgerShim struct{ db *gorm.DB }

// FirstSeen proxies repo.MarkUpdateProcessed.
func (s updateLedgerShim) FirstSeen(ctx context.Context, updateID int64) (bool, error) {
	return repo.MarkUpdateProcessed(ctx, s.db, updateID, time.Now().UTC())
}

// newModelClient builds the OpenAI-compatible client, honoring a base URL
// override for self-hosted or proxy endpoints.
func newModelClient(cfg config.OpenAIConfig) *openai.Client {
	if cfg.BaseURL == "" {
		return openai.NewClient(cfg.APIKey)
	}
	c := openai.DefaultConfig(cfg.APIKey)
	c.BaseURL = cfg.BaseURL
	return openai.NewClientWithConfig(c)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine, constructs the service graph over db, and mounts the webhook
// ingress.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter (per client IP)
//  8. Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB; update payloads are small)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket rate limiter per client IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientIP())
	r.Use(rl.Handler())

	// 8) Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
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

	// Dependency injection: handlers ← services ← clients/db
	botOpts := []telegram.Option{telegram.WithTimeout(cfg.Telegram.Timeout)}
	if cfg.Telegram.APIBase != "" {
		botOpts = append(botOpts, telegram.WithBaseURL(cfg.Telegram.APIBase))
	}
	bot := telegram.New(cfg.Telegram.BotToken, botOpts...)

	store := services.NewModerationStore(db)
	actions := services.NewActionService(bot)
	tools := services.NewToolset(actions, store)
	memory := services.NewConversationMemory(db, cfg.Interpreter.MemoryWindow)
	interpreter := services.NewInterpreterService(
		newModelClient(cfg.OpenAI),
		cfg.OpenAI.Model,
		tools,
		memory,
		cfg.Interpreter.MaxToolRounds,
		cfg.Interpreter.Timeout,
	)
	pipeline := services.NewPipelineService(interpreter, actions, store)

	wh := handlers.NewWebhookHandler(pipeline, updateLedgerShim{db: db}, cfg.Telegram.WebhookSecret)
	r.POST("/webhooks/telegram/action", wh.HandleUpdate)
}

// limitBody caps the request body size for all endpoints using
// http.MaxBytesReader; oversized bodies error on downstream reads.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
