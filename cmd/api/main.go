package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/clinicware/clinic-ai-agent/internal/api/router"
	"github.com/clinicware/clinic-ai-agent/internal/backend"
	appconfig "github.com/clinicware/clinic-ai-agent/internal/config"
	"github.com/clinicware/clinic-ai-agent/internal/conversation"
	"github.com/clinicware/clinic-ai-agent/internal/http/middleware"
	"github.com/clinicware/clinic-ai-agent/internal/intent"
	"github.com/clinicware/clinic-ai-agent/internal/llm"
	"github.com/clinicware/clinic-ai-agent/internal/observability/metrics"
	"github.com/clinicware/clinic-ai-agent/internal/session"
	"github.com/clinicware/clinic-ai-agent/pkg/logging"
)

func main() {
	// Load .env in development; ignore absence.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-ai-agent API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Error("redis connection failed", "addr", cfg.RedisAddr, "error", err)
		os.Exit(1)
	}

	// Transcript archive is optional; without DATABASE_URL the agent runs
	// on redis alone.
	var db *sql.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("opening transcript database failed", "error", err)
			os.Exit(1)
		}
		if err := db.Ping(); err != nil {
			logger.Error("transcript database unreachable", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	backendClient, err := backend.New(backend.Config{
		BaseURL: cfg.BackendBaseURL,
		APIKey:  cfg.BackendAPIKey,
		Timeout: cfg.BackendTimeout,
	})
	if err != nil {
		logger.Error("backend client init failed", "error", err)
		os.Exit(1)
	}

	llmClient, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:  cfg.LLMAPIKey,
		BaseURL: cfg.LLMBaseURL,
		Model:   cfg.LLMModel,
	})
	if err != nil {
		logger.Error("llm client init failed", "error", err)
		os.Exit(1)
	}

	m := metrics.NewConversationMetrics(prometheus.DefaultRegisterer)

	store := session.NewStore(redisClient, cfg.SessionTTL)
	archive := session.NewArchive(db)

	classifier := intent.NewClassifier(llmClient, logger.Component("intent"), m)
	dispatcher := conversation.NewDispatcher(backendClient, logger.Component("handlers"), m)
	synthesizer := conversation.NewSynthesizer(llmClient, float32(cfg.LLMTemperature))

	engine := conversation.NewEngine(store, classifier, dispatcher, synthesizer, archive, logger.Component("engine"), m)
	conversationHandler := conversation.NewHandler(engine, backendClient, logger.Component("http"))

	routerCfg := &router.Config{
		Logger:              logger,
		ConversationHandler: conversationHandler,
		MetricsHandler:      promhttp.Handler(),
		JWTSecret:           cfg.JWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
	}
	if cfg.RateLimitRPS > 0 {
		routerCfg.RateLimit = middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
