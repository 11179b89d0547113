// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reflectlab/journal-platform/internal/coach"
	"github.com/reflectlab/journal-platform/internal/config"
	"github.com/reflectlab/journal-platform/internal/evaluation"
	"github.com/reflectlab/journal-platform/internal/events"
	"github.com/reflectlab/journal-platform/internal/handler"
	"github.com/reflectlab/journal-platform/internal/llm"
	"github.com/reflectlab/journal-platform/internal/middleware"
	"github.com/reflectlab/journal-platform/internal/moderation"
	"github.com/reflectlab/journal-platform/internal/storage"
	"github.com/reflectlab/journal-platform/internal/store"
	"github.com/reflectlab/journal-platform/pkg/logger"
	"github.com/reflectlab/journal-platform/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting journal API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "journal-platform", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", "error", err)
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Open storage
	st, err := storage.NewStore(cfg.SQLitePath, log)
	if err != nil {
		log.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Connect to NATS when configured. The audit stream is optional: a nil
	// publisher publishes nothing and the workflow runs unchanged.
	var natsClient *events.Client
	var publisher *events.Publisher
	if cfg.NATSURL != "" {
		natsClient, err = events.Connect(ctx, events.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()

		publisher = events.NewPublisher(natsClient, log)
		if err := publisher.EnsureStream(ctx); err != nil {
			log.Error("failed to ensure event stream", "error", err)
			os.Exit(1)
		}
	} else {
		log.Info("NATS not configured, event publishing disabled")
	}

	// Initialize moderation
	var moderator moderation.Moderator = moderation.PassThrough{}
	if cfg.ModerationEnabled && cfg.OpenAIAPIKey != "" {
		m, err := moderation.NewOpenAIModerator(cfg.OpenAIAPIKey)
		if err != nil {
			log.Warn("failed to create moderator, safety checks disabled", "error", err)
		} else {
			moderator = m
		}
	} else {
		log.Warn("moderation disabled, student text is not safety-checked")
	}

	// Initialize LLM client
	var llmClient llm.Client
	switch {
	case cfg.DefaultLLM == string(llm.ProviderAnthropic) && cfg.AnthropicAPIKey != "":
		llmClient, err = llm.NewAnthropicClient(cfg.AnthropicAPIKey)
	case cfg.OpenAIAPIKey != "":
		llmClient, err = llm.NewOpenAIClient(cfg.OpenAIAPIKey)
	case cfg.AnthropicAPIKey != "":
		llmClient, err = llm.NewAnthropicClient(cfg.AnthropicAPIKey)
	default:
		log.Error("no LLM API key configured")
		os.Exit(1)
	}
	if err != nil {
		log.Error("failed to create LLM client", "error", err)
		os.Exit(1)
	}
	log.Info("LLM client ready", "provider", llmClient.Name())

	// Initialize service boundaries
	evaluator := evaluation.NewService(llmClient, moderator, cfg.EvalModel, cfg.LLMTimeout, log)
	coachSvc := coach.NewService(llmClient, moderator, cfg.ChatModel, cfg.LLMTimeout, log)

	// Initialize stores; each restores its persisted state
	reflectionStore := store.NewReflectionStore(st, publisher, log)
	chatStore := store.NewChatStore(coachSvc, st, publisher, log)
	navigator := store.NewNavigator(st, reflectionStore.HasReflections, log)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(st, natsClient)
	reflectionHandler := handler.NewReflectionHandler(reflectionStore, evaluator, publisher, log)
	chatHandler := handler.NewChatHandler(reflectionStore, chatStore, log)
	contextHandler := handler.NewContextHandler(navigator, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		// Reflections
		r.Route("/reflections", func(r chi.Router) {
			r.Post("/", reflectionHandler.Create)
			r.Get("/", reflectionHandler.List)
			r.Get("/stats", reflectionHandler.Stats)
			r.Post("/analyze", reflectionHandler.Analyze)
			r.Delete("/selection", reflectionHandler.ClearSelection)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", reflectionHandler.Get)
				r.Put("/", reflectionHandler.Update)
				r.Delete("/", reflectionHandler.Delete)
				r.Put("/status", reflectionHandler.UpdateStatus)
				r.Post("/select", reflectionHandler.Select)
				r.Post("/evaluate", reflectionHandler.Evaluate)

				// Coaching chat
				r.Get("/messages", chatHandler.ListMessages)
				r.Post("/messages", chatHandler.Send)
				r.Delete("/messages", chatHandler.ClearMessages)
				r.Delete("/session", chatHandler.DeleteSession)
			})
		})

		// UI-mode navigator
		r.Get("/context", contextHandler.Get)
		r.Put("/context", contextHandler.Put)
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
