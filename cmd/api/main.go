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
	"go.uber.org/zap"

	"github.com/portalize/portal-platform/internal/analytics"
	"github.com/portalize/portal-platform/internal/chat"
	"github.com/portalize/portal-platform/internal/config"
	"github.com/portalize/portal-platform/internal/generate"
	"github.com/portalize/portal-platform/internal/handler"
	"github.com/portalize/portal-platform/internal/middleware"
	natsclient "github.com/portalize/portal-platform/internal/nats"
	"github.com/portalize/portal-platform/internal/portal"
	"github.com/portalize/portal-platform/internal/retrieval"
	"github.com/portalize/portal-platform/internal/store"
	mongostore "github.com/portalize/portal-platform/internal/store/mongo"
	"github.com/portalize/portal-platform/pkg/logger"
	"github.com/portalize/portal-platform/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "portal-platform", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Document store: MongoDB in production, in-memory for local dev.
	var st store.Store
	if cfg.MongoURI != "" {
		ms, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			log.Error("failed to connect to mongo", zap.Error(err))
			os.Exit(1)
		}
		defer ms.Close(ctx)
		st = ms
	} else {
		log.Warn("MONGO_URI not set, using in-memory store")
		st = store.NewMemoryStore()
	}

	// NATS backs the portal build queue.
	nc, err := natsclient.Connect(natsclient.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		log.Error("failed to connect to NATS", zap.Error(err))
		os.Exit(1)
	}
	defer nc.Close()

	queue := portal.NewQueue(nc)
	if err := queue.EnsureStream(ctx); err != nil {
		log.Error("failed to ensure build stream", zap.Error(err))
		os.Exit(1)
	}

	// Retrieval: embeddings are optional; without a key every session
	// runs with RAG disabled and the fallback template answers.
	var embedder retrieval.Embedder
	if cfg.OpenAIAPIKey != "" {
		embedder, err = retrieval.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel)
		if err != nil {
			log.Warn("failed to create embedder, retrieval disabled", zap.Error(err))
		}
	} else {
		log.Warn("OPENAI_API_KEY not set, retrieval disabled")
	}
	retriever := retrieval.NewEngine(embedder, st, log)

	var generator generate.Client
	err = nil
	switch {
	case cfg.DefaultLLM == string(generate.ProviderAnthropic) && cfg.AnthropicAPIKey != "":
		generator, err = generate.NewAnthropicClient(cfg.AnthropicAPIKey)
	case cfg.OpenAIAPIKey != "":
		generator, err = generate.NewOpenAIClient(cfg.OpenAIAPIKey)
	case cfg.AnthropicAPIKey != "":
		generator, err = generate.NewAnthropicClient(cfg.AnthropicAPIKey)
	}
	if err != nil {
		log.Warn("failed to create generation client, responses fall back", zap.Error(err))
		generator = nil
	}

	// Core services
	chatManager := chat.NewManager(st, retriever, generator, log, cfg.MessageTimeout)
	analyticsSvc := analytics.NewService(st, log)
	orchestrator := portal.NewOrchestrator(st, queue, portal.NewURLBuilder(cfg.PortalBaseURL), log, cfg.BuildTimeout)

	// Build worker
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	go func() {
		if err := orchestrator.Run(workerCtx, queue); err != nil {
			log.Error("build worker stopped", zap.Error(err))
		}
	}()

	// Handlers
	healthHandler := handler.NewHealthHandler(st, nc)
	chatHandler := handler.NewChatHandler(chatManager, log, cfg.SessionTimeout, cfg.MessageTimeout)
	eventHandler := handler.NewEventHandler(st, log)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsSvc, st, log, cfg.AnalyticsTimeout)
	portalHandler := handler.NewPortalHandler(orchestrator, log, cfg.BuildTimeout)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	// Public visitor routes
	r.Route("/portal/{portalId}", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Post("/view", eventHandler.View)
		r.Post("/feedback", eventHandler.Feedback)
		r.Post("/chat/start", chatHandler.Start)
		r.Post("/chat/{sessionId}/message", chatHandler.Send)
	})

	// Owner routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))

		r.Route("/portals", func(r chi.Router) {
			r.Post("/", portalHandler.Create)

			r.Route("/{portalId}", func(r chi.Router) {
				r.Get("/", portalHandler.Get)
				r.Get("/analytics", analyticsHandler.Report)
			})
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	stopWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
