// Package main is the entry point for the conversation API server.
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
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/tools"
	"go.uber.org/zap"

	"github.com/agentchat-ai/conversation-service/internal/agent"
	agenttools "github.com/agentchat-ai/conversation-service/internal/agent/tools"
	"github.com/agentchat-ai/conversation-service/internal/config"
	"github.com/agentchat-ai/conversation-service/internal/events"
	"github.com/agentchat-ai/conversation-service/internal/handler"
	"github.com/agentchat-ai/conversation-service/internal/llm"
	"github.com/agentchat-ai/conversation-service/internal/middleware"
	"github.com/agentchat-ai/conversation-service/internal/service"
	"github.com/agentchat-ai/conversation-service/internal/store"
	"github.com/agentchat-ai/conversation-service/internal/title"
	"github.com/agentchat-ai/conversation-service/pkg/logger"
	"github.com/agentchat-ai/conversation-service/pkg/tracing"
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

	log.Info("starting conversation service")

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "conversation-service", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Title generation model. Optional: without one, titles fall back to
	// the date-stamped default.
	titleClient := newTitleClient(cfg, log)
	titler := title.NewGenerator(titleClient, cfg.TitleTimeout, log)

	// Conversation store: MongoDB when configured, in-memory otherwise.
	var (
		convStore store.Store
		pinger    handler.Pinger
	)
	if cfg.MongoURI != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		mongoStore, err := store.ConnectMongo(connectCtx, cfg.MongoURI, cfg.MongoDBName, titler, log)
		cancel()
		if err != nil {
			log.Error("failed to connect to MongoDB", zap.Error(err))
			os.Exit(1)
		}
		defer mongoStore.Close(ctx)
		convStore = mongoStore
		pinger = mongoStore
		log.Info("using MongoDB store", zap.String("database", cfg.MongoDBName))
	} else {
		convStore = store.NewMemoryStore(titler)
		log.Warn("MONGODB_URI not set, using in-memory store")
	}

	// Agent model and tools.
	agentModel, err := newAgentModel(cfg)
	if err != nil {
		log.Error("failed to create agent model", zap.Error(err))
		os.Exit(1)
	}
	responder, err := agent.NewGraphResponder(agentModel, buildTools(cfg, log), log)
	if err != nil {
		log.Error("failed to build agent responder", zap.Error(err))
		os.Exit(1)
	}

	// Optional event relay.
	var publisher *events.Publisher
	if cfg.NATSURL != "" {
		publisher, err = events.Connect(ctx, events.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Warn("event relay unavailable, continuing without it", zap.Error(err))
			publisher = nil
		} else {
			defer publisher.Close()
		}
	}

	// Services and handlers.
	messageSvc := service.NewMessageService(convStore, responder, publisher, cfg.AgentTimeout, log)
	conversationSvc := service.NewConversationService(convStore, responder, publisher, log)

	healthHandler := handler.NewHealthHandler(pinger, publisher)
	conversationHandler := handler.NewConversationHandler(conversationSvc, log)
	messageHandler := handler.NewMessageHandler(messageSvc, conversationSvc, log)

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

	r.Get("/", healthHandler.Root)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Post("/message", messageHandler.Send)

		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", conversationHandler.Create)
			r.Get("/", conversationHandler.List)
			r.Get("/search", conversationHandler.Search)
			r.Post("/start", messageHandler.Start)

			r.Route("/{threadId}", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)
				r.Put("/title", conversationHandler.UpdateTitle)
				r.Delete("/", conversationHandler.Delete)
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

// newAgentModel creates the chat model backing the agent workflow. Groq's
// OpenAI-compatible endpoint is preferred; a plain OpenAI key works too.
func newAgentModel(cfg *config.Config) (*openai.LLM, error) {
	if cfg.GroqAPIKey != "" {
		return openai.New(
			openai.WithToken(cfg.GroqAPIKey),
			openai.WithBaseURL(cfg.GroqBaseURL),
			openai.WithModel(cfg.AgentModel),
		)
	}
	if cfg.OpenAIAPIKey != "" {
		return openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.AgentModel),
		)
	}
	return nil, fmt.Errorf("no agent model configured, set GROQ_API_KEY or OPENAI_API_KEY")
}

// newTitleClient selects the completion client used for title derivation.
// Returns nil when no credentials are available.
func newTitleClient(cfg *config.Config, log *logger.Logger) llm.Client {
	var llmCfg llm.Config
	switch {
	case cfg.TitleProvider == string(llm.ProviderAnthropic) && cfg.AnthropicAPIKey != "":
		llmCfg = llm.Config{Provider: llm.ProviderAnthropic, APIKey: cfg.AnthropicAPIKey, Model: cfg.TitleModel}
	case cfg.OpenAIAPIKey != "":
		llmCfg = llm.Config{Provider: llm.ProviderOpenAI, APIKey: cfg.OpenAIAPIKey, Model: cfg.TitleModel}
	case cfg.GroqAPIKey != "":
		llmCfg = llm.Config{Provider: llm.ProviderOpenAI, APIKey: cfg.GroqAPIKey, BaseURL: cfg.GroqBaseURL, Model: cfg.TitleModel}
	default:
		log.Warn("no title model configured, titles will use the date-stamped fallback")
		return nil
	}

	client, err := llm.NewClient(llmCfg)
	if err != nil {
		log.Warn("failed to create title model client", zap.Error(err))
		return nil
	}
	return client
}

// buildTools assembles the agent tool set from whichever API keys are
// configured.
func buildTools(cfg *config.Config, log *logger.Logger) []tools.Tool {
	var out []tools.Tool

	if cfg.TavilyAPIKey != "" {
		search, err := agenttools.NewTavilySearch(cfg.TavilyAPIKey, agenttools.WithTavilyMaxResults(3))
		if err != nil {
			log.Warn("web search tool unavailable", zap.Error(err))
		} else {
			out = append(out, search)
		}
	}

	if cfg.TMDBAPIKey != "" {
		movieSearch, err := agenttools.NewMovieSearch(cfg.TMDBAPIKey)
		if err != nil {
			log.Warn("movie search tool unavailable", zap.Error(err))
		} else {
			out = append(out, movieSearch)
		}
		trending, err := agenttools.NewTrendingMovies(cfg.TMDBAPIKey)
		if err != nil {
			log.Warn("trending movies tool unavailable", zap.Error(err))
		} else {
			out = append(out, trending)
		}
	}

	log.Info("agent tools assembled", zap.Int("count", len(out)))
	return out
}
