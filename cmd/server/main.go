package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/avvvet/hotelbuddy-intent/internal/config"
	"github.com/avvvet/hotelbuddy-intent/internal/dispatch"
	"github.com/avvvet/hotelbuddy-intent/internal/handlers"
	"github.com/avvvet/hotelbuddy-intent/internal/intents"
	"github.com/avvvet/hotelbuddy-intent/internal/llm"
	applog "github.com/avvvet/hotelbuddy-intent/internal/log"
	"github.com/avvvet/hotelbuddy-intent/internal/memory"
	"github.com/avvvet/hotelbuddy-intent/internal/server"
	"github.com/avvvet/hotelbuddy-intent/internal/transport"
)

func main() {
	// Load .env file if it exists (for development)
	envErr := godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		applog.Configure(applog.Config{Level: os.Getenv("LOG_LEVEL"), Service: os.Getenv("SERVICE_NAME")})
		logger := applog.WithComponent("main")
		logger.Fatal().Err(err).Msg("❌ Failed to load config")
	}

	applog.Configure(applog.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: cfg.ServiceName})
	logger := applog.WithComponent("main")
	if envErr != nil {
		logger.Debug().Msg("No .env file found, using environment variables")
	}

	logger.Info().Msg("🚀 Starting HotelBuddy Intent Service...")
	logger.Info().
		Str("gateway", cfg.GatewayURL).
		Str("llm_provider", cfg.LLMProvider).
		Str("http_addr", cfg.HTTPAddr).
		Msg("📋 Configuration loaded")

	// Initialize LLM provider
	provider, err := llm.NewProvider(llm.ProviderConfig{
		Provider:        cfg.LLMProvider,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		OpenAIModel:     cfg.OpenAIModel,
		OpenAIBaseURL:   cfg.OpenAIBaseURL,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		AnthropicModel:  cfg.AnthropicModel,
		Timeout:         cfg.LLMTimeout,
	}, applog.WithComponent("llm"))
	if err != nil {
		logger.Fatal().Err(err).Msg("❌ Failed to initialize LLM provider")
	}
	logger.Info().Str("provider", provider.Name()).Msg("🤖 LLM provider initialized")

	registry := intents.NewRegistry()
	dispatcher := dispatch.NewDispatcher(dispatch.Options{
		Timeout:            cfg.GatewayTimeout,
		InsecureSkipVerify: cfg.GatewayInsecureSkipVerify,
	}, applog.WithComponent("dispatch"))
	if cfg.GatewayInsecureSkipVerify {
		logger.Warn().Msg("⚠️ TLS verification for the backend gateway is disabled")
	}

	// Pending parameters are only kept when cross-turn recovery is enabled
	var pending *memory.Manager
	if cfg.CarryPendingParams {
		pending = newPendingManager(cfg, registry)
		defer func() {
			if err := pending.Close(); err != nil {
				logger.Warn().Err(err).Msg("⚠️ Error closing pending-parameter store")
			}
		}()
	}

	intentHandler := handlers.NewIntentHandler(provider, registry, dispatcher, handlers.Options{
		GatewayURL:  cfg.GatewayURL,
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: cfg.LLMTemperature,
		Pending:     pending,
	}, applog.WithComponent("pipeline"))
	logger.Info().Msg("✅ Intent handler initialized")

	// Optional NATS request/reply channel
	var natsTransport *transport.NATSTransport
	if cfg.NatsURL != "" {
		natsTransport, err = transport.NewNATSTransport(transport.NATSConfig{
			URL:         cfg.NatsURL,
			Subject:     cfg.NatsRequestSubject,
			Timeout:     cfg.NatsTimeout,
			ServiceName: cfg.ServiceName,
		}, intentHandler, applog.WithComponent("nats"))
		if err != nil {
			logger.Fatal().Err(err).Msg("❌ Failed to initialize NATS transport")
		}
		if err := natsTransport.Start(); err != nil {
			logger.Fatal().Err(err).Msg("❌ Failed to start NATS transport")
		}
		logger.Info().Str("subject", cfg.NatsRequestSubject).Msg("👂 Listening on NATS")
	}

	checks := map[string]func(context.Context) error{}
	if pending != nil {
		checks["pending_store"] = pending.Ping
	}
	srv := server.New(intentHandler, server.Options{
		ServiceName:          cfg.ServiceName,
		CloseOnInternalError: cfg.CloseOnInternalError,
		Checks:               checks,
	}, applog.WithComponent("http"))

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("✅ HotelBuddy Intent Service is running!")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("❌ HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("🛑 Received signal, shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	srv.CloseSessions()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("⚠️ Error shutting down HTTP server")
	}

	if natsTransport != nil {
		if err := natsTransport.Close(); err != nil {
			logger.Warn().Err(err).Msg("⚠️ Error closing NATS transport")
		}
	}

	logger.Info().Msg("👋 HotelBuddy Intent Service stopped")
}

// newPendingManager picks Redis when configured, otherwise an in-process store
func newPendingManager(cfg *config.Config, registry *intents.Registry) *memory.Manager {
	logger := applog.WithComponent("memory")

	var store memory.Store
	if cfg.RedisURL != "" {
		redisStore, err := memory.NewRedisStore(cfg.RedisURL, cfg.PendingTTL)
		if err != nil {
			logger.Fatal().Err(err).Msg("❌ Failed to connect to Redis")
		}
		logger.Info().Msg("💾 Pending parameters stored in Redis")
		store = redisStore
	} else {
		logger.Info().Msg("💾 Pending parameters stored in process memory")
		store = memory.NewLocalStore(cfg.PendingTTL)
	}

	return memory.NewManager(store, registry, logger)
}
