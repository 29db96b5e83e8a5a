package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Service configuration
	ServiceName string
	HTTPAddr    string
	LogLevel    string
	LogFormat   string

	// Backend gateway
	GatewayURL                string
	GatewayTimeout            time.Duration
	GatewayInsecureSkipVerify bool

	// LLM configuration
	LLMProvider     string
	OpenAIAPIKey    string
	OpenAIModel     string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	AnthropicModel  string
	LLMTimeout      time.Duration
	LLMMaxTokens    int
	LLMTemperature  float64

	// NATS configuration (disabled when NatsURL is empty)
	NatsURL            string
	NatsRequestSubject string
	NatsTimeout        time.Duration

	// Pending parameters
	RedisURL           string
	CarryPendingParams bool
	PendingTTL         time.Duration

	CloseOnInternalError bool
}

// Load reads the configuration from the environment and validates it
func Load() (*Config, error) {
	cfg := &Config{
		// Service settings
		ServiceName: getEnv("SERVICE_NAME", "hotelbuddy-intent"),
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),

		// Gateway settings
		GatewayURL:                strings.TrimRight(getEnv("GATEWAY_URL", ""), "/"),
		GatewayTimeout:            getDurationEnv("GATEWAY_TIMEOUT", 15*time.Second),
		GatewayInsecureSkipVerify: getBoolEnv("GATEWAY_INSECURE_SKIP_VERIFY", false),

		// LLM settings
		LLMProvider:     strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
		LLMTimeout:      getDurationEnv("LLM_TIMEOUT", 30*time.Second),
		LLMMaxTokens:    getIntEnv("LLM_MAX_TOKENS", 512),
		LLMTemperature:  getFloatEnv("LLM_TEMPERATURE", 0),

		// NATS settings
		NatsURL:            getEnv("NATS_URL", ""),
		NatsRequestSubject: getEnv("NATS_REQUEST_SUBJECT", "hotel.agent.request"),
		NatsTimeout:        getDurationEnv("NATS_TIMEOUT", 30*time.Second),

		// Pending parameter settings
		RedisURL:           getEnv("REDIS_URL", ""),
		CarryPendingParams: getBoolEnv("CARRY_PENDING_PARAMS", false),
		PendingTTL:         getDurationEnv("PENDING_TTL", 30*time.Minute),

		CloseOnInternalError: getBoolEnv("CLOSE_ON_INTERNAL_ERROR", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast on configuration the service cannot start without
func (c *Config) Validate() error {
	var errs []error

	if c.GatewayURL == "" {
		errs = append(errs, errors.New("GATEWAY_URL is required"))
	} else if u, err := url.Parse(c.GatewayURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("GATEWAY_URL %q is not an absolute URL", c.GatewayURL))
	}

	switch c.LLMProvider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required when LLM_PROVIDER=openai"))
		}
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required when LLM_PROVIDER=anthropic"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLMProvider))
	}

	if c.LLMTimeout <= 0 {
		errs = append(errs, errors.New("LLM_TIMEOUT must be positive"))
	}
	if c.GatewayTimeout <= 0 {
		errs = append(errs, errors.New("GATEWAY_TIMEOUT must be positive"))
	}
	if c.CarryPendingParams && c.PendingTTL <= 0 {
		errs = append(errs, errors.New("PENDING_TTL must be positive"))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
