package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/avvvet/hotelbuddy-intent/internal/metrics"
)

// ErrEmptyCompletion means the model answered with no choices
var ErrEmptyCompletion = errors.New("model returned no choices")

// LangChainProvider adapts any langchaingo model to LLMProvider
type LangChainProvider struct {
	name    string
	model   llms.Model
	timeout time.Duration
	logger  zerolog.Logger
}

// ProviderConfig selects and configures the backing model
type ProviderConfig struct {
	Provider        string // "openai" or "anthropic"
	OpenAIAPIKey    string
	OpenAIModel     string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	AnthropicModel  string
	Timeout         time.Duration
}

// NewProvider builds the configured langchaingo model
func NewProvider(cfg ProviderConfig, logger zerolog.Logger) (*LangChainProvider, error) {
	var (
		model llms.Model
		err   error
	)

	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		opts := []openai.Option{
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.OpenAIModel),
		}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
		}
		model, err = openai.New(opts...)
	case "anthropic":
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.AnthropicModel),
		)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.Provider, err)
	}

	name := strings.ToLower(cfg.Provider)
	if name == "" {
		name = "openai"
	}
	return NewLangChainProvider(name, model, cfg.Timeout, logger), nil
}

// NewLangChainProvider wraps an already constructed model
func NewLangChainProvider(name string, model llms.Model, timeout time.Duration, logger zerolog.Logger) *LangChainProvider {
	return &LangChainProvider{
		name:    name,
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

func (p *LangChainProvider) Name() string {
	return p.name
}

// Complete sends one system+user exchange, bounded by the provider timeout
func (p *LangChainProvider) Complete(ctx context.Context, request *LLMRequest) (*LLMResponse, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	var messages []llms.MessageContent
	if request.SystemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, request.SystemPrompt))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, request.Prompt))

	opts := []llms.CallOption{llms.WithTemperature(request.Temperature)}
	if request.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(request.MaxTokens))
	}

	start := time.Now()
	resp, err := p.model.GenerateContent(ctx, messages, opts...)
	metrics.LLMDuration.WithLabelValues(p.name).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%s completion failed: %w", p.name, err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return nil, ErrEmptyCompletion
	}

	choice := resp.Choices[0]
	usage := &Usage{
		InputTokens:  intInfo(choice.GenerationInfo, "PromptTokens", "InputTokens"),
		OutputTokens: intInfo(choice.GenerationInfo, "CompletionTokens", "OutputTokens"),
	}
	p.logger.Debug().
		Str("provider", p.name).
		Int("input_tokens", usage.InputTokens).
		Int("output_tokens", usage.OutputTokens).
		Dur("took", time.Since(start)).
		Msg("completion received")

	return &LLMResponse{
		Content: strings.TrimSpace(choice.Content),
		Usage:   usage,
	}, nil
}

func intInfo(info map[string]any, keys ...string) int {
	for _, key := range keys {
		switch v := info[key].(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}
