package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type fakeModel struct {
	messages []llms.MessageContent
	opts     llms.CallOptions
	resp     *llms.ContentResponse
	err      error
	block    bool
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, opt := range options {
		opt(&f.opts)
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.resp, f.err
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestCompleteSendsSystemAndUserMessages(t *testing.T) {
	model := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content:        "  {\"intent\":\"Login\"}\n",
		GenerationInfo: map[string]any{"PromptTokens": 120, "CompletionTokens": 12},
	}}}}
	p := NewLangChainProvider("openai", model, time.Second, zerolog.Nop())

	resp, err := p.Complete(context.Background(), &LLMRequest{
		SystemPrompt: "json only",
		Prompt:       "log me in",
		MaxTokens:    256,
		Temperature:  0,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"intent":"Login"}`, resp.Content)
	assert.Equal(t, 120, resp.Usage.InputTokens)
	assert.Equal(t, 12, resp.Usage.OutputTokens)

	require.Len(t, model.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)
	assert.Equal(t, llms.TextContent{Text: "log me in"}, model.messages[1].Parts[0])
	assert.Equal(t, 256, model.opts.MaxTokens)
	assert.Equal(t, "openai", p.Name())
}

func TestCompleteErrors(t *testing.T) {
	p := NewLangChainProvider("anthropic", &fakeModel{err: errors.New("rate limited")}, time.Second, zerolog.Nop())
	_, err := p.Complete(context.Background(), &LLMRequest{Prompt: "hi"})
	assert.ErrorContains(t, err, "rate limited")

	p = NewLangChainProvider("anthropic", &fakeModel{resp: &llms.ContentResponse{}}, time.Second, zerolog.Nop())
	_, err = p.Complete(context.Background(), &LLMRequest{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestCompleteIsBoundedByTimeout(t *testing.T) {
	p := NewLangChainProvider("openai", &fakeModel{block: true}, 20*time.Millisecond, zerolog.Nop())

	start := time.Now()
	_, err := p.Complete(context.Background(), &LLMRequest{Prompt: "hi"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestNewProviderRejectsUnknownBackend(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Provider: "cohere"}, zerolog.Nop())
	assert.ErrorContains(t, err, "unsupported")
}
