package llm

import (
	"context"
)

// LLMProvider is the model oracle. Its output is untrusted text.
type LLMProvider interface {
	Name() string
	Complete(ctx context.Context, request *LLMRequest) (*LLMResponse, error)
}

// LLMRequest represents the structured request to LLM
type LLMRequest struct {
	SystemPrompt string
	Prompt       string
	MaxTokens    int
	Temperature  float64
}

// LLMResponse represents the raw response from LLM
type LLMResponse struct {
	Content string
	Usage   *Usage
}

type Usage struct {
	InputTokens  int
	OutputTokens int
}
