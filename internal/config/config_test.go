package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GATEWAY_URL", "https://localhost:5001/")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "hotelbuddy-intent", cfg.ServiceName)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "https://localhost:5001", cfg.GatewayURL)
	assert.Equal(t, 15*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, "openai", cfg.LLMProvider)
	assert.Equal(t, "gpt-3.5-turbo", cfg.OpenAIModel)
	assert.Equal(t, 512, cfg.LLMMaxTokens)
	assert.Equal(t, "hotel.agent.request", cfg.NatsRequestSubject)
	assert.Empty(t, cfg.NatsURL)
	assert.False(t, cfg.CarryPendingParams)
	assert.Equal(t, 30*time.Minute, cfg.PendingTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GATEWAY_URL", "http://gateway:8080")
	t.Setenv("LLM_PROVIDER", "Anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "key")
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("LLM_TEMPERATURE", "0.2")
	t.Setenv("CARRY_PENDING_PARAMS", "true")
	t.Setenv("GATEWAY_INSECURE_SKIP_VERIFY", "1")
	t.Setenv("LLM_MAX_TOKENS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.LLMProvider)
	assert.Equal(t, 5*time.Second, cfg.LLMTimeout)
	assert.InDelta(t, 0.2, cfg.LLMTemperature, 1e-9)
	assert.True(t, cfg.CarryPendingParams)
	assert.True(t, cfg.GatewayInsecureSkipVerify)
	assert.Equal(t, 512, cfg.LLMMaxTokens, "unparsable values fall back to the default")
}

func TestLoadFailsFast(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "missing gateway",
			env:  map[string]string{"OPENAI_API_KEY": "sk"},
			want: "GATEWAY_URL is required",
		},
		{
			name: "relative gateway",
			env:  map[string]string{"GATEWAY_URL": "gateway", "OPENAI_API_KEY": "sk"},
			want: "not an absolute URL",
		},
		{
			name: "missing openai key",
			env:  map[string]string{"GATEWAY_URL": "http://gw"},
			want: "OPENAI_API_KEY is required",
		},
		{
			name: "missing anthropic key",
			env:  map[string]string{"GATEWAY_URL": "http://gw", "LLM_PROVIDER": "anthropic"},
			want: "ANTHROPIC_API_KEY is required",
		},
		{
			name: "unknown provider",
			env:  map[string]string{"GATEWAY_URL": "http://gw", "LLM_PROVIDER": "cohere"},
			want: "unsupported LLM_PROVIDER",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"GATEWAY_URL", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "LLM_PROVIDER"} {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
