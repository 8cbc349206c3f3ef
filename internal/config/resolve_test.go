package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		modify func(cfg *Config) // assertions against the defaults
	}{
		{
			name: "overrides graph url",
			env:  map[string]string{"CV_GRAPH_URL": "bolt://other:7687"},
			modify: func(cfg *Config) {
				assert.Equal(t, "bolt://other:7687", cfg.Graph.URL)
			},
		},
		{
			name: "overrides token limit when numeric",
			env:  map[string]string{"CV_TOKEN_LIMIT": "20000"},
			modify: func(cfg *Config) {
				assert.Equal(t, 20000, cfg.Context.TokenLimit)
			},
		},
		{
			name: "ignores non-numeric token limit",
			env:  map[string]string{"CV_TOKEN_LIMIT": "not-a-number"},
			modify: func(cfg *Config) {
				assert.Equal(t, Default().Context.TokenLimit, cfg.Context.TokenLimit)
			},
		},
		{
			name: "leaves defaults untouched when unset",
			env:  map[string]string{},
			modify: func(cfg *Config) {
				assert.Equal(t, Default(), cfg)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg := ApplyEnv(Default())
			tt.modify(cfg)
		})
	}
}

func TestAvailableChatProviders(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	assert.Empty(t, AvailableChatProviders())

	t.Setenv("OPENAI_API_KEY", "sk-test")
	assert.Equal(t, []string{"openai"}, AvailableChatProviders())

	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	assert.Equal(t, []string{"anthropic", "openai"}, AvailableChatProviders())
}
