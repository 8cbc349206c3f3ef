package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DispatchesOnType(t *testing.T) {
	anthropicProv, err := New(Config{Type: "anthropic", Model: "claude-opus-4", APIKey: "key"})
	require.NoError(t, err)
	assert.IsType(t, &anthropicProvider{}, anthropicProv)

	openaiProv, err := New(Config{Type: "openai", Model: "gpt-4o", APIKey: "key"})
	require.NoError(t, err)
	assert.IsType(t, &openAIProvider{}, openaiProv)
}

func TestNew_UnknownTypeFails(t *testing.T) {
	_, err := New(Config{Type: "bogus"})
	assert.Error(t, err)
}

func TestEmbedder_Dimension(t *testing.T) {
	e := NewEmbedder("key", "text-embedding-3-small")
	assert.Equal(t, 1536, e.Dimension())
}
