package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/docker/cv-index/internal/domain"
)

type openAIProvider struct {
	client openai.Client
	model  string
}

func newOpenAIProvider(cfg Config) *openAIProvider {
	return &openAIProvider{
		client: openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  cfg.Model,
	}
}

func (p *openAIProvider) StreamChat(ctx context.Context, systemPrompt string, history []Message, onToken func(string)) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	messages = append(messages, openai.SystemMessage(systemPrompt))
	for _, m := range history {
		if m.Role == domain.RoleAssistant {
			messages = append(messages, openai.AssistantMessage(m.Content))
		} else {
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:    p.model,
		Messages: messages,
	})

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" && onToken != nil {
			onToken(chunk.Choices[0].Delta.Content)
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("llm: openai stream: %w", err)
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if len(acc.Choices) == 0 {
		return "", fmt.Errorf("llm: openai stream produced no choices")
	}
	return acc.Choices[0].Message.Content, nil
}

// embeddingDimension matches text-embedding-3-small's default output size,
// the model Embedder targets.
const embeddingDimension = 1536

// Embedder adapts an OpenAI client to vectorstore.Embedder (spec.md §4.4:
// "the core embeds via the embedding provider" when the vector store
// doesn't embed internally).
type Embedder struct {
	client openai.Client
	model  string
}

// NewEmbedder builds an Embedder using apiKey and model (e.g.
// "text-embedding-3-small").
func NewEmbedder(apiKey, model string) *Embedder {
	return &Embedder{client: openai.NewClient(option.WithAPIKey(apiKey)), model: model}
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: e.model,
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("llm: embed batch: %w", err)
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (e *Embedder) Dimension() int { return embeddingDimension }
