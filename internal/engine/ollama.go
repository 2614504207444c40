package engine

import (
	"context"

	"github.com/quilldocs/quill/internal/ollama"
)

// GenerationSettings tunes the chat side of an engine.
type GenerationSettings struct {
	Temperature float64
	MaxTokens   int
}

// OllamaEngine adapts the internal/ollama.Client to the Engine interface.
type OllamaEngine struct {
	client *ollama.Client
	opts   *ollama.ChatOptions
}

// NewOllamaEngine creates an OllamaEngine backed by an Ollama server at baseURL.
// The generation settings apply to every Chat call.
func NewOllamaEngine(baseURL string, gen GenerationSettings) *OllamaEngine {
	var opts *ollama.ChatOptions
	if gen.Temperature != 0 || gen.MaxTokens != 0 {
		opts = &ollama.ChatOptions{
			Temperature: gen.Temperature,
			NumPredict:  gen.MaxTokens,
		}
	}
	return &OllamaEngine{client: ollama.New(baseURL), opts: opts}
}

func (e *OllamaEngine) Chat(ctx context.Context, model string, messages []Message) (string, error) {
	msgs := make([]ollama.Message, len(messages))
	for i, m := range messages {
		msgs[i] = ollama.Message{Role: m.Role, Content: m.Content}
	}
	return e.client.Chat(ctx, model, msgs, e.opts)
}

func (e *OllamaEngine) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	return e.client.Embed(ctx, model, text)
}

func (e *OllamaEngine) IsRunning(ctx context.Context) bool {
	return e.client.IsRunning(ctx)
}

func (e *OllamaEngine) ListModels(ctx context.Context) ([]string, error) {
	return e.client.ListModels(ctx)
}

func (e *OllamaEngine) HasModel(ctx context.Context, name string) bool {
	return e.client.HasModel(ctx, name)
}

// Client exposes the underlying ollama client for startup checks.
func (e *OllamaEngine) Client() *ollama.Client {
	return e.client
}
