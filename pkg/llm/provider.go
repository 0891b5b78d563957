// Package llm defines the provider abstraction the execution engine consumes.
// Concrete adapters (Anthropic, OpenAI, local CLIs) live outside this core;
// tests use channel-backed fakes.
package llm

import (
	"context"

	"github.com/ditloop/ditloop/internal/domain"
)

// SendOptions carries one request to a provider.
type SendOptions struct {
	Messages     []domain.Message
	SystemPrompt string
	Model        string
	MaxTokens    int
	Temperature  float64
	Tools        []domain.ToolDefinition
}

// Capabilities describes what a provider supports.
type Capabilities struct {
	Streaming        bool `json:"streaming"`
	ToolUse          bool `json:"toolUse"`
	Vision           bool `json:"vision"`
	MaxContextTokens int  `json:"maxContextTokens"`
}

// ModelInfo identifies a model a provider can serve.
type ModelInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MaxTokens int    `json:"maxTokens"`
}

// Provider is the interface all AI providers must implement.
//
// SendMessage returns a channel of chunks in emission order; the provider
// closes the channel when the stream ends. A provider that cannot start the
// stream returns an error; one that fails mid-stream emits a final
// ChunkError before closing. Cancelling ctx stops the stream.
type Provider interface {
	Name() string
	SendMessage(ctx context.Context, opts *SendOptions) (<-chan domain.StreamChunk, error)
	ListModels(ctx context.Context) ([]ModelInfo, error)
	Capabilities() Capabilities
}

// Registry holds available providers by name.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

func (r *Registry) List() []Provider {
	result := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		result = append(result, p)
	}
	return result
}
