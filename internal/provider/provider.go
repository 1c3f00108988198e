// Package provider dispatches generation requests to model-inference
// backends: hosted APIs (OpenAI, Anthropic, Google), OpenAI-compatible vLLM,
// Ollama and the local Hugging Face stand-in.
package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hyperjump/playground/internal/models"
)

// Default models of the hosted providers.
const (
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-3-5-haiku-20241022"
	DefaultGoogleModel    = "gemini-1.5-flash"
)

// Provider generates a completion for one request. Implementations fill
// Text, ModelName, token counts and FinishReason; the Service adds provider,
// latency and error absorption.
type Provider interface {
	Name() models.Provider
	Generate(ctx context.Context, req models.GenerationRequest) (models.GenerationResult, error)
}

// Registry maps provider ids to implementations.
type Registry struct {
	mu        sync.RWMutex
	providers map[models.Provider]Provider
	fallbacks map[models.Provider]models.Provider
}

// NewRegistry returns an empty registry. vLLM falls back to huggingface when
// no vLLM provider is registered.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{
		providers: make(map[models.Provider]Provider),
		fallbacks: map[models.Provider]models.Provider{
			models.ProviderVLLM: models.ProviderHuggingFace,
		},
	}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces p under p.Name().
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	r.providers[p.Name()] = p
	r.mu.Unlock()
}

// Resolve returns the provider for id, following fallbacks. Unknown ids are
// validation errors.
func (r *Registry) Resolve(id models.Provider) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.providers[id]; ok {
		return p, nil
	}
	if fb, ok := r.fallbacks[id]; ok {
		if p, ok := r.providers[fb]; ok {
			return p, nil
		}
	}
	return nil, models.NewValidationError("provider", fmt.Sprintf("unsupported provider %q", id))
}

// Names returns the registered provider ids, sorted.
func (r *Registry) Names() []models.Provider {
	r.mu.RLock()
	out := make([]models.Provider, 0, len(r.providers))
	for id := range r.providers {
		out = append(out, id)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsKnown reports whether id names a provider the service understands.
func IsKnown(id models.Provider) bool {
	for _, p := range models.Providers {
		if p == id {
			return true
		}
	}
	return false
}

func missingKey(name, env string) error {
	return fmt.Errorf("%w: %s API key not configured. Set %s in your environment or .env file", models.ErrProvider, name, env)
}

func modelOr(model, def string) string {
	if model != "" {
		return model
	}
	return def
}
