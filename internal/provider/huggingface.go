package provider

import (
	"context"
	"fmt"

	"github.com/hyperjump/playground/internal/models"
	"github.com/hyperjump/playground/internal/tokens"
)

// ModelGate returns an error when model must not be served, e.g. because its
// download failed.
type ModelGate func(model string) error

// HuggingFaceProvider is the local stand-in for transformer inference. It
// answers with a fixed completion naming the model and echoing the prompt.
type HuggingFaceProvider struct {
	defaultModel string
	counter      tokens.Counter
	gate         ModelGate
}

// NewHuggingFace returns the local provider. gate may be nil.
func NewHuggingFace(defaultModel string, counter tokens.Counter, gate ModelGate) *HuggingFaceProvider {
	if counter == nil {
		counter = tokens.WordEstimator{}
	}
	return &HuggingFaceProvider{defaultModel: defaultModel, counter: counter, gate: gate}
}

func (p *HuggingFaceProvider) Name() models.Provider { return models.ProviderHuggingFace }

func (p *HuggingFaceProvider) Generate(ctx context.Context, req models.GenerationRequest) (models.GenerationResult, error) {
	if err := ctx.Err(); err != nil {
		return models.GenerationResult{}, err
	}
	model := modelOr(req.ModelName, p.defaultModel)
	if p.gate != nil {
		if err := p.gate(model); err != nil {
			return models.GenerationResult{}, fmt.Errorf("%w: %v", models.ErrProvider, err)
		}
	}

	text := fmt.Sprintf("🎉 SUCCESS! This is a MOCK response from %s. Your prompt was: '%s'. The API flow is working perfectly!", model, req.Prompt)
	in := p.counter.Count(req.SystemPrompt) + p.counter.Count(req.Prompt)
	out := p.counter.Count(text)
	return models.GenerationResult{
		Text:         text,
		ModelName:    model,
		InputTokens:  in,
		OutputTokens: out,
		TotalTokens:  in + out,
		FinishReason: models.FinishLength,
	}, nil
}
