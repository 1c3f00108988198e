package provider

import (
	"context"
	"fmt"

	"github.com/hyperjump/playground/internal/models"
	"github.com/hyperjump/playground/internal/tokens"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
)

// AnthropicProvider generates through the Anthropic messages API.
type AnthropicProvider struct {
	apiKey  string
	baseURL string
	counter tokens.Counter
}

// NewAnthropic returns the Anthropic provider. counter estimates usage when
// the API reports none; nil uses the word estimator.
func NewAnthropic(apiKey, baseURL string, counter tokens.Counter) *AnthropicProvider {
	if counter == nil {
		counter = tokens.WordEstimator{}
	}
	return &AnthropicProvider{apiKey: apiKey, baseURL: baseURL, counter: counter}
}

func (p *AnthropicProvider) Name() models.Provider { return models.ProviderAnthropic }

// Generate sends the system prompt as a system message and the prompt as the
// single human turn.
func (p *AnthropicProvider) Generate(ctx context.Context, req models.GenerationRequest) (models.GenerationResult, error) {
	if p.apiKey == "" {
		return models.GenerationResult{}, missingKey("Anthropic", "ANTHROPIC_API_KEY")
	}
	model := modelOr(req.ModelName, DefaultAnthropicModel)

	options := []anthropic.Option{
		anthropic.WithModel(model),
		anthropic.WithToken(p.apiKey),
	}
	if p.baseURL != "" {
		options = append(options, anthropic.WithBaseURL(p.baseURL))
	}
	llm, err := anthropic.New(options...)
	if err != nil {
		return models.GenerationResult{}, fmt.Errorf("%w: anthropic client: %v", models.ErrProvider, err)
	}

	messages := make([]llms.MessageContent, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt))

	resp, err := llm.GenerateContent(ctx, messages,
		llms.WithTemperature(req.Temperature),
		llms.WithMaxTokens(req.MaxTokens),
		llms.WithTopP(req.TopP),
	)
	if err != nil {
		return models.GenerationResult{}, fmt.Errorf("%w: anthropic: %v", models.ErrProvider, err)
	}
	if len(resp.Choices) == 0 {
		return models.GenerationResult{}, fmt.Errorf("%w: anthropic returned no content", models.ErrProvider)
	}

	choice := resp.Choices[0]
	in := intInfo(choice.GenerationInfo, "InputTokens")
	out := intInfo(choice.GenerationInfo, "OutputTokens")
	if in == 0 && out == 0 {
		in = p.counter.Count(req.SystemPrompt) + p.counter.Count(req.Prompt)
		out = p.counter.Count(choice.Content)
	}
	finish := choice.StopReason
	if finish == "" {
		finish = models.FinishStop
	}
	return models.GenerationResult{
		Text:         choice.Content,
		ModelName:    model,
		InputTokens:  in,
		OutputTokens: out,
		TotalTokens:  in + out,
		FinishReason: finish,
	}, nil
}

func intInfo(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
