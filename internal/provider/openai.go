package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/playground/internal/models"
	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider serves chat completions from OpenAI or any
// OpenAI-compatible server such as vLLM.
type OpenAIProvider struct {
	name          models.Provider
	client        *openai.Client
	defaultModel  string
	defaultFinish string
	keyEnv        string
}

// NewOpenAI returns the hosted OpenAI provider. An empty apiKey makes every
// call fail with a descriptive error. baseURL overrides the API endpoint when set.
func NewOpenAI(apiKey, baseURL string) *OpenAIProvider {
	p := &OpenAIProvider{
		name:          models.ProviderOpenAI,
		defaultModel:  DefaultOpenAIModel,
		defaultFinish: models.FinishStop,
		keyEnv:        "OPENAI_API_KEY",
	}
	if apiKey != "" {
		cfg := openai.DefaultConfig(apiKey)
		if baseURL != "" {
			cfg.BaseURL = baseURL
		}
		p.client = openai.NewClientWithConfig(cfg)
	}
	return p
}

// NewVLLM returns a provider for a vLLM server's OpenAI-compatible API at
// baseURL (for example http://localhost:8001). defaultModel is used when a
// request names none.
func NewVLLM(baseURL, defaultModel string) *OpenAIProvider {
	cfg := openai.DefaultConfig("EMPTY")
	cfg.BaseURL = strings.TrimRight(baseURL, "/") + "/v1"
	return &OpenAIProvider{
		name:          models.ProviderVLLM,
		client:        openai.NewClientWithConfig(cfg),
		defaultModel:  defaultModel,
		defaultFinish: models.FinishLength,
	}
}

func (p *OpenAIProvider) Name() models.Provider { return p.name }

// Generate sends the system and user messages as one chat completion.
func (p *OpenAIProvider) Generate(ctx context.Context, req models.GenerationRequest) (models.GenerationResult, error) {
	if p.client == nil {
		return models.GenerationResult{}, missingKey("OpenAI", p.keyEnv)
	}
	model := modelOr(req.ModelName, p.defaultModel)

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
		TopP:        float32(req.TopP),
	})
	if err != nil {
		return models.GenerationResult{}, fmt.Errorf("%w: %s: %v", models.ErrProvider, p.name, err)
	}
	if len(resp.Choices) == 0 {
		return models.GenerationResult{}, fmt.Errorf("%w: %s returned no choices", models.ErrProvider, p.name)
	}

	choice := resp.Choices[0]
	finish := string(choice.FinishReason)
	if finish == "" {
		finish = p.defaultFinish
	}
	return models.GenerationResult{
		Text:         choice.Message.Content,
		ModelName:    model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		TotalTokens:  resp.Usage.TotalTokens,
		FinishReason: finish,
	}, nil
}
