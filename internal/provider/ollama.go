package provider

import (
	"context"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/hyperjump/playground/internal/models"
	"github.com/hyperjump/playground/internal/tokens"
)

// DefaultOllamaURL is where a local Ollama listens.
const DefaultOllamaURL = "http://localhost:11434"

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
	System  string        `json:"system,omitempty"`
}

type ollamaResponse struct {
	Response   string `json:"response"`
	DoneReason string `json:"done_reason"`
}

// OllamaProvider calls a local Ollama server's non-streaming generate API.
type OllamaProvider struct {
	baseURL      string
	defaultModel string
	client       *retryablehttp.Client
}

// NewOllama returns the Ollama provider.
func NewOllama(baseURL, defaultModel string, client *retryablehttp.Client) *OllamaProvider {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if client == nil {
		client = NewHTTPClient(DefaultRetryMax, 0, nil)
	}
	return &OllamaProvider{baseURL: strings.TrimRight(baseURL, "/"), defaultModel: defaultModel, client: client}
}

func (p *OllamaProvider) Name() models.Provider { return models.ProviderOllama }

// Generate returns the completion with token counts estimated from word counts.
func (p *OllamaProvider) Generate(ctx context.Context, req models.GenerationRequest) (models.GenerationResult, error) {
	model := modelOr(req.ModelName, p.defaultModel)
	body := ollamaRequest{
		Model:  model,
		Prompt: req.Prompt,
		Options: ollamaOptions{
			Temperature: req.Temperature,
			TopP:        req.TopP,
			NumPredict:  req.MaxTokens,
		},
		System: req.SystemPrompt,
	}

	var resp ollamaResponse
	if err := postJSON(ctx, p.client, "ollama", p.baseURL+"/api/generate", body, &resp); err != nil {
		return models.GenerationResult{}, err
	}

	inWords := len(strings.Fields(req.Prompt))
	outWords := len(strings.Fields(resp.Response))
	finish := resp.DoneReason
	if finish == "" {
		finish = models.FinishLength
	}
	return models.GenerationResult{
		Text:         resp.Response,
		ModelName:    model,
		InputTokens:  tokens.EstimateWords(inWords),
		OutputTokens: tokens.EstimateWords(outWords),
		TotalTokens:  tokens.EstimateWords(inWords + outWords),
		FinishReason: finish,
	}, nil
}
