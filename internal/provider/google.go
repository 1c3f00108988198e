package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/hyperjump/playground/internal/models"
)

// DefaultGoogleURL is the Generative Language API root.
const DefaultGoogleURL = "https://generativelanguage.googleapis.com/v1beta"

type googlePart struct {
	Text string `json:"text"`
}

type googleContent struct {
	Parts []googlePart `json:"parts"`
}

type googleGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	TopP            float64 `json:"topP"`
}

type googleRequest struct {
	Contents          []googleContent        `json:"contents"`
	GenerationConfig  googleGenerationConfig `json:"generationConfig"`
	SystemInstruction *googleContent         `json:"systemInstruction,omitempty"`
}

type googleResponse struct {
	Candidates []struct {
		Content      googleContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// GoogleProvider calls the Gemini generateContent REST endpoint.
type GoogleProvider struct {
	apiKey  string
	baseURL string
	client  *retryablehttp.Client
}

// NewGoogle returns the Google provider. An empty baseURL uses DefaultGoogleURL.
func NewGoogle(apiKey, baseURL string, client *retryablehttp.Client) *GoogleProvider {
	if baseURL == "" {
		baseURL = DefaultGoogleURL
	}
	if client == nil {
		client = NewHTTPClient(DefaultRetryMax, 0, nil)
	}
	return &GoogleProvider{apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (p *GoogleProvider) Name() models.Provider { return models.ProviderGoogle }

func (p *GoogleProvider) Generate(ctx context.Context, req models.GenerationRequest) (models.GenerationResult, error) {
	if p.apiKey == "" {
		return models.GenerationResult{}, missingKey("Google", "GOOGLE_API_KEY")
	}
	model := modelOr(req.ModelName, DefaultGoogleModel)

	body := googleRequest{
		Contents: []googleContent{{Parts: []googlePart{{Text: req.Prompt}}}},
		GenerationConfig: googleGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
			TopP:            req.TopP,
		},
	}
	if req.SystemPrompt != "" {
		body.SystemInstruction = &googleContent{Parts: []googlePart{{Text: req.SystemPrompt}}}
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, url.PathEscape(model), url.QueryEscape(p.apiKey))
	var resp googleResponse
	if err := postJSON(ctx, p.client, "google", endpoint, body, &resp); err != nil {
		return models.GenerationResult{}, err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return models.GenerationResult{}, fmt.Errorf("%w: google returned no candidates", models.ErrProvider)
	}

	cand := resp.Candidates[0]
	finish := strings.ToLower(cand.FinishReason)
	if finish == "" {
		finish = models.FinishStop
	}
	usage := resp.UsageMetadata
	total := usage.TotalTokenCount
	if total == 0 {
		total = usage.PromptTokenCount + usage.CandidatesTokenCount
	}
	return models.GenerationResult{
		Text:         cand.Content.Parts[0].Text,
		ModelName:    model,
		InputTokens:  usage.PromptTokenCount,
		OutputTokens: usage.CandidatesTokenCount,
		TotalTokens:  total,
		FinishReason: finish,
	}, nil
}
