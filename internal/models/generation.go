package models

import "time"

// Provider identifies a model-inference backend.
type Provider string

const (
	ProviderVLLM        Provider = "vllm"
	ProviderHuggingFace Provider = "huggingface"
	ProviderOllama      Provider = "ollama"
	ProviderOpenAI      Provider = "openai"
	ProviderAnthropic   Provider = "anthropic"
	ProviderGoogle      Provider = "google"
)

// Providers lists every known provider id.
var Providers = []Provider{
	ProviderVLLM, ProviderHuggingFace, ProviderOllama,
	ProviderOpenAI, ProviderAnthropic, ProviderGoogle,
}

// Finish reasons.
const (
	FinishStop   = "stop"
	FinishLength = "length"
	FinishError  = "error"
)

// GenerationRequest is what a provider receives.
type GenerationRequest struct {
	Prompt       string
	SystemPrompt string
	ModelName    string
	Provider     Provider
	Temperature  float64
	MaxTokens    int
	TopP         float64
}

// GenerationResult is the output of one generation call.
type GenerationResult struct {
	Text         string  `json:"text"`
	ModelName    string  `json:"model_name"`
	Provider     string  `json:"provider"`
	TotalTokens  int     `json:"tokens_used"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	LatencyMS    float64 `json:"latency_ms"`
	FinishReason string  `json:"finish_reason"`
}

// Failed reports whether the result carries an absorbed provider error.
func (r *GenerationResult) Failed() bool {
	return r.FinishReason == FinishError
}

// PromptRequest is the body of POST /models/generate.
type PromptRequest struct {
	Prompt       string   `json:"prompt" validate:"required"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	ModelName    string   `json:"model_name,omitempty"`
	Provider     Provider `json:"provider" validate:"required,oneof=vllm huggingface ollama openai anthropic google"`
	Temperature  float64  `json:"temperature" validate:"gte=0,lte=2"`
	MaxTokens    int      `json:"max_tokens" validate:"gte=1,lte=8192"`
	TopP         float64  `json:"top_p" validate:"gte=0,lte=1"`
}

// NewPromptRequest returns a request populated with defaults, ready to decode into.
func NewPromptRequest() PromptRequest {
	return PromptRequest{
		Provider:    ProviderHuggingFace,
		Temperature: 0.7,
		MaxTokens:   50,
		TopP:        0.9,
	}
}

// GenerationRequest converts r for a provider call.
func (r PromptRequest) GenerationRequest() GenerationRequest {
	return GenerationRequest{
		Prompt:       r.Prompt,
		SystemPrompt: r.SystemPrompt,
		ModelName:    r.ModelName,
		Provider:     r.Provider,
		Temperature:  r.Temperature,
		MaxTokens:    r.MaxTokens,
		TopP:         r.TopP,
	}
}

// ComparisonRequest is the body of POST /models/compare.
type ComparisonRequest struct {
	Prompt       string                 `json:"prompt" validate:"required"`
	SystemPrompt string                 `json:"system_prompt,omitempty"`
	Models       []string               `json:"models" validate:"required,min=1,max=10,dive,required"`
	Parameters   map[string]interface{} `json:"parameters,omitempty"`
}

// ComparisonResponse carries one result per requested model, in request order.
type ComparisonResponse struct {
	Prompt       string             `json:"prompt"`
	Responses    []GenerationResult `json:"responses"`
	ComparisonID string             `json:"comparison_id"`
	Timestamp    time.Time          `json:"timestamp"`
}

// ModelInfo describes a model in the catalog.
type ModelInfo struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	ContextLength int    `json:"context_length"`
	Parameters    string `json:"parameters"`
	Quantization  string `json:"quantization,omitempty"`
	License       string `json:"license,omitempty"`
	Description   string `json:"description,omitempty"`
}

// AvailableModel is one entry of GET /models/available.
type AvailableModel struct {
	Name       string         `json:"name"`
	Downloaded bool           `json:"downloaded"`
	Status     DownloadStatus `json:"status"`
}

// GenerationMetric is one recorded generation for the dashboard.
type GenerationMetric struct {
	Timestamp  time.Time `json:"timestamp"`
	ModelName  string    `json:"model_name"`
	Provider   string    `json:"provider"`
	TokensUsed int       `json:"tokens_used"`
	LatencyMS  float64   `json:"latency_ms"`
	Success    bool      `json:"success"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}
