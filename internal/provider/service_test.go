package provider

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/playground/internal/models"
	"github.com/hyperjump/playground/internal/storage"
)

type fakeProvider struct {
	name  models.Provider
	err   error
	panic bool
	delay time.Duration
}

func (f *fakeProvider) Name() models.Provider { return f.name }

func (f *fakeProvider) Generate(ctx context.Context, req models.GenerationRequest) (models.GenerationResult, error) {
	if f.panic {
		panic("provider exploded")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return models.GenerationResult{}, ctx.Err()
		}
	}
	if f.err != nil {
		return models.GenerationResult{}, f.err
	}
	return models.GenerationResult{
		Text:         "answer from " + req.ModelName,
		ModelName:    req.ModelName,
		InputTokens:  3,
		OutputTokens: 4,
		TotalTokens:  7,
	}, nil
}

func TestService_Generate(t *testing.T) {
	metrics := storage.NewMemoryMetricsRepository()
	svc := NewService(NewRegistry(&fakeProvider{name: models.ProviderOpenAI}), WithMetrics(metrics))

	res := svc.Generate(context.Background(), models.GenerationRequest{
		Prompt: "hi", ModelName: "gpt-4o", Provider: models.ProviderOpenAI,
	})
	if res.Failed() {
		t.Fatalf("unexpected failure: %+v", res)
	}
	if res.Provider != "openai" || res.FinishReason != models.FinishStop || res.TotalTokens != 7 {
		t.Errorf("result: %+v", res)
	}
	if res.LatencyMS < 0 {
		t.Errorf("latency: %v", res.LatencyMS)
	}
	got, _ := metrics.Since(context.Background(), time.Time{})
	if len(got) != 1 || !got[0].Success || got[0].TokensUsed != 7 || got[0].ModelName != "gpt-4o" {
		t.Errorf("metrics: %+v", got)
	}
}

func TestService_Generate_absorbsErrors(t *testing.T) {
	metrics := storage.NewMemoryMetricsRepository()
	svc := NewService(NewRegistry(&fakeProvider{name: models.ProviderOpenAI, err: errors.New("quota exceeded")}),
		WithMetrics(metrics))

	res := svc.Generate(context.Background(), models.GenerationRequest{Prompt: "hi", Provider: models.ProviderOpenAI})
	if res.FinishReason != models.FinishError {
		t.Fatalf("finish: %q", res.FinishReason)
	}
	want := "Sorry, I encountered an error while generating a response: quota exceeded. Please try a different model or check your configuration."
	if res.Text != want {
		t.Errorf("text: %q", res.Text)
	}
	if res.ModelName != "error" || res.TotalTokens != 0 || res.InputTokens != 0 || res.OutputTokens != 0 {
		t.Errorf("result: %+v", res)
	}
	got, _ := metrics.Since(context.Background(), time.Time{})
	if len(got) != 1 || got[0].Success {
		t.Errorf("failed generation should be recorded unsuccessful: %+v", got)
	}

	res = svc.Generate(context.Background(), models.GenerationRequest{Prompt: "hi", Provider: models.ProviderGoogle, ModelName: "gemini-1.5-pro"})
	if !res.Failed() || res.ModelName != "gemini-1.5-pro" || !strings.Contains(res.Text, "unsupported provider") {
		t.Errorf("unregistered provider: %+v", res)
	}
}

func TestService_Generate_timeout(t *testing.T) {
	svc := NewService(NewRegistry(&fakeProvider{name: models.ProviderOllama, delay: time.Second}),
		WithTimeout(20*time.Millisecond))
	start := time.Now()
	res := svc.Generate(context.Background(), models.GenerationRequest{Prompt: "x", Provider: models.ProviderOllama})
	if !res.Failed() {
		t.Fatalf("expected timeout failure: %+v", res)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("timeout not applied, took %v", time.Since(start))
	}
}

func TestService_Compare_oneFailing(t *testing.T) {
	reg := NewRegistry(
		&fakeProvider{name: models.ProviderHuggingFace},
		&fakeProvider{name: models.ProviderOpenAI, err: errors.New("boom")},
		&fakeProvider{name: models.ProviderOllama, delay: 10 * time.Millisecond},
	)
	svc := NewService(reg)

	resp := svc.Compare(context.Background(), models.ComparisonRequest{
		Prompt: "Compare me",
		Models: []string{"ollama:llama2:7b", "openai:gpt-4o", "microsoft/DialoGPT-small"},
	})
	if len(resp.Responses) != 3 {
		t.Fatalf("responses: %d", len(resp.Responses))
	}
	errorsSeen := 0
	for _, r := range resp.Responses {
		if r.FinishReason == models.FinishError {
			errorsSeen++
		}
	}
	if errorsSeen != 1 {
		t.Errorf("want exactly one error entry, got %d: %+v", errorsSeen, resp.Responses)
	}
	// Request order is preserved regardless of completion order.
	if resp.Responses[0].ModelName != "llama2:7b" || resp.Responses[0].Provider != "ollama" {
		t.Errorf("first: %+v", resp.Responses[0])
	}
	if !resp.Responses[1].Failed() || resp.Responses[1].Provider != "openai" {
		t.Errorf("second: %+v", resp.Responses[1])
	}
	if resp.Responses[2].Provider != "huggingface" {
		t.Errorf("third: %+v", resp.Responses[2])
	}
	if resp.ComparisonID == "" || resp.Timestamp.IsZero() || resp.Prompt != "Compare me" {
		t.Errorf("envelope: %+v", resp)
	}
}

func TestService_Compare_panicBecomesErrorEntry(t *testing.T) {
	svc := NewService(NewRegistry(&fakeProvider{name: models.ProviderHuggingFace, panic: true}))
	resp := svc.Compare(context.Background(), models.ComparisonRequest{Prompt: "x", Models: []string{"a", "b"}})
	if len(resp.Responses) != 2 {
		t.Fatalf("responses: %d", len(resp.Responses))
	}
	for _, r := range resp.Responses {
		if !r.Failed() || !strings.HasPrefix(r.Text, "Error: ") {
			t.Errorf("entry: %+v", r)
		}
	}
}

type captureProvider struct {
	mu   sync.Mutex
	reqs []models.GenerationRequest
}

func (c *captureProvider) Name() models.Provider { return models.ProviderHuggingFace }

func (c *captureProvider) Generate(ctx context.Context, req models.GenerationRequest) (models.GenerationResult, error) {
	c.mu.Lock()
	c.reqs = append(c.reqs, req)
	c.mu.Unlock()
	return models.GenerationResult{ModelName: req.ModelName}, nil
}

func TestService_Compare_parameters(t *testing.T) {
	cp := &captureProvider{}
	svc := NewService(NewRegistry(cp))

	svc.Compare(context.Background(), models.ComparisonRequest{
		Prompt: "x",
		Models: []string{"m"},
		Parameters: map[string]interface{}{
			"temperature": 0.2, "max_tokens": float64(64), "system_prompt": "be nice",
		},
	})
	if len(cp.reqs) != 1 {
		t.Fatalf("calls: %d", len(cp.reqs))
	}
	r := cp.reqs[0]
	if r.Temperature != 0.2 || r.MaxTokens != 64 || r.TopP != DefaultCompareTopP || r.SystemPrompt != "be nice" {
		t.Errorf("request: %+v", r)
	}
}

func TestService_ParseModel(t *testing.T) {
	svc := NewService(NewRegistry(), WithDefaultProvider(models.ProviderOllama))
	tests := []struct {
		in       string
		provider models.Provider
		model    string
	}{
		{"openai:gpt-4o", models.ProviderOpenAI, "gpt-4o"},
		{"llama2:7b", models.ProviderOllama, "llama2:7b"},
		{"ollama:llama2:7b", models.ProviderOllama, "llama2:7b"},
		{"mistralai/Mistral-7B-v0.1", models.ProviderOllama, "mistralai/Mistral-7B-v0.1"},
		{":x", models.ProviderOllama, ":x"},
	}
	for _, tt := range tests {
		p, m := svc.ParseModel(tt.in)
		if p != tt.provider || m != tt.model {
			t.Errorf("ParseModel(%q) = %s, %q; want %s, %q", tt.in, p, m, tt.provider, tt.model)
		}
	}
}

func TestCatalog(t *testing.T) {
	avail := AvailableModels()
	if len(avail) == 0 || avail[0] != "microsoft/DialoGPT-small" {
		t.Errorf("available: %v", avail)
	}
	for _, info := range ModelInfo() {
		if info.Name == "" || info.ContextLength <= 0 || (info.Provider != "huggingface" && info.Provider != "vllm") {
			t.Errorf("bad info entry: %+v", info)
		}
	}
	hosted := HostedModels()
	if hosted[models.ProviderOpenAI][0] != DefaultOpenAIModel || hosted[models.ProviderAnthropic][0] != DefaultAnthropicModel {
		t.Errorf("hosted: %v", hosted)
	}
}
