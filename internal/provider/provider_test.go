package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/playground/internal/models"
	"github.com/hyperjump/playground/internal/tokens"
)

func TestRegistry_Resolve(t *testing.T) {
	hf := NewHuggingFace("microsoft/DialoGPT-small", tokens.WordEstimator{}, nil)
	r := NewRegistry(hf)

	p, err := r.Resolve(models.ProviderHuggingFace)
	if err != nil || p.Name() != models.ProviderHuggingFace {
		t.Fatalf("huggingface: %v %v", p, err)
	}
	p, err = r.Resolve(models.ProviderVLLM)
	if err != nil {
		t.Fatalf("vllm fallback: %v", err)
	}
	if p.Name() != models.ProviderHuggingFace {
		t.Errorf("vllm should fall back to huggingface, got %s", p.Name())
	}
	if _, err := r.Resolve(models.ProviderOllama); !errors.Is(err, models.ErrValidation) {
		t.Errorf("unregistered provider: got %v", err)
	}
	if _, err := r.Resolve("bogus"); !errors.Is(err, models.ErrValidation) {
		t.Errorf("unknown provider: got %v", err)
	}

	r.Register(NewVLLM("http://localhost:1", "m"))
	p, _ = r.Resolve(models.ProviderVLLM)
	if p.Name() != models.ProviderVLLM {
		t.Errorf("registered vllm not preferred: %s", p.Name())
	}
	if got := r.Names(); len(got) != 2 || got[0] != models.ProviderHuggingFace {
		t.Errorf("Names: %v", got)
	}
}

func TestHuggingFace_Generate(t *testing.T) {
	p := NewHuggingFace("microsoft/DialoGPT-small", tokens.WordEstimator{}, nil)
	res, err := p.Generate(context.Background(), models.GenerationRequest{Prompt: "hello there"})
	if err != nil {
		t.Fatal(err)
	}
	if res.ModelName != "microsoft/DialoGPT-small" {
		t.Errorf("model: %q", res.ModelName)
	}
	if !strings.Contains(res.Text, "MOCK response from microsoft/DialoGPT-small") || !strings.Contains(res.Text, "'hello there'") {
		t.Errorf("text: %q", res.Text)
	}
	if res.InputTokens != 2 || res.TotalTokens != res.InputTokens+res.OutputTokens || res.OutputTokens == 0 {
		t.Errorf("tokens: %+v", res)
	}
	if res.FinishReason != models.FinishLength {
		t.Errorf("finish: %q", res.FinishReason)
	}
}

func TestHuggingFace_gateRefusesModel(t *testing.T) {
	gate := func(model string) error {
		if model == "broken/model" {
			return errors.New("download failed for broken/model")
		}
		return nil
	}
	p := NewHuggingFace("ok/model", nil, gate)
	if _, err := p.Generate(context.Background(), models.GenerationRequest{Prompt: "x", ModelName: "broken/model"}); !errors.Is(err, models.ErrProvider) {
		t.Errorf("gated model: got %v", err)
	}
	if _, err := p.Generate(context.Background(), models.GenerationRequest{Prompt: "x"}); err != nil {
		t.Errorf("default model: %v", err)
	}
}

func TestOpenAI_Generate(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("auth header: %q", auth)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"Paris."},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":12,"completion_tokens":2,"total_tokens":14}}`)
	}))
	defer srv.Close()

	p := NewOpenAI("sk-test", srv.URL+"/v1")
	res, err := p.Generate(context.Background(), models.GenerationRequest{
		Prompt: "Capital of France?", SystemPrompt: "Be brief.", Temperature: 0.5, MaxTokens: 20, TopP: 0.9,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "Paris." || res.ModelName != DefaultOpenAIModel || res.FinishReason != "stop" {
		t.Errorf("result: %+v", res)
	}
	if res.InputTokens != 12 || res.OutputTokens != 2 || res.TotalTokens != 14 {
		t.Errorf("usage: %+v", res)
	}
	msgs, _ := got["messages"].([]interface{})
	if len(msgs) != 2 {
		t.Fatalf("messages: %v", got["messages"])
	}
	if first, _ := msgs[0].(map[string]interface{}); first["role"] != "system" {
		t.Errorf("first message should be system: %v", first)
	}
	if got["max_tokens"] != float64(20) {
		t.Errorf("max_tokens: %v", got["max_tokens"])
	}
}

func TestOpenAI_missingKey(t *testing.T) {
	p := NewOpenAI("", "")
	_, err := p.Generate(context.Background(), models.GenerationRequest{Prompt: "x"})
	if !errors.Is(err, models.ErrProvider) || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Errorf("got %v", err)
	}
}

func TestVLLM_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path: %s", r.URL.Path)
		}
		var body struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Model != "mistralai/Mistral-7B-Instruct-v0.2" {
			t.Errorf("model: %q", body.Model)
		}
		_, _ = io.WriteString(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}],"usage":{}}`)
	}))
	defer srv.Close()

	p := NewVLLM(srv.URL+"/", "mistralai/Mistral-7B-Instruct-v0.2")
	res, err := p.Generate(context.Background(), models.GenerationRequest{Prompt: "x", MaxTokens: 5})
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "ok" || res.FinishReason != models.FinishLength {
		t.Errorf("result: %+v", res)
	}
}

func TestAnthropic_missingKey(t *testing.T) {
	p := NewAnthropic("", "", nil)
	_, err := p.Generate(context.Background(), models.GenerationRequest{Prompt: "x"})
	if !errors.Is(err, models.ErrProvider) || !strings.Contains(err.Error(), "ANTHROPIC_API_KEY") {
		t.Errorf("got %v", err)
	}
}

func TestGoogle_Generate(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-1.5-flash:generateContent" {
			t.Errorf("path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "g-key" {
			t.Errorf("key: %q", r.URL.Query().Get("key"))
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"Bonjour"}]},"finishReason":"STOP"}],
			"usageMetadata":{"promptTokenCount":4,"candidatesTokenCount":1,"totalTokenCount":5}}`)
	}))
	defer srv.Close()

	p := NewGoogle("g-key", srv.URL, NewHTTPClient(0, 5*time.Second, nil))
	res, err := p.Generate(context.Background(), models.GenerationRequest{
		Prompt: "Say hello in French", SystemPrompt: "One word.", Temperature: 0.2, MaxTokens: 8, TopP: 0.9,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "Bonjour" || res.FinishReason != "stop" || res.ModelName != DefaultGoogleModel {
		t.Errorf("result: %+v", res)
	}
	if res.InputTokens != 4 || res.OutputTokens != 1 || res.TotalTokens != 5 {
		t.Errorf("usage: %+v", res)
	}
	cfg, _ := body["generationConfig"].(map[string]interface{})
	if cfg["maxOutputTokens"] != float64(8) {
		t.Errorf("generationConfig: %v", body["generationConfig"])
	}
	if body["systemInstruction"] == nil {
		t.Error("systemInstruction missing")
	}
}

func TestGoogle_errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"API key not valid"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	p := NewGoogle("bad", srv.URL, NewHTTPClient(0, 5*time.Second, nil))
	_, err := p.Generate(context.Background(), models.GenerationRequest{Prompt: "x"})
	if !errors.Is(err, models.ErrProvider) || !strings.Contains(err.Error(), "API key not valid") {
		t.Errorf("got %v", err)
	}

	_, err = NewGoogle("", srv.URL, nil).Generate(context.Background(), models.GenerationRequest{Prompt: "x"})
	if !errors.Is(err, models.ErrProvider) || !strings.Contains(err.Error(), "GOOGLE_API_KEY") {
		t.Errorf("missing key: got %v", err)
	}
}

func TestOllama_Generate(t *testing.T) {
	var body ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path: %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = io.WriteString(w, `{"model":"llama2","response":"one two three four five six seven eight nine ten","done":true}`)
	}))
	defer srv.Close()

	p := NewOllama(srv.URL, "llama2", NewHTTPClient(0, 5*time.Second, nil))
	res, err := p.Generate(context.Background(), models.GenerationRequest{
		Prompt: "count to ten please", SystemPrompt: "terse", Temperature: 0.1, MaxTokens: 30, TopP: 0.8,
	})
	if err != nil {
		t.Fatal(err)
	}
	if body.Stream || body.Model != "llama2" || body.System != "terse" || body.Options.NumPredict != 30 {
		t.Errorf("request body: %+v", body)
	}
	// 4 prompt words and 10 response words at 1.3 tokens per word.
	if res.InputTokens != 5 || res.OutputTokens != 13 || res.TotalTokens != 18 {
		t.Errorf("tokens: %+v", res)
	}
	if res.FinishReason != models.FinishLength {
		t.Errorf("finish: %q", res.FinishReason)
	}
}

func TestOllama_unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	p := NewOllama(url, "llama2", NewHTTPClient(0, time.Second, nil))
	if _, err := p.Generate(context.Background(), models.GenerationRequest{Prompt: "x"}); !errors.Is(err, models.ErrProvider) {
		t.Errorf("got %v", err)
	}
}
