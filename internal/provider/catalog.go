package provider

import "github.com/hyperjump/playground/internal/models"

// AvailableModels lists the local models that can be downloaded and served,
// smallest first.
func AvailableModels() []string {
	return []string{
		"microsoft/DialoGPT-small",
		"microsoft/DialoGPT-medium",
		"microsoft/DialoGPT-large",
		"TheBloke/Mistral-7B-Instruct-v0.1-GGUF",
		"TheBloke/Mistral-7B-Instruct-v0.2-GGUF",
		"mistralai/Mistral-7B-Instruct-v0.1",
		"mistralai/Mistral-7B-Instruct-v0.2",
		"mistralai/Mistral-7B-v0.1",
		"mistralai/Mixtral-8x7B-Instruct-v0.1",
		"mistralai/CodeMistral-7B-Instruct-v0.1",
	}
}

// HostedModels lists the models offered by each hosted provider; the first
// entry is the provider default.
func HostedModels() map[models.Provider][]string {
	return map[models.Provider][]string{
		models.ProviderOpenAI:    {DefaultOpenAIModel, "gpt-3.5-turbo", "gpt-4o"},
		models.ProviderAnthropic: {DefaultAnthropicModel, "claude-3-5-sonnet-20241022", "claude-3-opus-20240229"},
		models.ProviderGoogle:    {DefaultGoogleModel, "gemini-1.0-pro", "gemini-1.5-pro"},
	}
}

// ModelInfo returns the detailed catalog of local models.
func ModelInfo() []models.ModelInfo {
	return []models.ModelInfo{
		{
			Name: "microsoft/DialoGPT-small", Provider: "huggingface",
			ContextLength: 1024, Parameters: "117M", Quantization: "fp32", License: "MIT",
			Description: "Very small, CPU-friendly model for testing",
		},
		{
			Name: "microsoft/DialoGPT-medium", Provider: "huggingface",
			ContextLength: 1024, Parameters: "345M", Quantization: "fp32", License: "MIT",
			Description: "Medium-sized model, good balance of speed and quality",
		},
		{
			Name: "microsoft/DialoGPT-large", Provider: "huggingface",
			ContextLength: 1024, Parameters: "774M", Quantization: "fp32", License: "MIT",
			Description: "Larger model with better quality, still CPU-friendly",
		},
		{
			Name: "TheBloke/Mistral-7B-Instruct-v0.1-GGUF", Provider: "huggingface",
			ContextLength: 8192, Parameters: "7B", Quantization: "GGUF", License: "Apache 2.0",
			Description: "Quantized Mistral model optimized for CPU inference",
		},
		{
			Name: "mistralai/Mistral-7B-Instruct-v0.1", Provider: "huggingface",
			ContextLength: 8192, Parameters: "7B", Quantization: "fp16", License: "Apache 2.0",
			Description: "Full Mistral model, requires ~14GB RAM",
		},
		{
			Name: "mistralai/Mistral-7B-Instruct-v0.2", Provider: "huggingface",
			ContextLength: 8192, Parameters: "7B", Quantization: "fp16", License: "Apache 2.0",
			Description: "Latest Mistral model with improved performance",
		},
		{
			Name: "mistralai/Mixtral-8x7B-Instruct-v0.1", Provider: "vllm",
			ContextLength: 32768, Parameters: "8x7B", Quantization: "fp16", License: "Apache 2.0",
			Description: "High-performance mixture-of-experts model (GPU recommended)",
		},
		{
			Name: "mistralai/CodeMistral-7B-Instruct-v0.1", Provider: "vllm",
			ContextLength: 8192, Parameters: "7B", Quantization: "fp16", License: "Apache 2.0",
			Description: "Specialized for code generation and analysis (GPU recommended)",
		},
	}
}
