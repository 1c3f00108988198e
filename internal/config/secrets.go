package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Secrets holds provider credentials.
type Secrets struct {
	HuggingFaceKey string
	OpenAIKey      string
	AnthropicKey   string
	GoogleKey      string
}

// LoadSecrets loads envFile (if present) into the process environment without
// overriding variables already set, then reads the provider keys. Placeholder
// values such as "your_openai_api_key_here" count as unset.
func LoadSecrets(envFile string) Secrets {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			_ = godotenv.Load(envFile)
		}
	}
	return Secrets{
		HuggingFaceKey: firstSet("HUGGINGFACE_API_KEY", "HF_TOKEN"),
		OpenAIKey:      firstSet("OPENAI_API_KEY"),
		AnthropicKey:   firstSet("ANTHROPIC_API_KEY"),
		GoogleKey:      firstSet("GOOGLE_API_KEY"),
	}
}

func firstSet(names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" && !isPlaceholder(v) {
			return v
		}
	}
	return ""
}

func isPlaceholder(v string) bool {
	v = strings.ToLower(v)
	return strings.HasPrefix(v, "your_") || strings.HasSuffix(v, "_here")
}
