package config

import (
	"os"
	"strings"
)

// ApplyEnv overrides cfg with values from the environment. getenv is
// typically os.Getenv; nil means os.Getenv.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}

	set(&cfg.Provider.Name, "QUILL_PROVIDER")
	cfg.Provider.Name = strings.ToLower(cfg.Provider.Name)

	switch cfg.Provider.Name {
	case "anthropic":
		set(&cfg.Provider.APIKey, "ANTHROPIC_API_KEY")
		set(&cfg.Provider.Model, "ANTHROPIC_MODEL")
	case "ollama":
		set(&cfg.Provider.BaseURL, "OLLAMA_HOST")
	default:
		set(&cfg.Provider.APIKey, "OPENAI_API_KEY")
		set(&cfg.Provider.BaseURL, "OPENAI_BASE_URL")
		set(&cfg.Provider.Model, "OPENAI_MODEL")
	}

	set(&cfg.Embedding.Provider, "QUILL_EMBEDDING_PROVIDER")
	cfg.Embedding.Provider = strings.ToLower(cfg.Embedding.Provider)
	set(&cfg.Embedding.Model, "QUILL_EMBEDDING_MODEL")
	switch cfg.Embedding.Provider {
	case "openai":
		set(&cfg.Embedding.APIKey, "OPENAI_API_KEY")
	case "ollama":
		set(&cfg.Embedding.BaseURL, "OLLAMA_HOST")
	}

	set(&cfg.VaultPath, "QUILL_VAULT")
}
