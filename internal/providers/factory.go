package providers

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Options selects and configures an inference provider.
type Options struct {
	Name    string
	APIKey  string
	BaseURL string
	Model   string
	Logger  *zap.Logger
}

// preset describes a service reached through the OpenAI client.
type preset struct {
	baseURL  string
	model    string
	needsKey bool
}

var presets = map[string]preset{
	"openai":   {model: "gpt-4o-mini", needsKey: true},
	"gemini":   {baseURL: "https://generativelanguage.googleapis.com/v1beta/openai", model: "gemini-1.5-flash", needsKey: true},
	"deepseek": {baseURL: "https://api.deepseek.com/v1", model: "deepseek-chat", needsKey: true},
	"groq":     {baseURL: "https://api.groq.com/openai/v1", model: "llama-3.1-70b-versatile", needsKey: true},
	"lmstudio": {baseURL: "http://localhost:1234/v1", model: "local-model"},
	"ollama":   {baseURL: "http://localhost:11434/v1", model: "llama3.1"},
}

// DefaultAnthropicModel is used when no Anthropic model is configured.
const DefaultAnthropicModel = "claude-3-5-sonnet-latest"

// New creates the provider named by opts.Name. An empty name means "openai".
func New(opts Options) (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(opts.Name))
	if name == "" {
		name = "openai"
	}

	if name == "anthropic" {
		if opts.APIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
		model := opts.Model
		if model == "" {
			model = DefaultAnthropicModel
		}
		return NewAnthropic(opts.APIKey, model, opts.Logger), nil
	}

	p, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s (supported: %s)", opts.Name, strings.Join(Supported(), ", "))
	}
	apiKey := opts.APIKey
	if apiKey == "" {
		if p.needsKey {
			return nil, fmt.Errorf("API key for %s not set", name)
		}
		apiKey = name
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = p.baseURL
	}
	model := opts.Model
	if model == "" {
		model = p.model
	}
	return NewOpenAI(name, apiKey, model, baseURL, opts.Logger), nil
}

// Supported returns the provider names New accepts.
func Supported() []string {
	return []string{"anthropic", "deepseek", "gemini", "groq", "lmstudio", "ollama", "openai"}
}
