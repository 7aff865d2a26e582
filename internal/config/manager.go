// Package config loads and saves the user's persistent quill configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ChamsBouzaiene/quill/internal/prompts"
)

// Provider selects and configures the inference provider.
type Provider struct {
	Name        string  `json:"name,omitempty"`     // openai, anthropic, ollama, groq, etc.
	APIKey      string  `json:"api_key,omitempty"`  // The API key for the selected provider
	BaseURL     string  `json:"base_url,omitempty"` // Optional override for API base URL
	Model       string  `json:"model,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// Embedding selects the embedding provider used for retrieval.
type Embedding struct {
	Provider string `json:"provider,omitempty"` // openai, ollama or none
	Model    string `json:"model,omitempty"`
	APIKey   string `json:"api_key,omitempty"` // Optional separate key for embeddings
	BaseURL  string `json:"base_url,omitempty"`
	// CachePath is the sqlite embedding cache. Empty disables caching.
	CachePath string `json:"cache_path,omitempty"`
}

// Retrieval tunes context retrieval from linked documents.
type Retrieval struct {
	Enabled          *bool   `json:"enabled,omitempty"`
	ChunkSize        int     `json:"chunk_size,omitempty"`
	Overlap          float64 `json:"overlap,omitempty"`
	MaxContextChars  int     `json:"max_context_chars,omitempty"`
	BatchSize        int     `json:"batch_size,omitempty"`
	Concurrency      int     `json:"concurrency,omitempty"`
	MaxDepth         int     `json:"max_depth,omitempty"`
	IncludeBacklinks bool    `json:"include_backlinks,omitempty"`
	MaxDocuments     int     `json:"max_documents,omitempty"`
}

// IsEnabled reports whether retrieval is on. Unset means on.
func (r Retrieval) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// Config holds the user's persistent configuration preferences.
type Config struct {
	Provider  Provider        `json:"provider"`
	Embedding Embedding       `json:"embedding"`
	Retrieval Retrieval       `json:"retrieval"`
	Display   prompts.Display `json:"display"`
	// VaultPath is the default vault when no --vault flag is given.
	VaultPath string `json:"vault_path,omitempty"`
	// ActionsFile is a YAML file of additional actions.
	ActionsFile string `json:"actions_file,omitempty"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Provider: Provider{
			Name:        "openai",
			Temperature: 0.7,
		},
		Embedding: Embedding{
			Provider: "openai",
		},
		Retrieval: Retrieval{
			ChunkSize:       1000,
			Overlap:         0.1,
			MaxContextChars: 6000,
			BatchSize:       16,
			Concurrency:     4,
			MaxDepth:        1,
			MaxDocuments:    20,
		},
	}
}

// fillDefaults sets zero fields from Default.
func (c *Config) fillDefaults() {
	d := Default()
	if c.Provider.Name == "" {
		c.Provider.Name = d.Provider.Name
	}
	if c.Provider.Temperature == 0 {
		c.Provider.Temperature = d.Provider.Temperature
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = d.Embedding.Provider
	}
	r, dr := &c.Retrieval, d.Retrieval
	if r.ChunkSize <= 0 {
		r.ChunkSize = dr.ChunkSize
	}
	if r.Overlap <= 0 || r.Overlap >= 1 {
		r.Overlap = dr.Overlap
	}
	if r.MaxContextChars <= 0 {
		r.MaxContextChars = dr.MaxContextChars
	}
	if r.BatchSize <= 0 {
		r.BatchSize = dr.BatchSize
	}
	if r.Concurrency <= 0 {
		r.Concurrency = dr.Concurrency
	}
	if r.MaxDepth <= 0 {
		r.MaxDepth = dr.MaxDepth
	}
	if r.MaxDocuments <= 0 {
		r.MaxDocuments = dr.MaxDocuments
	}
}

// Manager handles loading and saving the configuration.
type Manager struct {
	configDir string
}

// NewManager creates a configuration manager under the user config dir.
func NewManager() (*Manager, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user config dir: %w", err)
	}
	return NewManagerAt(filepath.Join(configDir, "quill")), nil
}

// NewManagerAt creates a configuration manager rooted at dir.
func NewManagerAt(dir string) *Manager {
	return &Manager{configDir: dir}
}

// Dir returns the quill configuration directory.
func (m *Manager) Dir() string {
	return m.configDir
}

// GetConfigPath returns the absolute path to the config.json file.
func (m *Manager) GetConfigPath() string {
	return filepath.Join(m.configDir, "config.json")
}

// DefaultCachePath is the embedding cache location when none is configured.
func (m *Manager) DefaultCachePath() string {
	return filepath.Join(m.configDir, "embeddings.db")
}

// Load reads the configuration from disk.
// If the file does not exist, it returns Default() and no error.
func (m *Manager) Load() (*Config, error) {
	path := m.GetConfigPath()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config json: %w", err)
	}
	cfg.fillDefaults()

	return &cfg, nil
}

// Save writes the configuration to disk with restricted permissions (0600).
func (m *Manager) Save(cfg *Config) error {
	if err := os.MkdirAll(m.configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write with 0600 permissions (read/write only by owner)
	if err := os.WriteFile(m.GetConfigPath(), data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Exists checks if the configuration file has been created.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.GetConfigPath())
	return !os.IsNotExist(err)
}
