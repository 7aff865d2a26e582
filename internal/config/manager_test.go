package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	m := NewManagerAt(t.TempDir())

	if m.Exists() {
		t.Error("Exists should return false before Save")
	}
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
	if !cfg.Retrieval.IsEnabled() {
		t.Error("retrieval should be enabled by default")
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "quill")
	m := NewManagerAt(dir)

	off := false
	cfg := Default()
	cfg.Provider.Name = "anthropic"
	cfg.Provider.APIKey = "secret"
	cfg.Retrieval.Enabled = &off
	cfg.Display.ShowModelInfo = true

	if err := m.Save(cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	info, err := os.Stat(m.GetConfigPath())
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config file mode = %o, want 600", perm)
	}

	loaded, err := m.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
	if loaded.Retrieval.IsEnabled() {
		t.Error("retrieval should be disabled")
	}
}

func TestLoad_FillsZeroFields(t *testing.T) {
	dir := t.TempDir()
	m := NewManagerAt(dir)
	data := []byte(`{"provider": {"name": "groq"}, "retrieval": {"max_depth": 2, "overlap": 3}}`)
	if err := os.WriteFile(m.GetConfigPath(), data, 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider.Name != "groq" || cfg.Retrieval.MaxDepth != 2 {
		t.Errorf("explicit values lost: %+v", cfg)
	}
	if cfg.Retrieval.ChunkSize != 1000 || cfg.Retrieval.Overlap != 0.1 || cfg.Embedding.Provider != "openai" {
		t.Errorf("defaults not filled: %+v", cfg.Retrieval)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	m := NewManagerAt(t.TempDir())
	if err := os.WriteFile(m.GetConfigPath(), []byte("{"), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := m.Load(); err == nil {
		t.Error("Expected error for invalid json")
	}
}

func TestApplyEnv(t *testing.T) {
	env := func(vars map[string]string) func(string) string {
		return func(k string) string { return vars[k] }
	}

	tests := []struct {
		name  string
		vars  map[string]string
		check func(t *testing.T, c *Config)
	}{
		{
			name: "openai key and model",
			vars: map[string]string{"OPENAI_API_KEY": "sk-1", "OPENAI_MODEL": "gpt-4o"},
			check: func(t *testing.T, c *Config) {
				if c.Provider.APIKey != "sk-1" || c.Provider.Model != "gpt-4o" || c.Embedding.APIKey != "sk-1" {
					t.Errorf("got %+v / %+v", c.Provider, c.Embedding)
				}
			},
		},
		{
			name: "anthropic",
			vars: map[string]string{"QUILL_PROVIDER": "Anthropic", "ANTHROPIC_API_KEY": "ak", "OPENAI_API_KEY": "sk"},
			check: func(t *testing.T, c *Config) {
				if c.Provider.Name != "anthropic" || c.Provider.APIKey != "ak" {
					t.Errorf("got %+v", c.Provider)
				}
			},
		},
		{
			name: "ollama embeddings",
			vars: map[string]string{"QUILL_EMBEDDING_PROVIDER": "ollama", "OLLAMA_HOST": "http://gpu:11434"},
			check: func(t *testing.T, c *Config) {
				if c.Embedding.Provider != "ollama" || c.Embedding.BaseURL != "http://gpu:11434" {
					t.Errorf("got %+v", c.Embedding)
				}
			},
		},
		{
			name: "blank values ignored",
			vars: map[string]string{"OPENAI_API_KEY": "  "},
			check: func(t *testing.T, c *Config) {
				if c.Provider.APIKey != "kept" {
					t.Errorf("APIKey = %q, want kept", c.Provider.APIKey)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Provider.APIKey = "kept"
			ApplyEnv(cfg, env(tt.vars))
			tt.check(t, cfg)
		})
	}
}
