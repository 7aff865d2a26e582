package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestConfigExists(t *testing.T) {
	tempDir := t.TempDir()

	if ConfigExists(tempDir) {
		t.Error("ConfigExists should return false when config doesn't exist")
	}

	quillDir := filepath.Join(tempDir, QuillDir)
	if err := os.MkdirAll(quillDir, 0755); err != nil {
		t.Fatalf("Failed to create .quill dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(quillDir, ConfigFile), []byte(`{"exclude": ["templates/"]}`), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if !ConfigExists(tempDir) {
		t.Error("ConfigExists should return true when config exists")
	}
}

func TestLoadConfig_NotExists(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Errorf("LoadConfig should not error when file doesn't exist: %v", err)
	}
	if cfg != nil {
		t.Error("LoadConfig should return nil when file doesn't exist")
	}
	if !cfg.Retrieval(true) || cfg.Retrieval(false) {
		t.Error("nil config should fall back to the user default")
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	tempDir := t.TempDir()

	off := false
	cfg := &VaultConfig{Exclude: []string{"templates/", "*.excalidraw.md"}, RetrievalEnabled: &off}
	if err := SaveConfig(tempDir, cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, QuillDir)); os.IsNotExist(err) {
		t.Error(".quill directory should be created")
	}

	loaded, err := LoadConfig(tempDir)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("LoadConfig returned nil")
	}
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("LoadConfig() mismatch (-want +got):\n%s", diff)
	}
	if loaded.Retrieval(true) {
		t.Error("vault setting should override the user default")
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tempDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tempDir, QuillDir), 0755); err != nil {
		t.Fatalf("Failed to create .quill dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tempDir, QuillDir, ConfigFile), []byte("not json"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	if _, err := LoadConfig(tempDir); err == nil {
		t.Error("Expected error for invalid config")
	}
}

func TestLoadSystemPrompt_NotExists(t *testing.T) {
	prompt, err := LoadSystemPrompt(t.TempDir())
	if err != nil {
		t.Errorf("LoadSystemPrompt should not error when file doesn't exist: %v", err)
	}
	if prompt != "" {
		t.Errorf("LoadSystemPrompt should return empty string, got: %s", prompt)
	}
}

func TestLoadSystemPrompt(t *testing.T) {
	tempDir := t.TempDir()
	quillDir := filepath.Join(tempDir, QuillDir)
	if err := os.MkdirAll(quillDir, 0755); err != nil {
		t.Fatalf("Failed to create .quill dir: %v", err)
	}

	expected := "Always answer in French.\nKeep the author's voice."
	if err := os.WriteFile(filepath.Join(quillDir, SystemFile), []byte(expected+"\n\n"), 0644); err != nil {
		t.Fatalf("Failed to write system file: %v", err)
	}

	prompt, err := LoadSystemPrompt(tempDir)
	if err != nil {
		t.Fatalf("LoadSystemPrompt failed: %v", err)
	}
	if prompt != expected {
		t.Errorf("Expected prompt:\n%s\nGot:\n%s", expected, prompt)
	}
}
