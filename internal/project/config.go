// Package project reads per-vault settings kept in the vault's .quill directory.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// QuillDir is the directory name for per-vault configuration
	QuillDir = ".quill"
	// ConfigFile is the name of the vault configuration file
	ConfigFile = "config.json"
	// SystemFile holds a system prompt prefixed to every action in the vault
	SystemFile = "system"
)

// VaultConfig holds per-vault configuration settings.
type VaultConfig struct {
	// Exclude lists gitignore-style patterns of notes never read or linked.
	Exclude []string `json:"exclude,omitempty"`
	// RetrievalEnabled overrides the user setting when set.
	RetrievalEnabled *bool `json:"retrieval_enabled,omitempty"`
}

// Retrieval resolves the effective retrieval switch for a vault.
func (c *VaultConfig) Retrieval(userDefault bool) bool {
	if c == nil || c.RetrievalEnabled == nil {
		return userDefault
	}
	return *c.RetrievalEnabled
}

func configPath(vaultRoot string) string {
	return filepath.Join(vaultRoot, QuillDir, ConfigFile)
}

func systemPath(vaultRoot string) string {
	return filepath.Join(vaultRoot, QuillDir, SystemFile)
}

// ConfigExists checks if a vault configuration file exists.
func ConfigExists(vaultRoot string) bool {
	_, err := os.Stat(configPath(vaultRoot))
	return !os.IsNotExist(err)
}

// LoadConfig reads the vault configuration from disk.
// Returns nil and no error if the config file does not exist.
func LoadConfig(vaultRoot string) (*VaultConfig, error) {
	data, err := os.ReadFile(configPath(vaultRoot))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read vault config: %w", err)
	}

	var cfg VaultConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse vault config: %w", err)
	}

	return &cfg, nil
}

// SaveConfig writes the vault configuration to disk.
// Creates the .quill directory if it doesn't exist.
func SaveConfig(vaultRoot string, cfg *VaultConfig) error {
	if err := os.MkdirAll(filepath.Join(vaultRoot, QuillDir), 0755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", QuillDir, err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal vault config: %w", err)
	}

	if err := os.WriteFile(configPath(vaultRoot), data, 0644); err != nil {
		return fmt.Errorf("failed to write vault config: %w", err)
	}

	return nil
}

// LoadSystemPrompt reads the vault-wide system prompt from .quill/system.
// Returns empty string and no error if the file does not exist.
func LoadSystemPrompt(vaultRoot string) (string, error) {
	data, err := os.ReadFile(systemPath(vaultRoot))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read system prompt: %w", err)
	}

	return strings.TrimSpace(string(data)), nil
}
