// Package workspace detects what kind of notes folder quill was started in.
package workspace

import (
	"os"
	"path/filepath"
	"strings"
)

// VaultType represents the kind of notes folder.
type VaultType string

const (
	VaultTypeObsidian VaultType = "obsidian"
	VaultTypeQuill    VaultType = "quill"
	VaultTypeMarkdown VaultType = "markdown"
	VaultTypeUnknown  VaultType = "unknown"
)

// markers are checked in order; the first present one decides the type.
var markers = []struct {
	dir  string
	kind VaultType
}{
	{".obsidian", VaultTypeObsidian},
	{".quill", VaultTypeQuill},
}

// DetectVaultType detects the vault type using marker-directory detection
// with an extension fallback.
func DetectVaultType(root string) VaultType {
	for _, m := range markers {
		if isDir(filepath.Join(root, m.dir)) {
			return m.kind
		}
	}

	// Extension fallback: scan the root for markdown files
	entries, err := os.ReadDir(root)
	if err != nil {
		return VaultTypeUnknown
	}

	notes, others := 0, 0
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".md", ".markdown":
			notes++
		default:
			others++
		}
	}

	// Only call it a markdown folder if notes dominate
	if notes > 0 && notes >= others {
		return VaultTypeMarkdown
	}
	return VaultTypeUnknown
}

// FindVaultRoot walks up from start to the nearest directory holding a vault
// marker. It returns start itself, cleaned and absolute, when none is found.
func FindVaultRoot(start string) (string, VaultType, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", VaultTypeUnknown, err
	}
	for dir := abs; ; {
		for _, m := range markers {
			if isDir(filepath.Join(dir, m.dir)) {
				return dir, m.kind, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return abs, DetectVaultType(abs), nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
