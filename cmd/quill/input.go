package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ChamsBouzaiene/quill/internal/vault"
)

// documentID turns a --doc value into a vault document ID.
func documentID(v *vault.Vault, doc string) (string, error) {
	if doc == "" {
		return "", nil
	}
	if filepath.IsAbs(doc) {
		rel, err := filepath.Rel(v.Root(), doc)
		if err != nil || strings.HasPrefix(rel, "..") {
			return "", fmt.Errorf("document %s is outside the vault %s", doc, v.Root())
		}
		doc = rel
	}
	return filepath.ToSlash(filepath.Clean(doc)), nil
}

// readPiped returns stdin when it is not a terminal.
func readPiped(in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok {
		info, err := f.Stat()
		if err != nil || info.Mode()&os.ModeCharDevice != 0 {
			return "", nil
		}
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(data), nil
}
