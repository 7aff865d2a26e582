package history

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNotFound is returned by Load for an unknown run.
var ErrNotFound = errors.New("run not found")

// Store handles persistence of runs.
type Store struct {
	basePath string
}

// NewStore creates a new history store.
// configPath is typically the quill user config directory.
func NewStore(configPath string) *Store {
	return &Store{
		basePath: filepath.Join(configPath, "history"),
	}
}

// VaultHash generates a consistent hash for a vault path.
func (s *Store) VaultHash(vaultPath string) string {
	hash := sha256.Sum256([]byte(filepath.Clean(vaultPath)))
	return hex.EncodeToString(hash[:])[:12]
}

// Save persists a run to disk.
func (s *Store) Save(run *Run) error {
	if run.ID == "" {
		return fmt.Errorf("run has no id")
	}
	if run.VaultHash == "" {
		run.VaultHash = s.VaultHash(run.VaultPath)
	}

	dir := filepath.Join(s.basePath, run.VaultHash)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	filename := filepath.Join(dir, run.ID+".json")
	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write run file: %w", err)
	}
	return nil
}

// Load retrieves a specific run.
func (s *Store) Load(id, vaultPath string) (*Run, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil, fmt.Errorf("invalid run id %q", id)
	}
	filename := filepath.Join(s.basePath, s.VaultHash(vaultPath), id+".json")

	data, err := os.ReadFile(filename)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}

	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &run, nil
}

// List returns the runs recorded for a vault, newest first. A positive limit
// caps the number returned.
func (s *Store) List(vaultPath string, limit int) ([]RunMeta, error) {
	dir := filepath.Join(s.basePath, s.VaultHash(vaultPath))

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []RunMeta{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list history directory: %w", err)
	}

	runs := []RunMeta{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue // Skip unreadable files
		}
		var run Run
		if err := json.Unmarshal(data, &run); err != nil {
			continue // Skip invalid files
		}
		runs = append(runs, run.Meta())
	}

	sort.SliceStable(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return runs[i].ID < runs[j].ID
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
