// Package vault is the document graph over a directory of markdown notes.
package vault

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	gitignore "github.com/sabhiram/go-gitignore"
	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/quill/internal/links"
)

// ErrNotFound is returned when a document does not exist in the vault.
var ErrNotFound = errors.New("document not found")

// DefaultIgnorePatterns are skipped in every vault.
var DefaultIgnorePatterns = []string{
	".git",
	".obsidian",
	".trash",
	".quill",
	"node_modules",
	".DS_Store",
}

const noteExt = ".md"

// Config configures a vault.
type Config struct {
	// Exclude holds extra gitignore-style patterns.
	Exclude []string
	Logger  *zap.Logger
}

// Vault resolves, reads and links documents below a root directory.
// Document IDs are slash-separated paths relative to the root.
type Vault struct {
	root   string
	ignore gitignore.IgnoreParser
	logger *zap.Logger

	mu   sync.Mutex
	docs []string // cached listing, nil when stale
}

// Open opens the vault rooted at root.
func Open(root string, cfg Config) (*Vault, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vault path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open vault: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault path is not a directory: %s", abs)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	patterns := make([]string, 0, len(DefaultIgnorePatterns)+len(cfg.Exclude))
	patterns = append(patterns, DefaultIgnorePatterns...)
	if lines, err := readIgnoreLines(filepath.Join(abs, ".gitignore")); err == nil {
		patterns = append(patterns, lines...)
	}
	patterns = append(patterns, cfg.Exclude...)

	return &Vault{
		root:   abs,
		ignore: gitignore.CompileIgnoreLines(patterns...),
		logger: cfg.Logger,
	}, nil
}

// Root returns the absolute vault directory.
func (v *Vault) Root() string {
	return v.root
}

// Ignored reports whether a vault-relative path is excluded.
func (v *Vault) Ignored(rel string) bool {
	return v.ignore.MatchesPath(filepath.ToSlash(rel))
}

// Invalidate drops the cached document listing.
func (v *Vault) Invalidate() {
	v.mu.Lock()
	v.docs = nil
	v.mu.Unlock()
}

// Documents returns every note in the vault, sorted.
func (v *Vault) Documents(ctx context.Context) ([]string, error) {
	v.mu.Lock()
	cached := v.docs
	v.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	var docs []string
	err := filepath.WalkDir(v.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			v.logger.Debug("skipping unreadable path", zap.String("path", p), zap.Error(err))
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == v.root {
			return nil
		}
		rel, err := filepath.Rel(v.root, p)
		if err != nil {
			return nil
		}
		if v.Ignored(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(p), noteExt) {
			docs = append(docs, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	sort.Strings(docs)
	if docs == nil {
		docs = []string{}
	}

	v.mu.Lock()
	v.docs = docs
	v.mu.Unlock()
	return docs, nil
}

// Read returns the text of a document.
func (v *Vault) Read(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, err := v.abs(id)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", id, err)
	}
	return string(data), nil
}

// Resolve maps a link target written in document from to a document ID.
// Paths relative to from are tried first, then vault-relative paths, then
// the shortest document whose path ends with the target.
func (v *Vault) Resolve(ctx context.Context, ref, from string) (string, bool) {
	target := normalizeRef(ref)
	if target == "" {
		return "", false
	}

	candidates := []string{path.Join(path.Dir(from), target), path.Clean(target)}
	for _, c := range candidates {
		if strings.HasPrefix(c, "../") || c == ".." || v.Ignored(c) {
			continue
		}
		if info, err := os.Stat(filepath.Join(v.root, filepath.FromSlash(c))); err == nil && !info.IsDir() {
			return c, true
		}
	}

	docs, err := v.Documents(ctx)
	if err != nil {
		return "", false
	}
	suffix := "/" + strings.ToLower(strings.TrimPrefix(path.Clean(target), "/"))
	best := ""
	for _, d := range docs {
		if !strings.HasSuffix("/"+strings.ToLower(d), suffix) {
			continue
		}
		if best == "" || len(d) < len(best) || (len(d) == len(best) && d < best) {
			best = d
		}
	}
	return best, best != ""
}

// ForwardLinks returns the documents id links to, in source order.
func (v *Vault) ForwardLinks(ctx context.Context, id string) ([]string, error) {
	body, err := v.Read(ctx, id)
	if err != nil {
		return nil, err
	}
	linked := links.Extract(ctx, body, id, v)
	ids := make([]string, 0, len(linked))
	for _, l := range linked {
		ids = append(ids, l.ID)
	}
	return ids, nil
}

// Backlinks returns the documents linking to id, sorted.
func (v *Vault) Backlinks(ctx context.Context, id string) ([]string, error) {
	docs, err := v.Documents(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, d := range docs {
		if d == id {
			continue
		}
		fwd, err := v.ForwardLinks(ctx, d)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			v.logger.Debug("skipping unreadable document", zap.String("doc", d), zap.Error(err))
			continue
		}
		for _, f := range fwd {
			if f == id {
				out = append(out, d)
				break
			}
		}
	}
	return out, nil
}

func (v *Vault) abs(id string) (string, error) {
	clean := path.Clean(filepath.ToSlash(id))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") || path.IsAbs(clean) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return filepath.Join(v.root, filepath.FromSlash(clean)), nil
}

// normalizeRef strips headings and aliases and adds the note extension.
// Targets with another extension are not notes.
func normalizeRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if i := strings.IndexAny(ref, "#|^"); i >= 0 {
		ref = ref[:i]
	}
	ref = strings.TrimSpace(strings.TrimPrefix(ref, "./"))
	if ref == "" {
		return ""
	}
	switch ext := path.Ext(ref); {
	case ext == "":
		ref += noteExt
	case strings.EqualFold(ext, noteExt):
	default:
		// numeric suffixes such as "v1.2" belong to the title
		if !isNoteName(ext) {
			return ""
		}
		ref += noteExt
	}
	return ref
}

// isNoteName reports whether ext is part of a note title rather than a file
// type, e.g. the ".2" in "Release 1.2".
func isNoteName(ext string) bool {
	rest := ext[1:]
	if rest == "" || strings.ContainsAny(rest, " ") {
		return true
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func readIgnoreLines(p string) ([]string, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}
