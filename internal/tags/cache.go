// Package tags keeps an explicitly owned, refreshable index of document tags.
package tags

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Source scans the tags of every document, keyed by document ID.
type Source interface {
	ScanTags(ctx context.Context) (map[string][]string, error)
}

// Snapshot is the tag index at one point in time. It is never mutated.
type Snapshot struct {
	Documents map[string][]string
	Counts    map[string]int
	ScannedAt time.Time
}

// Options configures a Cache.
type Options struct {
	// MaxAge forces a rescan of snapshots older than this. Zero means
	// snapshots stay valid until invalidated.
	MaxAge time.Duration
	Logger *zap.Logger
	Now    func() time.Time
}

// Cache holds the latest Snapshot. Concurrent refreshes collapse into one scan.
type Cache struct {
	src   Source
	opts  Options
	group singleflight.Group
	mu    sync.RWMutex
	snap  *Snapshot
	stale bool
	gen   uint64 // bumped by Invalidate
	scans int
}

// NewCache creates an empty cache over src.
func NewCache(src Source, opts Options) *Cache {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{src: src, opts: opts}
}

// Get returns the current snapshot, scanning first if there is none or it
// was invalidated or has expired.
func (c *Cache) Get(ctx context.Context) (*Snapshot, error) {
	c.mu.RLock()
	snap, stale := c.snap, c.stale
	c.mu.RUnlock()

	if snap != nil && !stale && !c.expired(snap) {
		return snap, nil
	}
	return c.Refresh(ctx)
}

// Invalidate marks the snapshot stale; the next Get rescans. A scan already
// in flight does not clear the mark.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.stale = true
	c.gen++
	c.mu.Unlock()
}

// Refresh rescans the source and replaces the snapshot.
func (c *Cache) Refresh(ctx context.Context) (*Snapshot, error) {
	v, err, shared := c.group.Do("scan", func() (any, error) {
		c.mu.RLock()
		gen := c.gen
		c.mu.RUnlock()

		docs, err := c.src.ScanTags(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tags: %w", err)
		}
		snap := &Snapshot{
			Documents: docs,
			Counts:    make(map[string]int),
			ScannedAt: c.opts.Now(),
		}
		for _, tags := range docs {
			for _, t := range tags {
				snap.Counts[t]++
			}
		}

		c.mu.Lock()
		c.snap = snap
		if c.gen == gen {
			c.stale = false
		}
		c.scans++
		c.mu.Unlock()

		c.opts.Logger.Debug("tag index refreshed",
			zap.Int("documents", len(docs)), zap.Int("tags", len(snap.Counts)))
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.opts.Logger.Debug("joined in-flight tag scan")
	}
	return v.(*Snapshot), nil
}

// Scans returns how many scans the cache has run.
func (c *Cache) Scans() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scans
}

func (c *Cache) expired(s *Snapshot) bool {
	return c.opts.MaxAge > 0 && c.opts.Now().Sub(s.ScannedAt) >= c.opts.MaxAge
}

// AllTagsSummary renders every tag as "#tag (count)", most used first.
func (c *Cache) AllTagsSummary(ctx context.Context) (string, error) {
	snap, err := c.Get(ctx)
	if err != nil {
		return "", err
	}
	return FormatCounts(snap.Counts), nil
}

// DocumentTagsSummary renders the tags of one document as "#tag", sorted.
func (c *Cache) DocumentTagsSummary(ctx context.Context, id string) (string, error) {
	snap, err := c.Get(ctx)
	if err != nil {
		return "", err
	}
	return FormatTags(snap.Documents[id]), nil
}

// FormatCounts sorts by descending count, then name.
func FormatCounts(counts map[string]int) string {
	names := make([]string, 0, len(counts))
	for t := range counts {
		names = append(names, t)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})

	parts := make([]string, len(names))
	for i, t := range names {
		parts[i] = "#" + t + " (" + strconv.Itoa(counts[t]) + ")"
	}
	return strings.Join(parts, ", ")
}

// FormatTags renders tags sorted by name.
func FormatTags(tags []string) string {
	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)
	parts := make([]string, len(sorted))
	for i, t := range sorted {
		parts[i] = "#" + t
	}
	return strings.Join(parts, ", ")
}
