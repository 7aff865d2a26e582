package embeddings

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/ChamsBouzaiene/quill/internal/vectorstore"
)

// Cache is a persistent embedding cache in front of another embedder.
// Vectors are keyed by model and text, so the same chunk is embedded once
// across runs.
type Cache struct {
	db     *sql.DB
	next   vectorstore.Embedder
	model  string
	logger *zap.Logger
}

// OpenCache opens (or creates) the cache database at path.
func OpenCache(ctx context.Context, path, model string, next vectorstore.Embedder, logger *zap.Logger) (*Cache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedding cache: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping embedding cache: %w", err)
	}

	c := &Cache{db: db, next: next, model: model, logger: logger}
	if err := c.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return c, nil
}

func (c *Cache) initSchema(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS embeddings (
		key        TEXT PRIMARY KEY,
		model      TEXT NOT NULL,
		dims       INTEGER NOT NULL,
		vector     BLOB NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);
	CREATE INDEX IF NOT EXISTS idx_embeddings_model ON embeddings(model);
	`)
	return err
}

// Close closes the cache database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Embed implements vectorstore.Embedder. Cached vectors are returned as is;
// the rest are embedded in one call to the wrapped embedder and stored.
func (c *Cache) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	missing := make(map[string][]int)
	var order []string

	for i, text := range texts {
		key := c.key(text)
		vec, ok, err := c.lookup(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			out[i] = vec
			continue
		}
		if _, seen := missing[text]; !seen {
			order = append(order, text)
		}
		missing[text] = append(missing[text], i)
	}

	if len(order) == 0 {
		c.logger.Debug("embedding cache hit", zap.Int("texts", len(texts)))
		return out, nil
	}

	vectors, err := c.next.Embed(ctx, order)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(order) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(order))
	}

	for i, text := range order {
		for _, idx := range missing[text] {
			out[idx] = vectors[i]
		}
		if err := c.store(ctx, c.key(text), vectors[i]); err != nil {
			c.logger.Warn("failed to cache embedding", zap.Error(err))
		}
	}
	c.logger.Debug("embedding cache miss",
		zap.Int("texts", len(texts)), zap.Int("embedded", len(order)))
	return out, nil
}

// Len returns the number of cached vectors for the cache's model.
func (c *Cache) Len(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings WHERE model = ?`, c.model).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count cached embeddings: %w", err)
	}
	return n, nil
}

func (c *Cache) key(text string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) lookup(ctx context.Context, key string) ([]float32, bool, error) {
	var blob []byte
	err := c.db.QueryRowContext(ctx, `SELECT vector FROM embeddings WHERE key = ?`, key).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read embedding cache: %w", err)
	}
	vec, err := DecodeVector(blob)
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

func (c *Cache) store(ctx context.Context, key string, vec []float32) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO embeddings (key, model, dims, vector) VALUES (?, ?, ?, ?)`,
		key, c.model, len(vec), EncodeVector(vec))
	return err
}

// EncodeVector encodes a vector as little-endian float32s.
func EncodeVector(vector []float32) []byte {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, vector); err != nil {
		panic(fmt.Sprintf("failed to encode vector: %v", err))
	}
	return buf.Bytes()
}

// DecodeVector decodes a byte slice written by EncodeVector.
func DecodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector data length: %d", len(data))
	}
	vector := make([]float32, len(data)/4)
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &vector); err != nil {
		return nil, fmt.Errorf("failed to decode vector: %w", err)
	}
	return vector, nil
}
