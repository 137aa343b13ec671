// Package indexcache maintains a bounded in-process cache of loaded vector
// indexes keyed by collection identifier. Missing entries are loaded on
// demand from the blob store; when the cache is full the oldest-inserted
// entry is evicted. The cache is process-local and rebuilt lazily after a
// cold start.
package indexcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/grimoire-labs/arcane-scribe/internal/blobstore"
	"github.com/grimoire-labs/arcane-scribe/internal/vectorindex"
)

// DefaultMaxSize is the number of resident indexes before eviction.
const DefaultMaxSize = 3

// ErrIndexNotFound is returned when a collection has no loadable index
// artifacts in the blob store.
var ErrIndexNotFound = errors.New("index not found")

// Cache is a bounded collection-id to vector-index mapping with FIFO
// eviction. Safe for concurrent use.
type Cache struct {
	store   blobstore.Store
	maxSize int
	logger  *slog.Logger

	mu      sync.Mutex
	entries map[string]*vectorindex.Index
	order   []string // insertion order; order[0] is evicted first
}

// New creates a cache over the given blob store. A maxSize of 0 uses
// DefaultMaxSize.
func New(store blobstore.Store, maxSize int, logger *slog.Logger) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		store:   store,
		maxSize: maxSize,
		logger:  logger,
		entries: make(map[string]*vectorindex.Index),
	}
}

// GetOrLoad returns the cached index for srdID, loading it from the blob
// store on a miss. Load failures never panic past this boundary; missing
// artifacts are reported as ErrIndexNotFound.
func (c *Cache) GetOrLoad(ctx context.Context, srdID string) (*vectorindex.Index, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if idx, ok := c.entries[srdID]; ok {
		c.logger.Info("index cache hit", "srd_id", srdID)
		return idx, nil
	}

	idx, err := c.load(ctx, srdID)
	if err != nil {
		return nil, err
	}

	if len(c.entries) >= c.maxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
		c.logger.Info("evicted oldest index cache entry", "srd_id", oldest)
	}
	c.entries[srdID] = idx
	c.order = append(c.order, srdID)

	c.logger.Info("index loaded into cache", "srd_id", srdID, "chunks", idx.Len())
	return idx, nil
}

// load downloads both index artifacts into per-call scratch storage,
// deserializes them, and guarantees the scratch directory is released on
// every exit path.
func (c *Cache) load(ctx context.Context, srdID string) (*vectorindex.Index, error) {
	scratch, err := os.MkdirTemp("", SanitizeID(srdID)+"_index_")
	if err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			c.logger.Warn("failed to clean up scratch directory", "dir", scratch, "error", err)
		}
	}()

	for _, name := range vectorindex.ArtifactFiles {
		key := path.Join(srdID, vectorindex.ArtifactPrefix, name)
		data, err := c.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, blobstore.ErrNotFound) {
				return nil, fmt.Errorf("%w: missing artifact %s", ErrIndexNotFound, key)
			}
			return nil, fmt.Errorf("download artifact %s: %w", key, err)
		}
		if err := os.WriteFile(filepath.Join(scratch, name), data, 0o600); err != nil {
			return nil, fmt.Errorf("write artifact to scratch: %w", err)
		}
	}

	idx, err := vectorindex.Load(scratch)
	if err != nil {
		return nil, fmt.Errorf("deserialize index for %q: %w", srdID, err)
	}
	return idx, nil
}

// Len returns the number of resident indexes.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Contains reports whether srdID is resident without loading it.
func (c *Cache) Contains(srdID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[srdID]
	return ok
}

// SanitizeID makes a collection identifier safe to use as a filesystem
// path component: every character other than letters, digits, '-' and '_'
// is replaced with '_'.
func SanitizeID(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
