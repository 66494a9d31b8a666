package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/prisnormando/atendimentosapsdf/pkg/contracts/domain"
)

// sourceIdentity changes whenever the file on disk is replaced or edited.
type sourceIdentity struct {
	path    string
	modTime time.Time
	size    int64
}

func (id sourceIdentity) String() string {
	return fmt.Sprintf("%s@%d:%d", id.path, id.modTime.UnixNano(), id.size)
}

type cacheEntry struct {
	id       sourceIdentity
	records  []domain.AttendanceRecord
	loadedAt time.Time
}

// CacheStats is a snapshot of cache activity.
type CacheStats struct {
	Path     string    `json:"path"`
	Loaded   bool      `json:"loaded"`
	Records  int       `json:"records"`
	LoadedAt time.Time `json:"loaded_at,omitempty"`
	Hits     int64     `json:"hits"`
	Misses   int64     `json:"misses"`
	Loads    int64     `json:"loads"`
	Errors   int64     `json:"errors"`
}

// LoaderFunc reads the dataset at path.
type LoaderFunc func(path string) ([]domain.AttendanceRecord, error)

// Cache keeps the parsed dataset in memory, keyed by the source file's path,
// modification time and size. Concurrent misses share one load.
type Cache struct {
	path   string
	load   LoaderFunc
	logger *slog.Logger

	mu    sync.RWMutex
	entry *cacheEntry
	gen   uint64 // bumped by Invalidate; guarded by mu
	group singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
	loads  atomic.Int64
	errs   atomic.Int64
}

// NewCache returns a cache over the dataset at path. A nil load uses Load.
func NewCache(path string, load LoaderFunc, logger *slog.Logger) *Cache {
	if load == nil {
		load = Load
	}
	if logger == nil {
		logger = slog.Default()
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return &Cache{
		path:   path,
		load:   load,
		logger: logger.With(slog.String("component", "dataset_cache")),
	}
}

// Path returns the absolute dataset path.
func (c *Cache) Path() string { return c.path }

// Get returns a copy of the dataset, reloading it when the file changed.
func (c *Cache) Get(ctx context.Context) ([]domain.AttendanceRecord, error) {
	id, err := c.identify()
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	entry, gen := c.entry, c.gen
	c.mu.RUnlock()
	if entry != nil && entry.id == id {
		c.hits.Add(1)
		return clone(entry.records), nil
	}
	c.misses.Add(1)

	key := fmt.Sprintf("%s#%d", id, gen)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		return c.reload(ctx, id, gen)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return clone(res.Val.(*cacheEntry).records), nil
	}
}

// Invalidate drops the cached dataset. The next Get reloads from disk.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.entry = nil
	c.gen++
	c.mu.Unlock()
	c.logger.Info("dataset cache invalidated", slog.String("path", c.path))
}

// Stats returns a snapshot of cache activity.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := CacheStats{
		Path:   c.path,
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Loads:  c.loads.Load(),
		Errors: c.errs.Load(),
	}
	if c.entry != nil {
		s.Loaded = true
		s.Records = len(c.entry.records)
		s.LoadedAt = c.entry.loadedAt
	}
	return s
}

func (c *Cache) identify() (sourceIdentity, error) {
	info, err := os.Stat(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return sourceIdentity{}, fmt.Errorf("%w: %s", ErrDatasetNotFound, c.path)
		}
		return sourceIdentity{}, fmt.Errorf("failed to stat dataset: %w", err)
	}
	if info.IsDir() {
		return sourceIdentity{}, fmt.Errorf("dataset path %s is a directory", c.path)
	}
	return sourceIdentity{path: c.path, modTime: info.ModTime(), size: info.Size()}, nil
}

// reload loads the dataset and stores it unless Invalidate ran since gen was
// read. Callers waiting on a superseded load still receive its records.
func (c *Cache) reload(ctx context.Context, id sourceIdentity, gen uint64) (*cacheEntry, error) {
	start := time.Now()
	records, err := c.load(c.path)
	if err != nil {
		c.errs.Add(1)
		c.logger.ErrorContext(ctx, "dataset load failed",
			slog.String("path", c.path),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	entry := &cacheEntry{id: id, records: records, loadedAt: time.Now()}
	c.mu.Lock()
	stale := c.gen != gen
	if !stale {
		c.entry = entry
	}
	c.mu.Unlock()
	c.loads.Add(1)

	if stale {
		c.logger.DebugContext(ctx, "discarding dataset load superseded by invalidation",
			slog.String("path", c.path))
		return entry, nil
	}

	c.logger.InfoContext(ctx, "dataset loaded",
		slog.String("path", c.path),
		slog.Int("records", len(records)),
		slog.Duration("duration", time.Since(start)),
	)
	return entry, nil
}

func clone(records []domain.AttendanceRecord) []domain.AttendanceRecord {
	out := make([]domain.AttendanceRecord, len(records))
	copy(out, records)
	return out
}
