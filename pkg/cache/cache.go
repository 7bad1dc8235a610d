package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"mpscraper/pkg/article"
	"mpscraper/pkg/logger"
)

// record is the on-disk envelope. cachedAt is kept as fractional Unix
// seconds so entries stay readable to other tooling.
type record struct {
	CachedAt  float64            `json:"cachedAt"`
	ResultSet *article.ResultSet `json:"resultSet"`
}

// Entry describes one cached result set, for listing.
type Entry struct {
	Key         string    `json:"key"`
	AccountName string    `json:"accountName"`
	ItemCount   int       `json:"itemCount"`
	TotalCount  int       `json:"totalCount"`
	CachedAt    time.Time `json:"cachedAt"`
	Expired     bool      `json:"expired"`
}

// Stats summarizes cache contents.
type Stats struct {
	Enabled        bool          `json:"enabled"`
	TTL            time.Duration `json:"ttl"`
	MemoryCount    int           `json:"memoryCount"`
	DiskCount      int           `json:"diskCount"`
	TotalItems     int           `json:"totalItems"`
	TotalSizeBytes int64         `json:"totalSizeBytes"`
}

var unsafeKeyChars = regexp.MustCompile(`[^0-9A-Za-z_-]`)

// ResultCache is a two-tier TTL cache for fetched result sets: a memory map
// in front of JSON files on disk. Disk hits are promoted to memory; stale or
// corrupt files are deleted on contact.
type ResultCache struct {
	dir     string
	ttl     time.Duration
	enabled bool
	logger  logger.Logger
	now     func() time.Time

	mu     sync.RWMutex
	memory map[string]record
}

// CacheOption configures a ResultCache.
type CacheOption func(*ResultCache)

// WithClock overrides the cache's time source. Tests use it to age entries
// without sleeping.
func WithClock(now func() time.Time) CacheOption {
	return func(c *ResultCache) {
		c.now = now
	}
}

// Disabled returns a cache that stores nothing and misses on every lookup.
func Disabled() *ResultCache {
	return &ResultCache{
		enabled: false,
		logger:  logger.GetLogger(),
		now:     time.Now,
		memory:  make(map[string]record),
	}
}

// New creates a result cache rooted at dir with the given TTL.
func New(dir string, ttl time.Duration, log logger.Logger, opts ...CacheOption) (*ResultCache, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	c := &ResultCache{
		dir:     dir,
		ttl:     ttl,
		enabled: true,
		logger:  log,
		now:     time.Now,
		memory:  make(map[string]record),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return c, nil
}

// Enabled reports whether the cache stores anything.
func (c *ResultCache) Enabled() bool {
	return c.enabled
}

func (c *ResultCache) filePath(key string) string {
	return filepath.Join(c.dir, "results_"+sanitizeKey(key)+".json")
}

func sanitizeKey(key string) string {
	return unsafeKeyChars.ReplaceAllString(key, "_")
}

func (c *ResultCache) fresh(rec record) bool {
	cachedAt := time.Unix(0, int64(rec.CachedAt*float64(time.Second)))
	return c.now().Sub(cachedAt) < c.ttl
}

// Get returns the cached result set for key, or nil on a miss. A stale disk
// entry is removed so the next write starts clean.
func (c *ResultCache) Get(key string) *article.ResultSet {
	if !c.enabled {
		return nil
	}

	c.mu.RLock()
	rec, ok := c.memory[key]
	c.mu.RUnlock()
	if ok {
		if c.fresh(rec) {
			return rec.ResultSet
		}
		c.mu.Lock()
		delete(c.memory, key)
		c.mu.Unlock()
	}

	path := c.filePath(key)
	content, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var diskRec record
	if err := json.Unmarshal(content, &diskRec); err != nil || diskRec.ResultSet == nil {
		c.logger.WarnWithFields("removing corrupt cache file", map[string]interface{}{
			"path": path,
		})
		_ = os.Remove(path)
		return nil
	}

	if !c.fresh(diskRec) {
		_ = os.Remove(path)
		return nil
	}

	// Promote to memory for subsequent lookups.
	c.mu.Lock()
	c.memory[key] = diskRec
	c.mu.Unlock()

	c.logger.DebugWithFields("cache hit from disk", map[string]interface{}{
		"key":   key,
		"items": diskRec.ResultSet.Count(),
	})
	return diskRec.ResultSet
}

// Set stores a result set under key. A disk write failure degrades the entry
// to memory-only rather than failing the caller; a fetched result is never
// lost to a cache problem.
func (c *ResultCache) Set(key string, rs *article.ResultSet) {
	if !c.enabled || rs == nil {
		return
	}

	rec := record{
		CachedAt:  float64(c.now().UnixNano()) / float64(time.Second),
		ResultSet: rs,
	}

	c.mu.Lock()
	c.memory[key] = rec
	c.mu.Unlock()

	content, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		c.logger.WarnWithFields("failed to marshal cache entry", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return
	}
	if err := os.WriteFile(c.filePath(key), content, 0644); err != nil {
		c.logger.WarnWithFields("failed to write cache file", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}

// Delete removes the entry for key from both tiers.
func (c *ResultCache) Delete(key string) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	delete(c.memory, key)
	c.mu.Unlock()

	_ = os.Remove(c.filePath(key))
}

// Clear removes every entry from both tiers.
func (c *ResultCache) Clear() error {
	if !c.enabled {
		return nil
	}

	c.mu.Lock()
	c.memory = make(map[string]record)
	c.mu.Unlock()

	paths, err := filepath.Glob(filepath.Join(c.dir, "results_*.json"))
	if err != nil {
		return err
	}
	for _, path := range paths {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}

// CleanupExpired removes stale and corrupt disk entries and returns how many
// files were deleted.
func (c *ResultCache) CleanupExpired() int {
	if !c.enabled {
		return 0
	}

	c.mu.Lock()
	for key, rec := range c.memory {
		if !c.fresh(rec) {
			delete(c.memory, key)
		}
	}
	c.mu.Unlock()

	paths, _ := filepath.Glob(filepath.Join(c.dir, "results_*.json"))
	removed := 0
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var rec record
		if err := json.Unmarshal(content, &rec); err != nil || rec.ResultSet == nil {
			if os.Remove(path) == nil {
				removed++
			}
			continue
		}
		if !c.fresh(rec) {
			if os.Remove(path) == nil {
				removed++
			}
		}
	}

	if removed > 0 {
		c.logger.InfoWithFields("cleaned up cache", map[string]interface{}{
			"removed": removed,
		})
	}
	return removed
}

// ListEntries returns a description of every disk entry, sorted by key.
// Expired entries are reported, not deleted; CleanupExpired does that.
func (c *ResultCache) ListEntries() []Entry {
	if !c.enabled {
		return nil
	}

	paths, _ := filepath.Glob(filepath.Join(c.dir, "results_*.json"))
	entries := make([]Entry, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var rec record
		if err := json.Unmarshal(content, &rec); err != nil || rec.ResultSet == nil {
			continue
		}

		key := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), "results_"), ".json")
		entries = append(entries, Entry{
			Key:         key,
			AccountName: rec.ResultSet.AccountName,
			ItemCount:   rec.ResultSet.Count(),
			TotalCount:  rec.ResultSet.TotalCount,
			CachedAt:    time.Unix(0, int64(rec.CachedAt*float64(time.Second))),
			Expired:     !c.fresh(rec),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key < entries[j].Key
	})
	return entries
}

// Stats summarizes both tiers.
func (c *ResultCache) Stats() Stats {
	stats := Stats{
		Enabled: c.enabled,
		TTL:     c.ttl,
	}
	if !c.enabled {
		return stats
	}

	c.mu.RLock()
	stats.MemoryCount = len(c.memory)
	c.mu.RUnlock()

	paths, _ := filepath.Glob(filepath.Join(c.dir, "results_*.json"))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		stats.DiskCount++
		stats.TotalSizeBytes += info.Size()

		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var rec record
		if err := json.Unmarshal(content, &rec); err == nil && rec.ResultSet != nil {
			stats.TotalItems += rec.ResultSet.Count()
		}
	}
	return stats
}
