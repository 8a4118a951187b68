package services

import (
	"os"
	"sync"
	"time"
)

// InvalidationPolicy decides whether a cached asset is still valid for the
// file it was loaded from
type InvalidationPolicy interface {
	IsValid(entry AssetCacheEntry, info os.FileInfo) bool
}

// ModTimePolicy invalidates an entry as soon as the backing file's
// modification time moves past the time the entry was cached
type ModTimePolicy struct{}

// IsValid reports whether the entry is still current for the file
func (ModTimePolicy) IsValid(entry AssetCacheEntry, info os.FileInfo) bool {
	return !info.ModTime().After(entry.LoadedAt)
}

// AssetCacheEntry is one cached asset (an icon sprite, a compiled widget
// stylesheet) keyed by project and path
type AssetCacheEntry struct {
	Data     []byte
	LoadedAt time.Time
}

type assetCacheKey struct {
	projectID string
	path      string
}

// AssetCache caches per-project render assets. It is an explicit object
// carried on the render context, never a package-level map, so tests and
// the renderer can own their instances and invalidation policy.
type AssetCache struct {
	mu      sync.RWMutex
	entries map[assetCacheKey]AssetCacheEntry
	policy  InvalidationPolicy
}

// NewAssetCache creates an asset cache with the given invalidation policy;
// nil selects the mtime policy
func NewAssetCache(policy InvalidationPolicy) *AssetCache {
	if policy == nil {
		policy = ModTimePolicy{}
	}
	return &AssetCache{
		entries: make(map[assetCacheKey]AssetCacheEntry),
		policy:  policy,
	}
}

// Get returns the cached bytes for (projectID, path) if present and still
// valid per the invalidation policy. A stale entry is evicted.
func (c *AssetCache) Get(projectID, path string) ([]byte, bool) {
	key := assetCacheKey{projectID: projectID, path: path}

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	info, err := os.Stat(path)
	if err != nil || !c.policy.IsValid(entry, info) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}

	return entry.Data, true
}

// Put caches bytes for (projectID, path)
func (c *AssetCache) Put(projectID, path string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[assetCacheKey{projectID: projectID, path: path}] = AssetCacheEntry{
		Data:     data,
		LoadedAt: time.Now(),
	}
}

// InvalidateProject drops every entry cached for a project; the update
// applier calls this after replacing theme-owned files
func (c *AssetCache) InvalidateProject(projectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if key.projectID == projectID {
			delete(c.entries, key)
		}
	}
}

// Len returns the number of cached entries
func (c *AssetCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
