package skills

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/skillforge/skillbridge/internal/metadata"
)

// MetadataFetcher resolves a metadata pointer to its descriptor, or nil.
type MetadataFetcher interface {
	Fetch(ctx context.Context, pointer string) *metadata.Document
}

// Cache memoizes enriched skills by skill id. Entries are never evicted
// by size or age; only Clear empties it.
type Cache struct {
	fetcher MetadataFetcher
	logger  *zap.Logger

	mu      sync.RWMutex
	entries map[string]Skill
	group   singleflight.Group
}

// NewCache creates an empty enrichment cache.
func NewCache(fetcher MetadataFetcher, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		fetcher: fetcher,
		logger:  logger,
		entries: make(map[string]Skill),
	}
}

// Enrich returns the enriched form of rec. A cached entry is returned as is,
// even when rec carries newer counters; read those from the record itself.
// Enrichment never fails: a missing or unreachable descriptor yields defaults.
func (c *Cache) Enrich(ctx context.Context, rec Record) Skill {
	key := rec.Key()
	if s, ok := c.Get(key); ok {
		return s
	}

	v, _, _ := c.group.Do(key, func() (interface{}, error) {
		if s, ok := c.Get(key); ok {
			return s, nil
		}

		s := Defaults(rec)
		if rec.MetadataURI != "" && c.fetcher != nil {
			doc := c.fetcher.Fetch(ctx, rec.MetadataURI)
			if doc == nil {
				c.logger.Debug("metadata unavailable, using defaults",
					zap.String("skill_id", key),
					zap.String("pointer", rec.MetadataURI))
			}
			s = s.Overlay(doc)
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if existing, ok := c.entries[key]; ok {
			return existing, nil
		}
		c.entries[key] = s
		return s, nil
	})

	return v.(Skill).Clone()
}

// Get returns a copy of the cached entry for id.
func (c *Cache) Get(id string) (Skill, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.entries[id]
	if !ok {
		return Skill{}, false
	}
	return s.Clone(), true
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Skill)
}
