package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/memoza/flashcards-back/internal/domain"
)

type statusEntry struct {
	job       *domain.Job
	createdAt time.Time
	expiresAt time.Time
}

type StatusConfig struct {
	TTL        time.Duration
	MaxEntries int
}

// StatusCache absorbs high-frequency job status polling. Entries are
// short-lived snapshots; the enqueue path invalidates, and the TTL bounds
// staleness for executor checkpoints, which never touch the cache.
type StatusCache struct {
	mu         sync.RWMutex
	entries    map[string]statusEntry
	ttl        time.Duration
	maxEntries int
}

func NewStatusCache(config StatusConfig) *StatusCache {
	if config.TTL <= 0 {
		config.TTL = 2 * time.Second
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = 5000
	}
	return &StatusCache{
		entries:    make(map[string]statusEntry),
		ttl:        config.TTL,
		maxEntries: config.MaxEntries,
	}
}

func (c *StatusCache) Get(jobID string) (*domain.Job, bool) {
	c.mu.RLock()
	entry, exists := c.entries[jobID]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}
	if time.Now().UTC().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, jobID)
		c.mu.Unlock()
		return nil, false
	}
	clone := *entry.job
	return &clone, true
}

func (c *StatusCache) Set(jobID string, job *domain.Job) {
	now := time.Now().UTC()
	clone := *job

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}
	c.entries[jobID] = statusEntry{
		job:       &clone,
		createdAt: now,
		expiresAt: now.Add(c.ttl),
	}
}

func (c *StatusCache) Invalidate(jobID string) {
	c.mu.Lock()
	delete(c.entries, jobID)
	c.mu.Unlock()
}

func (c *StatusCache) evictOldest() {
	if len(c.entries) == 0 {
		return
	}

	type pair struct {
		key       string
		createdAt time.Time
	}
	pairs := make([]pair, 0, len(c.entries))
	for key, entry := range c.entries {
		pairs = append(pairs, pair{key: key, createdAt: entry.createdAt})
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].createdAt.Before(pairs[j].createdAt)
	})
	delete(c.entries, pairs[0].key)
}
