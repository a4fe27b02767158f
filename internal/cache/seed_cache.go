package cache

import "sync"

// SeedCache memoizes which seed-data version has been applied to the
// store. Apply runs at most once per version even when several startup
// paths race: the version swap is decided under the lock, and losers of
// the race see the already-applied version and return immediately.
type SeedCache struct {
	mu          sync.Mutex
	lastApplied int
}

func NewSeedCache() *SeedCache {
	return &SeedCache{}
}

// LastApplied returns the newest version known to be applied.
func (c *SeedCache) LastApplied() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastApplied
}

// Apply runs fn when current is newer than the last applied version and
// records the new version only after fn succeeds. A failed fn leaves the
// version unchanged so the next startup retries.
func (c *SeedCache) Apply(current int, fn func() error) (applied bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if current <= c.lastApplied {
		return false, nil
	}
	if err := fn(); err != nil {
		return false, err
	}
	c.lastApplied = current
	return true, nil
}
