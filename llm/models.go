package llm

import (
	"context"
	"sync"
	"time"
)

// ModelCache memoizes a provider's model catalog. The cached value and its
// fetch time are held together so staleness is always decided against the
// moment the list was actually retrieved.
type ModelCache struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.Mutex
	value     []Model
	fetchedAt time.Time
}

func NewModelCache(ttl time.Duration) *ModelCache {
	return &ModelCache{ttl: ttl, now: time.Now}
}

// Get returns the cached catalog when fresh, otherwise calls fetch and
// stores the result. A fetch error is returned without touching the cache,
// so a stale-but-present value survives transient failures.
func (c *ModelCache) Get(ctx context.Context, fetch func(context.Context) ([]Model, error)) ([]Model, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.value != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.value, nil
	}

	models, err := fetch(ctx)
	if err != nil {
		if c.value != nil {
			return c.value, nil
		}
		return nil, err
	}
	c.value = models
	c.fetchedAt = c.now()
	return models, nil
}

// Invalidate drops the cached catalog.
func (c *ModelCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = nil
	c.fetchedAt = time.Time{}
}
