package modelbundle

import "sync"

// Cache is a process-wide, lock-protected cache of loaded bundles keyed by
// model id: an RWMutex
// guarding a plain map, check-then-load under the write lock so concurrent
// callers never load the same bundle twice. Bundles are immutable once
// loaded, so reads never need to copy.
type Cache struct {
	mu        sync.RWMutex
	byModelID map[string]*LoadedModel
}

// NewCache builds an empty cache.
func NewCache() *Cache {
	return &Cache{byModelID: make(map[string]*LoadedModel)}
}

// Get returns the cached bundle for modelID, if present.
func (c *Cache) Get(modelID string) (*LoadedModel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.byModelID[modelID]

	return m, ok
}

// GetOrLoad returns the cached bundle for modelID, loading it via fetch
// under the write lock if it is not already cached. fetch is only invoked
// when no cached entry exists.
func (c *Cache) GetOrLoad(modelID string, fetch func() ([]byte, error)) (*LoadedModel, error) {
	c.mu.RLock()
	if m, ok := c.byModelID[modelID]; ok {
		c.mu.RUnlock()
		return m, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.byModelID[modelID]; ok {
		return m, nil
	}

	bundleBytes, err := fetch()
	if err != nil {
		return nil, err
	}

	loaded, err := OpenBundle(bundleBytes)
	if err != nil {
		return nil, err
	}

	c.byModelID[modelID] = loaded

	return loaded, nil
}

// Invalidate drops the cached entry for modelID, if any.
func (c *Cache) Invalidate(modelID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.byModelID, modelID)
}

// Flush clears the entire cache.
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.byModelID = make(map[string]*LoadedModel)
}
