package balance

import (
	"sync"

	"github.com/google/uuid"
)

// Cache holds the current balance per account and currency.
type Cache interface {
	Get(accountID uuid.UUID, currency string) (int64, bool)
	Set(accountID uuid.UUID, currency string, totalMinor int64)
	// Invalidate drops every cached currency of the account.
	Invalidate(accountID uuid.UUID)
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]map[string]int64
}

// NewMemoryCache creates an empty cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[uuid.UUID]map[string]int64)}
}

func (c *MemoryCache) Get(accountID uuid.UUID, currency string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[accountID][currency]
	return v, ok
}

func (c *MemoryCache) Set(accountID uuid.UUID, currency string, totalMinor int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byCurrency, ok := c.entries[accountID]
	if !ok {
		byCurrency = make(map[string]int64)
		c.entries[accountID] = byCurrency
	}
	byCurrency[currency] = totalMinor
}

func (c *MemoryCache) Invalidate(accountID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, accountID)
}
