package services

import (
	"context"
	"sync"
	"time"
)

const defaultCSSCacheTTL = time.Hour

// CSSCache holds rendered theme stylesheets with a per-entry expiry
type CSSCache struct {
	mu         sync.RWMutex
	items      map[string]*cssEntry
	generation uint64 // bumped by Delete and Clear
	ttl        time.Duration
	now        func() time.Time
}

type cssEntry struct {
	css       string
	expiresAt time.Time
}

// NewCSSCache creates a stylesheet cache whose entries live for ttl
func NewCSSCache(ttl time.Duration) *CSSCache {
	return &CSSCache{
		items: make(map[string]*cssEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get returns the stylesheet for a theme if present and not expired
func (c *CSSCache) Get(themeName string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.items[themeName]
	if !ok || c.now().After(entry.expiresAt) {
		return "", false
	}
	return entry.css, true
}

// Set stores a stylesheet using the cache TTL
func (c *CSSCache) Set(themeName, css string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[themeName] = &cssEntry{
		css:       css,
		expiresAt: c.now().Add(c.ttl),
	}
}

// Generation returns a token that changes whenever a stylesheet is invalidated
func (c *CSSCache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.generation
}

// SetIfCurrent stores a stylesheet only if nothing was invalidated since generation
// was read. It reports whether the stylesheet was stored.
func (c *CSSCache) SetIfCurrent(themeName, css string, generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != generation {
		return false
	}
	c.items[themeName] = &cssEntry{
		css:       css,
		expiresAt: c.now().Add(c.ttl),
	}
	return true
}

// Delete drops the stylesheet of one theme
func (c *CSSCache) Delete(themeName string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, themeName)
	c.generation++
}

// Clear drops every stylesheet
func (c *CSSCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*cssEntry)
	c.generation++
}

// Size returns the number of stored stylesheets, expired ones included
func (c *CSSCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// RunCleanup evicts expired entries every interval until ctx is done
func (c *CSSCache) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *CSSCache) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for name, entry := range c.items {
		if now.After(entry.expiresAt) {
			delete(c.items, name)
		}
	}
}
