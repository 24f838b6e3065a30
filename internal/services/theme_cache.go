package services

import (
	"sort"
	"sync"

	"github.com/themeorama/server/internal/models"
)

// ThemeCache is a thread-safe store of resolved themes keyed by name.
// Themes are copied on the way in and on the way out, so callers never share state with the cache.
type ThemeCache struct {
	mu     sync.RWMutex
	themes map[string]models.Theme
}

// NewThemeCache creates an empty theme cache
func NewThemeCache() *ThemeCache {
	return &ThemeCache{
		themes: make(map[string]models.Theme),
	}
}

// Add inserts a theme, replacing any theme with the same name
func (c *ThemeCache) Add(theme models.Theme) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.themes[theme.Name()] = theme.Clone()
}

// AddMany adds themes in order; later duplicates win
func (c *ThemeCache) AddMany(themes []models.Theme) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, theme := range themes {
		c.themes[theme.Name()] = theme.Clone()
	}
}

// Get returns the theme with exactly this name
func (c *ThemeCache) Get(name string) (models.Theme, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	theme, ok := c.themes[name]
	if !ok {
		return nil, false
	}
	return theme.Clone(), true
}

// GetSafe never fails. It returns the requested theme, else "light", else the cached theme
// with the smallest name, else the built-in fallback theme. An empty name skips the first step.
func (c *ThemeCache) GetSafe(name string) models.Theme {
	theme, _ := c.getSafe(name)
	return theme
}

// getSafe also reports whether the requested name was found as-is
func (c *ThemeCache) getSafe(name string) (models.Theme, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if name != "" {
		if theme, ok := c.themes[name]; ok {
			return theme.Clone(), true
		}
	}
	if theme, ok := c.themes[models.FallbackThemeName]; ok {
		return theme.Clone(), false
	}
	if len(c.themes) > 0 {
		first := ""
		for n := range c.themes {
			if first == "" || n < first {
				first = n
			}
		}
		return c.themes[first].Clone(), false
	}
	return models.FallbackTheme(), false
}

// GetAll returns a snapshot of every cached theme ordered by name
func (c *ThemeCache) GetAll() []models.Theme {
	c.mu.RLock()
	defer c.mu.RUnlock()

	themes := make([]models.Theme, 0, len(c.themes))
	for _, theme := range c.themes {
		themes = append(themes, theme.Clone())
	}
	sort.Slice(themes, func(i, j int) bool {
		return themes[i].Name() < themes[j].Name()
	})
	return themes
}

// Remove deletes a theme; removing an unknown name is a no-op
func (c *ThemeCache) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.themes, name)
}

// Replace swaps the whole contents for themes in one step, so readers never see a partial catalogue
func (c *ThemeCache) Replace(themes []models.Theme) {
	next := make(map[string]models.Theme, len(themes))
	for _, theme := range themes {
		next[theme.Name()] = theme.Clone()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.themes = next
}

// Invalidate removes every cached theme
func (c *ThemeCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.themes = make(map[string]models.Theme)
}

// Len returns the number of cached themes
func (c *ThemeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.themes)
}
