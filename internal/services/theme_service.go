package services

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/themeorama/server/internal/models"
	"github.com/themeorama/server/internal/observability"
	"github.com/themeorama/server/internal/repository"
)

// ThemeService owns the theme catalogue: discovery, user imports, CSS rendering and change notifications
type ThemeService struct {
	loader      *ThemeLoader
	discovery   ThemeDiscovery
	themeRepo   repository.ThemeRepository
	resolver    ImageResolver
	css         *CSSCache
	hub         *WebSocketHub
	logger      *observability.Logger
	defaultName string

	mu      sync.Mutex
	sources map[string]models.Theme // unresolved documents by name, as last loaded
}

// ThemeServiceOption configures a ThemeService
type ThemeServiceOption func(*ThemeService)

// WithCSSCache sets the stylesheet cache
func WithCSSCache(css *CSSCache) ThemeServiceOption {
	return func(s *ThemeService) {
		s.css = css
	}
}

// WithHub enables change notifications over WebSocket
func WithHub(hub *WebSocketHub) ThemeServiceOption {
	return func(s *ThemeService) {
		s.hub = hub
	}
}

// WithServiceLogger sets the service logger
func WithServiceLogger(logger *observability.Logger) ThemeServiceOption {
	return func(s *ThemeService) {
		s.logger = logger
	}
}

// WithDefaultTheme sets the name served by DefaultTheme
func WithDefaultTheme(name string) ThemeServiceOption {
	return func(s *ThemeService) {
		s.defaultName = name
	}
}

// NewThemeService creates a new theme service. themeRepo and resolver may be nil.
func NewThemeService(loader *ThemeLoader, discovery ThemeDiscovery, themeRepo repository.ThemeRepository, resolver ImageResolver, opts ...ThemeServiceOption) *ThemeService {
	s := &ThemeService{
		loader:      loader,
		discovery:   discovery,
		themeRepo:   themeRepo,
		resolver:    resolver,
		logger:      observability.GetLogger(),
		defaultName: models.FallbackThemeName,
		sources:     make(map[string]models.Theme),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.css == nil {
		s.css = NewCSSCache(defaultCSSCacheTTL)
	}
	return s
}

// ReloadResult summarizes a catalogue rebuild
type ReloadResult struct {
	Count  int      `json:"count"`
	Themes []string `json:"themes"`
	Errors []string `json:"errors,omitempty"`
}

// Reload rebuilds the catalogue from discovery. Failing discovery sources and themes that
// fail to resolve are reported in the result, and the built-in themes are always loaded.
// Only a cancelled context is returned as an error.
func (s *ThemeService) Reload(ctx context.Context) (*ReloadResult, error) {
	ctx, span := observability.StartServiceSpan(ctx, "ThemeService", "Reload")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	themes, discoverErr := s.discovery.Discover(ctx)
	if discoverErr != nil {
		observability.RecordError(span, discoverErr)
		s.logger.WithContext(ctx).WithError(discoverErr).Warn("Theme discovery failed, loading what was found")
		themes = append(models.BuiltInThemes(), themes...)
	}

	loadErr := s.loader.ReloadThemes(ctx, themes, s.resolver)

	s.sources = make(map[string]models.Theme, len(themes))
	for _, theme := range themes {
		s.sources[theme.Name()] = theme.Clone()
	}
	s.css.Clear()

	result := &ReloadResult{}
	for _, theme := range s.loader.GetThemes() {
		result.Themes = append(result.Themes, theme.Name())
	}
	result.Count = len(result.Themes)
	result.Errors = append(splitJoined(discoverErr), splitJoined(loadErr)...)

	s.logger.WithContext(ctx).
		WithField("themes", result.Count).
		WithField("errors", len(result.Errors)).
		Info("Theme catalogue reloaded")
	s.publish(WSMessage{
		Type:    WSTypeThemesReloaded,
		Payload: ThemesReloadedPayload(*result),
	})

	if discoverErr == nil {
		observability.SetSuccess(span)
	}
	return result, nil
}

// Import validates, resolves and persists a user theme, then re-resolves the cached themes
// that inherit from it. Built-in names are rejected. The theme is cached only after it is
// persisted, and nothing is persisted when resolution fails.
func (s *ThemeService) Import(ctx context.Context, themeJSON string) (models.Theme, error) {
	ctx, span := observability.StartServiceSpan(ctx, "ThemeService", "Import")
	defer span.End()

	theme, err := models.ValidateTheme(themeJSON)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	name := theme.Name()
	span.SetAttributes(observability.ThemeName(name))
	if models.IsBuiltInTheme(name) {
		return nil, models.ErrBuiltInThemeEdit
	}

	theme[models.FieldIsUserTheme] = true
	theme[models.FieldIsFeatured] = false
	document, err := json.Marshal(theme)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	resolved, err := s.loader.ResolveThemeFromJSON(ctx, string(document), s.resolver)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	if s.themeRepo != nil {
		if err := s.themeRepo.Save(ctx, &models.ThemeRecord{Name: name, Document: string(document)}); err != nil {
			observability.RecordError(span, err)
			return nil, err
		}
	}
	s.loader.StoreTheme(ctx, resolved)
	s.sources[name] = theme

	dependents := s.dependentsOf(name)
	if len(dependents) > 0 {
		if err := s.loader.LoadThemes(ctx, dependents, s.resolver); err != nil {
			s.logger.WithContext(ctx).WithField("theme", name).WithError(err).Warn("Some dependent themes failed to re-resolve")
		}
	}
	s.css.Delete(name)
	for _, dep := range dependents {
		s.css.Delete(dep.Name())
	}

	s.logger.WithContext(ctx).WithField("theme", name).WithField("dependents", len(dependents)).Info("Theme imported")
	s.publish(WSMessage{
		Type: WSTypeThemeUpdated,
		Payload: ThemeChangedPayload{
			Name:        name,
			DisplayName: resolved.DisplayName(),
			IsUserTheme: true,
		},
	}, TopicThemes, ThemeTopic(name))

	observability.SetSuccess(span)
	return resolved, nil
}

// Delete removes a user theme and rebuilds the catalogue, so a shadowed directory theme
// reappears and children fall back to the safe theme
func (s *ThemeService) Delete(ctx context.Context, name string) error {
	if models.IsBuiltInTheme(name) {
		return models.ErrBuiltInThemeEdit
	}
	if s.themeRepo == nil {
		return models.ErrThemeNotFound
	}
	if err := s.themeRepo.Delete(ctx, name); err != nil {
		return err
	}

	if _, err := s.Reload(ctx); err != nil {
		return err
	}

	s.publish(WSMessage{
		Type:    WSTypeThemeDeleted,
		Payload: ThemeChangedPayload{Name: name, IsUserTheme: true},
	}, TopicThemes, ThemeTopic(name))
	return nil
}

// dependentsOf returns the unresolved documents that inherit from name, directly or not,
// parents before children. Callers hold s.mu.
func (s *ThemeService) dependentsOf(name string) []models.Theme {
	children := make(map[string][]string)
	for childName, theme := range s.sources {
		if parent := theme.Inherits(); parent != "" && parent != childName {
			children[parent] = append(children[parent], childName)
		}
	}

	var out []models.Theme
	seen := map[string]bool{name: true}
	queue := []string{name}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		names := children[current]
		sort.Strings(names)
		for _, child := range names {
			if seen[child] {
				continue
			}
			seen[child] = true
			out = append(out, s.sources[child].Clone())
			queue = append(queue, child)
		}
	}
	return out
}

// List returns the public listing of every cached theme ordered by name
func (s *ThemeService) List() []models.ThemeInfo {
	themes := s.loader.GetThemes()
	infos := make([]models.ThemeInfo, 0, len(themes))
	for _, theme := range themes {
		infos = append(infos, theme.ToThemeInfo())
	}
	return infos
}

// Get returns a resolved theme by exact name
func (s *ThemeService) Get(name string) (models.Theme, error) {
	theme, ok := s.loader.GetTheme(name)
	if !ok {
		return nil, models.ErrThemeNotFound
	}
	return theme, nil
}

// GetSafe returns the named theme or the fallback chain's answer
func (s *ThemeService) GetSafe(ctx context.Context, name string) models.Theme {
	return s.loader.GetThemeSafe(ctx, name)
}

// DefaultTheme returns the configured default theme, falling back like GetSafe
func (s *ThemeService) DefaultTheme(ctx context.Context) models.Theme {
	return s.loader.GetThemeSafe(ctx, s.defaultName)
}

// GenerateCSS renders the stylesheet of a theme with caching. With fallback set a missing
// theme is served through the safe fallback chain. The served theme name is returned.
func (s *ThemeService) GenerateCSS(ctx context.Context, name string, fallback bool) (string, string, error) {
	// Read before the theme so an import or reload that lands mid-render keeps its invalidation.
	generation := s.css.Generation()

	var theme models.Theme
	if fallback {
		theme = s.loader.GetThemeSafe(ctx, name)
	} else {
		t, ok := s.loader.GetTheme(name)
		if !ok {
			return "", "", models.ErrThemeNotFound
		}
		theme = t
	}

	served := theme.Name()
	if css, found := s.css.Get(served); found {
		return css, served, nil
	}

	css := GenerateCSS(theme)
	s.css.SetIfCurrent(served, css, generation)
	return css, served, nil
}

// InvalidateCache drops every resolved theme and rendered stylesheet.
// Lookups answer from the built-in fallback until the next Reload.
func (s *ThemeService) InvalidateCache(ctx context.Context) {
	s.loader.ClearCache(ctx)
	s.css.Clear()
	s.logger.WithContext(ctx).Info("Theme caches invalidated")
}

func (s *ThemeService) publish(msg WSMessage, topics ...string) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(msg, topics...)
}

// splitJoined flattens an errors.Join result into messages
func splitJoined(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, splitJoined(e)...)
		}
		return out
	}
	return []string{strings.TrimSpace(err.Error())}
}
