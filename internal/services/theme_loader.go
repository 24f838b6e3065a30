package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/themeorama/server/internal/models"
	"github.com/themeorama/server/internal/observability"
)

const (
	defaultLoadConcurrency = 4
	defaultImageTimeout    = 10 * time.Second
)

// ThemeLoader resolves theme documents (inheritance, background images) and stores the results in a ThemeCache
type ThemeLoader struct {
	cache        *ThemeCache
	logger       *observability.Logger
	metrics      *observability.ThemeMetrics
	concurrency  int
	imageTimeout time.Duration
}

// LoaderOption configures a ThemeLoader
type LoaderOption func(*ThemeLoader)

// WithLoaderLogger sets the logger used for skipped themes and image failures
func WithLoaderLogger(logger *observability.Logger) LoaderOption {
	return func(l *ThemeLoader) {
		l.logger = logger
	}
}

// WithLoaderMetrics enables theme metrics
func WithLoaderMetrics(metrics *observability.ThemeMetrics) LoaderOption {
	return func(l *ThemeLoader) {
		l.metrics = metrics
	}
}

// WithLoadConcurrency bounds how many themes of one dependency wave resolve at once
func WithLoadConcurrency(n int) LoaderOption {
	return func(l *ThemeLoader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// WithImageTimeout bounds each image resolver call. Zero disables the bound.
func WithImageTimeout(d time.Duration) LoaderOption {
	return func(l *ThemeLoader) {
		l.imageTimeout = d
	}
}

// NewThemeLoader creates a loader backed by cache. A nil cache gets a fresh one.
func NewThemeLoader(cache *ThemeCache, opts ...LoaderOption) *ThemeLoader {
	if cache == nil {
		cache = NewThemeCache()
	}
	l := &ThemeLoader{
		cache:        cache,
		logger:       observability.GetLogger(),
		concurrency:  defaultLoadConcurrency,
		imageTimeout: defaultImageTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Cache returns the cache the loader writes to
func (l *ThemeLoader) Cache() *ThemeCache {
	return l.cache
}

// InitializeTheme resolves a theme without caching it. Ancestors come from the cache;
// a missing ancestor is replaced by the cache's safe fallback. The input is not modified.
// Only the theme's own backgroundImage goes to resolver; an inherited one is kept as the parent left it.
func (l *ThemeLoader) InitializeTheme(ctx context.Context, theme models.Theme, resolver ImageResolver) (models.Theme, error) {
	return l.initialize(ctx, theme.Clone(), resolver, nil)
}

// initialize resolves theme in place. path holds the names already being resolved above this call
// and is never mutated; each level hands its parent a fresh copy.
func (l *ThemeLoader) initialize(ctx context.Context, theme models.Theme, resolver ImageResolver, path []string) (models.Theme, error) {
	name := theme.Name()
	ownImage := theme.BackgroundImage()

	if parentName := theme.Inherits(); parentName != "" {
		if parentName == name {
			return nil, &models.SelfInheritanceError{Name: name}
		}
		if containsName(path, parentName) {
			chain := make([]string, 0, len(path)+2)
			chain = append(chain, path...)
			chain = append(chain, name, parentName)
			return nil, &models.CircularInheritanceError{Chain: chain}
		}

		parent, err := l.resolveParent(ctx, name, parentName, path)
		if err != nil {
			return nil, err
		}

		tags, hasTags := theme[models.FieldTags]
		theme = models.Theme(models.DeepMerge(parent, theme))
		if !hasTags || tags == nil {
			tags = []any{}
		}
		theme[models.FieldTags] = tags
	}

	// Only the theme's own image is relative to its directory; an inherited one was resolved with its parent.
	if img := ownImage; img != "" && resolver != nil && requiresResolution(img) {
		resolved, err := l.resolveImage(ctx, name, img, resolver)
		if err != nil {
			l.logger.WithContext(ctx).
				WithField("theme", name).
				WithField("background_image", img).
				WithError(err).
				Warn("Background image could not be resolved, dropping it")
			theme.SetBackgroundImage("")
		} else {
			theme.SetBackgroundImage(resolved)
		}
	}

	return theme, nil
}

// resolveParent returns the fully resolved parent of child. A cached parent is re-resolved
// under the extended path so cycles through cached themes are caught; its images are already
// resolved, so the walk runs without a resolver. A parent missing from
// the cache is replaced by the cache's safe fallback, used as stored: it is already resolved
// and was never named by the child's inheritance chain.
func (l *ThemeLoader) resolveParent(ctx context.Context, child, parentName string, path []string) (models.Theme, error) {
	parent, exact := l.cache.getSafe(parentName)
	if !exact {
		l.logger.WithContext(ctx).
			WithField("theme", child).
			WithField("inherits", parentName).
			WithField("substitute", parent.Name()).
			Warn("Parent theme is not loaded, inheriting from fallback")
		return parent, nil
	}

	next := make([]string, len(path), len(path)+1)
	copy(next, path)
	next = append(next, child)
	return l.initialize(ctx, parent, nil, next)
}

func (l *ThemeLoader) resolveImage(ctx context.Context, themeName, imagePath string, resolver ImageResolver) (string, error) {
	if l.imageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.imageTimeout)
		defer cancel()
	}

	type result struct {
		url string
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("image resolver panic: %v", r)}
			}
		}()
		url, err := resolver.Resolve(ctx, themeName, imagePath)
		done <- result{url: url, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}
	if res.err == nil && res.url == "" {
		res.err = errors.New("resolver returned an empty URL")
	}

	l.metrics.RecordImageResolution(ctx, themeName, res.err == nil)
	if res.err != nil {
		return "", &models.ImageResolutionError{Theme: themeName, Path: imagePath, Err: res.err}
	}
	return res.url, nil
}

// LoadTheme resolves theme and caches the result. Self and circular inheritance errors are returned;
// any other failure is logged and the theme is skipped, leaving the cache untouched.
func (l *ThemeLoader) LoadTheme(ctx context.Context, theme models.Theme, resolver ImageResolver) error {
	name := theme.Name()
	ctx, span := observability.StartServiceSpan(ctx, "ThemeLoader", "LoadTheme", observability.ThemeName(name))
	defer span.End()
	if parent := theme.Inherits(); parent != "" {
		span.SetAttributes(observability.ThemeParent(parent))
	}

	start := time.Now()
	resolved, err := l.safeInitialize(ctx, theme, resolver)
	l.metrics.RecordLoad(ctx, name, time.Since(start), err)
	if err != nil {
		observability.RecordError(span, err)
		if models.IsInheritanceError(err) {
			return err
		}
		l.logger.WithContext(ctx).WithField("theme", name).WithError(err).Error("Error loading theme, skipping it")
		return nil
	}

	l.store(ctx, resolved)
	observability.SetSuccess(span)
	return nil
}

// safeInitialize turns unexpected document shapes and resolver panics into a LoadError
func (l *ThemeLoader) safeInitialize(ctx context.Context, theme models.Theme, resolver ImageResolver) (resolved models.Theme, err error) {
	name := theme.Name()
	defer func() {
		if r := recover(); r != nil {
			resolved = nil
			err = &models.LoadError{Theme: name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if theme == nil || name == "" {
		return nil, &models.LoadError{Theme: name, Err: models.ErrInvalidThemeName}
	}
	if err := ctx.Err(); err != nil {
		return nil, &models.LoadError{Theme: name, Err: err}
	}

	resolved, err = l.initialize(ctx, theme.Clone(), resolver, nil)
	if err != nil && !models.IsInheritanceError(err) {
		err = &models.LoadError{Theme: name, Err: err}
	}
	return resolved, err
}

func (l *ThemeLoader) store(ctx context.Context, theme models.Theme) {
	before := l.cache.Len()
	l.cache.Add(theme)
	l.metrics.AdjustCacheSize(ctx, int64(l.cache.Len()-before))
}

// LoadThemes loads a batch. Themes are grouped into dependency waves so that a parent
// present in the batch is cached before any child that inherits from it, whatever the input order.
// Themes of one wave resolve concurrently. Inheritance errors, including cycles found within
// the batch, are joined and returned; other failures are logged and skipped.
func (l *ThemeLoader) LoadThemes(ctx context.Context, themes []models.Theme, resolver ImageResolver) error {
	ctx, span := observability.StartServiceSpan(ctx, "ThemeLoader", "LoadThemes", observability.BatchSize(len(themes)))
	defer span.End()

	plan := planLoadOrder(themes)
	errs := make([]error, len(themes))
	for _, cycle := range plan.cycles {
		errs[cycle.index] = cycle.err
		l.logger.WithContext(ctx).WithField("theme", themes[cycle.index].Name()).WithError(cycle.err).Error("Theme is part of an inheritance cycle")
	}
	for _, i := range plan.superseded {
		l.logger.WithContext(ctx).WithField("theme", themes[i].Name()).Debugf("Theme appears again later in the batch, skipping earlier copy")
	}

	for n, wave := range plan.waves {
		observability.AddEvent(span, "wave", observability.Operation(fmt.Sprintf("wave-%d", n)), observability.BatchSize(len(wave)))

		var g errgroup.Group
		g.SetLimit(l.concurrency)
		var mu sync.Mutex
		for _, i := range wave {
			i := i
			g.Go(func() error {
				if err := l.LoadTheme(ctx, themes[i], resolver); err != nil {
					mu.Lock()
					errs[i] = err
					mu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	err := errors.Join(errs...)
	if err != nil {
		observability.RecordError(span, err)
	} else {
		observability.SetSuccess(span)
	}
	return err
}

// ReloadThemes resolves a complete catalogue into a staging cache and then swaps it in,
// so lookups keep answering from the previous catalogue until the new one is ready.
// Errors are those of LoadThemes.
func (l *ThemeLoader) ReloadThemes(ctx context.Context, themes []models.Theme, resolver ImageResolver) error {
	staging := &ThemeLoader{
		cache:        NewThemeCache(),
		logger:       l.logger,
		concurrency:  l.concurrency,
		imageTimeout: l.imageTimeout,
	}
	err := staging.LoadThemes(ctx, themes, resolver)

	before := l.cache.Len()
	l.cache.Replace(staging.cache.GetAll())
	l.metrics.AdjustCacheSize(ctx, int64(l.cache.Len()-before))
	return err
}

// LoadThemeFromJSON validates a JSON document, resolves it and caches the result.
// Validation, inheritance and other resolution errors are all returned.
func (l *ThemeLoader) LoadThemeFromJSON(ctx context.Context, themeJSON string, resolver ImageResolver) (models.Theme, error) {
	resolved, err := l.ResolveThemeFromJSON(ctx, themeJSON, resolver)
	if err != nil {
		return nil, err
	}

	l.store(ctx, resolved)
	return resolved.Clone(), nil
}

// ResolveThemeFromJSON is LoadThemeFromJSON without caching the result; pair it with StoreTheme
// when the theme must only become visible after another step succeeds.
func (l *ThemeLoader) ResolveThemeFromJSON(ctx context.Context, themeJSON string, resolver ImageResolver) (models.Theme, error) {
	theme, err := models.ValidateTheme(themeJSON)
	if err != nil {
		return nil, err
	}

	ctx, span := observability.StartServiceSpan(ctx, "ThemeLoader", "ResolveThemeFromJSON", observability.ThemeName(theme.Name()))
	defer span.End()

	start := time.Now()
	resolved, err := l.safeInitialize(ctx, theme, resolver)
	l.metrics.RecordLoad(ctx, theme.Name(), time.Since(start), err)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	observability.SetSuccess(span)
	return resolved, nil
}

// StoreTheme caches a theme that was already resolved
func (l *ThemeLoader) StoreTheme(ctx context.Context, theme models.Theme) {
	l.store(ctx, theme)
}

// GetTheme returns a cached theme by exact name
func (l *ThemeLoader) GetTheme(name string) (models.Theme, bool) {
	return l.cache.Get(name)
}

// GetThemeSafe returns the named theme or the cache's fallback; it never fails
func (l *ThemeLoader) GetThemeSafe(ctx context.Context, name string) models.Theme {
	theme, exact := l.cache.getSafe(name)
	if !exact {
		l.metrics.RecordFallback(ctx, name, theme.Name())
	}
	return theme
}

// GetThemes returns every cached theme ordered by name
func (l *ThemeLoader) GetThemes() []models.Theme {
	return l.cache.GetAll()
}

// ClearCache drops every cached theme
func (l *ThemeLoader) ClearCache(ctx context.Context) {
	before := l.cache.Len()
	l.cache.Invalidate()
	l.metrics.AdjustCacheSize(ctx, -int64(before))
}

// requiresResolution reports whether an image reference must go through the resolver.
// Absolute http(s) URLs and inline data URIs are used as-is.
func requiresResolution(imagePath string) bool {
	return !strings.HasPrefix(imagePath, "http://") &&
		!strings.HasPrefix(imagePath, "https://") &&
		!strings.HasPrefix(imagePath, "data:")
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
