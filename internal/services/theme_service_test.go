package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/themeorama/server/internal/models"
	"github.com/themeorama/server/internal/observability"
	"github.com/themeorama/server/internal/repository"
)

type serviceFixture struct {
	service   *ThemeService
	repo      repository.ThemeRepository
	flaky     *flakyThemeRepository
	themesDir string
}

// flakyThemeRepository fails the calls whose error is set and delegates the rest
type flakyThemeRepository struct {
	repository.ThemeRepository
	getAllErr error
	saveErr   error
}

func (r *flakyThemeRepository) GetAll(ctx context.Context) ([]*models.ThemeRecord, error) {
	if r.getAllErr != nil {
		return nil, r.getAllErr
	}
	return r.ThemeRepository.GetAll(ctx)
}

func (r *flakyThemeRepository) Save(ctx context.Context, record *models.ThemeRecord) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	return r.ThemeRepository.Save(ctx, record)
}

func setupThemeService(t *testing.T, opts ...ThemeServiceOption) *serviceFixture {
	t.Helper()
	themesDir := t.TempDir()
	db, err := repository.NewSQLiteDB(filepath.Join(t.TempDir(), "themes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := observability.Discard()
	repo := repository.NewThemeRepository(db)
	flaky := &flakyThemeRepository{ThemeRepository: repo}
	discovery := CombineDiscoveries(
		BuiltInDiscovery(),
		NewDirectoryDiscovery(themesDir, logger),
		NewRepositoryDiscovery(flaky, logger),
	)
	loader := NewThemeLoader(NewThemeCache(), WithLoaderLogger(logger))
	opts = append([]ThemeServiceOption{WithServiceLogger(logger)}, opts...)

	return &serviceFixture{
		service:   NewThemeService(loader, discovery, flaky, nil, opts...),
		repo:      repo,
		flaky:     flaky,
		themesDir: themesDir,
	}
}

func (f *serviceFixture) reload(t *testing.T) *ReloadResult {
	t.Helper()
	result, err := f.service.Reload(context.Background())
	require.NoError(t, err)
	return result
}

func TestThemeService_Reload(t *testing.T) {
	t.Run("loads built-in and directory themes", func(t *testing.T) {
		f := setupThemeService(t)
		writeThemeFile(t, f.themesDir, "ocean", "theme.json",
			`{"name":"ocean","displayName":"Ocean","schemaVersion":1,"inherits":"dark"}`)

		result := f.reload(t)

		assert.Equal(t, 4, result.Count)
		assert.Equal(t, []string{"color", "dark", "light", "ocean"}, result.Themes)
		assert.Empty(t, result.Errors)

		ocean, err := f.service.Get("ocean")
		require.NoError(t, err)
		assert.Equal(t, "dark", ocean.MostLike())
	})

	t.Run("reports inheritance errors without failing", func(t *testing.T) {
		f := setupThemeService(t)
		writeThemeFile(t, f.themesDir, "a", "theme.json", `{"name":"a","displayName":"A","schemaVersion":1,"inherits":"b"}`)
		writeThemeFile(t, f.themesDir, "b", "theme.json", `{"name":"b","displayName":"B","schemaVersion":1,"inherits":"a"}`)

		result := f.reload(t)

		assert.Equal(t, 3, result.Count)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "Circular inheritance detected")
	})
}

func TestThemeService_ReloadWithFailingDiscovery(t *testing.T) {
	t.Run("a failing source does not hide the others", func(t *testing.T) {
		f := setupThemeService(t)
		writeThemeFile(t, f.themesDir, "ocean", "theme.json",
			`{"name":"ocean","displayName":"Ocean","schemaVersion":1,"inherits":"dark"}`)
		f.flaky.getAllErr = errors.New("db down")

		result, err := f.service.Reload(context.Background())

		require.NoError(t, err)
		assert.Equal(t, []string{"color", "dark", "light", "ocean"}, result.Themes)
		assert.Equal(t, []string{"list stored themes: db down"}, result.Errors)
		_, err = f.service.Get("dark")
		assert.NoError(t, err)
	})

	t.Run("built-in themes load when discovery fails outright", func(t *testing.T) {
		logger := observability.Discard()
		broken := DiscoveryFunc(func(ctx context.Context) ([]models.Theme, error) {
			return nil, errors.New("themes directory unreadable")
		})
		service := NewThemeService(NewThemeLoader(NewThemeCache(), WithLoaderLogger(logger)), broken, nil, nil,
			WithServiceLogger(logger))

		result, err := service.Reload(context.Background())

		require.NoError(t, err)
		assert.Equal(t, []string{"color", "dark", "light"}, result.Themes)
		assert.Equal(t, []string{"themes directory unreadable"}, result.Errors)
	})

	t.Run("a cancelled context is returned", func(t *testing.T) {
		f := setupThemeService(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := f.service.Reload(ctx)

		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestThemeService_Import(t *testing.T) {
	t.Run("persists a user theme", func(t *testing.T) {
		f := setupThemeService(t)
		f.reload(t)

		theme, err := f.service.Import(context.Background(),
			`{"name":"forest","displayName":"Forest","schemaVersion":1,"inherits":"dark","isFeatured":true}`)

		require.NoError(t, err)
		assert.True(t, theme.IsUserTheme())
		assert.Equal(t, false, theme[models.FieldIsFeatured])
		assert.Equal(t, "dark", theme.MostLike())

		record, err := f.repo.GetByName(context.Background(), "forest")
		require.NoError(t, err)
		assert.Contains(t, record.Document, `"isUserTheme":true`)

		// survives a reload from the database
		f.reload(t)
		reloaded, err := f.service.Get("forest")
		require.NoError(t, err)
		assert.True(t, reloaded.IsUserTheme())
	})

	t.Run("rejects built-in names", func(t *testing.T) {
		f := setupThemeService(t)

		_, err := f.service.Import(context.Background(), `{"name":"dark","displayName":"Dark","schemaVersion":1}`)

		assert.ErrorIs(t, err, models.ErrBuiltInThemeEdit)
	})

	t.Run("rejects invalid documents", func(t *testing.T) {
		f := setupThemeService(t)

		_, err := f.service.Import(context.Background(), `{"name":"x","schemaVersion":1}`)

		assert.True(t, models.IsValidationError(err))
	})

	t.Run("does not persist themes that fail to resolve", func(t *testing.T) {
		f := setupThemeService(t)
		f.reload(t)

		_, err := f.service.Import(context.Background(), `{"name":"loop","displayName":"Loop","schemaVersion":1,"inherits":"loop"}`)

		assert.True(t, models.IsInheritanceError(err))
		_, err = f.repo.GetByName(context.Background(), "loop")
		assert.ErrorIs(t, err, models.ErrThemeNotFound)
	})

	t.Run("a failed save leaves the catalogue untouched", func(t *testing.T) {
		f := setupThemeService(t)
		f.reload(t)
		_, err := f.service.Import(context.Background(), `{"name":"ocean","displayName":"Ocean","schemaVersion":1}`)
		require.NoError(t, err)
		f.flaky.saveErr = errors.New("disk full")

		_, err = f.service.Import(context.Background(), `{"name":"forest","displayName":"Forest","schemaVersion":1}`)
		assert.EqualError(t, err, "disk full")
		_, err = f.service.Get("forest")
		assert.ErrorIs(t, err, models.ErrThemeNotFound)

		_, err = f.service.Import(context.Background(), `{"name":"ocean","displayName":"Ocean Two","schemaVersion":1}`)
		assert.EqualError(t, err, "disk full")
		ocean, err := f.service.Get("ocean")
		require.NoError(t, err)
		assert.Equal(t, "Ocean", ocean.DisplayName())
	})

	t.Run("re-resolves themes that inherit from the import", func(t *testing.T) {
		f := setupThemeService(t)
		writeThemeFile(t, f.themesDir, "kid", "theme.json", `{"name":"kid","displayName":"Kid","schemaVersion":1,"inherits":"ocean"}`)
		f.reload(t)

		before, err := f.service.Get("kid")
		require.NoError(t, err)
		assert.NotEqual(t, "teal", before.Group("colors")["primary"])

		_, err = f.service.Import(context.Background(),
			`{"name":"ocean","displayName":"Ocean","schemaVersion":1,"colors":{"primary":"teal"}}`)
		require.NoError(t, err)

		after, err := f.service.Get("kid")
		require.NoError(t, err)
		assert.Equal(t, "teal", after.Group("colors")["primary"])
	})
}

func TestThemeService_Delete(t *testing.T) {
	t.Run("removes a user theme", func(t *testing.T) {
		f := setupThemeService(t)
		f.reload(t)
		_, err := f.service.Import(context.Background(), `{"name":"forest","displayName":"Forest","schemaVersion":1}`)
		require.NoError(t, err)

		require.NoError(t, f.service.Delete(context.Background(), "forest"))

		_, err = f.service.Get("forest")
		assert.ErrorIs(t, err, models.ErrThemeNotFound)
	})

	t.Run("restores a shadowed directory theme", func(t *testing.T) {
		f := setupThemeService(t)
		writeThemeFile(t, f.themesDir, "ocean", "theme.json", `{"name":"ocean","displayName":"Directory Ocean","schemaVersion":1}`)
		f.reload(t)
		_, err := f.service.Import(context.Background(), `{"name":"ocean","displayName":"User Ocean","schemaVersion":1}`)
		require.NoError(t, err)

		theme, _ := f.service.Get("ocean")
		assert.Equal(t, "User Ocean", theme.DisplayName())

		require.NoError(t, f.service.Delete(context.Background(), "ocean"))

		theme, err = f.service.Get("ocean")
		require.NoError(t, err)
		assert.Equal(t, "Directory Ocean", theme.DisplayName())
		assert.False(t, theme.IsUserTheme())
	})

	t.Run("refuses built-in and unknown themes", func(t *testing.T) {
		f := setupThemeService(t)

		assert.ErrorIs(t, f.service.Delete(context.Background(), "light"), models.ErrBuiltInThemeEdit)
		assert.ErrorIs(t, f.service.Delete(context.Background(), "nope"), models.ErrThemeNotFound)
	})
}

func TestThemeService_Lookups(t *testing.T) {
	t.Run("css is served exactly or through the fallback", func(t *testing.T) {
		f := setupThemeService(t)
		f.reload(t)

		_, _, err := f.service.GenerateCSS(context.Background(), "missing", false)
		assert.ErrorIs(t, err, models.ErrThemeNotFound)

		css, served, err := f.service.GenerateCSS(context.Background(), "missing", true)
		require.NoError(t, err)
		assert.Equal(t, "light", served)
		assert.Contains(t, css, "/* Theme: light */")

		cached, _, err := f.service.GenerateCSS(context.Background(), "light", false)
		require.NoError(t, err)
		assert.Equal(t, css, cached)
	})

	t.Run("default theme follows configuration", func(t *testing.T) {
		f := setupThemeService(t, WithDefaultTheme("dark"))
		f.reload(t)

		assert.Equal(t, "dark", f.service.DefaultTheme(context.Background()).Name())
	})

	t.Run("list and invalidate", func(t *testing.T) {
		f := setupThemeService(t)
		f.reload(t)

		infos := f.service.List()
		require.Len(t, infos, 3)
		assert.Equal(t, "color", infos[0].Name)

		f.service.InvalidateCache(context.Background())
		assert.Empty(t, f.service.List())
		assert.Equal(t, "light", f.service.GetSafe(context.Background(), "dark").Name())
	})
}
