package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/themeorama/server/internal/models"
	"github.com/themeorama/server/internal/observability"
)

func writeThemeFile(t *testing.T, root, dir, file, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, dir, file), []byte(content), 0644))
}

func TestDirectoryDiscovery(t *testing.T) {
	t.Run("reads JSON and YAML documents in name order", func(t *testing.T) {
		root := t.TempDir()
		writeThemeFile(t, root, "ocean", "theme.json",
			`{"name":"ocean","displayName":"Ocean","schemaVersion":1,"inherits":"dark","colors":{"primary":"teal"}}`)
		writeThemeFile(t, root, "forest", "theme.yaml", `
name: forest
displayName: Forest
schemaVersion: 1
tags: [green]
colors:
  primary: green
`)
		require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("ignored"), 0644))

		themes, err := NewDirectoryDiscovery(root, observability.Discard()).Discover(context.Background())

		require.NoError(t, err)
		require.Len(t, themes, 2)
		assert.Equal(t, "forest", themes[0].Name())
		assert.Equal(t, []string{"green"}, themes[0].Tags())
		assert.Equal(t, "green", themes[0].Group("colors")["primary"])
		assert.Equal(t, "ocean", themes[1].Name())
		assert.Equal(t, "dark", themes[1].Inherits())
	})

	t.Run("skips invalid and misnamed documents", func(t *testing.T) {
		root := t.TempDir()
		writeThemeFile(t, root, "broken", "theme.json", `{"name":"broken"}`)
		writeThemeFile(t, root, "wrongdir", "theme.json", `{"name":"other","displayName":"Other","schemaVersion":1}`)
		require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0755))
		writeThemeFile(t, root, "good", "theme.yml", "name: good\ndisplayName: Good\nschemaVersion: 1\n")

		themes, err := NewDirectoryDiscovery(root, observability.Discard()).Discover(context.Background())

		require.NoError(t, err)
		require.Len(t, themes, 1)
		assert.Equal(t, "good", themes[0].Name())
	})

	t.Run("a missing directory yields nothing", func(t *testing.T) {
		themes, err := NewDirectoryDiscovery(filepath.Join(t.TempDir(), "nope"), observability.Discard()).Discover(context.Background())

		assert.NoError(t, err)
		assert.Empty(t, themes)
	})

	t.Run("json wins over yaml in the same directory", func(t *testing.T) {
		root := t.TempDir()
		writeThemeFile(t, root, "dup", "theme.json", `{"name":"dup","displayName":"From JSON","schemaVersion":1}`)
		writeThemeFile(t, root, "dup", "theme.yaml", "name: dup\ndisplayName: From YAML\nschemaVersion: 1\n")

		theme, file, err := ReadThemeDir(filepath.Join(root, "dup"))

		require.NoError(t, err)
		assert.Equal(t, "From JSON", theme.DisplayName())
		assert.Equal(t, "theme.json", filepath.Base(file))
	})
}

func TestParseThemeDocument(t *testing.T) {
	t.Run("YAML numbers become float64 like JSON", func(t *testing.T) {
		theme, err := ParseThemeDocument([]byte("name: a\ndisplayName: A\nschemaVersion: 1\nopacity: 2\n"), ".yaml")

		require.NoError(t, err)
		assert.Equal(t, float64(2), theme["opacity"])
	})

	t.Run("malformed YAML is a validation error", func(t *testing.T) {
		_, err := ParseThemeDocument([]byte("name: [unclosed"), ".yml")

		assert.True(t, models.IsValidationError(err))
	})

	t.Run("unsupported schema version is rejected", func(t *testing.T) {
		_, err := ParseThemeDocument([]byte(`{"name":"a","displayName":"A","schemaVersion":3}`), ".json")

		assert.EqualError(t, err, "Invalid theme JSON structure. Unrecognized schemaVersion: 3")
	})
}

func TestCombineDiscoveries(t *testing.T) {
	extra := DiscoveryFunc(func(ctx context.Context) ([]models.Theme, error) {
		return []models.Theme{namedTheme("light"), namedTheme("ocean")}, nil
	})

	themes, err := CombineDiscoveries(BuiltInDiscovery(), nil, extra).Discover(context.Background())

	require.NoError(t, err)
	names := make([]string, 0, len(themes))
	for _, theme := range themes {
		names = append(names, theme.Name())
	}
	assert.Equal(t, []string{"light", "dark", "color", "light", "ocean"}, names)
}

func TestCombineDiscoveries_SkipsFailingSources(t *testing.T) {
	failing := DiscoveryFunc(func(ctx context.Context) ([]models.Theme, error) {
		return nil, errors.New("db down")
	})
	extra := DiscoveryFunc(func(ctx context.Context) ([]models.Theme, error) {
		return []models.Theme{namedTheme("ocean")}, nil
	})

	themes, err := CombineDiscoveries(BuiltInDiscovery(), failing, extra).Discover(context.Background())

	assert.EqualError(t, err, "db down")
	names := make([]string, 0, len(themes))
	for _, theme := range themes {
		names = append(names, theme.Name())
	}
	assert.Equal(t, []string{"light", "dark", "color", "ocean"}, names)
}
