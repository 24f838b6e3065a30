package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestImage(t *testing.T, root, theme, name string, width, height int) {
	t.Helper()
	dir := filepath.Join(root, theme)
	require.NoError(t, os.MkdirAll(dir, 0755))
	img := imaging.New(width, height, color.NRGBA{R: 30, G: 120, B: 200, A: 255})
	require.NoError(t, imaging.Save(img, filepath.Join(dir, name)))
}

func TestFileImageResolver(t *testing.T) {
	t.Run("inlines and scales a PNG", func(t *testing.T) {
		root := t.TempDir()
		writeTestImage(t, root, "ocean", "bg.png", 40, 20)
		resolver := NewFileImageResolver(root, 10, 0)

		uri, err := resolver.Resolve(context.Background(), "ocean", "bg.png")

		require.NoError(t, err)
		require.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))
		data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/png;base64,"))
		require.NoError(t, err)
		img, err := imaging.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, 10, img.Bounds().Dx())
		assert.Equal(t, 5, img.Bounds().Dy())
	})

	t.Run("encodes JPEG sources as JPEG", func(t *testing.T) {
		root := t.TempDir()
		writeTestImage(t, root, "ocean", "bg.jpg", 8, 8)

		uri, err := NewFileImageResolver(root, 0, 70).Resolve(context.Background(), "ocean", "images/../bg.jpg")

		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(uri, "data:image/jpeg;base64,"))
	})

	t.Run("rejects paths outside the theme directory", func(t *testing.T) {
		root := t.TempDir()
		writeTestImage(t, root, "other", "secret.png", 4, 4)
		resolver := NewFileImageResolver(root, 0, 0)

		for _, themeName := range []string{"..", "a/b", ""} {
			_, err := resolver.Resolve(context.Background(), themeName, "bg.png")
			assert.ErrorIs(t, err, ErrImageOutsideTheme, themeName)
		}

		// cleaned paths stay inside the theme, so this looks for ocean/other/secret.png
		_, err := resolver.Resolve(context.Background(), "ocean", "../other/secret.png")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrImageOutsideTheme)
	})

	t.Run("fails on missing and undecodable files", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(root, "ocean"), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(root, "ocean", "junk.png"), []byte("not an image"), 0644))
		resolver := NewFileImageResolver(root, 0, 0)

		_, err := resolver.Resolve(context.Background(), "ocean", "missing.png")
		assert.Error(t, err)

		_, err = resolver.Resolve(context.Background(), "ocean", "junk.png")
		assert.ErrorContains(t, err, "failed to decode image")
	})
}

func TestPrefixImageResolver(t *testing.T) {
	root := t.TempDir()
	writeTestImage(t, root, "ocean", "bg.png", 4, 4)

	resolver, err := NewImageResolver(ImageResolverConfig{Mode: ImageModeURL, ThemesDir: root, AssetBaseURL: "/theme-assets/"})
	require.NoError(t, err)

	url, err := resolver.Resolve(context.Background(), "ocean", "./bg.png")
	require.NoError(t, err)
	assert.Equal(t, "/theme-assets/ocean/bg.png", url)

	_, err = resolver.Resolve(context.Background(), "ocean", "missing.png")
	assert.Error(t, err)
}

func TestNewImageResolver(t *testing.T) {
	resolver, err := NewImageResolver(ImageResolverConfig{Mode: ImageModeNone})
	assert.NoError(t, err)
	assert.Nil(t, resolver)

	resolver, err = NewImageResolver(ImageResolverConfig{Mode: ImageModeInline, ThemesDir: t.TempDir()})
	assert.NoError(t, err)
	assert.IsType(t, &FileImageResolver{}, resolver)

	_, err = NewImageResolver(ImageResolverConfig{Mode: "bogus"})
	assert.Error(t, err)
}

func TestImageHelpers(t *testing.T) {
	assert.True(t, IsHEIC("photo.HEIC"))
	assert.False(t, IsHEIC("photo.jpg"))
	assert.False(t, IsSupportedImage("bg.webp"))
	assert.True(t, IsSupportedImage("bg.PNG"))
	assert.False(t, IsSupportedImage("theme.json"))
}
