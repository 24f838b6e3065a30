package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTheme(t *testing.T) {
	t.Run("accepts a minimal document and defaults tags", func(t *testing.T) {
		theme, err := ValidateTheme(`{"name":"ocean","displayName":"Ocean","schemaVersion":1}`)

		require.NoError(t, err)
		assert.Equal(t, "ocean", theme.Name())
		assert.Equal(t, "Ocean", theme.DisplayName())
		assert.Equal(t, []any{}, theme[FieldTags])
	})

	t.Run("keeps existing tags and unknown fields", func(t *testing.T) {
		theme, err := ValidateTheme([]byte(`{"name":"a","displayName":"A","schemaVersion":1,"tags":["x"],"extra":{"k":2}}`))

		require.NoError(t, err)
		assert.Equal(t, []string{"x"}, theme.Tags())
		assert.Equal(t, map[string]any{"k": float64(2)}, theme["extra"])
	})

	t.Run("accepts an already decoded map without modifying it", func(t *testing.T) {
		input := map[string]any{"name": "a", "displayName": "A", "schemaVersion": 1}

		theme, err := ValidateTheme(input)

		require.NoError(t, err)
		assert.Equal(t, "a", theme.Name())
		_, hasTags := input[FieldTags]
		assert.False(t, hasTags)
	})

	t.Run("accepts json.RawMessage", func(t *testing.T) {
		raw := json.RawMessage(`{"name":"a","displayName":"A","schemaVersion":1}`)

		_, err := ValidateTheme(raw)

		assert.NoError(t, err)
	})

	failures := []struct {
		name   string
		input  any
		reason string
	}{
		{"malformed JSON string", `{"name":`, "The theme string must be valid JSON"},
		{"JSON null", `null`, "The theme must be a valid JSON object"},
		{"JSON number", `42`, "The theme must be a valid JSON object"},
		{"nil input", nil, "The theme must be a valid JSON object"},
		{"array", `[1,2]`, "name is required"},
		{"missing name", `{"displayName":"A","schemaVersion":1}`, "name is required"},
		{"non-string name", `{"name":5,"displayName":"A","schemaVersion":1}`, "name is required"},
		{"missing displayName", `{"name":"a","schemaVersion":1}`, "displayName is required"},
		{"missing schemaVersion", `{"name":"a","displayName":"A"}`, "schemaVersion is required"},
		{"string schemaVersion", `{"name":"a","displayName":"A","schemaVersion":"1"}`, "schemaVersion is required"},
		{"unsupported schemaVersion", `{"name":"a","displayName":"A","schemaVersion":2}`, "Unrecognized schemaVersion: 2"},
	}
	for _, tc := range failures {
		t.Run("rejects "+tc.name, func(t *testing.T) {
			_, err := ValidateTheme(tc.input)

			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			assert.Equal(t, "Invalid theme JSON structure. "+tc.reason, err.Error())
		})
	}
}

func TestDeepMerge(t *testing.T) {
	t.Run("merges nested trees and replaces scalars", func(t *testing.T) {
		target := map[string]any{
			"colors": map[string]any{"background": "white", "primary": "black"},
			"mode":   "light",
		}
		source := map[string]any{
			"colors": map[string]any{"primary": "red"},
			"mode":   "dark",
		}

		merged := DeepMerge(target, source)

		assert.Equal(t, map[string]any{
			"colors": map[string]any{"background": "white", "primary": "red"},
			"mode":   "dark",
		}, merged)
	})

	t.Run("replaces arrays wholesale", func(t *testing.T) {
		merged := DeepMerge(
			map[string]any{"tags": []any{"a", "b"}},
			map[string]any{"tags": []any{"c"}},
		)

		assert.Equal(t, []any{"c"}, merged["tags"])
	})

	t.Run("a scalar replaces a tree and a tree replaces a scalar", func(t *testing.T) {
		merged := DeepMerge(
			map[string]any{"a": map[string]any{"x": 1}, "b": "flat"},
			map[string]any{"a": "flat", "b": map[string]any{"y": 2}},
		)

		assert.Equal(t, "flat", merged["a"])
		assert.Equal(t, map[string]any{"y": 2}, merged["b"])
	})

	t.Run("explicit nil in source overrides", func(t *testing.T) {
		merged := DeepMerge(map[string]any{"a": "x"}, map[string]any{"a": nil})

		v, ok := merged["a"]
		assert.True(t, ok)
		assert.Nil(t, v)
	})

	t.Run("leaves inputs untouched", func(t *testing.T) {
		target := map[string]any{"colors": map[string]any{"primary": "black"}}
		source := map[string]any{"colors": map[string]any{"primary": "red"}}

		merged := DeepMerge(target, source)
		merged["colors"].(map[string]any)["primary"] = "blue"

		assert.Equal(t, "black", target["colors"].(map[string]any)["primary"])
		assert.Equal(t, "red", source["colors"].(map[string]any)["primary"])
	})
}

func TestTheme_Clone(t *testing.T) {
	original := Theme{
		"name":   "a",
		"tags":   []any{"x"},
		"colors": map[string]any{"primary": "red"},
	}

	clone := original.Clone()
	clone["colors"].(map[string]any)["primary"] = "blue"
	clone["tags"].([]any)[0] = "y"

	assert.Equal(t, "red", original.Group("colors")["primary"])
	assert.Equal(t, []string{"x"}, original.Tags())
	assert.Nil(t, Theme(nil).Clone())
}

func TestTheme_ToThemeInfo(t *testing.T) {
	theme := Theme{
		FieldName:        "ocean",
		FieldDisplayName: "Ocean",
		FieldInherits:    "dark",
		FieldMostLike:    "dark",
		FieldTags:        []any{"blue", 3},
		FieldIsUserTheme: true,
		"colors":         map[string]any{"background": "navy", "primary": "teal"},
	}

	info := theme.ToThemeInfo()

	assert.Equal(t, "ocean", info.Name)
	assert.Equal(t, "Ocean", info.DisplayName)
	assert.Equal(t, "dark", info.Inherits)
	assert.Equal(t, []string{"blue"}, info.Tags)
	assert.True(t, info.IsUserTheme)
	assert.Equal(t, "--background: navy; --primary: teal;", info.PreviewCSS)
}

func TestBuiltInThemes(t *testing.T) {
	t.Run("every built-in validates", func(t *testing.T) {
		for _, theme := range BuiltInThemes() {
			_, err := ValidateTheme(map[string]any(theme))
			assert.NoError(t, err, theme.Name())
			assert.True(t, IsBuiltInTheme(theme.Name()))
		}
	})

	t.Run("returns fresh copies", func(t *testing.T) {
		first := BuiltInThemes()
		first[0].Group("colors")["background"] = "mutated"

		second := BuiltInThemes()
		assert.NotEqual(t, "mutated", second[0].Group("colors")["background"])
	})

	t.Run("fallback is the light theme", func(t *testing.T) {
		assert.Equal(t, FallbackThemeName, FallbackTheme().Name())
		assert.False(t, IsBuiltInTheme("ocean"))
	})
}

func TestIsInheritanceError(t *testing.T) {
	self := &SelfInheritanceError{Name: "a"}
	circular := &CircularInheritanceError{Chain: []string{"a", "b", "a"}}

	assert.True(t, IsInheritanceError(self))
	assert.True(t, IsInheritanceError(errors.Join(errors.New("other"), circular)))
	assert.False(t, IsInheritanceError(&ValidationError{Reason: "x"}))
	assert.Equal(t,
		"Circular inheritance detected: a -> b -> a. A theme cannot create a circular dependency chain.",
		circular.Error())
	assert.Contains(t, self.Error(), `Theme "a" cannot inherit from itself`)
}
