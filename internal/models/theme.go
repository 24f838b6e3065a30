package models

import (
	"sort"
	"time"
)

// SupportedSchemaVersion is the only theme document schema version understood by the loader
const SupportedSchemaVersion = 1

// FallbackThemeName is the theme used whenever a lookup cannot be satisfied
const FallbackThemeName = "light"

// Top-level theme document fields the resolver inspects. Everything else is an opaque style tree.
const (
	FieldName               = "name"
	FieldDisplayName        = "displayName"
	FieldSchemaVersion      = "schemaVersion"
	FieldInherits           = "inherits"
	FieldMostLike           = "mostLike"
	FieldTags               = "tags"
	FieldBackgroundImage    = "backgroundImage"
	FieldBackgroundSize     = "backgroundSize"
	FieldBackgroundPosition = "backgroundPosition"
	FieldBackgroundRepeat   = "backgroundRepeat"
	FieldButtonStyle        = "buttonStyle"
	FieldIsUserTheme        = "isUserTheme"
	FieldIsFeatured         = "isFeatured"
)

// Theme is a theme document held as a generic property tree.
// Nested style groups (colors, fonts, corners, shadows, tables, buttons, switches, sidebar...)
// are map[string]any values; leaves are JSON scalars or arrays.
type Theme map[string]any

// Name returns the unique theme identifier
func (t Theme) Name() string {
	return t.stringField(FieldName)
}

// DisplayName returns the human readable label
func (t Theme) DisplayName() string {
	return t.stringField(FieldDisplayName)
}

// Inherits returns the parent theme name, or "" when the theme has no parent
func (t Theme) Inherits() string {
	return t.stringField(FieldInherits)
}

// MostLike returns the light/dark contrast hint
func (t Theme) MostLike() string {
	return t.stringField(FieldMostLike)
}

// BackgroundImage returns the background image path or URL
func (t Theme) BackgroundImage() string {
	return t.stringField(FieldBackgroundImage)
}

// SetBackgroundImage replaces the background image. An empty value removes the field.
func (t Theme) SetBackgroundImage(value string) {
	if value == "" {
		delete(t, FieldBackgroundImage)
		return
	}
	t[FieldBackgroundImage] = value
}

// SchemaVersion returns the numeric schema version and whether it is present as a number
func (t Theme) SchemaVersion() (float64, bool) {
	return toNumber(t[FieldSchemaVersion])
}

// Tags returns the theme's own tags. Non-string entries are skipped.
func (t Theme) Tags() []string {
	switch v := t[FieldTags].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}

// IsUserTheme reports whether the theme was imported by a user rather than shipped or discovered
func (t Theme) IsUserTheme() bool {
	v, _ := t[FieldIsUserTheme].(bool)
	return v
}

// Group returns a nested style group such as "colors", or nil when absent or not a tree
func (t Theme) Group(key string) map[string]any {
	g, _ := t[key].(map[string]any)
	return g
}

// Clone returns a structural copy that shares nothing with t
func (t Theme) Clone() Theme {
	if t == nil {
		return nil
	}
	return Theme(DeepCopy(t))
}

// ToThemeInfo converts a Theme to a lightweight ThemeInfo for public listing
func (t Theme) ToThemeInfo() ThemeInfo {
	info := ThemeInfo{
		Name:        t.Name(),
		DisplayName: t.DisplayName(),
		MostLike:    t.MostLike(),
		Inherits:    t.Inherits(),
		Tags:        t.Tags(),
		IsUserTheme: t.IsUserTheme(),
	}
	if colors := t.Group("colors"); colors != nil {
		bg, _ := colors["background"].(string)
		primary, _ := colors["primary"].(string)
		if bg != "" || primary != "" {
			info.PreviewCSS = "--background: " + bg + "; --primary: " + primary + ";"
		}
	}
	return info
}

func (t Theme) stringField(key string) string {
	s, _ := t[key].(string)
	return s
}

// ThemeInfo describes a theme for theme pickers
type ThemeInfo struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName"`
	MostLike    string   `json:"mostLike,omitempty"`
	Inherits    string   `json:"inherits,omitempty"`
	Tags        []string `json:"tags"`
	IsUserTheme bool     `json:"isUserTheme"`
	PreviewCSS  string   `json:"previewCss,omitempty"`
}

// ThemesResponse is the response for the theme listing
type ThemesResponse struct {
	Themes []ThemeInfo `json:"themes"`
}

// SortThemes orders themes by name in place
func SortThemes(themes []Theme) {
	sort.Slice(themes, func(i, j int) bool {
		return themes[i].Name() < themes[j].Name()
	})
}

// ThemeRecord is a user-imported theme document as persisted by the repository
type ThemeRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Document  string    `json:"document"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	default:
		return 0, false
	}
}
