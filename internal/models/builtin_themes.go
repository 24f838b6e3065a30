package models

// BuiltInThemeNames lists the themes compiled into the server, in load order
var BuiltInThemeNames = []string{"light", "dark", "color"}

// BuiltInThemes returns fresh copies of the shipped theme documents.
// Callers may modify the result freely.
func BuiltInThemes() []Theme {
	return []Theme{
		lightTheme(),
		darkTheme(),
		colorTheme(),
	}
}

// IsBuiltInTheme reports whether name belongs to a shipped theme
func IsBuiltInTheme(name string) bool {
	for _, n := range BuiltInThemeNames {
		if n == name {
			return true
		}
	}
	return false
}

// FallbackTheme returns the theme served when nothing else is available
func FallbackTheme() Theme {
	return lightTheme()
}

func lightTheme() Theme {
	return Theme{
		FieldName:          "light",
		FieldDisplayName:   "Light",
		FieldSchemaVersion: float64(SupportedSchemaVersion),
		FieldMostLike:      "light",
		FieldTags:          []any{"light", "default"},
		FieldButtonStyle:   "solid",
		"colors": map[string]any{
			"background":            "hsl(0 0% 100%)",
			"backgroundTransparent": "hsla(0, 0%, 100%, 0.8)",
			"foreground":            "hsl(0 0% 3.9%)",
			"card":                  "hsl(0 0% 98%)",
			"cardForeground":        "hsl(0 0% 3.9%)",
			"popover":               "hsl(0 0% 100%)",
			"popoverForeground":     "hsl(0 0% 3.9%)",
			"primary":               "hsl(0 0% 9%)",
			"primaryForeground":     "hsl(0 0% 98%)",
			"secondary":             "hsl(0 0% 96.1%)",
			"secondaryForeground":   "hsl(0 0% 9%)",
			"muted":                 "hsl(0 0% 96.1%)",
			"mutedForeground":       "hsl(0 0% 45.1%)",
			"accent":                "hsl(0 0% 96.1%)",
			"accentForeground":      "hsl(0 0% 9%)",
			"destructive":           "hsl(0 84.2% 60.2%)",
			"destructiveForeground": "hsl(0 0% 98%)",
			"border":                "hsl(0 0% 89.8%)",
			"input":                 "hsl(0 0% 89.8%)",
			"ring":                  "hsl(0 0% 3.9%)",
		},
		"fonts": map[string]any{
			"sans":    "system-ui, -apple-system, sans-serif",
			"serif":   "Georgia, serif",
			"mono":    "ui-monospace, monospace",
			"heading": "system-ui, -apple-system, sans-serif",
			"body":    "system-ui, -apple-system, sans-serif",
		},
		"corners": map[string]any{
			"none": "0",
			"sm":   "0.125rem",
			"md":   "0.375rem",
			"lg":   "0.5rem",
			"xl":   "0.75rem",
			"full": "9999px",
		},
		"shadows": map[string]any{
			"none":     "none",
			"sm":       "0 1px 2px 0 rgba(0, 0, 0, 0.05)",
			"md":       "0 4px 6px -1px rgba(0, 0, 0, 0.1)",
			"lg":       "0 10px 15px -3px rgba(0, 0, 0, 0.1)",
			"xl":       "0 20px 25px -5px rgba(0, 0, 0, 0.1)",
			"card":     "0 1px 3px 0 rgba(0, 0, 0, 0.1)",
			"button":   "0 1px 2px 0 rgba(0, 0, 0, 0.05)",
			"dropdown": "0 10px 15px -3px rgba(0, 0, 0, 0.1)",
		},
		"switches": map[string]any{
			"checked":   map[string]any{"background": "hsl(0 0% 9%)"},
			"unchecked": map[string]any{"background": "hsl(0 0% 89.8%)"},
			"thumb":     map[string]any{"background": "hsl(0 0% 100%)"},
		},
	}
}

func darkTheme() Theme {
	return Theme{
		FieldName:          "dark",
		FieldDisplayName:   "Dark",
		FieldSchemaVersion: float64(SupportedSchemaVersion),
		FieldMostLike:      "dark",
		FieldTags:          []any{"dark", "default"},
		FieldButtonStyle:   "solid",
		"colors": map[string]any{
			"background":            "hsl(0 0% 3.9%)",
			"backgroundTransparent": "hsla(0, 0%, 3.9%, 0.8)",
			"foreground":            "hsl(0 0% 98%)",
			"card":                  "hsl(0 0% 7%)",
			"cardForeground":        "hsl(0 0% 98%)",
			"popover":               "hsl(0 0% 3.9%)",
			"popoverForeground":     "hsl(0 0% 98%)",
			"primary":               "hsl(0 0% 98%)",
			"primaryForeground":     "hsl(0 0% 9%)",
			"secondary":             "hsl(0 0% 14.9%)",
			"secondaryForeground":   "hsl(0 0% 98%)",
			"muted":                 "hsl(0 0% 14.9%)",
			"mutedForeground":       "hsl(0 0% 63.9%)",
			"accent":                "hsl(0 0% 14.9%)",
			"accentForeground":      "hsl(0 0% 98%)",
			"destructive":           "hsl(0 62.8% 30.6%)",
			"destructiveForeground": "hsl(0 0% 98%)",
			"border":                "hsl(0 0% 14.9%)",
			"input":                 "hsl(0 0% 14.9%)",
			"ring":                  "hsl(0 0% 83.1%)",
		},
		"fonts": map[string]any{
			"sans":    "system-ui, -apple-system, sans-serif",
			"serif":   "Georgia, serif",
			"mono":    "ui-monospace, monospace",
			"heading": "system-ui, -apple-system, sans-serif",
			"body":    "system-ui, -apple-system, sans-serif",
		},
		"corners": map[string]any{
			"none": "0",
			"sm":   "0.125rem",
			"md":   "0.375rem",
			"lg":   "0.5rem",
			"xl":   "0.75rem",
			"full": "9999px",
		},
		"shadows": map[string]any{
			"none":     "none",
			"sm":       "0 1px 2px 0 rgba(0, 0, 0, 0.3)",
			"md":       "0 4px 6px -1px rgba(0, 0, 0, 0.4)",
			"lg":       "0 10px 15px -3px rgba(0, 0, 0, 0.4)",
			"xl":       "0 20px 25px -5px rgba(0, 0, 0, 0.5)",
			"card":     "0 1px 3px 0 rgba(0, 0, 0, 0.4)",
			"button":   "0 1px 2px 0 rgba(0, 0, 0, 0.3)",
			"dropdown": "0 10px 15px -3px rgba(0, 0, 0, 0.5)",
		},
		"switches": map[string]any{
			"checked":   map[string]any{"background": "hsl(0 0% 98%)"},
			"unchecked": map[string]any{"background": "hsl(0 0% 14.9%)"},
			"thumb":     map[string]any{"background": "hsl(0 0% 3.9%)"},
		},
	}
}

// colorTheme only carries the overrides on top of dark
func colorTheme() Theme {
	return Theme{
		FieldName:          "color",
		FieldDisplayName:   "Colorful",
		FieldSchemaVersion: float64(SupportedSchemaVersion),
		FieldInherits:      "dark",
		FieldMostLike:      "dark",
		FieldTags:          []any{"dark", "colorful"},
		FieldButtonStyle:   "gradient",
		"colors": map[string]any{
			"background":          "hsl(240 30% 8%)",
			"card":                "hsl(240 28% 12%)",
			"popover":             "hsl(240 30% 8%)",
			"primary":             "hsl(280 85% 65%)",
			"primaryForeground":   "hsl(0 0% 100%)",
			"secondary":           "hsl(200 80% 45%)",
			"secondaryForeground": "hsl(0 0% 100%)",
			"accent":              "hsl(330 85% 60%)",
			"accentForeground":    "hsl(0 0% 100%)",
			"border":              "hsl(260 30% 25%)",
			"ring":                "hsl(280 85% 65%)",
		},
		"buttons": map[string]any{
			"default": map[string]any{
				"background":   "linear-gradient(135deg, hsl(280 85% 65%), hsl(330 85% 60%))",
				"color":        "hsl(0 0% 100%)",
				"borderRadius": "9999px",
				"hover": map[string]any{
					"boxShadow": "0 4px 14px rgba(200, 80, 255, 0.4)",
					"transform": "translateY(-1px)",
				},
			},
		},
	}
}
