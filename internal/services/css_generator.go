package services

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/themeorama/server/internal/models"
)

var (
	camelBoundary  = regexp.MustCompile(`([A-Z])`)
	unsafeCSSValue = regexp.MustCompile(`[;{}<>"\\\n\r]`)
	dataImageURL   = regexp.MustCompile(`^data:image/(png|jpg|jpeg|gif|svg\+xml|webp);base64,`)
	httpURL        = regexp.MustCompile(`^https?://`)
	relativeURL    = regexp.MustCompile(`^[a-zA-Z0-9/_.\-]+$`)
)

// button property -> variable suffix
var buttonProperties = []struct{ key, css string }{
	{"background", "background"},
	{"color", "color"},
	{"border", "border"},
	{"borderStyle", "border-style"},
	{"borderWidth", "border-width"},
	{"borderColor", "border-color"},
	{"borderRadius", "radius"},
	{"boxShadow", "shadow"},
	{"backdropFilter", "backdrop-filter"},
}

// buttonStyle value -> --theme-has-* flag
var buttonStyleFlags = []struct{ style, css string }{
	{"gradient", "gradient-buttons"},
	{"shimmer", "shimmer-effects"},
	{"pixel-art", "pixel-art"},
	{"3d-effects", "3d-effects"},
	{"rounded-buttons", "rounded-buttons"},
}

// cssVars is an ordered set of declarations; setting a name twice keeps the first position and the last value
type cssVars struct {
	names  []string
	values map[string]string
}

func newCSSVars() *cssVars {
	return &cssVars{values: make(map[string]string)}
}

func (v *cssVars) set(name, value string) {
	if value == "" || unsafeCSSValue.MatchString(value) {
		return
	}
	if _, ok := v.values[name]; !ok {
		v.names = append(v.names, name)
	}
	v.values[name] = value
}

// GenerateCSS renders a resolved theme as a :root block of CSS custom properties.
// Values that could break out of a declaration are dropped. Output is deterministic.
func GenerateCSS(theme models.Theme) string {
	vars := newCSSVars()

	colorScheme := "light"
	if theme.MostLike() == "dark" {
		colorScheme = "dark"
	}

	writeBackgroundVariables(vars, theme)
	writeMappedVariables(vars, theme)
	writeTableVariables(vars, theme.Group("tables"))
	writeSidebarVariables(vars, theme.Group("sidebar"))
	writeButtonVariables(vars, theme)
	writeControlVariables(vars, theme)

	var css strings.Builder
	fmt.Fprintf(&css, "/* Theme: %s */\n", sanitizeComment(theme.Name()))
	css.WriteString(":root {\n")
	fmt.Fprintf(&css, "  color-scheme: %s;\n", colorScheme)
	for _, name := range vars.names {
		fmt.Fprintf(&css, "  %s: %s;\n", name, vars.values[name])
	}
	css.WriteString("}\n")
	return css.String()
}

func writeBackgroundVariables(vars *cssVars, theme models.Theme) {
	img := theme.BackgroundImage()
	if img == "" || !IsValidCSSURL(img) {
		return
	}
	vars.set("--background-size", stringOr(theme[models.FieldBackgroundSize], "cover"))
	vars.set("--background-position", stringOr(theme[models.FieldBackgroundPosition], "center"))
	vars.set("--background-repeat", stringOr(theme[models.FieldBackgroundRepeat], "no-repeat"))
	// data URIs contain ';', so the vetted URL skips set
	vars.values["--background-image"] = `url("` + strings.TrimSpace(img) + `")`
	vars.names = append(vars.names, "--background-image")
}

func writeMappedVariables(vars *cssVars, theme models.Theme) {
	groups := []struct {
		key   string
		names func(kebab string) []string
	}{
		{"colors", func(k string) []string { return []string{"--" + k, "--color-" + k} }},
		{"fonts", func(k string) []string { return []string{"--font-" + k, "--font-family-" + k} }},
		{"corners", func(k string) []string { return []string{"--corner-" + k, "--radius-" + k} }},
		{"shadows", func(k string) []string { return []string{"--shadow-" + k} }},
	}

	for _, g := range groups {
		group := theme.Group(g.key)
		for _, key := range sortedKeys(group) {
			value, ok := group[key].(string)
			if !ok {
				continue
			}
			for _, name := range g.names(kebabCase(key)) {
				vars.set(name, value)
			}
		}
	}

	colors := theme.Group("colors")
	for _, key := range []string{"cardBackdropFilter", "popoverBackdropFilter", "inputBackdropFilter"} {
		if value, ok := colors[key].(string); ok {
			vars.set("--"+kebabCase(key), value)
		}
	}
}

func writeTableVariables(vars *cssVars, tables map[string]any) {
	if tables == nil {
		return
	}
	row := subGroup(tables, "row")
	sections := []struct {
		obj        map[string]any
		prefix     string
		properties []string
	}{
		{tables, "table", []string{"background", "border", "borderRadius", "boxShadow"}},
		{subGroup(tables, "header"), "table-header", []string{"background", "color", "border", "backdropFilter"}},
		{row, "table-row", []string{"background", "color", "border", "backdropFilter"}},
		{subGroup(row, "hover"), "table-row-hover", []string{"background", "color"}},
		{subGroup(row, "selected"), "table-row-selected", []string{"background", "color"}},
		{subGroup(tables, "cell"), "table-cell", []string{"border"}},
		{subGroup(tables, "footer"), "table-footer", []string{"background", "color", "border", "backdropFilter"}},
	}

	for _, section := range sections {
		writeProperties(vars, section.obj, section.prefix, section.properties)
	}
}

func writeSidebarVariables(vars *cssVars, sidebar map[string]any) {
	writeProperties(vars, sidebar, "sidebar", []string{"background", "backdropFilter", "border"})
}

// writeProperties emits --<prefix>-<property> for each string property; backdrop filters get a -webkit twin
func writeProperties(vars *cssVars, obj map[string]any, prefix string, properties []string) {
	if obj == nil {
		return
	}
	for _, property := range properties {
		value, ok := obj[property].(string)
		if !ok {
			continue
		}
		name := "--" + prefix + "-" + kebabCase(property)
		vars.set(name, value)
		if property == "backdropFilter" {
			vars.set(name+"-webkit", value)
		}
	}
}

func writeButtonVariables(vars *cssVars, theme models.Theme) {
	buttons := theme.Group("buttons")
	for _, variant := range sortedKeys(buttons) {
		config := subGroup(buttons, variant)
		if config == nil {
			continue
		}
		for _, p := range buttonProperties {
			if value, ok := config[p.key].(string); ok {
				vars.set("--btn-"+variant+"-"+p.css, value)
			}
		}
		for _, state := range []string{"hover", "active"} {
			stateConfig := subGroup(config, state)
			if stateConfig == nil {
				continue
			}
			for _, p := range buttonProperties {
				if value, ok := stateConfig[p.key].(string); ok {
					vars.set("--btn-"+variant+"-"+state+"-"+p.css, value)
				}
			}
			if transform, ok := stateConfig["transform"].(string); ok {
				vars.set("--btn-"+variant+"-"+state+"-transform", transform)
			}
		}
	}

	buttonStyle, _ := theme[models.FieldButtonStyle].(string)
	for _, flag := range buttonStyleFlags {
		value := "0"
		if buttonStyle == flag.style {
			value = "1"
		}
		vars.set("--theme-has-"+flag.css, value)
	}
}

func writeControlVariables(vars *cssVars, theme models.Theme) {
	colors := theme.Group("colors")
	if value, ok := colors["inputBackground"].(string); ok && value != "" {
		vars.set("--input-background", value)
	} else if value, ok := colors["input"].(string); ok && value != "" {
		vars.set("--input-background", value)
	}

	switches := theme.Group("switches")
	for _, state := range []string{"checked", "unchecked"} {
		if value, ok := subGroup(switches, state)["background"].(string); ok {
			vars.set("--switch-"+state+"-background", value)
		}
	}
	if value, ok := subGroup(switches, "thumb")["background"].(string); ok {
		vars.set("--switch-thumb-background", value)
	}
}

// IsValidCSSURL reports whether a background image reference is safe to put inside url()
func IsValidCSSURL(value string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return false
	}
	lower := strings.ToLower(trimmed)
	switch {
	case strings.HasPrefix(lower, "javascript:"):
		return false
	case strings.HasPrefix(lower, "data:"):
		return dataImageURL.MatchString(lower) && !strings.ContainsAny(trimmed, `"\`)
	case httpURL.MatchString(trimmed):
		return !strings.ContainsAny(trimmed, "\"\\\n\r()")
	default:
		return relativeURL.MatchString(trimmed)
	}
}

func kebabCase(key string) string {
	return strings.ToLower(camelBoundary.ReplaceAllString(key, "-$1"))
}

func subGroup(group map[string]any, key string) map[string]any {
	if group == nil {
		return nil
	}
	sub, _ := group[key].(map[string]any)
	return sub
}

func sortedKeys(group map[string]any) []string {
	keys := make([]string, 0, len(group))
	for k := range group {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}

func sanitizeComment(s string) string {
	return strings.NewReplacer("*/", "", "\n", " ", "\r", " ").Replace(s)
}
