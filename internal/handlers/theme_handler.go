package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/themeorama/server/internal/models"
	"github.com/themeorama/server/internal/observability"
	"github.com/themeorama/server/internal/services"
)

// maxThemeDocumentBytes bounds imported theme documents
const maxThemeDocumentBytes = 1 << 20

// ThemeServedHeader names the theme actually served when a fallback answered the request
const ThemeServedHeader = "X-Theme-Served"

// ThemeHandler handles theme API endpoints
type ThemeHandler struct {
	themeService *services.ThemeService
	logger       *observability.Logger
}

// NewThemeHandler creates a new ThemeHandler
func NewThemeHandler(themeService *services.ThemeService, logger *observability.Logger) *ThemeHandler {
	if logger == nil {
		logger = observability.GetLogger()
	}
	return &ThemeHandler{
		themeService: themeService,
		logger:       logger,
	}
}

// ListThemes returns the picker listing of all loaded themes (public endpoint)
// GET /api/themes
func (h *ThemeHandler) ListThemes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.ThemesResponse{Themes: h.themeService.List()})
}

// GetTheme returns a resolved theme by name (public endpoint).
// With ?fallback=true a missing theme is answered by the safe fallback chain.
// GET /api/themes/{name}
func (h *ThemeHandler) GetTheme(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "Theme name is required")
		return
	}

	if wantsFallback(r) {
		theme := h.themeService.GetSafe(r.Context(), name)
		w.Header().Set(ThemeServedHeader, theme.Name())
		writeJSON(w, http.StatusOK, theme)
		return
	}

	theme, err := h.themeService.Get(name)
	if err != nil {
		h.writeThemeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, theme)
}

// GetDefaultTheme returns the configured default theme, never failing
// GET /api/themes/default
func (h *ThemeHandler) GetDefaultTheme(w http.ResponseWriter, r *http.Request) {
	theme := h.themeService.DefaultTheme(r.Context())
	w.Header().Set(ThemeServedHeader, theme.Name())
	writeJSON(w, http.StatusOK, theme)
}

// GetThemeCSS returns the generated stylesheet for a theme (public endpoint)
// GET /api/themes/{name}/css
func (h *ThemeHandler) GetThemeCSS(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "Theme name is required")
		return
	}

	css, served, err := h.themeService.GenerateCSS(r.Context(), name, wantsFallback(r))
	if err != nil {
		h.writeThemeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Header().Set(ThemeServedHeader, served)
	io.WriteString(w, css)
}

// ImportTheme validates, resolves and stores a user theme (admin endpoint)
// POST /api/admin/themes
func (h *ThemeHandler) ImportTheme(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxThemeDocumentBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Theme document is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Could not read the theme document")
		return
	}

	theme, err := h.themeService.Import(r.Context(), string(body))
	if err != nil {
		h.writeThemeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, theme)
}

// DeleteTheme removes a user theme (admin endpoint)
// DELETE /api/admin/themes/{name}
func (h *ThemeHandler) DeleteTheme(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.themeService.Delete(r.Context(), name); err != nil {
		h.writeThemeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReloadThemes rebuilds the catalogue from disk and database (admin endpoint)
// POST /api/admin/themes/reload
func (h *ThemeHandler) ReloadThemes(w http.ResponseWriter, r *http.Request) {
	result, err := h.themeService.Reload(r.Context())
	if err != nil {
		h.writeThemeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// InvalidateCache empties the theme and stylesheet caches (admin endpoint)
// POST /api/admin/cache/invalidate
func (h *ThemeHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.themeService.InvalidateCache(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// writeThemeError maps theme errors to HTTP statuses
func (h *ThemeHandler) writeThemeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case models.IsValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case models.IsInheritanceError(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, models.ErrBuiltInThemeEdit):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, models.ErrThemeNotFound):
		writeError(w, http.StatusNotFound, "Theme not found")
	case errors.Is(err, models.ErrInvalidThemeName):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.WithContext(r.Context()).WithField("path", r.URL.Path).WithError(err).Error("Theme request failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func wantsFallback(r *http.Request) bool {
	fallback, _ := strconv.ParseBool(r.URL.Query().Get("fallback"))
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: message})
}
