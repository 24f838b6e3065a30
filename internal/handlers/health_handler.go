package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/themeorama/server/internal/models"
	"github.com/themeorama/server/internal/services"
)

// Pinger is satisfied by *sql.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	themeService *services.ThemeService
	db           Pinger
}

// NewHealthHandler creates a new HealthHandler. db may be nil.
func NewHealthHandler(themeService *services.ThemeService, db Pinger) *HealthHandler {
	return &HealthHandler{
		themeService: themeService,
		db:           db,
	}
}

// HealthCheck returns the server health status. The server stays "healthy" with an empty
// catalogue since lookups fall back to the built-in theme; a failing database is "degraded".
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Themes:    len(h.themeService.List()),
		Checks:    map[string]string{},
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			response.Status = "degraded"
			response.Checks["database"] = err.Error()
		} else {
			response.Checks["database"] = "ok"
		}
	}

	status := http.StatusOK
	if response.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// Build information injected with -ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// VersionResponse describes the running build
type VersionResponse struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
}

// VersionHandler returns build information
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	})
}
