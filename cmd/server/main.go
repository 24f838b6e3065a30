package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/themeorama/server/internal/config"
	"github.com/themeorama/server/internal/handlers"
	custommw "github.com/themeorama/server/internal/middleware"
	"github.com/themeorama/server/internal/observability"
	"github.com/themeorama/server/internal/repository"
	"github.com/themeorama/server/internal/services"
)

func main() {
	logger := observability.GetLogger()

	if err := run(logger); err != nil {
		logger.WithError(err).Error("Server exited with error")
		os.Exit(1)
	}
}

func run(logger *observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Telemetry (no-op unless telemetry.enabled is set)
	telemetry, err := observability.Initialize(ctx, observability.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: handlers.Version,
		Environment:    cfg.Telemetry.Environment,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		ExportInterval: cfg.Telemetry.ExportInterval,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Telemetry shutdown failed")
		}
	}()

	// Initialize database and repository
	var db *sql.DB
	dbSystem := "sqlite"
	if cfg.UsePostgres() {
		logger.Info("Using PostgreSQL database")
		db, err = repository.NewPostgresDB(cfg.Database.URL)
		dbSystem = "postgresql"
	} else {
		logger.WithField("path", cfg.Database.Path).Info("Using SQLite database")
		db, err = repository.NewSQLiteDB(cfg.Database.Path)
	}
	if err != nil {
		return err
	}
	defer db.Close()

	traceDB, err := observability.NewTraceDB(db, dbSystem)
	if err != nil {
		return err
	}
	themeRepo := repository.NewThemeRepository(traceDB)

	// Initialize services
	themeMetrics, err := observability.NewThemeMetrics()
	if err != nil {
		return err
	}
	cache := services.NewThemeCache()
	loader := services.NewThemeLoader(cache,
		services.WithLoaderLogger(logger.WithField("component", "loader")),
		services.WithLoaderMetrics(themeMetrics),
		services.WithLoadConcurrency(cfg.Themes.LoadConcurrency),
		services.WithImageTimeout(cfg.Themes.ImageTimeout),
	)

	resolver, err := services.NewImageResolver(services.ImageResolverConfig{
		Mode:         cfg.Themes.ImageMode,
		ThemesDir:    cfg.Themes.Directory,
		AssetBaseURL: cfg.Themes.AssetBaseURL,
		MaxDimension: cfg.Themes.MaxImageDimension,
		Quality:      cfg.Themes.ImageQuality,
	})
	if err != nil {
		return err
	}

	discovery := services.CombineDiscoveries(
		services.BuiltInDiscovery(),
		services.NewDirectoryDiscovery(cfg.Themes.Directory, logger),
		services.NewRepositoryDiscovery(themeRepo, logger),
	)

	cssCache := services.NewCSSCache(cfg.Themes.CSSCacheTTL)
	go cssCache.RunCleanup(ctx, 10*time.Minute)

	hub := services.NewWebSocketHub(logger.WithField("component", "websocket"))
	go hub.Run(ctx)

	themeService := services.NewThemeService(loader, discovery, themeRepo, resolver,
		services.WithCSSCache(cssCache),
		services.WithHub(hub),
		services.WithServiceLogger(logger),
		services.WithDefaultTheme(cfg.Themes.Default),
	)

	result, err := themeService.Reload(ctx)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		logger.WithField("error", msg).Warn("Theme failed to load")
	}

	// Initialize handlers
	themeHandler := handlers.NewThemeHandler(themeService, logger)
	healthHandler := handlers.NewHealthHandler(themeService, db)
	wsHandler := handlers.NewWebSocketHandler(hub, logger)

	httpMetrics, err := observability.NewHTTPMetrics()
	if err != nil {
		return err
	}

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.TracingMiddleware("themeorama-server"))
	r.Use(observability.MetricsMiddleware(httpMetrics))

	// Routes
	r.Get("/health", healthHandler.HealthCheck)
	r.Get("/api/health", healthHandler.HealthCheck)
	r.Get("/api/version", handlers.VersionHandler)
	r.Get("/ws", wsHandler.HandleConnection)

	r.Route("/api/themes", func(r chi.Router) {
		r.Get("/", themeHandler.ListThemes)
		r.Get("/default", themeHandler.GetDefaultTheme)
		r.Get("/{name}", themeHandler.GetTheme)
		r.Get("/{name}/css", themeHandler.GetThemeCSS)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(custommw.AdminKeyAuth(cfg.Security.AdminKeyHash, cfg.Security.APIKeyHeader))
		r.Post("/themes", themeHandler.ImportTheme)
		r.Delete("/themes/{name}", themeHandler.DeleteTheme)
		r.Post("/themes/reload", themeHandler.ReloadThemes)
		r.Post("/cache/invalidate", themeHandler.InvalidateCache)
	})

	if cfg.Themes.ImageMode == services.ImageModeURL {
		assetPrefix := strings.TrimSuffix(cfg.Themes.AssetBaseURL, "/")
		assets := http.StripPrefix(assetPrefix, http.FileServer(assetFS{http.Dir(filepath.Clean(cfg.Themes.Directory))}))
		r.Handle(assetPrefix+"/*", assets)
	}

	// Create server
	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("address", cfg.ServerAddress).
			WithField("themes", result.Count).
			WithField("themes_dir", cfg.Themes.Directory).
			Info("Themeorama server starting")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("Server stopped")
	return nil
}

// assetFS serves theme image files only; theme documents and directory listings stay private
type assetFS struct {
	fs http.FileSystem
}

func (a assetFS) Open(name string) (http.File, error) {
	if !services.IsSupportedImage(name) {
		return nil, os.ErrNotExist
	}
	return a.fs.Open(name)
}
