package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/themeorama/server/internal/models"
	"github.com/themeorama/server/internal/observability"
	"github.com/themeorama/server/internal/repository"
)

// ThemeDiscovery produces the unresolved theme documents that make up the catalogue
type ThemeDiscovery interface {
	Discover(ctx context.Context) ([]models.Theme, error)
}

// DiscoveryFunc adapts a function to ThemeDiscovery
type DiscoveryFunc func(ctx context.Context) ([]models.Theme, error)

// Discover calls f
func (f DiscoveryFunc) Discover(ctx context.Context) ([]models.Theme, error) {
	return f(ctx)
}

// BuiltInDiscovery yields the themes shipped with the server
func BuiltInDiscovery() ThemeDiscovery {
	return DiscoveryFunc(func(ctx context.Context) ([]models.Theme, error) {
		return models.BuiltInThemes(), nil
	})
}

// ThemeFileNames are the document names looked up in each theme directory, in order
var ThemeFileNames = []string{"theme.json", "theme.yaml", "theme.yml"}

// DirectoryDiscovery reads <root>/<name>/theme.{json,yaml,yml}. Documents that fail validation
// or whose name does not match their directory are logged and skipped.
type DirectoryDiscovery struct {
	root   string
	logger *observability.Logger
}

// NewDirectoryDiscovery creates a discovery over a themes directory
func NewDirectoryDiscovery(root string, logger *observability.Logger) *DirectoryDiscovery {
	if logger == nil {
		logger = observability.GetLogger()
	}
	return &DirectoryDiscovery{root: root, logger: logger}
}

// Discover implements ThemeDiscovery. A missing root directory yields no themes.
func (d *DirectoryDiscovery) Discover(ctx context.Context) ([]models.Theme, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			d.logger.WithField("directory", d.root).Warn("Themes directory does not exist")
			return nil, nil
		}
		return nil, fmt.Errorf("read themes directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var themes []models.Theme
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() {
			continue
		}

		dir := filepath.Join(d.root, entry.Name())
		theme, file, err := ReadThemeDir(dir)
		if err != nil {
			d.logger.WithField("directory", dir).WithError(err).Warn("Skipping theme directory")
			continue
		}
		if theme.Name() != entry.Name() {
			d.logger.WithField("file", file).
				WithField("theme", theme.Name()).
				Warnf("Skipping theme: name must match directory %q", entry.Name())
			continue
		}
		themes = append(themes, theme)
	}

	d.logger.WithField("directory", d.root).Infof("Discovered %d themes", len(themes))
	return themes, nil
}

// ReadThemeDir reads and validates the first theme document found in dir
func ReadThemeDir(dir string) (models.Theme, string, error) {
	for _, name := range ThemeFileNames {
		file := filepath.Join(dir, name)
		data, err := os.ReadFile(file)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, file, err
		}
		theme, err := ParseThemeDocument(data, filepath.Ext(name))
		return theme, file, err
	}
	return nil, "", fmt.Errorf("no theme document in %s", dir)
}

// ParseThemeDocument validates a JSON or YAML theme document. YAML is re-encoded as JSON first
// so both formats yield the same value types.
func ParseThemeDocument(data []byte, ext string) (models.Theme, error) {
	switch ext {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, &models.ValidationError{Reason: "The theme must be valid YAML", Err: err}
		}
		encoded, err := json.Marshal(doc)
		if err != nil {
			return nil, &models.ValidationError{Reason: "The theme must be a valid JSON object", Err: err}
		}
		return models.ValidateTheme(encoded)
	default:
		return models.ValidateTheme(data)
	}
}

// RepositoryDiscovery yields user-imported themes from the database, flagged as user themes.
// Stored documents that no longer validate are logged and skipped.
type RepositoryDiscovery struct {
	repo   repository.ThemeRepository
	logger *observability.Logger
}

// NewRepositoryDiscovery creates a discovery over stored user themes
func NewRepositoryDiscovery(repo repository.ThemeRepository, logger *observability.Logger) *RepositoryDiscovery {
	if logger == nil {
		logger = observability.GetLogger()
	}
	return &RepositoryDiscovery{repo: repo, logger: logger}
}

// Discover implements ThemeDiscovery
func (d *RepositoryDiscovery) Discover(ctx context.Context) ([]models.Theme, error) {
	records, err := d.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stored themes: %w", err)
	}

	themes := make([]models.Theme, 0, len(records))
	for _, record := range records {
		theme, err := models.ValidateTheme(record.Document)
		if err != nil {
			d.logger.WithField("theme", record.Name).WithError(err).Warn("Skipping stored theme")
			continue
		}
		theme[models.FieldIsUserTheme] = true
		themes = append(themes, theme)
	}
	return themes, nil
}

// CombineDiscoveries runs each discovery in order and concatenates the results.
// Later sources win when names collide, since the loader keeps the last copy of a name.
// A failing source is skipped; the others still contribute and the failures are joined
// into the returned error.
func CombineDiscoveries(sources ...ThemeDiscovery) ThemeDiscovery {
	return DiscoveryFunc(func(ctx context.Context) ([]models.Theme, error) {
		var all []models.Theme
		var errs []error
		for _, source := range sources {
			if source == nil {
				continue
			}
			themes, err := source.Discover(ctx)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			all = append(all, themes...)
		}
		return all, errors.Join(errs...)
	})
}
