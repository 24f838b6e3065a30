package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Configuration keys
const (
	KeyServerAddress = "server_address"

	KeyDatabasePath = "database.path"
	KeyDatabaseURL  = "database.url"

	KeyThemesDirectory       = "themes.directory"
	KeyThemesDefault         = "themes.default"
	KeyThemesLoadConcurrency = "themes.load_concurrency"
	KeyThemesImageMode       = "themes.image_mode"
	KeyThemesAssetBaseURL    = "themes.asset_base_url"
	KeyThemesMaxImageDim     = "themes.max_image_dimension"
	KeyThemesImageQuality    = "themes.image_quality"
	KeyThemesImageTimeout    = "themes.image_timeout"
	KeyThemesCSSCacheTTL     = "themes.css_cache_ttl"

	KeySecurityAdminKeyHash = "security.admin_key_hash"
	KeySecurityAPIKeyHeader = "security.api_key_header"

	KeyTelemetryEnabled        = "telemetry.enabled"
	KeyTelemetryEndpoint       = "telemetry.endpoint"
	KeyTelemetryServiceName    = "telemetry.service_name"
	KeyTelemetryEnvironment    = "telemetry.environment"
	KeyTelemetryInsecure       = "telemetry.insecure"
	KeyTelemetrySampleRatio    = "telemetry.sample_ratio"
	KeyTelemetryExportInterval = "telemetry.export_interval"
)

const (
	envPrefix         = "THEMEORAMA"
	defaultConfigPath = "config.yaml"
)

// Config holds all application configuration
type Config struct {
	ServerAddress string    `mapstructure:"server_address"`
	Database      Database  `mapstructure:"database"`
	Themes        Themes    `mapstructure:"themes"`
	Security      Security  `mapstructure:"security"`
	Telemetry     Telemetry `mapstructure:"telemetry"`
}

// Database configuration. A non-empty URL selects PostgreSQL over SQLite.
type Database struct {
	Path string `mapstructure:"path"`
	URL  string `mapstructure:"url"`
}

// Themes configuration
type Themes struct {
	Directory         string        `mapstructure:"directory"`
	Default           string        `mapstructure:"default"`
	LoadConcurrency   int           `mapstructure:"load_concurrency"`
	ImageMode         string        `mapstructure:"image_mode"`
	AssetBaseURL      string        `mapstructure:"asset_base_url"`
	MaxImageDimension int           `mapstructure:"max_image_dimension"`
	ImageQuality      int           `mapstructure:"image_quality"`
	ImageTimeout      time.Duration `mapstructure:"image_timeout"`
	CSSCacheTTL       time.Duration `mapstructure:"css_cache_ttl"`
}

// Security configuration
type Security struct {
	// AdminKeyHash is the bcrypt hash of the admin API key; empty disables the admin routes
	AdminKeyHash string `mapstructure:"admin_key_hash"`
	APIKeyHeader string `mapstructure:"api_key_header"`
}

// Telemetry configuration for the OTLP gRPC exporters
type Telemetry struct {
	Enabled        bool          `mapstructure:"enabled"`
	Endpoint       string        `mapstructure:"endpoint"`
	ServiceName    string        `mapstructure:"service_name"`
	Environment    string        `mapstructure:"environment"`
	Insecure       bool          `mapstructure:"insecure"`
	SampleRatio    float64       `mapstructure:"sample_ratio"`
	ExportInterval time.Duration `mapstructure:"export_interval"`
}

// UsePostgres returns true if PostgreSQL should be used
func (c *Config) UsePostgres() bool {
	return c.Database.URL != ""
}

// AdminEnabled reports whether an admin key is configured
func (c *Config) AdminEnabled() bool {
	return c.Security.AdminKeyHash != ""
}

type loadSettings struct {
	configPath string
	overrides  map[string]any
}

// Option configures Load. Useful for tests and CLI flags.
type Option func(*loadSettings)

// WithConfigFile reads configuration from path instead of $CONFIG_PATH or config.yaml
func WithConfigFile(path string) Option {
	return func(s *loadSettings) {
		s.configPath = path
	}
}

// WithOverrides applies values on top of file and environment, typically from CLI flags
func WithOverrides(overrides map[string]any) Option {
	return func(s *loadSettings) {
		s.overrides = overrides
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyServerAddress, ":8080")
	v.SetDefault(KeyDatabasePath, "themes.db")
	v.SetDefault(KeyDatabaseURL, "")
	v.SetDefault(KeyThemesDirectory, "./themes")
	v.SetDefault(KeyThemesDefault, "light")
	v.SetDefault(KeyThemesLoadConcurrency, 4)
	v.SetDefault(KeyThemesImageMode, "inline")
	v.SetDefault(KeyThemesAssetBaseURL, "/theme-assets")
	v.SetDefault(KeyThemesMaxImageDim, 1920)
	v.SetDefault(KeyThemesImageQuality, 85)
	v.SetDefault(KeyThemesImageTimeout, 10*time.Second)
	v.SetDefault(KeyThemesCSSCacheTTL, time.Hour)
	v.SetDefault(KeySecurityAdminKeyHash, "")
	v.SetDefault(KeySecurityAPIKeyHeader, "X-API-Key")
	v.SetDefault(KeyTelemetryEnabled, false)
	v.SetDefault(KeyTelemetryEndpoint, "localhost:4317")
	v.SetDefault(KeyTelemetryServiceName, "themeorama-server")
	v.SetDefault(KeyTelemetryEnvironment, "development")
	v.SetDefault(KeyTelemetryInsecure, true)
	v.SetDefault(KeyTelemetrySampleRatio, 1.0)
	v.SetDefault(KeyTelemetryExportInterval, 30*time.Second)
}

// Load builds the configuration with the precedence:
// defaults < config file < environment variables (THEMEORAMA_*) < overrides.
func Load(opts ...Option) (*Config, error) {
	settings := loadSettings{}
	for _, opt := range opts {
		opt(&settings)
	}

	configPath := strings.TrimSpace(settings.configPath)
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath == "" {
		configPath = defaultConfigPath
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := mergeConfigFile(v, configPath); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	for k, val := range settings.overrides {
		v.Set(k, val)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func mergeConfigFile(v *viper.Viper, path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		v.SetConfigType("json")
	default:
		v.SetConfigType("yaml")
	}
	if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.ServerAddress == "" {
		errs = append(errs, errors.New("server_address must not be empty"))
	}
	if !c.UsePostgres() && c.Database.Path == "" {
		errs = append(errs, errors.New("database.path must be set when database.url is empty"))
	}
	if c.Themes.Default == "" {
		errs = append(errs, errors.New("themes.default must not be empty"))
	}
	if c.Themes.LoadConcurrency < 1 {
		errs = append(errs, fmt.Errorf("themes.load_concurrency must be at least 1, got %d", c.Themes.LoadConcurrency))
	}
	switch c.Themes.ImageMode {
	case "inline", "url", "none":
	default:
		errs = append(errs, fmt.Errorf("themes.image_mode must be inline, url or none, got %q", c.Themes.ImageMode))
	}
	if c.Themes.ImageMode == "url" && !strings.HasPrefix(c.Themes.AssetBaseURL, "/") {
		errs = append(errs, fmt.Errorf("themes.asset_base_url must be an absolute path, got %q", c.Themes.AssetBaseURL))
	}
	if c.Themes.ImageQuality < 1 || c.Themes.ImageQuality > 100 {
		errs = append(errs, fmt.Errorf("themes.image_quality must be between 1 and 100, got %d", c.Themes.ImageQuality))
	}
	if c.Themes.ImageTimeout < 0 {
		errs = append(errs, errors.New("themes.image_timeout must not be negative"))
	}
	if c.Themes.CSSCacheTTL <= 0 {
		errs = append(errs, errors.New("themes.css_cache_ttl must be positive"))
	}
	if c.Security.AdminKeyHash != "" && !strings.HasPrefix(c.Security.AdminKeyHash, "$2") {
		errs = append(errs, errors.New("security.admin_key_hash must be a bcrypt hash"))
	}
	if c.Security.APIKeyHeader == "" {
		errs = append(errs, errors.New("security.api_key_header must not be empty"))
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			errs = append(errs, errors.New("telemetry.endpoint must be set when telemetry is enabled"))
		}
		if c.Telemetry.ServiceName == "" {
			errs = append(errs, errors.New("telemetry.service_name must be set when telemetry is enabled"))
		}
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_ratio must be between 0 and 1, got %v", c.Telemetry.SampleRatio))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
