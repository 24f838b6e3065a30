package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/themeorama/server/internal/config"
	"github.com/themeorama/server/internal/handlers"
	"github.com/themeorama/server/internal/middleware"
	"github.com/themeorama/server/internal/models"
	"github.com/themeorama/server/internal/observability"
	"github.com/themeorama/server/internal/services"
)

type rootOptions struct {
	configPath string
	themesDir  string
	imageMode  string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "themectl",
		Short:         "themectl – inspect and resolve theme documents",
		Long:          "themectl validates theme documents, resolves inheritance the way the server does and renders theme stylesheets.",
		Version:       handlers.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default: $CONFIG_PATH or config.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.themesDir, "themes-dir", "", "Themes directory (overrides themes.directory)")
	rootCmd.PersistentFlags().StringVar(&opts.imageMode, "image-mode", "", "Background image handling: inline, url or none")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level written to stderr")

	rootCmd.AddCommand(
		newValidateCmd(),
		newResolveCmd(opts),
		newCSSCmd(opts),
		newListCmd(opts),
		newHashKeyCmd(),
	)
	return rootCmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file-or-dir>...",
		Short: "Validate theme documents",
		Long:  "Validate theme documents. Each argument is a theme.json/theme.yaml file or a directory containing one.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				theme, err := readThemePath(path)
				if err != nil {
					failed++
					fmt.Fprintf(out, "FAIL  %s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(out, "ok    %s (%s)\n", path, theme.Name())
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d theme documents are invalid", failed, len(args))
			}
			return nil
		},
	}
}

func newResolveCmd(opts *rootOptions) *cobra.Command {
	var (
		output   string
		fallback bool
	)

	cmd := &cobra.Command{
		Use:   "resolve <name>",
		Short: "Print a fully resolved theme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := loadCatalogue(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			theme, err := lookup(cmd.Context(), loader, args[0], fallback)
			if err != nil {
				return err
			}
			return writeTheme(cmd.OutOrStdout(), theme, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "json", "Output format: json or yaml")
	cmd.Flags().BoolVar(&fallback, "fallback", false, "Serve the fallback theme when the name is unknown")
	return cmd
}

func newCSSCmd(opts *rootOptions) *cobra.Command {
	var fallback bool

	cmd := &cobra.Command{
		Use:   "css <name>",
		Short: "Render a theme as CSS custom properties",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := loadCatalogue(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			theme, err := lookup(cmd.Context(), loader, args[0], fallback)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), services.GenerateCSS(theme))
			return err
		},
	}
	cmd.Flags().BoolVar(&fallback, "fallback", false, "Serve the fallback theme when the name is unknown")
	return cmd
}

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List resolvable themes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := loadCatalogue(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDISPLAY NAME\tINHERITS\tMOST LIKE\tTAGS")
			for _, theme := range loader.GetThemes() {
				inherits := theme.Inherits()
				if inherits == "" {
					inherits = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					theme.Name(), theme.DisplayName(), inherits, theme.MostLike(), strings.Join(theme.Tags(), ","))
			}
			return w.Flush()
		},
	}
}

func newHashKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key [key]",
		Short: "Print the bcrypt hash for an admin API key",
		Long:  "Print the bcrypt hash to store as security.admin_key_hash. The key is read from stdin when no argument is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				key = strings.TrimRight(line, "\r\n")
			}

			hash, err := middleware.HashAdminKey(key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

// loadCatalogue resolves the built-in and directory themes. Load failures are reported on
// stderr and do not abort; the remaining themes stay usable.
func loadCatalogue(ctx context.Context, opts *rootOptions, stderr io.Writer) (*services.ThemeLoader, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	overrides := map[string]any{}
	if opts.themesDir != "" {
		overrides[config.KeyThemesDirectory] = opts.themesDir
	}
	if opts.imageMode != "" {
		overrides[config.KeyThemesImageMode] = opts.imageMode
	}
	cfg, err := config.Load(config.WithConfigFile(opts.configPath), config.WithOverrides(overrides))
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger("themectl", observability.ParseLevel(opts.logLevel))
	logger.SetOutput(stderr)

	resolver, err := services.NewImageResolver(services.ImageResolverConfig{
		Mode:         cfg.Themes.ImageMode,
		ThemesDir:    cfg.Themes.Directory,
		AssetBaseURL: cfg.Themes.AssetBaseURL,
		MaxDimension: cfg.Themes.MaxImageDimension,
		Quality:      cfg.Themes.ImageQuality,
	})
	if err != nil {
		return nil, err
	}

	discovery := services.CombineDiscoveries(
		services.BuiltInDiscovery(),
		services.NewDirectoryDiscovery(cfg.Themes.Directory, logger),
	)
	themes, err := discovery.Discover(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "warning: %v\n", err)
	}

	loader := services.NewThemeLoader(services.NewThemeCache(),
		services.WithLoaderLogger(logger),
		services.WithLoadConcurrency(cfg.Themes.LoadConcurrency),
		services.WithImageTimeout(cfg.Themes.ImageTimeout),
	)
	if err := loader.LoadThemes(ctx, themes, resolver); err != nil {
		fmt.Fprintf(stderr, "warning: %v\n", err)
	}
	return loader, nil
}

func lookup(ctx context.Context, loader *services.ThemeLoader, name string, fallback bool) (models.Theme, error) {
	if fallback {
		return loader.GetThemeSafe(ctx, name), nil
	}
	theme, ok := loader.GetTheme(name)
	if !ok {
		return nil, fmt.Errorf("theme %q: %w", name, models.ErrThemeNotFound)
	}
	return theme, nil
}

func writeTheme(w io.Writer, theme models.Theme, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(theme)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(map[string]any(theme)); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want json or yaml)", format)
	}
}

// readThemePath parses a theme document file, or the document inside a theme directory
func readThemePath(path string) (models.Theme, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		theme, _, err := services.ReadThemeDir(path)
		return theme, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return services.ParseThemeDocument(data, filepath.Ext(path))
}
