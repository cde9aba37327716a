package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/starforge/starforge/pkg/loader"
	"github.com/starforge/starforge/pkg/telemetry"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "forge",
		Short: "StarForge - Typed build file loader",
		Long: `StarForge evaluates Starlark build files into typed rules.

Features:
  - Label parsing and package-relative resolution
  - Declared attribute types with strict conversion
  - Configurable attributes via select() with ordered concatenation
  - Fileset entry manifests
  - Canonical value printing for stable output`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newEvalCommand())
	rootCmd.AddCommand(newDepsCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newWatchCommand(version))

	return rootCmd
}

// loadToolConfig resolves the effective tool configuration: the --config
// path if given, otherwise .forge.yaml in the working directory if present,
// otherwise defaults.
func loadToolConfig() (*loader.ToolConfig, error) {
	if configPath != "" {
		return loader.LoadToolConfig(configPath)
	}
	if _, err := os.Stat(".forge.yaml"); err == nil {
		return loader.LoadToolConfig(".forge.yaml")
	}
	return loader.DefaultToolConfig(), nil
}

// newLoader builds a loader from the effective configuration.
func newLoader() (*loader.Loader, error) {
	cfg, err := loadToolConfig()
	if err != nil {
		return nil, err
	}
	opts, err := cfg.LoaderOptions()
	if err != nil {
		return nil, err
	}
	logger := log.Logger
	if verbose {
		logger = logger.Level(zerolog.DebugLevel)
	}
	return loader.NewLoader(logger, opts)
}

// newInstrumentedLoader builds a loader with full telemetry attached. The
// returned telemetry instance must be shut down by the caller.
func newInstrumentedLoader(version string) (*loader.Loader, *telemetry.Telemetry, error) {
	cfg, err := loadToolConfig()
	if err != nil {
		return nil, nil, err
	}
	opts, err := cfg.LoaderOptions()
	if err != nil {
		return nil, nil, err
	}

	tcfg := cfg.TelemetryConfig(version)
	if verbose {
		tcfg.Logging.Level = "debug"
	}
	tel, err := telemetry.NewTelemetry(tcfg)
	if err != nil {
		return nil, nil, err
	}

	l, err := loader.NewLoader(tel.Logger.Zerolog(), opts)
	if err != nil {
		return nil, nil, err
	}
	l.SetTelemetry(tel)
	return l, tel, nil
}
