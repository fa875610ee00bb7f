package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"github.com/chazu/miniplc0/manifest"

	_ "github.com/tliron/commonlog/simple"
)

// Version information (set at build time).
var Version = "0.1.0"

var log = commonlog.GetLogger("plc0.cli")

// manifestKey is used to store the loaded configuration in context.
type manifestKey struct{}

func newRootCmd() *cobra.Command {
	var (
		projectDir string
		verbosity  int
		logFile    string
		noCache    bool
	)

	rootCmd := &cobra.Command{
		Use:   "plc0",
		Short: "miniplc0 compiler and stack machine",
		Long: `plc0 compiles miniplc0 programs to stack machine code and runs them.

Configuration is read from the nearest plc0.toml at or above the project
directory. Command-line flags override file values.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "init" {
				return nil
			}

			m, err := loadManifest(projectDir)
			if err != nil {
				return err
			}

			flags := cmd.Root().PersistentFlags()
			if flags.Changed("verbose") {
				m.Log.Verbosity = verbosity
			}
			if flags.Changed("log-file") {
				m.Log.File = logFile
			}
			if noCache {
				m.Cache.Enabled = false
			}

			var path *string
			if f := m.LogFile(); f != "" {
				path = &f
			}
			commonlog.Configure(m.Log.Verbosity, path)
			log.Debugf("project directory %s", m.Dir)

			cmd.SetContext(context.WithValue(cmd.Context(), manifestKey{}, m))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&projectDir, "project", "C", ".", "directory to search for plc0.toml")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "log verbosity (repeat for more)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to file instead of stderr")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "disable the compiled-program cache")

	rootCmd.AddCommand(newTokensCommand())
	rootCmd.AddCommand(newCompileCommand())
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newExecCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newCacheCommand())
	rootCmd.AddCommand(newLSPCommand())
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// loadManifest finds plc0.toml at or above dir, falling back to defaults
// rooted at dir.
func loadManifest(dir string) (*manifest.Manifest, error) {
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if m != nil {
		return m, nil
	}

	m = manifest.Default()
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	m.Dir = abs
	return m, nil
}

// getManifest retrieves the configuration from the command context.
func getManifest(ctx context.Context) *manifest.Manifest {
	if m, ok := ctx.Value(manifestKey{}).(*manifest.Manifest); ok {
		return m
	}
	return manifest.Default()
}
