// Package cmd provides the CLI commands for findex.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/findex-dev/findex/internal/config"
	"github.com/findex-dev/findex/internal/logging"
	"github.com/findex-dev/findex/pkg/version"
)

var (
	flagDir        string
	flagDebug      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the findex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "findex",
		Short: "Local hybrid search over your documents",
		Long: `findex indexes documents locally and searches them with a
hybrid of keyword (BM25) and vector similarity ranking.

Large documents are split into overlapping chunks so results point at
the relevant part of a document, not just the document itself.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("findex version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&flagDir, "dir", "", "Project directory (default: current directory)")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newRemoveCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupLogging installs the process logger. A terminal gets the
// human-readable text handler; pipes and files get JSON.
func setupLogging(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	if flagDebug {
		logCfg.Level = "debug"
	}
	logCfg.TextHandler = isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())

	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	loggingCleanup = cleanup
	return nil
}

// projectDir resolves the working project directory from flags.
func projectDir() (string, error) {
	if flagDir != "" {
		return filepath.Abs(flagDir)
	}
	return os.Getwd()
}

// loadConfig loads configuration for the resolved project directory.
func loadConfig() (*config.Config, string, error) {
	dir, err := projectDir()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, "", err
	}
	return cfg, dir, nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
