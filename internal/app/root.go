package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/gitpm/internal/config"
	"github.com/blackwell-systems/gitpm/internal/log"
)

var (
	configDir string
	dbPath    string
	verbose   bool

	// RootCmd is the root command for gitpm
	RootCmd = &cobra.Command{
		Use:   "gitpm",
		Short: "Install packages from git links and keep their dependencies in step",
		Long: `gitpm installs packages from git links and registry references.

Installing a git package scans its package.json for "gitdependencies" and
installs every listed link as well, following dependencies of dependencies.
Operations run one at a time; the installed package list is refreshed after
every change.

Quick Start:
  1. gitpm add https://example.com/org/tools.git#v1.2.0
  2. gitpm list
  3. gitpm update --all-git

Features:
  • Recursive gitdependencies installation
  • Registry packages with engine-compatible version checks
  • Automatic snapshot before removals and bulk updates
  • One-command rollback with undo
  • Serve mode that follows a links file

Examples:
  # Install a package and its gitdependencies
  gitpm add https://example.com/org/tools.git

  # Show installed packages and available updates
  gitpm list

  # Reinstall every git package from its source
  gitpm update --all-git --yes

  # Undo the last bulk change
  gitpm undo latest`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "config directory (default: ~/.config/gitpm)")
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default: <config-dir>/gitpm.db)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2

	RootCmd.AddCommand(addCmd)
	RootCmd.AddCommand(removeCmd)
	RootCmd.AddCommand(listCmd)
	RootCmd.AddCommand(searchCmd)
	RootCmd.AddCommand(updateCmd)
	RootCmd.AddCommand(historyCmd)
	RootCmd.AddCommand(undoCmd)
	RootCmd.AddCommand(serveCmd)
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

// loadConfig reads the configuration for the selected config directory and
// applies the global flags over it.
func loadConfig() (*config.Config, error) {
	dir := configDir
	if dir == "" {
		d, err := config.Dir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate config directory: %w", err)
		}
		dir = d
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}

	if verbose {
		log.SetLevel(log.LevelDebug)
	} else if cfg.LogLevel != "" {
		level, err := log.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		log.SetLevel(level)
	}

	return cfg, nil
}
