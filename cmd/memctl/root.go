package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nanobridge/orchestrator/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "memctl",
	Short: "Inspect and maintain a gateway workspace's memory store and sessions",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: config.json or $NANOBRIDGE_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(memoryCmd())
	rootCmd.AddCommand(sessionCmd())
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("NANOBRIDGE_CONFIG"); v != "" {
		return v
	}
	return "config.json"
}

// loadConfig loads config.json the same way the gateway binary does, so
// memctl points at the same workspace and memory.db/sessions paths a
// running gateway would use.
func loadConfig() *config.Config {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "memctl: failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func workspaceDir(cfg *config.Config) string {
	return config.ExpandHome(cfg.Agents.Defaults.Workspace)
}

func memoryDBPath(cfg *config.Config) string {
	return filepath.Join(workspaceDir(cfg), "memory.db")
}

func sessionsDir(cfg *config.Config) string {
	if cfg.Sessions.Storage == "" {
		return filepath.Join(workspaceDir(cfg), "sessions")
	}
	return config.ExpandHome(cfg.Sessions.Storage)
}
