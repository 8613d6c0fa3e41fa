// ABOUTME: Root Cobra command for trackle CLI.
// ABOUTME: Loads config and handles the store lifecycle via PersistentPre/PostRunE.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/harperreed/trackle/internal/config"
	"github.com/harperreed/trackle/internal/logging"
	"github.com/harperreed/trackle/internal/storage"
	"github.com/spf13/cobra"
)

// noStore marks commands that manage their own storage, or need none.
const noStore = "trackle/no-store"

var (
	cfg     *config.Config
	logger  *log.Logger
	store   *storage.Store
	backend storage.Backend

	flagBackend  string
	flagDataDir  string
	flagDB       string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "trackle",
	Short: "Daily health, activity, and consumption tracker",
	Long: `Trackle keeps one record per day in three tables.

TABLES:

  health        body metrics such as bmi, weight, and water (indexed)
  activities    what you did: steps, run_km, workouts
  consumption   what you ate and drank: kcal, coffee, alcohol

QUICK START:

  $ trackle add health-weight=81.2 health-water=2 activities-steps=9000
  $ trackle add --date 2024-01-05 consumption-kcal=2100
  $ trackle list health                   # One row per day, oldest first
  $ trackle get health 2024-01-05         # One day
  $ trackle lookup health weight 81.2     # Days with that weight

STORAGE:

  Backends: badger (default), leveldb, sqlite, charm, memory.
  Data lives in ~/.local/share/trackle unless --data-dir or the config
  file says otherwise. The charm backend syncs through Charm Cloud.

MCP INTEGRATION:

  Run 'trackle mcp' to serve the tracker over the Model Context Protocol:

  {
    "mcpServers": {
      "trackle": { "command": "trackle", "args": ["mcp"] }
    }
  }`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		if cmd.Name() == "help" || cmd.Annotations[noStore] == "true" {
			return nil
		}

		var err error
		store, backend, err = cfg.OpenStore(cmd.Context(), logger)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeStore()
	},
}

// Execute runs the root command. The store is closed even when a command
// fails, since cobra skips post-run hooks on error.
func Execute() error {
	err := rootCmd.Execute()
	if cerr := closeStore(); err == nil {
		err = cerr
	}
	return err
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if flagBackend != "" {
		cfg.Backend = flagBackend
	}
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	if flagDB != "" {
		cfg.DBName = flagDB
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}

	logger, err = logging.New(os.Stderr, cfg.GetLogLevel())
	if err != nil {
		return err
	}
	return nil
}

func closeStore() error {
	if store == nil {
		return nil
	}
	err := store.Close()
	store = nil
	backend = nil
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "storage backend: badger, leveldb, sqlite, charm, memory")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default ~/.local/share/trackle)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database name (default tracker)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
}
