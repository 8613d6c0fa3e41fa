// ABOUTME: CLI command for copying tracker data between storage backends.
// ABOUTME: Opens the source and destination stores and copies every table.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/harperreed/trackle/internal/config"
	"github.com/harperreed/trackle/internal/storage"
	"github.com/spf13/cobra"
)

var (
	migrateFrom    string
	migrateTo      string
	migrateFromDir string
	migrateToDir   string
	migrateForce   bool
	migrateDryRun  bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy data between storage backends",
	Long: `Copy every table from one storage backend to another.

Both backends use the configured data directory and database name unless
--from-dir or --to-dir say otherwise. Days already present in the
destination are replaced by the source version.

IMPORTANT:

  - The destination must be empty unless --force is given
  - Run with --dry-run first to see what would be copied
  - Nothing is deleted from the source

USAGE:

  trackle migrate --from badger --to sqlite --dry-run
  trackle migrate --from badger --to sqlite
  trackle migrate --from sqlite --to charm --force`,
	Annotations: map[string]string{noStore: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if migrateFrom == "" || migrateTo == "" {
			return fmt.Errorf("both --from and --to are required")
		}
		src := migrateConfig(migrateFrom, migrateFromDir)
		dst := migrateConfig(migrateTo, migrateToDir)
		if src.GetBackend() == dst.GetBackend() && src.GetDataDir() == dst.GetDataDir() && src.GetBackend() != config.BackendMemory {
			return fmt.Errorf("source and destination are the same database")
		}

		srcStore, _, err := src.OpenStore(ctx, logger)
		if err != nil {
			return fmt.Errorf("failed to open source: %w", err)
		}
		defer srcStore.Close()

		if migrateDryRun {
			color.Yellow("Dry run mode - no changes will be made")
			tables, err := srcStore.GetAllTableData(ctx)
			if err != nil {
				return fmt.Errorf("failed to read source: %w", err)
			}
			fmt.Fprintf(out, "Would copy from %s to %s:\n", src.GetBackend(), dst.GetBackend())
			for _, table := range sortedKeys(tables) {
				fmt.Fprintf(out, "  %s %d records\n", padRight(table, 12), len(tables[table]))
			}
			return nil
		}

		hasData, err := destinationHasData(dst)
		if err != nil {
			return err
		}
		if hasData && !migrateForce {
			return fmt.Errorf("destination %s already has data (use --force to merge into it)", dst.GetBackend())
		}

		dstStore, _, err := dst.OpenStore(ctx, logger)
		if err != nil {
			return fmt.Errorf("failed to open destination: %w", err)
		}
		defer dstStore.Close()

		summary, err := storage.MigrateData(ctx, srcStore, dstStore)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		fmt.Fprintln(out, color.GreenString("✓ Migrated %d records from %s to %s", summary.Total(), src.GetBackend(), dst.GetBackend()))
		for _, table := range sortedKeys(summary.Tables) {
			fmt.Fprintf(out, "  %s %d\n", padRight(table, 12), summary.Tables[table])
		}
		return nil
	},
}

// migrateConfig copies the loaded config with another backend and data dir.
func migrateConfig(backendName, dataDir string) *config.Config {
	c := *cfg
	c.Backend = backendName
	if dataDir != "" {
		c.DataDir = dataDir
	}
	return &c
}

// destinationHasData reports whether the destination database exists on disk
// with content. Charm and memory destinations are never considered populated.
func destinationHasData(c *config.Config) (bool, error) {
	base := filepath.Join(c.GetDataDir(), c.GetDBName())
	switch c.GetBackend() {
	case config.BackendBadger:
		return storage.IsDirNonEmpty(base)
	case config.BackendLevelDB:
		return storage.IsDirNonEmpty(base + ".ldb")
	case config.BackendSQLite:
		info, err := os.Stat(base + ".db")
		if err != nil {
			if os.IsNotExist(err) {
				return false, nil
			}
			return false, err
		}
		return info.Size() > 0, nil
	default:
		return false, nil
	}
}

func init() {
	migrateCmd.Flags().StringVar(&migrateFrom, "from", "", "source backend")
	migrateCmd.Flags().StringVar(&migrateTo, "to", "", "destination backend")
	migrateCmd.Flags().StringVar(&migrateFromDir, "from-dir", "", "source data directory")
	migrateCmd.Flags().StringVar(&migrateToDir, "to-dir", "", "destination data directory")
	migrateCmd.Flags().BoolVar(&migrateForce, "force", false, "copy into a destination that already has data")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "preview migration without making changes")
	rootCmd.AddCommand(migrateCmd)
}
