// ABOUTME: CLI commands for Charm-based sync.
// ABOUTME: Supports status, now, and reset for the charm backend.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/trackle/internal/charm"
	"github.com/harperreed/trackle/internal/config"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	Aliases: []string{"s"},
	Short:   "Sync tracker data across devices",
	Long: `Sync tracker data across devices using Charm Cloud.

These commands work with the charm backend. Select it per command with
--backend charm or for good with 'trackle config set backend charm'.

Data is E2E encrypted with your SSH key before upload, and syncs
automatically after each write.

COMMANDS:

  status      Show sync status and account info
  now         Sync immediately
  reset       Reset local data and restore from cloud (destructive)`,
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := charmBackend(); err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		id, err := charm.ID()
		if err != nil {
			color.Yellow("Not linked to Charm")
			fmt.Fprintln(out, "\nRun 'charm link' to connect this device.")
			return nil
		}

		fmt.Fprintln(out, "Charm ID:", id)
		fmt.Fprintln(out, "Server:", charmHost())
		fmt.Fprintln(out)

		tables, err := store.GetAllTableData(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to read tables: %w", err)
		}
		fmt.Fprintln(out, color.GreenString("✓ Connected to Charm"))
		for _, table := range sortedKeys(tables) {
			fmt.Fprintf(out, "  %s %d records\n", padRight(table, 12), len(tables[table]))
		}
		return nil
	},
}

var syncNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Sync immediately",
	RunE: func(cmd *cobra.Command, args []string) error {
		cb, err := charmBackend()
		if err != nil {
			return err
		}
		if err := cb.Sync(); err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("✓ Synced with %s", charmHost()))
		return nil
	},
}

var syncResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset local data and restore from cloud",
	Long: `Delete all local data and restore from Charm Cloud.

This is a destructive operation. All local data will be lost and restored from cloud.
Use this to:
- Fix sync conflicts
- Reset a device to cloud state
- Start fresh on a device`,
	Annotations: map[string]string{noStore: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "This will DELETE all local tracker data and restore from cloud.")
		fmt.Fprint(out, "Continue? [y/N]: ")
		var confirm string
		_, _ = fmt.Fscanln(cmd.InOrStdin(), &confirm)
		if confirm != "y" && confirm != "Y" {
			fmt.Fprintln(out, "Canceled.")
			return nil
		}

		if err := charm.Reset(cfg.GetDBName(), cfg.CharmHost); err != nil {
			return fmt.Errorf("reset failed: %w", err)
		}

		fmt.Fprintln(out, color.GreenString("✓ Local data reset and restored from cloud"))
		return nil
	},
}

// charmBackend returns the open backend when it is the charm backend.
func charmBackend() (*charm.Backend, error) {
	cb, ok := backend.(*charm.Backend)
	if !ok {
		return nil, fmt.Errorf("sync needs the %s backend (current: %s)", config.BackendCharm, cfg.GetBackend())
	}
	return cb, nil
}

func charmHost() string {
	if cfg.CharmHost != "" {
		return cfg.CharmHost
	}
	return charm.DefaultHost
}

func init() {
	syncCmd.AddCommand(syncStatusCmd)
	syncCmd.AddCommand(syncNowCmd)
	syncCmd.AddCommand(syncResetCmd)
	rootCmd.AddCommand(syncCmd)
}
