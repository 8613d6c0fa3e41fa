// ABOUTME: CLI commands for viewing and changing the config file.
// ABOUTME: Supports show and set for backend, data_dir, db_name, log_level, and charm_host.
package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/harperreed/trackle/internal/config"
	"github.com/harperreed/trackle/internal/logging"
	"github.com/spf13/cobra"
)

// configSetters maps config keys to their setters.
var configSetters = map[string]func(c *config.Config, value string) error{
	"backend": func(c *config.Config, value string) error {
		for _, b := range config.Backends {
			if b == value {
				c.Backend = value
				return nil
			}
		}
		return fmt.Errorf("unknown backend: %q", value)
	},
	"data_dir": func(c *config.Config, value string) error {
		c.DataDir = value
		return nil
	},
	"db_name": func(c *config.Config, value string) error {
		c.DBName = value
		return nil
	},
	"log_level": func(c *config.Config, value string) error {
		if _, err := logging.New(io.Discard, value); err != nil {
			return err
		}
		c.LogLevel = value
		return nil
	},
	"charm_host": func(c *config.Config, value string) error {
		c.CharmHost = value
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change configuration",
	Long: fmt.Sprintf(`Show or change the trackle config file.

The file lives at $XDG_CONFIG_HOME/trackle/config.json. Environment
variables (TRACKLE_BACKEND, TRACKLE_DATA_DIR, TRACKLE_DB_NAME,
TRACKLE_LOG_LEVEL, TRACKLE_CHARM_HOST) override it, and flags override both.

The default log level is %s.`, logging.DefaultLevel),
	Annotations: map[string]string{noStore: "true"},
}

var configShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Show the effective configuration",
	Annotations: map[string]string{noStore: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		faint := color.New(color.Faint)
		fmt.Fprintln(out, faint.Sprint("# "+config.GetConfigPath()))

		effective := map[string]string{
			"backend":    cfg.GetBackend(),
			"data_dir":   cfg.GetDataDir(),
			"db_name":    cfg.GetDBName(),
			"log_level":  cfg.GetLogLevel(),
			"charm_host": charmHost(),
		}
		data, err := json.MarshalIndent(effective, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:         "set <key> <value>",
	Short:       "Set a config value",
	Args:        cobra.ExactArgs(2),
	Annotations: map[string]string{noStore: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		set, ok := configSetters[key]
		if !ok {
			return fmt.Errorf("unknown config key: %s (valid: %v)", key, sortedKeys(configSetters))
		}

		// Flags must not leak into the saved file.
		onDisk, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := set(onDisk, value); err != nil {
			return err
		}
		if err := onDisk.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("✓ Set %s = %s", key, value))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}
