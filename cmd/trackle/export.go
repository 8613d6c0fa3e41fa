// ABOUTME: CLI commands for exporting and importing tracker data.
// ABOUTME: Supports JSON, YAML, and Markdown export formats.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/harperreed/trackle/internal/models"
	"github.com/harperreed/trackle/internal/storage"
	"github.com/spf13/cobra"
)

var (
	exportOutput string
	exportSave   bool
	exportTable  string
	exportSince  string
)

var exportCmd = &cobra.Command{
	Use:   "export <format>",
	Short: "Export tracker data",
	Long: `Export tracker data in various formats.

FORMATS:

  json       Full JSON export (suitable for backup/restore)
  yaml       YAML export (human-readable)
  markdown   Markdown tables (for documentation/sharing)

OPTIONS:

  --output, -o   Write to file instead of stdout
  --save         Write to trackle-data.json in the current directory
  --table, -t    Only this table (markdown only)
  --since        Only include days since this date (markdown only)

EXAMPLES:

  trackle export json                          # Export all data as JSON
  trackle export json --save                   # Save to trackle-data.json
  trackle export json -o backup.json           # Save to file
  trackle export yaml                          # Export as YAML
  trackle export markdown --table health       # Health table as Markdown
  trackle export markdown --since 2024-01-01   # Days from 2024 onward`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"json", "yaml", "markdown"},
	RunE: func(cmd *cobra.Command, args []string) error {
		format := args[0]
		ctx := cmd.Context()

		var data []byte
		var err error

		switch format {
		case "json":
			data, err = storage.ExportJSON(ctx, store)
		case "yaml":
			data, err = storage.ExportYAML(ctx, store)
		case "markdown":
			if exportSince != "" && !models.IsValidDate(exportSince) {
				return fmt.Errorf("invalid date format: %s (use YYYY-MM-DD)", exportSince)
			}
			md, mdErr := storage.ExportMarkdown(ctx, store, exportTable, exportSince)
			data, err = []byte(md), mdErr
		default:
			return fmt.Errorf("unknown format: %s (use json, yaml, or markdown)", format)
		}

		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		output := exportOutput
		if exportSave && output == "" {
			output = storage.DefaultExportFile
		}
		if output != "" {
			if err := os.WriteFile(output, data, 0600); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("✓ Exported to %s", output))
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
		}

		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import tracker data from JSON",
	Long: `Import tracker data from a JSON backup file.

Accepts files written by 'trackle export json' and plain objects mapping
table names to record arrays. Days that already exist are replaced.

EXAMPLES:

  trackle import trackle-data.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := args[0]

		data, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		n, err := storage.ImportJSON(cmd.Context(), store, data)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("✓ Imported %d records from %s", n, filename))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
	exportCmd.Flags().BoolVar(&exportSave, "save", false, "write to "+storage.DefaultExportFile)
	exportCmd.Flags().StringVarP(&exportTable, "table", "t", "", "only this table (markdown only)")
	exportCmd.Flags().StringVar(&exportSince, "since", "", "only include days since date (YYYY-MM-DD)")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
