// ABOUTME: CLI command for recording a day's tracker data.
// ABOUTME: Takes namespaced form fields and submits one record per named table.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/trackle/internal/form"
	"github.com/harperreed/trackle/internal/models"
	"github.com/spf13/cobra"
)

var (
	addDate string
	addEdit bool
)

var addCmd = &cobra.Command{
	Use:     "add <table-field=value>...",
	Aliases: []string{"a"},
	Short:   "Record a day's data",
	Long: `Record a day's data across the tracker tables.

Fields are named <table>-<field>. Numbers are stored as numbers, anything
else as text. Empty values are skipped.

Only the tables you name are written. A named table that already has a
record for the day gets it replaced by the new fields, and the other
tables keep theirs. --edit submits the fields as an edit of a day you
already recorded.

Examples:
  trackle add health-weight=81.2 health-bmi=24.1
  trackle add activities-steps=9000 activities-workout=run
  trackle add --date 2024-01-05 consumption-kcal=2100
  trackle add --edit --date 2024-01-05 health-weight=80.9`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fields := append([]string{}, args...)
		if addDate != "" {
			fields = append(fields, "meta-date="+addDate)
		}
		if addEdit {
			fields = append(fields, "isEditing=true")
		}

		sub, err := form.Parse(fields)
		if err != nil {
			return err
		}
		for namespace := range sub.Records {
			if !models.IsValidTable(namespace) {
				return fmt.Errorf("unknown table: %s\nValid tables: health, activities, consumption", namespace)
			}
		}

		if err := form.Submit(cmd.Context(), store, sub); err != nil {
			return fmt.Errorf("failed to save: %w", err)
		}

		verb := "Saved"
		if sub.Editing {
			verb = "Updated"
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, color.GreenString("✓ %s %s", verb, sub.Date))
		faint := color.New(color.Faint)
		for _, table := range sub.Tables() {
			fmt.Fprintf(out, "  %s %d fields\n", padRight(table, 12), len(sub.Records[table]))
		}
		fmt.Fprintln(out, faint.Sprint("  view with: trackle list <table>"))
		return nil
	},
}

func init() {
	addCmd.Flags().StringVar(&addDate, "date", "", "record date (YYYY-MM-DD, default today)")
	addCmd.Flags().BoolVar(&addEdit, "edit", false, "edit a day that was already recorded")
	rootCmd.AddCommand(addCmd)
}
