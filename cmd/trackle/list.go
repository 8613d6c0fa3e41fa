// ABOUTME: CLI commands for reading tracker tables.
// ABOUTME: Renders list, get, and lookup results as aligned columns.
package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/harperreed/trackle/internal/models"
	"github.com/harperreed/trackle/internal/storage"
	"github.com/spf13/cobra"
)

var (
	listSort    string
	listColumns []string
	listLimit   int
)

var listCmd = &cobra.Command{
	Use:     "list <table>",
	Aliases: []string{"ls", "l"},
	Short:   "List a table",
	Long: `List every record in a table, one row per day.

Rows are oldest first. Columns are the date followed by every field seen in
the table, alphabetically. Days without a field show an empty cell.

EXAMPLES:

  trackle list health                      # Whole table
  trackle list health --sort weight        # Lightest day first
  trackle list health -c weight,bmi        # Only these columns
  trackle list activities -n 7             # Last seven days`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: models.AllTables,
	RunE: func(cmd *cobra.Command, args []string) error {
		table := args[0]
		if !models.IsValidTable(table) {
			return fmt.Errorf("unknown table: %s", table)
		}

		records, err := store.GetTableData(cmd.Context(), table)
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", table, err)
		}
		if listSort != "" && listSort != models.DateKey {
			models.SortByField(records, listSort)
		}
		if listLimit > 0 && len(records) > listLimit {
			records = records[len(records)-listLimit:]
		}

		printRecords(cmd.OutOrStdout(), records, listColumns)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <table> [date]",
	Short: "Show one day of a table",
	Long: `Show the record for one day, one field per line.

The date defaults to today.

EXAMPLES:

  trackle get health
  trackle get consumption 2024-01-05`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		table := args[0]
		date := models.Today()
		if len(args) == 2 {
			date = args[1]
		}
		if !models.IsValidTable(table) {
			return fmt.Errorf("unknown table: %s", table)
		}
		if !models.IsValidDate(date) {
			return fmt.Errorf("invalid date: %s (use YYYY-MM-DD)", date)
		}

		rec, found, err := store.GetData(cmd.Context(), table, date)
		if err != nil {
			return fmt.Errorf("failed to get record: %w", err)
		}
		out := cmd.OutOrStdout()
		if !found {
			fmt.Fprintf(out, "No %s record for %s.\n", table, date)
			return nil
		}

		faint := color.New(color.Faint)
		for _, field := range rec.Fields() {
			fmt.Fprintf(out, "%s %s\n", faint.Sprint(padRight(field, 16)), models.FormatValue(rec[field]))
		}
		return nil
	},
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <table> <index> <value>",
	Short: "Find days by an indexed field",
	Long: `Find the days whose indexed field equals a value.

The health table indexes bmi, weight, and water. Values that parse as
numbers match numbers; anything else matches text.

EXAMPLES:

  trackle lookup health weight 81.2
  trackle lookup health water 2`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, index := args[0], args[1]
		value := parseLookupValue(args[2])

		records, err := store.Lookup(cmd.Context(), table, index, value)
		if err != nil {
			return fmt.Errorf("lookup failed: %w", err)
		}
		printRecords(cmd.OutOrStdout(), records, nil)
		return nil
	},
}

func parseLookupValue(s string) any {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// printRecords writes records as left-aligned columns with a bold header.
func printRecords(w io.Writer, records []models.Record, columns []string) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No records found.")
		return
	}
	if len(columns) == 0 {
		columns = storage.Columns(records)
	}

	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = len(col)
		for _, rec := range records {
			if n := len(models.FormatValue(rec[col])); n > widths[i] {
				widths[i] = n
			}
		}
	}

	bold := color.New(color.Bold)
	header := make([]string, len(columns))
	for i, col := range columns {
		header[i] = padRight(col, widths[i])
	}
	fmt.Fprintln(w, bold.Sprint(strings.TrimRight(strings.Join(header, "  "), " ")))

	for _, rec := range records {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = padRight(models.FormatValue(rec[col]), widths[i])
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, "  "), " "))
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}

func init() {
	listCmd.Flags().StringVarP(&listSort, "sort", "s", "", "sort by field (default date)")
	listCmd.Flags().StringSliceVarP(&listColumns, "columns", "c", nil, "columns to show, comma separated")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "show only the last N rows")
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(lookupCmd)
}
