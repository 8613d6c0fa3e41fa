// ABOUTME: Data migration between tracker storage backends.
// ABOUTME: Copies every record of every table from source to destination.

package storage

import (
	"context"
	"fmt"
	"os"
)

// MigrateSummary holds per-table counts of migrated records.
type MigrateSummary struct {
	Tables map[string]int
}

// Total returns the number of records migrated.
func (m *MigrateSummary) Total() int {
	n := 0
	for _, c := range m.Tables {
		n += c
	}
	return n
}

// MigrateData copies all data from src to dst storage. Records already in
// dst are replaced by the source version.
func MigrateData(ctx context.Context, src, dst Repository) (*MigrateSummary, error) {
	summary := &MigrateSummary{Tables: make(map[string]int)}

	tables, err := src.GetAllTableData(ctx)
	if err != nil {
		return nil, fmt.Errorf("read source tables: %w", err)
	}

	for _, table := range sortedTableNames(tables) {
		summary.Tables[table] = 0
		for _, rec := range tables[table] {
			if err := dst.SaveData(ctx, rec, table); err != nil {
				return nil, fmt.Errorf("copy %s %s: %w", table, rec.Date(), err)
			}
			summary.Tables[table]++
		}
	}

	return summary, nil
}

// IsDirNonEmpty checks whether a directory exists and contains any files or subdirectories.
// Returns false if the directory does not exist or is empty.
func IsDirNonEmpty(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read directory %q: %w", path, err)
	}
	return len(entries) > 0, nil
}
