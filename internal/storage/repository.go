// ABOUTME: Repository is the boundary the CLI, MCP server, and form submit use.
// ABOUTME: *Store implements it; tests and migrations can swap implementations.
package storage

import (
	"context"
	"fmt"

	"github.com/harperreed/trackle/internal/models"
)

// Repository defines the storage interface for tracker data.
type Repository interface {
	// SaveData updates the record for its date or inserts it when none exists.
	SaveData(ctx context.Context, rec models.Record, table string) error
	// UpdateData replaces the record for its date, creating it if needed.
	UpdateData(ctx context.Context, rec models.Record, table string) error
	GetData(ctx context.Context, table, date string) (models.Record, bool, error)
	GetTableData(ctx context.Context, table string) ([]models.Record, error)
	GetAllTableData(ctx context.Context) (map[string][]models.Record, error)
	Lookup(ctx context.Context, table, index string, value any) ([]models.Record, error)

	// Export/Import
	GetExportData(ctx context.Context) (*ExportData, error)
	ImportData(ctx context.Context, data *ExportData) (int, error)

	// Lifecycle
	Close() error
}

var _ Repository = (*Store)(nil)

// SaveData upserts rec into table.
func (s *Store) SaveData(ctx context.Context, rec models.Record, table string) error {
	if err := s.Upsert(ctx, table, rec); err != nil {
		return fmt.Errorf("save %s: %w", table, err)
	}
	return nil
}

// UpdateData replaces rec in table.
func (s *Store) UpdateData(ctx context.Context, rec models.Record, table string) error {
	if err := s.Update(ctx, table, rec); err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	return nil
}

// GetData reads the record for date.
func (s *Store) GetData(ctx context.Context, table, date string) (models.Record, bool, error) {
	return s.Get(ctx, table, date)
}

// GetTableData returns every record of table.
func (s *Store) GetTableData(ctx context.Context, table string) ([]models.Record, error) {
	records, err := s.All(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	return records, nil
}

// GetAllTableData returns every record of every table, keyed by table name.
func (s *Store) GetAllTableData(ctx context.Context) (map[string][]models.Record, error) {
	conn, err := s.live()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]models.Record, len(conn.tables))
	for _, ts := range conn.Tables() {
		records, err := s.GetTableData(ctx, ts.Name)
		if err != nil {
			return nil, err
		}
		out[ts.Name] = records
	}
	return out, nil
}
