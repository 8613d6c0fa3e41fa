// ABOUTME: Export and import functionality for tracker data.
// ABOUTME: Supports JSON, YAML, and Markdown export formats.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harperreed/trackle/internal/models"
	"gopkg.in/yaml.v3"
)

// DefaultExportFile is the file name the export command writes by default.
const DefaultExportFile = "trackle-data.json"

// ExportData represents the full export format for tracker data.
type ExportData struct {
	Version    string                     `json:"version" yaml:"version"`
	ExportedAt time.Time                  `json:"exported_at" yaml:"exported_at"`
	Tool       string                     `json:"tool" yaml:"tool"`
	Tables     map[string][]models.Record `json:"tables" yaml:"tables"`
}

// Count returns the number of records across all tables.
func (e *ExportData) Count() int {
	n := 0
	for _, records := range e.Tables {
		n += len(records)
	}
	return n
}

// GetExportData retrieves all data for export.
func (s *Store) GetExportData(ctx context.Context) (*ExportData, error) {
	tables, err := s.GetAllTableData(ctx)
	if err != nil {
		return nil, err
	}
	return &ExportData{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Tool:       "trackle",
		Tables:     tables,
	}, nil
}

// ImportData upserts every record in data and returns how many were written.
func (s *Store) ImportData(ctx context.Context, data *ExportData) (int, error) {
	n := 0
	for _, table := range sortedTableNames(data.Tables) {
		for _, rec := range data.Tables[table] {
			if err := s.SaveData(ctx, rec, table); err != nil {
				return n, fmt.Errorf("import %s %s: %w", table, rec.Date(), err)
			}
			n++
		}
	}
	return n, nil
}

// ExportJSON exports all data as JSON.
func ExportJSON(ctx context.Context, repo Repository) ([]byte, error) {
	data, err := repo.GetExportData(ctx)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(data, "", "  ")
}

// ExportYAML exports all data as YAML.
func ExportYAML(ctx context.Context, repo Repository) ([]byte, error) {
	data, err := repo.GetExportData(ctx)
	if err != nil {
		return nil, err
	}

	yamlData := struct {
		Version    string                     `yaml:"version"`
		ExportedAt string                     `yaml:"exported_at"`
		Tool       string                     `yaml:"tool"`
		Tables     map[string][]models.Record `yaml:"tables"`
	}{
		Version:    data.Version,
		ExportedAt: data.ExportedAt.Format(time.RFC3339),
		Tool:       data.Tool,
		Tables:     data.Tables,
	}
	return yaml.Marshal(yamlData)
}

// ExportMarkdown renders one Markdown table per store. An empty table
// name exports every table; since, when set, keeps records on or after
// that date.
func ExportMarkdown(ctx context.Context, repo Repository, table, since string) (string, error) {
	data, err := repo.GetExportData(ctx)
	if err != nil {
		return "", err
	}

	names := sortedTableNames(data.Tables)
	if table != "" {
		if _, ok := data.Tables[table]; !ok {
			return "", fmt.Errorf("%w: %s", ErrUnknownTable, table)
		}
		names = []string{table}
	}

	var sb strings.Builder
	now := time.Now()
	sb.WriteString(fmt.Sprintf("# Tracker Export - %s\n\n", now.Format(models.DateLayout)))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", now.Format(time.RFC3339)))

	for _, name := range names {
		var records []models.Record
		for _, rec := range data.Tables[name] {
			if since == "" || rec.Date() >= since {
				records = append(records, rec)
			}
		}

		sb.WriteString(fmt.Sprintf("## %s\n\n", name))
		if len(records) == 0 {
			sb.WriteString("_No records._\n\n")
			continue
		}

		columns := Columns(records)
		sb.WriteString("| " + strings.Join(columns, " | ") + " |\n")
		sb.WriteString("|" + strings.Repeat("------|", len(columns)) + "\n")
		for _, rec := range records {
			cells := make([]string, len(columns))
			for i, col := range columns {
				cells[i] = models.FormatValue(rec[col])
			}
			sb.WriteString("| " + strings.Join(cells, " | ") + " |\n")
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// ImportJSON imports data from JSON bytes. It accepts the export format and
// a bare object mapping table names to record arrays. A top-level version or
// tables key selects the export format.
func ImportJSON(ctx context.Context, repo Repository, raw []byte) (int, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return 0, fmt.Errorf("unmarshal JSON: %w", err)
	}

	var data ExportData
	_, hasVersion := top["version"]
	_, hasTables := top["tables"]
	if hasVersion || hasTables {
		if err := json.Unmarshal(raw, &data); err != nil {
			return 0, fmt.Errorf("unmarshal JSON: %w", err)
		}
		return repo.ImportData(ctx, &data)
	}

	var bare map[string][]models.Record
	if err := json.Unmarshal(raw, &bare); err != nil {
		return 0, fmt.Errorf("unmarshal JSON: %w", err)
	}
	data.Tables = bare
	return repo.ImportData(ctx, &data)
}

// Columns returns the union of field names across records, date first.
func Columns(records []models.Record) []string {
	seen := make(map[string]bool)
	var rest []string
	for _, rec := range records {
		for field := range rec {
			if field == models.DateKey || seen[field] {
				continue
			}
			seen[field] = true
			rest = append(rest, field)
		}
	}
	sort.Strings(rest)
	return append([]string{models.DateKey}, rest...)
}

func sortedTableNames(tables map[string][]models.Record) []string {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
