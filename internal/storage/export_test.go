// ABOUTME: Tests for export and import functionality.
// ABOUTME: Verifies JSON, YAML, and Markdown output plus both JSON import formats.
package storage

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/harperreed/trackle/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func seedStore(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.SaveData(ctx, models.Record{"date": "2024-01-01", "weight": 80.0, "bmi": 22.5}, models.TableHealth))
	require.NoError(t, s.SaveData(ctx, models.Record{"date": "2024-01-02", "weight": 79.5}, models.TableHealth))
	require.NoError(t, s.SaveData(ctx, models.Record{"date": "2024-01-01", "steps": 9000.0}, models.TableActivities))
}

func TestExportJSON(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s)

	raw, err := ExportJSON(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "{\n  \""), "expected 2-space indented JSON")

	var data ExportData
	require.NoError(t, json.Unmarshal(raw, &data))
	assert.Equal(t, "1.0", data.Version)
	assert.Equal(t, "trackle", data.Tool)
	assert.Len(t, data.Tables[models.TableHealth], 2)
	assert.Len(t, data.Tables[models.TableActivities], 1)
	assert.Empty(t, data.Tables[models.TableConsumption])
	assert.Equal(t, 3, data.Count())
}

func TestImportJSONRoundTrip(t *testing.T) {
	src := newTestStore(t)
	seedStore(t, src)
	raw, err := ExportJSON(context.Background(), src)
	require.NoError(t, err)

	dst := newTestStore(t)
	n, err := ImportJSON(context.Background(), dst, raw)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rec, found, err := dst.Get(context.Background(), models.TableHealth, "2024-01-01")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 22.5, rec["bmi"])

	// Importing again replaces rather than failing on duplicate keys.
	_, err = ImportJSON(context.Background(), dst, raw)
	require.NoError(t, err)
}

func TestImportJSONBareTables(t *testing.T) {
	s := newTestStore(t)
	raw := []byte(`{"health":[{"date":"2024-02-01","water":2}],"consumption":[]}`)

	n, err := ImportJSON(context.Background(), s, raw)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.Lookup(context.Background(), models.TableHealth, "water", 2.0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestImportJSONNullTables(t *testing.T) {
	s := newTestStore(t)

	n, err := ImportJSON(context.Background(), s, []byte(`{"version":"1.0","tables":null}`))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = ImportJSON(context.Background(), s, []byte(`{"version":"1.0"}`))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestImportJSONErrors(t *testing.T) {
	s := newTestStore(t)

	_, err := ImportJSON(context.Background(), s, []byte("not json"))
	assert.Error(t, err)

	_, err = ImportJSON(context.Background(), s, []byte(`{"tables":{"workouts":[{"date":"2024-01-01"}]}}`))
	assert.ErrorIs(t, err, ErrUnknownTable)

	_, err = ImportJSON(context.Background(), s, []byte(`[{"date":"2024-01-01"}]`))
	assert.Error(t, err)
}

func TestExportYAML(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s)

	raw, err := ExportYAML(context.Background(), s)
	require.NoError(t, err)

	var out struct {
		Tool   string                       `yaml:"tool"`
		Tables map[string][]map[string]any `yaml:"tables"`
	}
	require.NoError(t, yaml.Unmarshal(raw, &out))
	assert.Equal(t, "trackle", out.Tool)
	assert.Len(t, out.Tables[models.TableHealth], 2)
}

func TestExportMarkdown(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s)
	ctx := context.Background()

	md, err := ExportMarkdown(ctx, s, "", "")
	require.NoError(t, err)
	assert.Contains(t, md, "# Tracker Export")
	assert.Contains(t, md, "## health")
	assert.Contains(t, md, "| date | bmi | weight |")
	assert.Contains(t, md, "| 2024-01-01 | 22.5 | 80 |")
	assert.Contains(t, md, "| 2024-01-02 |  | 79.5 |")
	assert.Contains(t, md, "## consumption\n\n_No records._")

	md, err = ExportMarkdown(ctx, s, models.TableHealth, "2024-01-02")
	require.NoError(t, err)
	assert.NotContains(t, md, "2024-01-01")
	assert.NotContains(t, md, "## activities")

	_, err = ExportMarkdown(ctx, s, "workouts", "")
	assert.ErrorIs(t, err, ErrUnknownTable)
}
