// ABOUTME: Table and index definitions plus the upgrade step that creates them.
// ABOUTME: Schema changes only happen inside an Upgrade, which commits atomically.
package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/harperreed/trackle/internal/models"
)

// SchemaVersion is the version DefaultSchema creates.
const SchemaVersion = 1

// IndexSchema declares a secondary index on one record field.
type IndexSchema struct {
	Name    string `json:"name"`
	KeyPath string `json:"key_path"`
	Unique  bool   `json:"unique"`
}

// TableSchema declares a table and the indexes it carries.
type TableSchema struct {
	Name    string        `json:"name"`
	KeyPath string        `json:"key_path"`
	Indexes []IndexSchema `json:"indexes"`
}

// Index returns the named index declaration.
func (t TableSchema) Index(name string) (IndexSchema, bool) {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return IndexSchema{}, false
}

// Schema is the full set of tables created by one version.
type Schema struct {
	Version int
	Tables  []TableSchema
}

func dateIndex() IndexSchema {
	return IndexSchema{Name: models.DateKey, KeyPath: models.DateKey, Unique: true}
}

// DefaultSchema is the tracker layout: three tables keyed by date.
var DefaultSchema = Schema{
	Version: SchemaVersion,
	Tables: []TableSchema{
		{
			Name:    models.TableHealth,
			KeyPath: models.DateKey,
			Indexes: []IndexSchema{
				dateIndex(),
				{Name: "bmi", KeyPath: "bmi"},
				{Name: "weight", KeyPath: "weight"},
				{Name: "water", KeyPath: "water"},
			},
		},
		{
			Name:    models.TableActivities,
			KeyPath: models.DateKey,
			Indexes: []IndexSchema{dateIndex()},
		},
		{
			Name:    models.TableConsumption,
			KeyPath: models.DateKey,
			Indexes: []IndexSchema{dateIndex()},
		},
	},
}

// Apply creates every table of s along with its indexes.
func (s Schema) Apply(up *Upgrade) error {
	if up == nil || up.txn == nil {
		return ErrUnavailable
	}
	for _, t := range s.Tables {
		if err := up.CreateTable(t); err != nil {
			return err
		}
	}
	return nil
}

// CreateSchema creates the tracker tables and indexes. It must be called
// from inside an upgrade.
func CreateSchema(up *Upgrade) error {
	return DefaultSchema.Apply(up)
}

// UpgradeFunc runs during the upgrade step, after the schema is created and
// before the new version is committed. Returning an error aborts the upgrade.
type UpgradeFunc func(up *Upgrade) error

// Upgrade is the handle passed to the upgrade step. It is only valid while
// the step runs.
type Upgrade struct {
	OldVersion int
	NewVersion int

	conn   *Conn
	txn    Txn
	tables map[string]TableSchema
}

// Conn returns the connection being upgraded. It is the same connection
// the open request resolves with.
func (u *Upgrade) Conn() *Conn {
	return u.conn
}

// HasTable reports whether the table exists, including tables created
// earlier in this upgrade.
func (u *Upgrade) HasTable(name string) bool {
	_, ok := u.tables[name]
	return ok
}

// CreateTable creates an empty table. Indexes listed in ts are created too.
func (u *Upgrade) CreateTable(ts TableSchema) error {
	if u == nil || u.txn == nil {
		return ErrUnavailable
	}
	if ts.Name == "" || strings.Contains(ts.Name, string(separator)) {
		return fmt.Errorf("invalid table name %q", ts.Name)
	}
	if ts.KeyPath == "" {
		ts.KeyPath = models.DateKey
	}
	if ts.KeyPath != models.DateKey {
		return fmt.Errorf("table %s: key path must be %q, got %q", ts.Name, models.DateKey, ts.KeyPath)
	}
	if _, ok := u.tables[ts.Name]; ok {
		return fmt.Errorf("%w: table %s already exists", ErrConstraint, ts.Name)
	}

	indexes := ts.Indexes
	ts.Indexes = nil
	if err := u.putTable(ts); err != nil {
		return err
	}
	for _, idx := range indexes {
		if err := u.CreateIndex(ts.Name, idx); err != nil {
			return err
		}
	}
	return nil
}

// CreateIndex adds an index to an existing table and indexes the records
// already in it.
func (u *Upgrade) CreateIndex(table string, idx IndexSchema) error {
	if u == nil || u.txn == nil {
		return ErrUnavailable
	}
	ts, ok := u.tables[table]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	if idx.Name == "" || strings.Contains(idx.Name, string(separator)) {
		return fmt.Errorf("invalid index name %q", idx.Name)
	}
	if idx.KeyPath == "" {
		idx.KeyPath = idx.Name
	}
	if _, exists := ts.Index(idx.Name); exists {
		return fmt.Errorf("%w: index %s.%s already exists", ErrConstraint, table, idx.Name)
	}

	if err := u.backfill(table, idx); err != nil {
		return err
	}
	ts.Indexes = append(append([]IndexSchema(nil), ts.Indexes...), idx)
	return u.putTable(ts)
}

func (u *Upgrade) backfill(table string, idx IndexSchema) error {
	it := u.txn.Iterate(recordPrefix(table))
	defer it.Close()

	var entries [][]byte
	for it.Next() {
		raw, err := it.Value()
		if err != nil {
			return backendErr("read record", table, err)
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return backendErr("decode record", table, err)
		}
		value, ok := indexedValue(rec, idx)
		if !ok {
			continue
		}
		key, err := indexEntryKey(table, idx.Name, value, rec.Date())
		if err != nil {
			return err
		}
		entries = append(entries, key)
	}
	if err := it.Err(); err != nil {
		return backendErr("scan table", table, err)
	}
	if err := it.Close(); err != nil {
		return backendErr("scan table", table, err)
	}

	for _, key := range entries {
		if idx.Unique {
			taken, err := indexHasOther(u.txn, key, "")
			if err != nil {
				return backendErr("check index", table, err)
			}
			if taken {
				return fmt.Errorf("%w: index %s.%s has duplicate values", ErrConstraint, table, idx.Name)
			}
		}
		if err := u.txn.Set(key, []byte{}); err != nil {
			return backendErr("write index", table, err)
		}
	}
	return nil
}

func (u *Upgrade) putTable(ts TableSchema) error {
	raw, err := json.Marshal(ts)
	if err != nil {
		return fmt.Errorf("marshal table %s: %w", ts.Name, err)
	}
	if err := u.txn.Set(tableBucket.key(ts.Name), raw); err != nil {
		return backendErr("create table", ts.Name, err)
	}
	u.tables[ts.Name] = ts
	return nil
}

// loadTables reads every table definition.
func loadTables(txn Txn) (map[string]TableSchema, error) {
	tables := make(map[string]TableSchema)
	it := txn.Iterate(tableBucket.prefix())
	defer it.Close()
	for it.Next() {
		raw, err := it.Value()
		if err != nil {
			return nil, err
		}
		var ts TableSchema
		if err := json.Unmarshal(raw, &ts); err != nil {
			return nil, fmt.Errorf("decode table definition %s: %w", it.Key(), err)
		}
		tables[ts.Name] = ts
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return tables, nil
}

// indexedValue returns the value a record contributes to idx. Records
// missing the field, or holding nil, are not indexed.
func indexedValue(rec models.Record, idx IndexSchema) (any, bool) {
	v, ok := rec[idx.KeyPath]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// indexHasOther reports whether the value bucket containing entry holds a
// key other than ownDate.
func indexHasOther(txn Txn, entry []byte, ownDate string) (bool, error) {
	i := strings.LastIndex(string(entry), string(separator))
	if i < 0 {
		return false, errors.New("malformed index key")
	}
	prefix := entry[:i+1]
	it := txn.Iterate(prefix)
	defer it.Close()
	for it.Next() {
		if string(it.Key()[len(prefix):]) != ownDate {
			return true, nil
		}
	}
	return false, it.Err()
}
