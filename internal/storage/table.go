// ABOUTME: TableTx is a transaction scoped to one table of a live connection.
// ABOUTME: It keeps records and their index entries consistent on every write.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/harperreed/trackle/internal/models"
)

var errTxnDone = errors.New("table transaction already finished")

// TableTx is a read-write transaction on one table. Call Commit or Discard
// exactly once; Discard after Commit is a no-op.
type TableTx struct {
	conn     *Conn
	schema   TableSchema
	txn      Txn
	writable bool
	cursors  []*Cursor
	done     bool
}

// Table opens a read-write transaction on the named table.
func (s *Store) Table(ctx context.Context, name string) (*TableTx, error) {
	return s.table(ctx, name, true)
}

func (s *Store) table(ctx context.Context, name string, writable bool) (*TableTx, error) {
	conn, err := s.live()
	if err != nil {
		return nil, err
	}
	ts, ok := conn.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}

	conn.mu.RLock()
	if conn.closed {
		conn.mu.RUnlock()
		return nil, ErrUnavailable
	}
	txn, err := conn.engine.Begin(ctx, writable)
	if err != nil {
		conn.mu.RUnlock()
		return nil, backendErr("begin", name, err)
	}
	return &TableTx{conn: conn, schema: ts, txn: txn, writable: writable}, nil
}

// Name returns the table name.
func (t *TableTx) Name() string {
	return t.schema.Name
}

// Get reads the record stored under key.
func (t *TableTx) Get(key string) (models.Record, bool, error) {
	if t.done {
		return nil, false, errTxnDone
	}
	raw, err := t.txn.Get(recordKey(t.schema.Name, key))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, backendErr("get", t.schema.Name, err)
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		return nil, false, backendErr("decode record", t.schema.Name, err)
	}
	return rec, true, nil
}

// Add inserts rec. It fails with ErrConstraint when the key exists.
func (t *TableTx) Add(rec models.Record) error {
	return t.write(rec, false)
}

// Put stores rec, replacing any record with the same key.
func (t *TableTx) Put(rec models.Record) error {
	return t.write(rec, true)
}

func (t *TableTx) write(rec models.Record, overwrite bool) error {
	if t.done {
		return errTxnDone
	}
	if !t.writable {
		return ErrReadOnly
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	table := t.schema.Name
	date := rec.Date()

	old, exists, err := t.Get(date)
	if err != nil {
		return err
	}
	if exists && !overwrite {
		return fmt.Errorf("%w: %s already has a record for %s", ErrConstraint, table, date)
	}

	var stale, fresh [][]byte
	for _, idx := range t.schema.Indexes {
		if v, ok := indexedValue(old, idx); exists && ok {
			key, err := indexEntryKey(table, idx.Name, v, date)
			if err != nil {
				return err
			}
			stale = append(stale, key)
		}
		v, ok := indexedValue(rec, idx)
		if !ok {
			continue
		}
		key, err := indexEntryKey(table, idx.Name, v, date)
		if err != nil {
			return err
		}
		if idx.Unique {
			taken, err := indexHasOther(t.txn, key, date)
			if err != nil {
				return backendErr("check index", table, err)
			}
			if taken {
				return fmt.Errorf("%w: %s.%s value %v is already used", ErrConstraint, table, idx.Name, v)
			}
		}
		fresh = append(fresh, key)
	}

	raw, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	for _, key := range stale {
		if err := t.txn.Delete(key); err != nil {
			return backendErr("delete index", table, err)
		}
	}
	for _, key := range fresh {
		if err := t.txn.Set(key, []byte{}); err != nil {
			return backendErr("write index", table, err)
		}
	}
	if err := t.txn.Set(recordKey(table, date), raw); err != nil {
		return backendErr("put", table, err)
	}
	return nil
}

// Cursor returns a cursor over every record in ascending key order.
func (t *TableTx) Cursor() *Cursor {
	if t.done {
		return &Cursor{table: t.schema.Name, err: errTxnDone, closed: true}
	}
	c := &Cursor{table: t.schema.Name, it: t.txn.Iterate(recordPrefix(t.schema.Name))}
	t.cursors = append(t.cursors, c)
	return c
}

// IndexLookup returns the records whose indexed field equals value, in key order.
func (t *TableTx) IndexLookup(index string, value any) ([]models.Record, error) {
	if t.done {
		return nil, errTxnDone
	}
	idx, ok := t.schema.Index(index)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownIndex, t.schema.Name, index)
	}
	b, err := indexValueBucket(t.schema.Name, idx.Name, value)
	if err != nil {
		return nil, err
	}

	prefix := b.prefix()
	it := t.txn.Iterate(prefix)
	var dates []string
	for it.Next() {
		dates = append(dates, string(it.Key()[len(prefix):]))
	}
	err = it.Err()
	_ = it.Close()
	if err != nil {
		return nil, backendErr("scan index", t.schema.Name, err)
	}

	records := make([]models.Record, 0, len(dates))
	for _, date := range dates {
		rec, found, err := t.Get(date)
		if err != nil {
			return nil, err
		}
		if found {
			records = append(records, rec)
		}
	}
	return records, nil
}

// Commit closes open cursors and commits the transaction.
func (t *TableTx) Commit() error {
	if t.done {
		return errTxnDone
	}
	t.closeCursors()
	t.done = true
	defer t.conn.mu.RUnlock()
	if err := t.txn.Commit(); err != nil {
		return backendErr("commit", t.schema.Name, err)
	}
	return nil
}

// Discard abandons the transaction.
func (t *TableTx) Discard() {
	if t.done {
		return
	}
	t.closeCursors()
	t.done = true
	t.txn.Discard()
	t.conn.mu.RUnlock()
}

func (t *TableTx) closeCursors() {
	for _, c := range t.cursors {
		_ = c.Close()
	}
	t.cursors = nil
}
