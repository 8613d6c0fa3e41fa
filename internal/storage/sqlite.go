// ABOUTME: SQLite engine backend using modernc.org/sqlite (pure Go, no CGO required).
// ABOUTME: Stores every key in a single ordered kv table, one file per database name.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteBackend opens <Dir>/<name>.db.
type SQLiteBackend struct {
	Dir string
}

// Open opens or creates the named database file.
func (b *SQLiteBackend) Open(name string) (Engine, error) {
	if err := os.MkdirAll(b.Dir, 0750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	dbPath := filepath.Join(b.Dir, name+".db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps transactions serialized.
	db.SetMaxOpenConns(1)

	e := &sqliteEngine{db: db}
	if err := e.configurePragmas(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure pragmas: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (k BLOB PRIMARY KEY, v BLOB) WITHOUT ROWID`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
		_ = db.Close()
		return nil, fmt.Errorf("set database permissions: %w", err)
	}
	return e, nil
}

type sqliteEngine struct {
	db *sql.DB
}

func (e *sqliteEngine) configurePragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := e.db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	return nil
}

func (e *sqliteEngine) Begin(ctx context.Context, writable bool) (Txn, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTxn{tx: tx, writable: writable}, nil
}

func (e *sqliteEngine) Close() error {
	return e.db.Close()
}

type sqliteTxn struct {
	tx       *sql.Tx
	writable bool
	done     bool
}

func (t *sqliteTxn) Get(key []byte) ([]byte, error) {
	var v []byte
	err := t.tx.QueryRow(`SELECT v FROM kv WHERE k = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	return v, err
}

func (t *sqliteTxn) Set(key, value []byte) error {
	if !t.writable {
		return ErrReadOnly
	}
	_, err := t.tx.Exec(`INSERT INTO kv (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`, key, value)
	return err
}

func (t *sqliteTxn) Delete(key []byte) error {
	if !t.writable {
		return ErrReadOnly
	}
	_, err := t.tx.Exec(`DELETE FROM kv WHERE k = ?`, key)
	return err
}

// Iterate reads the whole prefix range up front so the connection is free
// for Get and Set calls while the iterator is open.
func (t *sqliteTxn) Iterate(prefix []byte) Iterator {
	var (
		rows *sql.Rows
		err  error
	)
	if end := prefixEnd(prefix); end != nil {
		rows, err = t.tx.Query(`SELECT k, v FROM kv WHERE k >= ? AND k < ? ORDER BY k`, prefix, end)
	} else {
		rows, err = t.tx.Query(`SELECT k, v FROM kv WHERE k >= ? ORDER BY k`, prefix)
	}
	if err != nil {
		return &sliceIterator{err: err}
	}
	defer rows.Close()

	it := &sliceIterator{pos: -1}
	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			it.err = err
			return it
		}
		it.keys = append(it.keys, k)
		it.values = append(it.values, v)
	}
	it.err = rows.Err()
	return it
}

func (t *sqliteTxn) Commit() error {
	if t.done {
		return errors.New("transaction already finished")
	}
	t.done = true
	if !t.writable {
		return t.tx.Rollback()
	}
	return t.tx.Commit()
}

func (t *sqliteTxn) Discard() {
	if !t.done {
		t.done = true
		_ = t.tx.Rollback()
	}
}

// sliceIterator walks pre-loaded key/value pairs.
type sliceIterator struct {
	keys   [][]byte
	values [][]byte
	pos    int
	err    error
}

func (i *sliceIterator) Next() bool {
	if i.err != nil {
		return false
	}
	i.pos++
	return i.pos < len(i.keys)
}

func (i *sliceIterator) Key() []byte {
	return i.keys[i.pos]
}

func (i *sliceIterator) Value() ([]byte, error) {
	return i.values[i.pos], nil
}

func (i *sliceIterator) Err() error {
	return i.err
}

func (i *sliceIterator) Close() error {
	i.pos = len(i.keys)
	return i.err
}
