// ABOUTME: Badger engine, the default on-disk backend.
// ABOUTME: Also wraps an externally owned *badger.DB opened with badger.Open.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgraph-io/badger/v3"
)

// BadgerBackend opens one badger directory per database name under Dir.
type BadgerBackend struct {
	Dir      string
	InMemory bool
	Logger   *log.Logger
}

// Open opens or creates the named database.
func (b *BadgerBackend) Open(name string) (Engine, error) {
	opts := badger.DefaultOptions("")
	if b.InMemory {
		opts = opts.WithInMemory(true)
	} else {
		dir := filepath.Join(b.Dir, name)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.WithLogger(badgerLogger{logger: loggerOrDiscard(b.Logger)})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger %s: %w", name, err)
	}
	return &BadgerEngine{DB: db, CloseFunc: db.Close}, nil
}

// BadgerEngine runs transactions on a badger database.
type BadgerEngine struct {
	DB *badger.DB
	// CloseFunc releases the database. Nil leaves it open.
	CloseFunc func() error
}

// ErrReadOnly is returned when a write reaches a transaction or engine that
// cannot take it.
var ErrReadOnly = errors.New("database is read-only")

// Begin starts a badger transaction.
func (e *BadgerEngine) Begin(ctx context.Context, writable bool) (Txn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &badgerTxn{txn: e.DB.NewTransaction(writable), writable: writable, commit: commitBadger}, nil
}

// Close releases the database.
func (e *BadgerEngine) Close() error {
	if e.CloseFunc == nil {
		return nil
	}
	return e.CloseFunc()
}

func commitBadger(txn *badger.Txn) error {
	return txn.Commit()
}

type badgerTxn struct {
	txn      *badger.Txn
	commit   func(*badger.Txn) error
	writable bool
	dirty    bool
	done     bool
}

func (t *badgerTxn) Get(key []byte) ([]byte, error) {
	item, err := t.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (t *badgerTxn) Set(key, value []byte) error {
	t.dirty = true
	return t.txn.Set(key, value)
}

func (t *badgerTxn) Delete(key []byte) error {
	t.dirty = true
	return t.txn.Delete(key)
}

func (t *badgerTxn) Iterate(prefix []byte) Iterator {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := t.txn.NewIterator(opts)
	return &badgerIterator{it: it, prefix: prefix}
}

func (t *badgerTxn) Commit() error {
	if t.done {
		return errors.New("transaction already finished")
	}
	t.done = true
	if !t.writable || !t.dirty {
		t.txn.Discard()
		return nil
	}
	return t.commit(t.txn)
}

func (t *badgerTxn) Discard() {
	t.done = true
	t.txn.Discard()
}

type badgerIterator struct {
	it      *badger.Iterator
	prefix  []byte
	started bool
	closed  bool
}

func (i *badgerIterator) Next() bool {
	if i.closed {
		return false
	}
	if !i.started {
		i.started = true
		i.it.Seek(i.prefix)
	} else {
		i.it.Next()
	}
	return i.it.ValidForPrefix(i.prefix)
}

func (i *badgerIterator) Key() []byte {
	return i.it.Item().KeyCopy(nil)
}

func (i *badgerIterator) Value() ([]byte, error) {
	return i.it.Item().ValueCopy(nil)
}

func (i *badgerIterator) Err() error {
	return nil
}

func (i *badgerIterator) Close() error {
	if !i.closed {
		i.closed = true
		i.it.Close()
	}
	return nil
}

// badgerLogger routes badger's internal logging through the app logger.
// Badger is chatty at info, so its info lines become debug.
type badgerLogger struct {
	logger *log.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(trimLine(format, args))
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(trimLine(format, args))
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(trimLine(format, args))
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(trimLine(format, args))
}

func trimLine(format string, args []interface{}) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}
