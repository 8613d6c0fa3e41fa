// ABOUTME: goleveldb engine backend.
// ABOUTME: Writes go through leveldb transactions; reads use snapshots.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/syndtr/goleveldb/leveldb"
	ldbErrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	lstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDBBackend opens one leveldb directory per database, <name>.ldb under Dir.
type LevelDBBackend struct {
	Dir      string
	InMemory bool
	Logger   *log.Logger
}

// Open opens or creates the named database, recovering it if corrupted.
func (b *LevelDBBackend) Open(name string) (Engine, error) {
	if b.InMemory {
		db, err := leveldb.Open(lstorage.NewMemStorage(), nil)
		if err != nil {
			return nil, fmt.Errorf("open leveldb %s: %w", name, err)
		}
		return &levelDBEngine{db: db}, nil
	}

	path := filepath.Join(b.Dir, name+".ldb")
	if err := os.MkdirAll(b.Dir, 0750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := leveldb.OpenFile(path, nil)
	if _, corrupted := err.(*ldbErrors.ErrCorrupted); corrupted {
		logger := loggerOrDiscard(b.Logger)
		logger.Warn("leveldb corruption detected", "path", path, "err", err)
		db, err = leveldb.RecoverFile(path, nil)
		if err == nil {
			logger.Warn("leveldb recovered from corruption", "path", path)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", name, err)
	}
	return &levelDBEngine{db: db}, nil
}

type levelDBEngine struct {
	db *leveldb.DB
}

func (e *levelDBEngine) Begin(ctx context.Context, writable bool) (Txn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if writable {
		tx, err := e.db.OpenTransaction()
		if err != nil {
			return nil, err
		}
		return &levelDBWriteTxn{tx: tx}, nil
	}
	snap, err := e.db.GetSnapshot()
	if err != nil {
		return nil, err
	}
	return &levelDBReadTxn{snap: snap}, nil
}

func (e *levelDBEngine) Close() error {
	return e.db.Close()
}

type levelDBWriteTxn struct {
	tx   *leveldb.Transaction
	done bool
}

func (t *levelDBWriteTxn) Get(key []byte) ([]byte, error) {
	v, err := t.tx.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	return v, err
}

func (t *levelDBWriteTxn) Set(key, value []byte) error {
	return t.tx.Put(key, value, nil)
}

func (t *levelDBWriteTxn) Delete(key []byte) error {
	return t.tx.Delete(key, nil)
}

func (t *levelDBWriteTxn) Iterate(prefix []byte) Iterator {
	return &levelDBIterator{it: t.tx.NewIterator(util.BytesPrefix(prefix), nil)}
}

func (t *levelDBWriteTxn) Commit() error {
	if t.done {
		return errors.New("transaction already finished")
	}
	t.done = true
	return t.tx.Commit()
}

func (t *levelDBWriteTxn) Discard() {
	if !t.done {
		t.done = true
		t.tx.Discard()
	}
}

type levelDBReadTxn struct {
	snap *leveldb.Snapshot
	done bool
}

func (t *levelDBReadTxn) Get(key []byte) ([]byte, error) {
	v, err := t.snap.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	return v, err
}

func (t *levelDBReadTxn) Set(key, value []byte) error {
	return ErrReadOnly
}

func (t *levelDBReadTxn) Delete(key []byte) error {
	return ErrReadOnly
}

func (t *levelDBReadTxn) Iterate(prefix []byte) Iterator {
	return &levelDBIterator{it: t.snap.NewIterator(util.BytesPrefix(prefix), nil)}
}

func (t *levelDBReadTxn) Commit() error {
	t.Discard()
	return nil
}

func (t *levelDBReadTxn) Discard() {
	if !t.done {
		t.done = true
		t.snap.Release()
	}
}

type levelDBIterator struct {
	it     iterator.Iterator
	closed bool
}

func (i *levelDBIterator) Next() bool {
	if i.closed {
		return false
	}
	return i.it.Next()
}

func (i *levelDBIterator) Key() []byte {
	return append([]byte(nil), i.it.Key()...)
}

func (i *levelDBIterator) Value() ([]byte, error) {
	return append([]byte(nil), i.it.Value()...), nil
}

func (i *levelDBIterator) Err() error {
	return i.it.Error()
}

func (i *levelDBIterator) Close() error {
	if i.closed {
		return nil
	}
	i.closed = true
	i.it.Release()
	return i.it.Error()
}
