// ABOUTME: Badger engine for databases opened in managed mode.
// ABOUTME: The owner of the database supplies write transactions and commit timestamps.
package storage

import (
	"context"
	"fmt"
	"math"

	"github.com/dgraph-io/badger/v3"
)

// ManagedBadgerEngine runs transactions on a badger database opened with
// badger.OpenManaged. Reads see the latest version. Writes start and commit
// through the owner, which picks the timestamps.
type ManagedBadgerEngine struct {
	DB *badger.DB
	// BeginWrite starts a writable transaction. Nil makes the engine read-only.
	BeginWrite func() (*badger.Txn, error)
	// CommitWrite commits a transaction that wrote something.
	CommitWrite func(*badger.Txn) error
	// CloseFunc releases the database. Nil leaves it open.
	CloseFunc func() error
}

// Begin starts a managed transaction.
func (e *ManagedBadgerEngine) Begin(ctx context.Context, writable bool) (Txn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !writable {
		return &badgerTxn{txn: e.DB.NewTransactionAt(math.MaxUint64, false)}, nil
	}
	if e.BeginWrite == nil || e.CommitWrite == nil {
		return nil, ErrReadOnly
	}
	txn, err := e.BeginWrite()
	if err != nil {
		return nil, fmt.Errorf("begin write transaction: %w", err)
	}
	return &badgerTxn{txn: txn, writable: true, commit: e.CommitWrite}, nil
}

// Close releases the database.
func (e *ManagedBadgerEngine) Close() error {
	if e.CloseFunc == nil {
		return nil
	}
	return e.CloseFunc()
}
