// ABOUTME: Tests for the managed-mode badger engine.
// ABOUTME: Runs the store on badger.OpenManaged with a local timestamp counter.
package storage

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/dgraph-io/badger/v3"
	"github.com/harperreed/trackle/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// managedBackend opens in-memory managed databases and assigns commit
// timestamps from a counter, the way the charm KV hands out sequence numbers.
type managedBackend struct {
	ts      atomic.Uint64
	commits atomic.Int64
}

func (m *managedBackend) Open(string) (Engine, error) {
	db, err := badger.OpenManaged(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, err
	}
	return &ManagedBadgerEngine{
		DB: db,
		BeginWrite: func() (*badger.Txn, error) {
			return db.NewTransactionAt(m.ts.Load(), true), nil
		},
		CommitWrite: func(txn *badger.Txn) error {
			m.commits.Add(1)
			return txn.CommitAt(m.ts.Add(1), nil)
		},
		CloseFunc: db.Close,
	}, nil
}

func TestStoreOnManagedBadger(t *testing.T) {
	backend := &managedBackend{}
	s := openTestStore(t, backend)
	ctx := context.Background()

	require.NoError(t, s.SaveData(ctx, models.Record{"date": "2024-01-05", "weight": 81.2}, "health"))
	require.NoError(t, s.SaveData(ctx, models.Record{"date": "2024-01-06", "weight": 80.9}, "health"))

	rec, found, err := s.GetData(ctx, "health", "2024-01-05")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 81.2, rec["weight"])

	records, err := s.GetTableData(ctx, "health")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-05", "2024-01-06"}, dates(records))

	got, err := s.Lookup(ctx, "health", "weight", 80.9)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-06"}, dates(got))
	assert.Positive(t, backend.commits.Load())
}

func TestManagedBadgerSkipsCommitWithoutWrites(t *testing.T) {
	backend := &managedBackend{}
	engine, err := backend.Open("tracker")
	require.NoError(t, err)
	defer engine.Close()

	txn, err := engine.Begin(context.Background(), true)
	require.NoError(t, err)
	_, err = txn.Get([]byte("missing"))
	assert.ErrorIs(t, err, ErrKeyNotFound)
	require.NoError(t, txn.Commit())
	assert.Zero(t, backend.commits.Load())
}

func TestManagedBadgerWithoutWriterIsReadOnly(t *testing.T) {
	db, err := badger.OpenManaged(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	engine := &ManagedBadgerEngine{DB: db, CloseFunc: db.Close}
	defer engine.Close()

	_, err = engine.Begin(context.Background(), true)
	assert.ErrorIs(t, err, ErrReadOnly)

	txn, err := engine.Begin(context.Background(), false)
	require.NoError(t, err)
	defer txn.Discard()
	_, err = txn.Get([]byte("meta/version"))
	assert.ErrorIs(t, err, ErrKeyNotFound)
}
