// ABOUTME: Conformance suite every storage engine must pass.
// ABOUTME: Runs the same get/set/delete, iteration, and visibility checks on each backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func engineBackends(t *testing.T) map[string]Backend {
	return map[string]Backend{
		"badger-memory":  &BadgerBackend{InMemory: true},
		"badger-disk":    &BadgerBackend{Dir: t.TempDir()},
		"badger-managed": &managedBackend{},
		"leveldb":        &LevelDBBackend{Dir: t.TempDir()},
		"leveldb-mem":    &LevelDBBackend{InMemory: true},
		"sqlite":         &SQLiteBackend{Dir: t.TempDir()},
	}
}

func TestEngineConformance(t *testing.T) {
	for name, backend := range engineBackends(t) {
		t.Run(name, func(t *testing.T) {
			engine, err := backend.Open("conformance")
			require.NoError(t, err)
			defer engine.Close()

			t.Run("get set delete", func(t *testing.T) { testGetSetDelete(t, engine) })
			t.Run("ordered prefix iteration", func(t *testing.T) { testPrefixIteration(t, engine) })
			t.Run("discard hides writes", func(t *testing.T) { testDiscard(t, engine) })
			t.Run("reads own writes", func(t *testing.T) { testReadOwnWrites(t, engine) })
		})
	}
}

func testGetSetDelete(t *testing.T, e Engine) {
	ctx := context.Background()

	txn, err := e.Begin(ctx, true)
	require.NoError(t, err)
	require.NoError(t, txn.Set([]byte("gsd/a"), []byte("1")))
	require.NoError(t, txn.Set([]byte("gsd/empty"), []byte{}))
	require.NoError(t, txn.Commit())
	txn.Discard()

	txn, err = e.Begin(ctx, false)
	require.NoError(t, err)
	v, err := txn.Get([]byte("gsd/a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)
	v, err = txn.Get([]byte("gsd/empty"))
	require.NoError(t, err)
	assert.Empty(t, v)
	_, err = txn.Get([]byte("gsd/missing"))
	assert.True(t, errors.Is(err, ErrKeyNotFound), "got %v", err)
	txn.Discard()

	txn, err = e.Begin(ctx, true)
	require.NoError(t, err)
	require.NoError(t, txn.Delete([]byte("gsd/a")))
	require.NoError(t, txn.Commit())

	txn, err = e.Begin(ctx, false)
	require.NoError(t, err)
	defer txn.Discard()
	_, err = txn.Get([]byte("gsd/a"))
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func testPrefixIteration(t *testing.T, e Engine) {
	ctx := context.Background()

	txn, err := e.Begin(ctx, true)
	require.NoError(t, err)
	for _, k := range []string{"it/c", "it/a", "it/b", "iu/x", "it", "i/z"} {
		require.NoError(t, txn.Set([]byte(k), []byte("v-"+k)))
	}
	require.NoError(t, txn.Commit())

	txn, err = e.Begin(ctx, false)
	require.NoError(t, err)
	defer txn.Discard()

	it := txn.Iterate([]byte("it/"))
	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
		v, err := it.Value()
		require.NoError(t, err)
		assert.Equal(t, "v-"+string(it.Key()), string(v))
	}
	require.NoError(t, it.Err())
	require.NoError(t, it.Close())
	assert.Equal(t, []string{"it/a", "it/b", "it/c"}, keys)

	empty := txn.Iterate([]byte("none/"))
	assert.False(t, empty.Next())
	require.NoError(t, empty.Close())
}

func testDiscard(t *testing.T, e Engine) {
	ctx := context.Background()

	txn, err := e.Begin(ctx, true)
	require.NoError(t, err)
	require.NoError(t, txn.Set([]byte("discard/a"), []byte("1")))
	txn.Discard()
	txn.Discard()

	txn, err = e.Begin(ctx, false)
	require.NoError(t, err)
	defer txn.Discard()
	_, err = txn.Get([]byte("discard/a"))
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func testReadOwnWrites(t *testing.T, e Engine) {
	ctx := context.Background()

	txn, err := e.Begin(ctx, true)
	require.NoError(t, err)
	defer txn.Discard()

	for i := 3; i > 0; i-- {
		require.NoError(t, txn.Set([]byte(fmt.Sprintf("own/%d", i)), []byte("x")))
	}
	v, err := txn.Get([]byte("own/2"))
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), v)

	it := txn.Iterate([]byte("own/"))
	n := 0
	for it.Next() {
		n++
	}
	require.NoError(t, it.Close())
	assert.Equal(t, 3, n)
}

func TestStoreOnEveryEngine(t *testing.T) {
	for name, backend := range engineBackends(t) {
		t.Run(name, func(t *testing.T) {
			s := openTestStore(t, backend)
			ctx := context.Background()

			require.NoError(t, s.SaveData(ctx, map[string]any{"date": "2024-01-02", "weight": 80.0}, "health"))
			require.NoError(t, s.SaveData(ctx, map[string]any{"date": "2024-01-01", "weight": 80.0}, "health"))
			require.NoError(t, s.SaveData(ctx, map[string]any{"date": "2024-01-01", "weight": 79.5}, "health"))

			records, err := s.GetTableData(ctx, "health")
			require.NoError(t, err)
			require.Len(t, records, 2)
			assert.Equal(t, "2024-01-01", records[0].Date())
			assert.Equal(t, 79.5, records[0]["weight"])

			got, err := s.Lookup(ctx, "health", "weight", 80.0)
			require.NoError(t, err)
			assert.Equal(t, []string{"2024-01-02"}, dates(got))
		})
	}
}

func TestPrefixEnd(t *testing.T) {
	assert.Equal(t, []byte("ab"), prefixEnd([]byte("aa")))
	assert.Equal(t, []byte("b"), prefixEnd([]byte{'a', 0xff}))
	assert.Nil(t, prefixEnd([]byte{0xff, 0xff}))
}
