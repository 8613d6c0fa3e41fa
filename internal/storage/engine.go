// ABOUTME: Ordered key-value engine contract shared by every storage backend.
// ABOUTME: The store layers tables, indexes, and versions on top of these interfaces.
package storage

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Txn.Get when a key is absent.
var ErrKeyNotFound = errors.New("key not found")

// Backend opens named databases. Each name maps to its own engine instance.
type Backend interface {
	Open(name string) (Engine, error)
}

// Engine is an open database.
type Engine interface {
	// Begin starts a transaction. Read-only transactions see a consistent snapshot.
	Begin(ctx context.Context, writable bool) (Txn, error)
	Close() error
}

// Txn is a single engine transaction. Discard is safe to call after Commit
// and more than once. Iterators must be closed before Commit or Discard.
type Txn interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	// Iterate yields every key starting with prefix in ascending byte order.
	Iterate(prefix []byte) Iterator
	Commit() error
	Discard()
}

// Iterator walks keys in ascending order. Call Next before the first Key.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() ([]byte, error)
	Err() error
	Close() error
}

// prefixEnd returns the smallest key greater than every key with prefix,
// or nil when no such key exists.
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
