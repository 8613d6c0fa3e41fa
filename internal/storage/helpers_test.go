// ABOUTME: Shared helpers for storage tests.
// ABOUTME: Provides in-memory stores and engine wrappers that block or fail on demand.
package storage

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func memoryBackend() Backend {
	return &BadgerBackend{InMemory: true}
}

// newTestStore returns a store opened on a fresh in-memory database.
func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	return openTestStore(t, memoryBackend(), opts...)
}

func openTestStore(t *testing.T, backend Backend, opts ...Option) *Store {
	t.Helper()
	s := New(backend, opts...)
	_, err := s.Connect(context.Background(), DefaultDBName, SchemaVersion)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// gatedBackend blocks Open until gate is closed.
type gatedBackend struct {
	Backend
	gate chan struct{}
}

func (g *gatedBackend) Open(name string) (Engine, error) {
	<-g.gate
	return g.Backend.Open(name)
}

// failingBackend always fails to open.
type failingBackend struct{}

func (failingBackend) Open(string) (Engine, error) {
	return nil, errBoom
}

// faultyBackend wraps engines so record scans fail after one record once
// failScan is set.
type faultyBackend struct {
	Backend
	failScan atomic.Bool
}

func (f *faultyBackend) Open(name string) (Engine, error) {
	e, err := f.Backend.Open(name)
	if err != nil {
		return nil, err
	}
	return &faultyEngine{Engine: e, backend: f}, nil
}

type faultyEngine struct {
	Engine
	backend *faultyBackend
}

func (e *faultyEngine) Begin(ctx context.Context, writable bool) (Txn, error) {
	txn, err := e.Engine.Begin(ctx, writable)
	if err != nil {
		return nil, err
	}
	return &faultyTxn{Txn: txn, backend: e.backend}, nil
}

type faultyTxn struct {
	Txn
	backend *faultyBackend
}

func (t *faultyTxn) Iterate(prefix []byte) Iterator {
	it := t.Txn.Iterate(prefix)
	if t.backend.failScan.Load() && bytes.HasPrefix(prefix, dataBucket.prefix()) {
		return &failingIterator{Iterator: it, after: 1}
	}
	return it
}

type failingIterator struct {
	Iterator
	after int
	seen  int
	err   error
}

func (i *failingIterator) Next() bool {
	if i.seen >= i.after {
		i.err = errBoom
		return false
	}
	if !i.Iterator.Next() {
		return false
	}
	i.seen++
	return true
}

func (i *failingIterator) Err() error {
	return i.err
}

// closeFailBackend hands out engines whose Close reports errBoom after
// releasing the database.
type closeFailBackend struct {
	Backend
}

func (c closeFailBackend) Open(name string) (Engine, error) {
	e, err := c.Backend.Open(name)
	if err != nil {
		return nil, err
	}
	return closeFailEngine{Engine: e}, nil
}

type closeFailEngine struct {
	Engine
}

func (e closeFailEngine) Close() error {
	_ = e.Engine.Close()
	return errBoom
}
