// ABOUTME: Charm KV storage backend with automatic cloud sync.
// ABOUTME: Runs the managed badger engine on the charm KV database; commits go through the KV.
package charm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/charm/client"
	"github.com/charmbracelet/charm/kv"
	"github.com/charmbracelet/log"
	"github.com/dgraph-io/badger/v3"
	"github.com/harperreed/trackle/internal/storage"
)

// DefaultHost is the charm server used when none is configured.
const DefaultHost = "charm.2389.dev"

// ErrNotOpen is returned by Sync when no database has been opened.
var ErrNotOpen = errors.New("charm database not open")

// Backend opens charm KV databases as storage engines.
type Backend struct {
	// Host overrides CHARM_HOST. Empty keeps the environment value or DefaultHost.
	Host   string
	Logger *log.Logger

	mu sync.Mutex
	kv *kv.KV
}

// Open opens the named charm KV database. Writes commit through the KV so
// each one takes a cloud sequence number and is backed up to Charm Cloud.
func (b *Backend) Open(name string) (storage.Engine, error) {
	if err := os.Setenv("CHARM_HOST", resolveHost(b.Host, os.Getenv("CHARM_HOST"))); err != nil {
		return nil, fmt.Errorf("set charm host: %w", err)
	}

	db, err := kv.OpenWithDefaults(name)
	if err != nil {
		return nil, fmt.Errorf("open charm kv %s: %w", name, err)
	}
	if err := db.Sync(); err != nil {
		// Pull remote data on startup; offline reads keep working.
		b.logger().Warn("charm sync failed", "db", name, "err", err)
	}

	b.mu.Lock()
	b.kv = db
	b.mu.Unlock()

	return &storage.ManagedBadgerEngine{
		DB:         db.DB,
		BeginWrite: func() (*badger.Txn, error) { return db.NewTransaction(true) },
		CommitWrite: func(txn *badger.Txn) error {
			return db.Commit(txn, nil)
		},
		CloseFunc: b.closeFunc(db),
	}, nil
}

func (b *Backend) closeFunc(db *kv.KV) func() error {
	return func() error {
		b.mu.Lock()
		if b.kv == db {
			b.kv = nil
		}
		b.mu.Unlock()
		return db.Close()
	}
}

// Sync synchronizes the open database with Charm Cloud.
func (b *Backend) Sync() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.kv == nil {
		return ErrNotOpen
	}
	return b.kv.Sync()
}

func (b *Backend) logger() *log.Logger {
	if b.Logger == nil {
		return log.New(io.Discard)
	}
	return b.Logger
}

// Reset wipes the local copy of the named database and rebuilds it from
// Charm Cloud. The database must not be open in this process.
func Reset(name, host string) error {
	if err := os.Setenv("CHARM_HOST", resolveHost(host, os.Getenv("CHARM_HOST"))); err != nil {
		return fmt.Errorf("set charm host: %w", err)
	}
	db, err := kv.OpenWithDefaults(name)
	if err != nil {
		return fmt.Errorf("open charm kv %s (is another trackle process running?): %w", name, err)
	}
	defer db.Close()
	return db.Reset()
}

// ID returns the Charm user ID for the current account.
func ID() (string, error) {
	cc, err := client.NewClientWithDefaults()
	if err != nil {
		return "", fmt.Errorf("create charm client: %w", err)
	}
	return cc.ID()
}

func resolveHost(configured, env string) string {
	switch {
	case configured != "":
		return configured
	case env != "":
		return env
	default:
		return DefaultHost
	}
}
