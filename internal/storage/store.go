// ABOUTME: Store owns the connection lifecycle for one tracker database.
// ABOUTME: Open resolves asynchronously and runs the upgrade step before success.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/harperreed/trackle/internal/models"
	"github.com/looplab/fsm"
)

// Lifecycle states.
const (
	StateUnopened  = "unopened"
	StateUpgrading = "upgrading"
	StateReady     = "ready"
	StateFailed    = "failed"
)

const (
	eventUpgrade = "upgrade"
	eventReady   = "ready"
	eventFail    = "fail"
	eventReopen  = "reopen"
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithSchema replaces DefaultSchema.
func WithSchema(schema Schema) Option {
	return func(s *Store) {
		s.schema = schema
	}
}

// WithUpgradeHook registers fn to run during every upgrade step.
func WithUpgradeHook(fn UpgradeFunc) Option {
	return func(s *Store) {
		s.hooks = append(s.hooks, fn)
	}
}

// WithAtomicUpsert makes Upsert check and write inside one transaction.
func WithAtomicUpsert() Option {
	return func(s *Store) {
		s.atomicUpsert = true
	}
}

// Store is a tracker database on top of a Backend. It is safe for
// concurrent use.
type Store struct {
	backend      Backend
	schema       Schema
	hooks        []UpgradeFunc
	atomicUpsert bool
	logger       *log.Logger

	// openMu serializes open attempts.
	openMu sync.Mutex

	// mu guards conn and state transitions.
	mu      sync.RWMutex
	conn    *Conn
	machine *fsm.FSM
}

// New creates a store in the unopened state.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		schema:  DefaultSchema,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = loggerOrDiscard(s.logger)

	s.machine = fsm.NewFSM(
		StateUnopened,
		fsm.Events{
			{Name: eventUpgrade, Src: []string{StateUnopened}, Dst: StateUpgrading},
			{Name: eventReady, Src: []string{StateUnopened, StateUpgrading}, Dst: StateReady},
			{Name: eventFail, Src: []string{StateUnopened, StateUpgrading}, Dst: StateFailed},
			{Name: eventReopen, Src: []string{StateReady, StateFailed}, Dst: StateUnopened},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				s.logger.Debug("connection state", "from", e.Src, "to", e.Dst)
			},
		},
	)
	return s
}

func loggerOrDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return log.New(io.Discard)
	}
	return l
}

// State returns the current lifecycle state.
func (s *Store) State() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.machine.Current()
}

// Conn is a live database connection.
type Conn struct {
	id      uuid.UUID
	name    string
	version int
	engine  Engine
	tables  map[string]TableSchema

	// mu is held shared by every open table transaction and exclusively by close.
	mu     sync.RWMutex
	closed bool
}

// ID identifies the connection. The upgrade step and the resolved open
// request see the same ID.
func (c *Conn) ID() uuid.UUID { return c.id }

// Name returns the database name.
func (c *Conn) Name() string { return c.name }

// Version returns the schema version the connection was opened at.
func (c *Conn) Version() int { return c.version }

// Tables returns the table definitions, sorted by name.
func (c *Conn) Tables() []TableSchema {
	out := make([]TableSchema, 0, len(c.tables))
	for _, name := range sortedKeys(c.tables) {
		out = append(out, c.tables[name])
	}
	return out
}

// close waits for open table transactions, then releases the engine.
func (c *Conn) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.engine.Close()
}

// OpenRequest is a pending open. Exactly one of success or error is reported.
type OpenRequest struct {
	done     chan struct{}
	conn     *Conn
	err      error
	upgraded bool
}

// Wait blocks until the open resolves or ctx is done.
func (r *OpenRequest) Wait(ctx context.Context) (*Conn, error) {
	select {
	case <-r.done:
		return r.conn, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed once the request resolves.
func (r *OpenRequest) Done() <-chan struct{} {
	return r.done
}

// Upgraded reports whether the upgrade step ran. Only meaningful after Done.
func (r *OpenRequest) Upgraded() bool {
	return r.upgraded
}

func (r *OpenRequest) resolve(conn *Conn, err error) *OpenRequest {
	r.conn, r.err = conn, err
	close(r.done)
	return r
}

// Open starts opening the named database at version and returns at once.
// Any live connection is dropped immediately; operations fail with
// ErrUnavailable until the request succeeds.
func (s *Store) Open(ctx context.Context, name string, version int) *OpenRequest {
	req := &OpenRequest{done: make(chan struct{})}
	if name == "" {
		return req.resolve(nil, ErrNoName)
	}
	if version < 1 {
		return req.resolve(nil, fmt.Errorf("%w: %d must be at least 1", ErrVersion, version))
	}

	s.dropConn(ctx)
	go func() {
		s.openMu.Lock()
		defer s.openMu.Unlock()
		s.dropConn(ctx)

		conn, err := s.open(ctx, name, version, req)
		if err != nil {
			s.logger.Error("open database failed", "db", name, "version", version, "err", err)
			s.transition(ctx, eventFail)
			req.resolve(nil, err)
			return
		}

		s.mu.Lock()
		s.conn = conn
		s.fire(ctx, eventReady)
		s.mu.Unlock()

		s.logger.Info("database ready", "db", name, "version", version, "conn", conn.id)
		req.resolve(conn, nil)
	}()
	return req
}

// Connect opens the named database and waits for the result.
func (s *Store) Connect(ctx context.Context, name string, version int) (*Conn, error) {
	return s.Open(ctx, name, version).Wait(ctx)
}

func (s *Store) open(ctx context.Context, name string, version int, req *OpenRequest) (*Conn, error) {
	engine, err := s.backend.Open(name)
	if err != nil {
		return nil, backendErr("open", "", err)
	}

	stored, tables, err := readMeta(ctx, engine)
	if err != nil {
		_ = engine.Close()
		return nil, err
	}
	if version < stored {
		_ = engine.Close()
		return nil, fmt.Errorf("%w: requested %d, database is at %d", ErrVersion, version, stored)
	}

	conn := &Conn{
		id:      uuid.New(),
		name:    name,
		version: version,
		engine:  engine,
		tables:  tables,
	}
	if version == stored {
		return conn, nil
	}

	req.upgraded = true
	s.transition(ctx, eventUpgrade)
	s.logger.Info("upgrading database", "db", name, "from", stored, "to", version, "conn", conn.id)

	upgraded, err := s.upgrade(ctx, conn, stored)
	if err != nil {
		_ = engine.Close()
		return nil, fmt.Errorf("%w: %w", ErrUpgrade, err)
	}
	conn.tables = upgraded
	return conn, nil
}

// upgrade runs the schema and hooks in one write transaction and commits
// the new version with them.
func (s *Store) upgrade(ctx context.Context, conn *Conn, oldVersion int) (map[string]TableSchema, error) {
	txn, err := conn.engine.Begin(ctx, true)
	if err != nil {
		return nil, backendErr("begin upgrade", "", err)
	}
	defer txn.Discard()

	up := &Upgrade{
		OldVersion: oldVersion,
		NewVersion: conn.version,
		conn:       conn,
		txn:        txn,
		tables:     copyTables(conn.tables),
	}
	defer func() { up.txn = nil }()

	if oldVersion == 0 {
		if err := s.schema.Apply(up); err != nil {
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	for _, hook := range s.hooks {
		if err := hook(up); err != nil {
			return nil, fmt.Errorf("upgrade hook: %w", err)
		}
	}
	if err := txn.Set(versionKey, []byte(strconv.Itoa(conn.version))); err != nil {
		return nil, backendErr("write version", "", err)
	}
	if err := txn.Commit(); err != nil {
		return nil, backendErr("commit upgrade", "", err)
	}
	return up.tables, nil
}

func readMeta(ctx context.Context, engine Engine) (int, map[string]TableSchema, error) {
	txn, err := engine.Begin(ctx, false)
	if err != nil {
		return 0, nil, backendErr("begin", "", err)
	}
	defer txn.Discard()

	version := 0
	raw, err := txn.Get(versionKey)
	switch {
	case errors.Is(err, ErrKeyNotFound):
	case err != nil:
		return 0, nil, backendErr("read version", "", err)
	default:
		version, err = strconv.Atoi(string(raw))
		if err != nil {
			return 0, nil, backendErr("read version", "", err)
		}
	}

	tables, err := loadTables(txn)
	if err != nil {
		return 0, nil, backendErr("read tables", "", err)
	}
	return version, tables, nil
}

// Close drops the live connection and returns the store to unopened.
func (s *Store) Close() error {
	return s.detach(context.Background())
}

// dropConn detaches the live connection, logging a failed close.
func (s *Store) dropConn(ctx context.Context) {
	if err := s.detach(ctx); err != nil {
		s.logger.Warn("closing previous connection failed", "err", err)
	}
}

func (s *Store) detach(ctx context.Context) error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	if s.machine.Can(eventReopen) {
		s.fire(ctx, eventReopen)
	}
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	s.logger.Debug("closing connection", "db", conn.name, "conn", conn.id)
	if err := conn.close(); err != nil {
		return backendErr("close", "", err)
	}
	return nil
}

// transition fires an event under the store lock.
func (s *Store) transition(ctx context.Context, event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fire(ctx, event)
}

// fire must be called with mu held.
func (s *Store) fire(ctx context.Context, event string) {
	if err := s.machine.Event(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("lifecycle transition rejected", "event", event, "state", s.machine.Current(), "err", err)
	}
}

// live returns the connection when the store is ready.
func (s *Store) live() (*Conn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil || s.machine.Current() != StateReady {
		return nil, ErrUnavailable
	}
	return s.conn, nil
}

// Conn returns the live connection.
func (s *Store) Conn() (*Conn, error) {
	return s.live()
}

func copyTables(in map[string]TableSchema) map[string]TableSchema {
	out := make(map[string]TableSchema, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]TableSchema) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func encodeRecord(rec models.Record) ([]byte, error) {
	return json.Marshal(rec)
}

func decodeRecord(raw []byte) (models.Record, error) {
	var rec models.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}
