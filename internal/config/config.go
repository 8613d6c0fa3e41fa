// ABOUTME: Tracker configuration management with backend selection.
// ABOUTME: Reads the JSON config file, applies environment overrides, and builds the storage backend.

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/charmbracelet/log"
	"github.com/harperreed/trackle/internal/charm"
	"github.com/harperreed/trackle/internal/logging"
	"github.com/harperreed/trackle/internal/storage"
)

// Backend names.
const (
	BackendBadger  = "badger"
	BackendLevelDB = "leveldb"
	BackendSQLite  = "sqlite"
	BackendCharm   = "charm"
	BackendMemory  = "memory"
)

// Backends lists every supported backend name.
var Backends = []string{BackendBadger, BackendLevelDB, BackendSQLite, BackendCharm, BackendMemory}

// Config stores tracker configuration.
type Config struct {
	// Backend selects the storage engine. Defaults to "badger".
	Backend string `json:"backend,omitempty" env:"TRACKLE_BACKEND"`

	// DataDir is the root directory for data storage. Every file-backed
	// engine keeps its databases here under distinct names.
	// Supports ~ expansion. Defaults to ~/.local/share/trackle.
	DataDir string `json:"data_dir,omitempty" env:"TRACKLE_DATA_DIR"`

	// DBName is the database to open. Defaults to "tracker".
	DBName string `json:"db_name,omitempty" env:"TRACKLE_DB_NAME"`

	LogLevel string `json:"log_level,omitempty" env:"TRACKLE_LOG_LEVEL"`

	// CharmHost is the charm server for the charm backend.
	CharmHost string `json:"charm_host,omitempty" env:"TRACKLE_CHARM_HOST"`
}

// GetBackend returns the configured backend, defaulting to "badger".
func (c *Config) GetBackend() string {
	if c.Backend == "" {
		return BackendBadger
	}
	return c.Backend
}

// GetDataDir returns the configured data directory with ~ expanded,
// defaulting to the standard XDG data directory.
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return storage.DataDir()
	}
	return ExpandPath(c.DataDir)
}

// GetDBName returns the configured database name, defaulting to "tracker".
func (c *Config) GetDBName() string {
	if c.DBName == "" {
		return storage.DefaultDBName
	}
	return c.DBName
}

// GetLogLevel returns the configured log level, defaulting to "warn".
func (c *Config) GetLogLevel() string {
	if c.LogLevel == "" {
		return logging.DefaultLevel
	}
	return c.LogLevel
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// OpenBackend creates the storage backend for the configured engine.
func (c *Config) OpenBackend(logger *log.Logger) (storage.Backend, error) {
	dataDir := c.GetDataDir()

	switch c.GetBackend() {
	case BackendBadger:
		return &storage.BadgerBackend{Dir: dataDir, Logger: logger}, nil
	case BackendLevelDB:
		return &storage.LevelDBBackend{Dir: dataDir, Logger: logger}, nil
	case BackendSQLite:
		return &storage.SQLiteBackend{Dir: dataDir}, nil
	case BackendCharm:
		return &charm.Backend{Host: c.CharmHost, Logger: logger}, nil
	case BackendMemory:
		return &storage.BadgerBackend{InMemory: true, Logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown backend: %q", c.Backend)
	}
}

// OpenStore builds the backend, opens the configured database at the
// current schema version, and waits for it to be ready.
func (c *Config) OpenStore(ctx context.Context, logger *log.Logger, opts ...storage.Option) (*storage.Store, storage.Backend, error) {
	backend, err := c.OpenBackend(logger)
	if err != nil {
		return nil, nil, err
	}
	opts = append([]storage.Option{storage.WithLogger(logger)}, opts...)
	store := storage.New(backend, opts...)
	if _, err := store.Connect(ctx, c.GetDBName(), storage.SchemaVersion); err != nil {
		return nil, nil, fmt.Errorf("open database %s: %w", c.GetDBName(), err)
	}
	return store, backend, nil
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "trackle", "config.json")
}

// Load reads config from disk, then applies environment overrides.
func Load() (*Config, error) {
	cfg, err := loadFile(GetConfigPath())
	if err != nil {
		return nil, err
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes config to disk.
func (c *Config) Save() error {
	path := GetConfigPath()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
