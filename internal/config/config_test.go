// ABOUTME: Tests for tracker configuration management.
// ABOUTME: Covers load, save, env overrides, defaults, backend selection, and path expansion.
package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/harperreed/trackle/internal/charm"
	"github.com/harperreed/trackle/internal/logging"
	"github.com/harperreed/trackle/internal/models"
	"github.com/harperreed/trackle/internal/storage"
)

func TestDefaults(t *testing.T) {
	cfg := &Config{}
	if got := cfg.GetBackend(); got != BackendBadger {
		t.Errorf("GetBackend() = %q, want %q", got, BackendBadger)
	}
	if got := cfg.GetDBName(); got != storage.DefaultDBName {
		t.Errorf("GetDBName() = %q, want %q", got, storage.DefaultDBName)
	}
	if got := cfg.GetLogLevel(); got != logging.DefaultLevel {
		t.Errorf("GetLogLevel() = %q, want %q", got, logging.DefaultLevel)
	}
	if got := cfg.GetDataDir(); got == "" {
		t.Error("GetDataDir() returned empty string")
	}
}

func TestGetDataDirExplicit(t *testing.T) {
	cfg := &Config{DataDir: "/tmp/trackle-test"}
	if got := cfg.GetDataDir(); got != "/tmp/trackle-test" {
		t.Errorf("GetDataDir() = %q, want %q", got, "/tmp/trackle-test")
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/tmp/foo", "/tmp/foo"},
		{"~", home},
		{"~/data/trackle", filepath.Join(home, "data/trackle")},
		{"data/trackle", "data/trackle"},
	}
	for _, tt := range tests {
		if got := ExpandPath(tt.in); got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGetDataDirExpandsTilde(t *testing.T) {
	home, _ := os.UserHomeDir()

	cfg := &Config{DataDir: "~/trackle-data"}
	got := cfg.GetDataDir()
	want := filepath.Join(home, "trackle-data")
	if got != want {
		t.Errorf("GetDataDir() = %q, want %q", got, want)
	}
}

func TestLoadNonExistentConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with no config file should not error: %v", err)
	}
	if cfg.Backend != "" || cfg.DataDir != "" || cfg.DBName != "" {
		t.Errorf("expected empty config, got %+v", cfg)
	}
}

func TestSaveAndLoad(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := &Config{
		Backend: BackendLevelDB,
		DataDir: "/tmp/trackle-data",
		DBName:  "family",
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("loaded %+v, want %+v", loaded, cfg)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := &Config{Backend: BackendLevelDB, DBName: "family"}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	t.Setenv("TRACKLE_BACKEND", BackendSQLite)
	t.Setenv("TRACKLE_LOG_LEVEL", "debug")

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if loaded.Backend != BackendSQLite {
		t.Errorf("Backend = %q, want %q", loaded.Backend, BackendSQLite)
	}
	if loaded.DBName != "family" {
		t.Errorf("DBName = %q, want file value %q", loaded.DBName, "family")
	}
	if loaded.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", loaded.LogLevel, "debug")
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "nonexistent"))

	cfg := &Config{Backend: BackendSQLite}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() should create directory: %v", err)
	}

	configDir := filepath.Join(tmpDir, "nonexistent", "trackle")
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		t.Error("Expected config directory to be created")
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	configDir := filepath.Join(tmpDir, "trackle")
	if err := os.MkdirAll(configDir, 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.json"), []byte("invalid json"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(); err == nil {
		t.Error("Expected error for invalid JSON config")
	}
}

func TestGetConfigPath(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	got := GetConfigPath()
	want := filepath.Join(tmpDir, "trackle", "config.json")
	if got != want {
		t.Errorf("GetConfigPath() = %q, want %q", got, want)
	}
}

func TestOpenBackendSelection(t *testing.T) {
	dir := t.TempDir()
	logger := logging.Discard()

	tests := []struct {
		backend string
		check   func(storage.Backend) bool
	}{
		{"", func(b storage.Backend) bool { bb, ok := b.(*storage.BadgerBackend); return ok && bb.Dir == dir }},
		{BackendLevelDB, func(b storage.Backend) bool { _, ok := b.(*storage.LevelDBBackend); return ok }},
		{BackendSQLite, func(b storage.Backend) bool { _, ok := b.(*storage.SQLiteBackend); return ok }},
		{BackendCharm, func(b storage.Backend) bool { _, ok := b.(*charm.Backend); return ok }},
		{BackendMemory, func(b storage.Backend) bool { bb, ok := b.(*storage.BadgerBackend); return ok && bb.InMemory }},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := &Config{Backend: tt.backend, DataDir: dir}
			b, err := cfg.OpenBackend(logger)
			if err != nil {
				t.Fatalf("OpenBackend() failed: %v", err)
			}
			if !tt.check(b) {
				t.Errorf("unexpected backend %T", b)
			}
		})
	}
}

func TestOpenBackendInvalid(t *testing.T) {
	cfg := &Config{Backend: "invalid", DataDir: "/tmp"}
	if _, err := cfg.OpenBackend(logging.Discard()); err == nil {
		t.Error("Expected error for invalid backend")
	}
}

func TestOpenStoreSQLite(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := &Config{Backend: BackendSQLite, DataDir: tmpDir}

	store, _, err := cfg.OpenStore(context.Background(), logging.Discard())
	if err != nil {
		t.Fatalf("OpenStore() failed: %v", err)
	}
	defer store.Close()

	if err := store.SaveData(context.Background(), models.NewRecord("2024-01-05"), models.TableHealth); err != nil {
		t.Fatalf("SaveData() failed: %v", err)
	}

	dbPath := filepath.Join(tmpDir, storage.DefaultDBName+".db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("Expected %s to be created", dbPath)
	}
}

func TestConfigJSONOmitsEmpty(t *testing.T) {
	data, err := json.Marshal(&Config{})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != "{}" {
		t.Errorf("Expected empty JSON object, got %s", string(data))
	}
}
