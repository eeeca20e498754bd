package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/hazna-vm/hazna/hostlog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Execution.InitialRegSize != 64 {
		t.Errorf("Expected InitialRegSize=64, got %d", cfg.Execution.InitialRegSize)
	}
	if cfg.Execution.InitialFrameCap != 8 {
		t.Errorf("Expected InitialFrameCap=8, got %d", cfg.Execution.InitialFrameCap)
	}
	if cfg.Execution.IterLimit != 10000 {
		t.Errorf("Expected IterLimit=10000, got %d", cfg.Execution.IterLimit)
	}
	if !cfg.Execution.LoadCoreModule {
		t.Error("Expected LoadCoreModule=true")
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Expected Log.Level=info, got %s", cfg.Log.Level)
	}

	if cfg.Monitor.Enabled {
		t.Error("Expected Monitor.Enabled=false")
	}
	if cfg.Monitor.Addr != "127.0.0.1:7777" {
		t.Errorf("Expected Monitor.Addr=127.0.0.1:7777, got %s", cfg.Monitor.Addr)
	}
}

func TestConfigLogLevel(t *testing.T) {
	cfg := DefaultConfig()

	level, ok := cfg.LogLevel()
	if !ok || level != hostlog.Info {
		t.Errorf("Expected default log level Info, got %v (ok=%v)", level, ok)
	}

	cfg.Log.Level = "debug"
	if level, ok := cfg.LogLevel(); !ok || level != hostlog.Debug {
		t.Errorf("Expected Debug, got %v (ok=%v)", level, ok)
	}

	cfg.Log.Level = "not-a-level"
	if _, ok := cfg.LogLevel(); ok {
		t.Error("Expected LogLevel to report false for an unrecognized level")
	}
}

func TestGetConfigPath(t *testing.T) {
	path := GetConfigPath()

	if path == "" {
		t.Error("GetConfigPath returned empty string")
	}
	if filepath.Base(path) != "config.toml" {
		t.Errorf("Expected path to end with config.toml, got %s", path)
	}

	switch runtime.GOOS {
	case "windows":
		if !filepath.IsAbs(path) && path != "config.toml" {
			t.Errorf("Expected absolute path on Windows, got %s", path)
		}
	case "darwin", "linux":
		dir := filepath.Dir(path)
		if filepath.Base(dir) != "hazna" && path != "config.toml" {
			t.Errorf("Expected path in hazna directory or fallback, got %s", path)
		}
	}
}

func TestGetLogPath(t *testing.T) {
	path := GetLogPath()

	if path == "" {
		t.Error("GetLogPath returned empty string")
	}

	switch runtime.GOOS {
	case "windows":
		if !filepath.IsAbs(path) && path != "logs" {
			t.Errorf("Expected absolute path on Windows, got %s", path)
		}
	case "darwin", "linux":
		if filepath.Base(path) != "logs" {
			t.Errorf("Expected path to end with logs, got %s", path)
		}
	}
}

func TestSaveAndLoad(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "test_config.toml")

	cfg := DefaultConfig()
	cfg.Execution.IterLimit = 5_000_000
	cfg.Execution.LoadCoreModule = false
	cfg.Log.Level = "debug"
	cfg.Monitor.Enabled = true
	cfg.Monitor.Addr = "0.0.0.0:9000"

	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("Config file was not created")
	}

	loaded, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loaded.Execution.IterLimit != 5_000_000 {
		t.Errorf("Expected IterLimit=5000000, got %d", loaded.Execution.IterLimit)
	}
	if loaded.Execution.LoadCoreModule {
		t.Error("Expected LoadCoreModule=false")
	}
	if loaded.Log.Level != "debug" {
		t.Errorf("Expected Log.Level=debug, got %s", loaded.Log.Level)
	}
	if !loaded.Monitor.Enabled {
		t.Error("Expected Monitor.Enabled=true")
	}
	if loaded.Monitor.Addr != "0.0.0.0:9000" {
		t.Errorf("Expected Monitor.Addr=0.0.0.0:9000, got %s", loaded.Monitor.Addr)
	}
}

func TestLoadNonExistent(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "nonexistent.toml")

	cfg, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("LoadFrom should not error on non-existent file: %v", err)
	}
	if cfg.Execution.IterLimit != 10000 {
		t.Error("Expected default config when file doesn't exist")
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "invalid.toml")

	invalidTOML := `
[execution]
iter_limit = "not a number"
`
	if err := os.WriteFile(configPath, []byte(invalidTOML), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if _, err := LoadFrom(configPath); err == nil {
		t.Error("Expected error when loading invalid TOML")
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "subdir1", "subdir2", "config.toml")

	cfg := DefaultConfig()
	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("Config file was not created")
	}

	dir := filepath.Dir(configPath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Error("Parent directories were not created")
	}
}
