// Package config loads and saves the TOML-backed configuration for
// cmd/hza: execution defaults passed to task_create/run, the log
// sink's level and destination, and the monitor HTTP server's
// settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
	"github.com/hazna-vm/hazna/hostlog"
)

// Config holds every setting cmd/hza reads at startup.
type Config struct {
	// Execution settings: defaults for task_create and run when a
	// command-line flag doesn't override them.
	Execution struct {
		InitialRegSize  uint32 `toml:"initial_reg_size"`
		InitialFrameCap uint32 `toml:"initial_frame_cap"`
		IterLimit       uint64 `toml:"iter_limit"`
		LoadCoreModule  bool   `toml:"load_core_module"`
	} `toml:"execution"`

	// Log settings: the sink every World.Log() writes through.
	Log struct {
		Level      string `toml:"level"` // none, fatal, error, warning, info, debug
		OutputFile string `toml:"output_file"`
	} `toml:"log"`

	// Monitor settings: the HTTP+websocket observability server.
	Monitor struct {
		Enabled          bool   `toml:"enabled"`
		Addr             string `toml:"addr"`
		PollIntervalMs   int    `toml:"poll_interval_ms"`
		WebsocketBacklog int    `toml:"websocket_backlog"`
	} `toml:"monitor"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Execution.InitialRegSize = 64
	cfg.Execution.InitialFrameCap = 8
	cfg.Execution.IterLimit = 10000
	cfg.Execution.LoadCoreModule = true

	cfg.Log.Level = "info"
	cfg.Log.OutputFile = ""

	cfg.Monitor.Enabled = false
	cfg.Monitor.Addr = "127.0.0.1:7777"
	cfg.Monitor.PollIntervalMs = 500
	cfg.Monitor.WebsocketBacklog = 32

	return cfg
}

// GetConfigPath returns the platform-specific config file path.
func GetConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		configDir = filepath.Join(configDir, "hazna")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "hazna")

	default:
		return "config.toml"
	}

	if err := os.MkdirAll(configDir, 0750); err != nil {
		return "config.toml"
	}

	return filepath.Join(configDir, "config.toml")
}

// GetLogPath returns the platform-specific log directory path.
func GetLogPath() string {
	var logDir string

	switch runtime.GOOS {
	case "windows":
		logDir = os.Getenv("APPDATA")
		if logDir == "" {
			logDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		logDir = filepath.Join(logDir, "hazna", "logs")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "logs"
		}
		logDir = filepath.Join(homeDir, ".local", "share", "hazna", "logs")

	default:
		return "logs"
	}

	if err := os.MkdirAll(logDir, 0750); err != nil {
		return "logs"
	}

	return logDir
}

// Load loads configuration from the default config file.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads configuration from the specified file, falling back
// to defaults if the file doesn't exist.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save saves configuration to the default config file.
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo saves configuration to the specified file.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path) // #nosec G304 -- user config file path
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close config file: %w", closeErr)
		}
	}()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// LogLevel parses the configured log level string, returning false for
// an unrecognized value (callers should fall back to a safe default
// rather than panicking on a typo in a hand-edited config file).
func (c *Config) LogLevel() (hostlog.Level, bool) {
	switch c.Log.Level {
	case "none":
		return hostlog.None, true
	case "fatal":
		return hostlog.Fatal, true
	case "error":
		return hostlog.Error, true
	case "warning":
		return hostlog.Warning, true
	case "info":
		return hostlog.Info, true
	case "debug":
		return hostlog.Debug, true
	default:
		return hostlog.None, false
	}
}
