package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// ServerConfig holds the connection settings for the mail backend.
type ServerConfig struct {
	// BaseURL is the root URL of the backend REST API.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// WebSocketURL is the root URL for the push channel. When empty it
	// is derived from BaseURL by swapping the scheme to ws/wss.
	WebSocketURL string `mapstructure:"websocket_url" yaml:"websocket_url"`

	// SyncReloadDelaySec is how long to wait after triggering a backend
	// sync before reloading the message list. The backend ingests
	// upstream mail asynchronously and does not report completion.
	SyncReloadDelaySec int `mapstructure:"sync_reload_delay_sec" yaml:"sync_reload_delay_sec"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum zerolog level ("debug", "info", "warn", ...).
	Level string `mapstructure:"level" yaml:"level"`

	// File is the log file path. TUIs own the terminal, so logs never
	// go to stdout.
	File string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/maildeck/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "maildeck", "config.yaml")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "maildeck.log")
	}
	return filepath.Join(home, ".local", "state", "maildeck", "maildeck.log")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			BaseURL:            "http://localhost:8001",
			SyncReloadDelaySec: 3,
		},
		Display: DisplayConfig{
			Theme: "default",
		},
		Log: LogConfig{
			Level: "info",
			File:  DefaultLogPath(),
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("server.base_url", "http://localhost:8001")
	v.SetDefault("server.sync_reload_delay_sec", 3)
	v.SetDefault("display.theme", "default")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", DefaultLogPath())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Server.SyncReloadDelaySec <= 0 {
		cfg.Server.SyncReloadDelaySec = 3
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server", cfg.Server)
	v.Set("display", cfg.Display)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
