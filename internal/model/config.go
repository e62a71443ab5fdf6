package model

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig locates the SQLite database file.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// SyncConfig tunes the optimistic sync layer.
type SyncConfig struct {
	// RemoteTimeoutSec bounds every remote call; a timeout is a failure.
	RemoteTimeoutSec int `mapstructure:"remote_timeout_sec" yaml:"remote_timeout_sec"`
}

// RemoteTimeout returns the configured timeout as a duration.
func (c SyncConfig) RemoteTimeout() time.Duration {
	if c.RemoteTimeoutSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.RemoteTimeoutSec) * time.Second
}

// ColumnConfig maps one kanban column to a task status.
type ColumnConfig struct {
	ID     string `mapstructure:"id" yaml:"id"`
	Title  string `mapstructure:"title" yaml:"title"`
	Status string `mapstructure:"status" yaml:"status"`
}

// BoardConfig holds kanban layout preferences.
type BoardConfig struct {
	Columns []ColumnConfig `mapstructure:"columns" yaml:"columns"`
}

// NotifyConfig controls publishing of snapshot changes to Redis.
type NotifyConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`
	ChannelPrefix string `mapstructure:"channel_prefix" yaml:"channel_prefix"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	JSON  bool   `mapstructure:"json" yaml:"json"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Sync     SyncConfig     `mapstructure:"sync" yaml:"sync"`
	Board    BoardConfig    `mapstructure:"board" yaml:"board"`
	Notify   NotifyConfig   `mapstructure:"notify" yaml:"notify"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/workboard/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "workboard", "config.yaml")
}

// DefaultDatabasePath returns ~/.local/share/workboard/workboard.db.
func DefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "workboard.db")
	}
	return filepath.Join(home, ".local", "share", "workboard", "workboard.db")
}

// DefaultAppConfig returns the configuration used when no file exists.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Database: DatabaseConfig{Path: DefaultDatabasePath()},
		Sync:     SyncConfig{RemoteTimeoutSec: 10},
		Board:    BoardConfig{Columns: []ColumnConfig{}},
		Notify: NotifyConfig{
			RedisAddr:     "localhost:6379",
			ChannelPrefix: "workboard",
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A missing file is not an error: defaults and environment overrides apply.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("database.path", DefaultDatabasePath())
	v.SetDefault("sync.remote_timeout_sec", 10)
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.redis_addr", "localhost:6379")
	v.SetDefault("notify.redis_password", "")
	v.SetDefault("notify.redis_db", 0)
	v.SetDefault("notify.channel_prefix", "workboard")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	// WORKBOARD_DATABASE_PATH etc. override the file.
	v.SetEnvPrefix("WORKBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil && !isMissingConfig(err) {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	for i, col := range cfg.Board.Columns {
		if _, err := ParseTaskStatus(col.Status); err != nil {
			return nil, fmt.Errorf("board column %d (%s): %w", i, col.ID, err)
		}
	}

	return cfg, nil
}

func isMissingConfig(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound)
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

	v.Set("database", cfg.Database)
	v.Set("sync", cfg.Sync)
	v.Set("board", cfg.Board)
	v.Set("notify", cfg.Notify)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
