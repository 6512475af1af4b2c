package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// BackupInterval selects how often a persisted save triggers a backup
type BackupInterval string

const (
	IntervalEachSave  BackupInterval = "each_save"
	IntervalTenMin    BackupInterval = "10min"
	IntervalThirtyMin BackupInterval = "30min"
	IntervalHour      BackupInterval = "1h"
	IntervalTwoHours  BackupInterval = "2h"
	IntervalFourHours BackupInterval = "4h"
	IntervalDay       BackupInterval = "1d"
	IntervalWeek      BackupInterval = "1w"
	IntervalCustom    BackupInterval = "custom"
	IntervalOnQuit    BackupInterval = "on_quit"
)

// Config represents the plugin configuration
type Config struct {
	Disabled             bool           `yaml:"disabled" json:"disabled"`
	Asynchronous         bool           `yaml:"asynchronous" json:"asynchronous"`
	BackupInterval       BackupInterval `yaml:"backup_interval" json:"backup_interval"`
	CustomBackupInterval int            `yaml:"custom_backup_interval" json:"custom_backup_interval"` // minutes
	BackupPath           string         `yaml:"backup_path" json:"backup_path"`
	SaveRoot             string         `yaml:"save_root" json:"save_root"`
	SaveFileName         string         `yaml:"save_file_name" json:"save_file_name"`
	Exclude              []string       `yaml:"exclude" json:"exclude"`
	Compress             bool           `yaml:"compress" json:"compress"`
	MaxBackupsPerSet     int            `yaml:"max_backups_per_set" json:"max_backups_per_set"`
	BackupAllCron        string         `yaml:"backup_all_cron" json:"backup_all_cron"`
	TickInterval         time.Duration  `yaml:"tick_interval" json:"tick_interval"`
	SaveSettleTime       time.Duration  `yaml:"save_settle_time" json:"save_settle_time"` // quiet period after the last save file write
	Logging              LoggingConfig  `yaml:"logging" json:"logging"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		BackupInterval:       IntervalEachSave,
		CustomBackupInterval: 60,
		BackupPath:           "./saves/backup",
		SaveRoot:             "./saves",
		SaveFileName:         "persistent.sfs",
		Compress:             false,
		TickInterval:         250 * time.Millisecond,
		SaveSettleTime:       30 * time.Second,
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		},
	}
}

// Load loads configuration from the resolved config file and environment variables
func Load() (*Config, error) {
	return LoadFile(resolveConfigPath())
}

// LoadFile loads configuration from path. A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration for values the scheduler cannot work with.
// Unknown backup intervals are accepted; the trigger policy treats them as each_save.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BackupPath) == "" {
		return fmt.Errorf("backup_path must not be empty")
	}
	if strings.TrimSpace(c.SaveRoot) == "" {
		return fmt.Errorf("save_root must not be empty")
	}
	if c.CustomBackupInterval < 0 {
		return fmt.Errorf("custom_backup_interval must not be negative")
	}
	if c.MaxBackupsPerSet < 0 {
		return fmt.Errorf("max_backups_per_set must not be negative")
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive")
	}
	if c.SaveSettleTime < 0 {
		return fmt.Errorf("save_settle_time must not be negative")
	}
	return nil
}

// IsExcluded reports whether the save set name is on the exclude list
func (c *Config) IsExcluded(name string) bool {
	for _, entry := range c.Exclude {
		if strings.TrimSpace(entry) == name {
			return true
		}
	}
	return false
}

func (c *Config) normalize() {
	c.BackupInterval = BackupInterval(strings.ToLower(strings.TrimSpace(string(c.BackupInterval))))
	if c.BackupInterval == "" {
		c.BackupInterval = IntervalEachSave
	}
	if c.SaveFileName == "" {
		c.SaveFileName = "persistent.sfs"
	}
	if c.TickInterval == 0 {
		c.TickInterval = 250 * time.Millisecond
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SAVEBACKUP_BACKUP_PATH"); v != "" {
		c.BackupPath = v
	}
	if v := os.Getenv("SAVEBACKUP_SAVE_ROOT"); v != "" {
		c.SaveRoot = v
	}
	if v := os.Getenv("SAVEBACKUP_INTERVAL"); v != "" {
		c.BackupInterval = BackupInterval(v)
	}
	if v := os.Getenv("SAVEBACKUP_DISABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Disabled = b
		}
	}
	if v := os.Getenv("SAVEBACKUP_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func resolveConfigPath() string {
	return getEnv("SAVEBACKUP_CONFIG", filepath.Join(".", "plugins", "SaveBackupManager", "config.yaml"))
}

// GetConfigPath returns the config file location Load reads from
func GetConfigPath() string {
	return resolveConfigPath()
}

// WriteDefault writes the default configuration to path unless a file is
// already there. It reports whether a file was written.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to check config file %s: %w", path, err)
	}
	if err := Save(Default(), path); err != nil {
		return false, err
	}
	return true, nil
}
