package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const defaultConfigFile = "config.yaml"

// Config keeps runtime settings for the app.
type Config struct {
	TelegramToken       string        `yaml:"telegram_token" toml:"telegram_token" env:"TELEGRAM_TOKEN"`
	OwnerID             int64         `yaml:"owner_id" toml:"owner_id" env:"TELEGRAM_OWNER_ID"`
	DatabaseURL         string        `yaml:"database_url" toml:"database_url" env:"DATABASE_URL"`
	ReportIntervalHours int           `yaml:"report_interval_hours" toml:"report_interval_hours" env:"REPORT_INTERVAL_HOURS"`
	ReminderTime        string        `yaml:"reminder_time" toml:"reminder_time" env:"REMINDER_TIME"`
	ReadAloudDelay      time.Duration `yaml:"read_aloud_delay" toml:"read_aloud_delay" env:"READ_ALOUD_DELAY"`
	LogFile             string        `yaml:"log_file" toml:"log_file" env:"LOG_FILE"`
	Debug               bool          `yaml:"debug" toml:"debug" env:"DEBUG"`
}

// Load reads the optional config file named by CONFIG_FILE (config.yaml by
// default), applies environment overrides and fills sane defaults.
func Load() (Config, error) {
	var cfg Config

	path := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}
	if err := loadFile(path, &cfg); err != nil {
		// Only a file the user asked for has to exist.
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return cfg, err
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.ReminderTime = strings.TrimSpace(cfg.ReminderTime)

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "todo_app.db"
	}
	if cfg.ReportIntervalHours <= 0 {
		cfg.ReportIntervalHours = 5
	}
	if cfg.ReadAloudDelay <= 0 {
		cfg.ReadAloudDelay = 1500 * time.Millisecond
	}
	if cfg.LogFile == "" {
		cfg.LogFile = "todo_app.log"
	}

	return cfg, nil
}

// ReportInterval is how often the summary is sent when no ReminderTime is set.
func (c Config) ReportInterval() time.Duration {
	return time.Duration(c.ReportIntervalHours) * time.Hour
}

// RequireTelegram checks the settings the Telegram bot cannot run without.
func (c Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if c.OwnerID == 0 {
		return fmt.Errorf("TELEGRAM_OWNER_ID is required")
	}
	return nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	return nil
}
