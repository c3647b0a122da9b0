package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "TELEGRAM_TOKEN", "TELEGRAM_OWNER_ID", "DATABASE_URL",
		"REPORT_INTERVAL_HOURS", "REMINDER_TIME", "READ_ALOUD_DELAY", "LOG_FILE", "DEBUG",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURL != "todo_app.db" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.ReportInterval() != 5*time.Hour {
		t.Errorf("ReportInterval = %v", cfg.ReportInterval())
	}
	if cfg.ReadAloudDelay != 1500*time.Millisecond {
		t.Errorf("ReadAloudDelay = %v", cfg.ReadAloudDelay)
	}
	if err := cfg.RequireTelegram(); err == nil {
		t.Error("RequireTelegram should fail without a token")
	}
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "app.yaml", strings.Join([]string{
		"telegram_token: from-file",
		"owner_id: 42",
		"database_url: data/todo.db",
		"report_interval_hours: 3",
		"read_aloud_delay: 2s",
		"debug: true",
	}, "\n"))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("TELEGRAM_TOKEN", "from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TelegramToken != "from-env" {
		t.Errorf("TelegramToken = %q, env should win", cfg.TelegramToken)
	}
	if cfg.OwnerID != 42 || cfg.DatabaseURL != "data/todo.db" || cfg.ReportIntervalHours != 3 || !cfg.Debug {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.ReadAloudDelay != 2*time.Second {
		t.Errorf("ReadAloudDelay = %v", cfg.ReadAloudDelay)
	}
	if err := cfg.RequireTelegram(); err != nil {
		t.Errorf("RequireTelegram: %v", err)
	}
}

func TestLoadTOML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "app.toml", strings.Join([]string{
		`telegram_token = "toml-token"`,
		`owner_id = 7`,
		`reminder_time = "08:30"`,
	}, "\n"))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TelegramToken != "toml-token" || cfg.OwnerID != 7 || cfg.ReminderTime != "08:30" {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Error("expected error for a missing explicit config file")
	}
}

func TestLoadInvalidEnv(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("TELEGRAM_OWNER_ID", "not-a-number")
	if _, err := Load(); err == nil {
		t.Error("expected error for a malformed owner id")
	}
}
