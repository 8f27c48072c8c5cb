package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Addr            string        `yaml:"addr"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Store struct {
		Driver       string `yaml:"driver"`
		SQLitePath   string `yaml:"sqlite_path"`
		SnapshotFile string `yaml:"snapshot_file"`
	} `yaml:"store"`
	Redis struct {
		Addr       string `yaml:"addr"`
		Password   string `yaml:"password"`
		DB         int    `yaml:"db"`
		Prefix     string `yaml:"prefix"`
		MaxRetries int    `yaml:"max_retries"`
		Channel    string `yaml:"channel"`
		Publish    bool   `yaml:"publish"`
	} `yaml:"redis"`
	Window struct {
		Day   time.Duration `yaml:"day"`
		Month time.Duration `yaml:"month"`
	} `yaml:"window"`
	Audit struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"audit"`
	Telegram struct {
		BotToken   string   `yaml:"bot_token"`
		ChatID     string   `yaml:"chat_id"`
		AlertKinds []string `yaml:"alert_kinds"`
	} `yaml:"telegram"`
	Ledger struct {
		HorizonURL string        `yaml:"horizon_url"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"ledger"`
	Schedule struct {
		SweepCron     string `yaml:"sweep_cron"`
		AnalyticsCron string `yaml:"analytics_cron"`
		SnapshotCron  string `yaml:"snapshot_cron"`
		RunOnStart    bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Store.SQLitePath = v
	}
	if v := os.Getenv("SNAPSHOT_FILE"); v != "" {
		cfg.Store.SnapshotFile = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
	if v := os.Getenv("AUDIT_SQLITE_PATH"); v != "" {
		cfg.Audit.SQLitePath = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("HORIZON_URL"); v != "" {
		cfg.Ledger.HorizonURL = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("CRON_SWEEP"); v != "" {
		cfg.Schedule.SweepCron = v
	}
	if os.Getenv("RUN_ON_START") == "true" {
		cfg.Schedule.RunOnStart = true
	}

	// Defaults
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "sqlite"
	}
	cfg.Store.Driver = strings.ToLower(cfg.Store.Driver)
	if cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = "data/walletguard.db"
	}
	if cfg.Store.SnapshotFile == "" {
		cfg.Store.SnapshotFile = "data/walletguard_state.json"
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "walletguard"
	}
	if cfg.Redis.MaxRetries == 0 {
		cfg.Redis.MaxRetries = 10
	}
	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = "walletguard:events"
	}
	if cfg.Window.Day == 0 {
		cfg.Window.Day = 24 * time.Hour
	}
	if cfg.Window.Month == 0 {
		cfg.Window.Month = 30 * 24 * time.Hour
	}
	if cfg.Ledger.HorizonURL == "" {
		cfg.Ledger.HorizonURL = "https://horizon-testnet.stellar.org"
	}
	if cfg.Ledger.Timeout == 0 {
		cfg.Ledger.Timeout = 30 * time.Second
	}
	if cfg.Schedule.SweepCron == "" {
		cfg.Schedule.SweepCron = "0 */15 * * * *"
	}
	if cfg.Schedule.AnalyticsCron == "" {
		cfg.Schedule.AnalyticsCron = "0 5 0 * * *"
	}
	if cfg.Schedule.SnapshotCron == "" {
		cfg.Schedule.SnapshotCron = "0 * * * * *"
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("store.driver must be memory, sqlite or redis, got %q", c.Store.Driver)
	}
	if c.Store.Driver == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required for the redis store")
	}
	if c.Redis.Publish && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required to publish events")
	}
	if c.Window.Day <= 0 || c.Window.Month <= 0 {
		return fmt.Errorf("window lengths must be positive")
	}
	if c.Window.Day > c.Window.Month {
		return fmt.Errorf("window.day (%s) must not exceed window.month (%s)", c.Window.Day, c.Window.Month)
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

// TelegramEnabled reports whether alerts and commands should run.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}
