package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"CryptoScreener/internal/model"
	"CryptoScreener/internal/scanner"
)

// Config holds all application configuration.
type Config struct {
	Exchange struct {
		ID        string        `yaml:"id" default:"binance"`
		BaseURL   string        `yaml:"base_url"`
		Settle    string        `yaml:"settle" default:"USDT"`
		Timeout   time.Duration `yaml:"timeout" default:"10s"`
		RateLimit float64       `yaml:"rate_limit" default:"10"` // requests per second
		Burst     int           `yaml:"burst" default:"10"`
	} `yaml:"exchange"`
	Scan struct {
		model.ScanParameters `yaml:",inline"`

		Workers int `yaml:"workers" default:"1"`
	} `yaml:"scan"`
	Cache struct {
		Backend string        `yaml:"backend" default:"memory"` // none, memory or redis
		ListTTL time.Duration `yaml:"list_ttl" default:"1h"`
		BarsTTL time.Duration `yaml:"bars_ttl" default:"1m"`
		Redis   struct {
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"screener:"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Schedule struct {
		ScanCron string `yaml:"scan_cron" default:"0 */15 * * * *"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path" default:"data/screener.db"`
	} `yaml:"database"`
	HTTP struct {
		Addr string `yaml:"addr" default:":8080"`
	} `yaml:"http"`
	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load fills defaults, then applies a YAML file, .env and environment variable overrides.
// A missing file is not an error. An empty schedule.scan_cron disables scheduled scans
// and an empty database.sqlite_path disables the journal.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	// Defaults first, so explicit empty values in the file survive.
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("EXCHANGE_ID"); v != "" {
		cfg.Exchange.ID = v
	}
	if v := os.Getenv("EXCHANGE_BASE_URL"); v != "" {
		cfg.Exchange.BaseURL = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SCAN_CRON"); v != "" {
		cfg.Schedule.ScanCron = v
	}
	if v := os.Getenv("SCAN_TIMEFRAME"); v != "" {
		cfg.Scan.Timeframe = model.Timeframe(v)
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Cache.Redis.Password = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	ints := []struct {
		env string
		dst *int
	}{
		{"SCAN_FAST_PERIOD", &cfg.Scan.FastPeriod},
		{"SCAN_SLOW_PERIOD", &cfg.Scan.SlowPeriod},
		{"SCAN_MAX_SYMBOLS", &cfg.Scan.MaxSymbols},
		{"SCAN_BAR_LIMIT", &cfg.Scan.BarLimit},
		{"SCAN_WORKERS", &cfg.Scan.Workers},
	}
	for _, e := range ints {
		v := os.Getenv(e.env)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", e.env, err)
		}
		*e.dst = n
	}
	return nil
}

// Validate checks that the loaded configuration can run a scan.
func (c *Config) Validate() error {
	switch c.Exchange.ID {
	case "binance", "bybit", "mock":
	default:
		return fmt.Errorf("exchange.id must be one of binance, bybit, mock; got %q", c.Exchange.ID)
	}
	if err := scanner.ValidateParameters(c.Scan.ScanParameters); err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	if c.Scan.Workers < 1 {
		return fmt.Errorf("scan.workers must be at least 1")
	}
	switch c.Cache.Backend {
	case "none", "memory", "redis":
	default:
		return fmt.Errorf("cache.backend must be one of none, memory, redis; got %q", c.Cache.Backend)
	}
	if c.Schedule.ScanCron != "" {
		if _, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow).Parse(c.Schedule.ScanCron); err != nil {
			return fmt.Errorf("schedule.scan_cron: %w", err)
		}
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required when telegram.bot_token is set")
	}
	return nil
}

// ScanParameters returns the configured scan parameters with the exchange filled in.
func (c *Config) ScanParameters() model.ScanParameters {
	p := c.Scan.ScanParameters
	p.ExchangeID = c.Exchange.ID
	return p
}

// TelegramEnabled reports whether chat notifications are configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}
