// Package config loads relay settings from defaults, an optional YAML file
// and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the complete relay configuration.
type Config struct {
	// Remote API.
	APIKey       string        `yaml:"api_key" validate:"required"`
	APIBaseURL   string        `yaml:"api_base_url" validate:"required,url"`
	PollInterval time.Duration `yaml:"poll_interval" validate:"gt=0"`
	PageSize     int           `yaml:"page_size" validate:"gte=1"`
	MaxRetries   int           `yaml:"max_retries" validate:"gte=0"`
	HTTPTimeout  time.Duration `yaml:"http_timeout" validate:"gt=0"`
	RateRPS      float64       `yaml:"rate_rps" validate:"gte=0"`
	RateBurst    int           `yaml:"rate_burst" validate:"gte=0"`

	// Notification channels.
	TelegramToken   string `yaml:"telegram_token"`
	TelegramAPIURL  string `yaml:"telegram_api_url" validate:"omitempty,url"`
	TelegramChatIDs string `yaml:"telegram_chat_ids"`
	NotifyChannels  string `yaml:"notify_channels"`
	WebhookSecret   string `yaml:"webhook_secret"`

	// Service.
	Port        string `yaml:"port" validate:"required,numeric"`
	AdminToken  string `yaml:"admin_token"`
	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`
	LogLevel    string `yaml:"log_level" validate:"oneof=debug info warn error"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		APIBaseURL:   "https://api.remonline.ru/",
		PollInterval: 15 * time.Second,
		PageSize:     50,
		MaxRetries:   5,
		HTTPTimeout:  5 * time.Second,
		Port:         "8080",
		LogLevel:     "info",
	}
}

// Load builds the configuration. path may be empty; getenv is usually
// os.Getenv.
func Load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s=%q is not an integer", key, v))
				return
			}
			*dst = n
		}
	}
	seconds := func(key string, dst *time.Duration) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s=%q is not a number of seconds", key, v))
				return
			}
			*dst = time.Duration(f * float64(time.Second))
		}
	}

	str("API_KEY", &cfg.APIKey)
	str("API_BASE_URL", &cfg.APIBaseURL)
	seconds("API_POLL_INTERVAL_SEC", &cfg.PollInterval)
	num("API_REC_PER_PAGE", &cfg.PageSize)
	num("API_MAX_RETRIES", &cfg.MaxRetries)
	seconds("HTTP_CLIENT_TIMEOUT", &cfg.HTTPTimeout)
	if v := strings.TrimSpace(getenv("RATE_RPS")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: RATE_RPS=%q is not a number", v))
		} else {
			cfg.RateRPS = f
		}
	}
	num("RATE_BURST", &cfg.RateBurst)

	str("TG_TOKEN", &cfg.TelegramToken)
	str("TG_API_URL", &cfg.TelegramAPIURL)
	str("TG_CHAT_NOTICE_IDS", &cfg.TelegramChatIDs)
	str("NOTIFY_CHANNELS", &cfg.NotifyChannels)
	str("WEBHOOK_SECRET", &cfg.WebhookSecret)

	str("PORT", &cfg.Port)
	str("ADMIN_TOKEN", &cfg.AdminToken)
	str("DATABASE_URL", &cfg.DatabaseURL)
	str("REDIS_URL", &cfg.RedisURL)
	str("LOG_LEVEL", &cfg.LogLevel)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if debug, err := strconv.ParseBool(getenv("DEBUG")); err == nil && debug {
		cfg.LogLevel = "debug"
	}
	return errors.Join(errs...)
}

// SlogLevel maps LogLevel onto slog.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Redacted returns a copy safe to log or expose on /debug.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "***"
	}
	c.APIKey = mask(c.APIKey)
	c.TelegramToken = mask(c.TelegramToken)
	c.WebhookSecret = mask(c.WebhookSecret)
	c.AdminToken = mask(c.AdminToken)
	c.DatabaseURL = mask(c.DatabaseURL)
	c.RedisURL = mask(c.RedisURL)
	return c
}
