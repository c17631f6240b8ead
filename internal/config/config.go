package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	Env          string
	Addr         string
	DBDSN        string
	CookieSecret string
	SessionTTL   time.Duration
	LogLevel     string

	// AlarmInterval is the period of the background rule evaluation timer.
	AlarmInterval time.Duration
	// AlarmAutoStart arms the scheduler on boot.
	AlarmAutoStart bool

	FCMCredentialsPath string
	FCMProjectID       string

	AdminBootstrapEmail    string
	AdminBootstrapName     string
	AdminBootstrapPassword string
}

func Load() (Config, error) {
	return LoadFromEnv(os.Getenv)
}

func LoadFromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Env:                getenv("APP_ENV"),
		Addr:               getenv("APP_ADDR"),
		DBDSN:              getenv("APP_DB_DSN"),
		LogLevel:           getenv("APP_LOG_LEVEL"),
		CookieSecret:       getenv("APP_COOKIE_SECRET"),
		FCMCredentialsPath: getenv("APP_FCM_CREDENTIALS"),
		FCMProjectID:       getenv("APP_FCM_PROJECT_ID"),
	}

	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}

	switch cfg.Env {
	case "dev", "prod", "test":
	default:
		return Config{}, errors.New("APP_ENV: must be one of dev, test, prod")
	}

	ttl, err := durationEnv(getenv, "APP_SESSION_TTL", 12*time.Hour)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionTTL = ttl

	interval, err := durationEnv(getenv, "APP_ALARM_INTERVAL", 30*time.Minute)
	if err != nil {
		return Config{}, err
	}
	cfg.AlarmInterval = interval

	switch strings.TrimSpace(strings.ToLower(getenv("APP_ALARM_AUTOSTART"))) {
	case "", "1", "true", "yes":
		cfg.AlarmAutoStart = true
	case "0", "false", "no":
		cfg.AlarmAutoStart = false
	default:
		return Config{}, errors.New("APP_ALARM_AUTOSTART: must be a boolean")
	}

	cfg.AdminBootstrapEmail = strings.TrimSpace(strings.ToLower(getenv("APP_ADMIN_BOOTSTRAP_EMAIL")))
	cfg.AdminBootstrapName = strings.TrimSpace(getenv("APP_ADMIN_BOOTSTRAP_NAME"))
	cfg.AdminBootstrapPassword = getenv("APP_ADMIN_BOOTSTRAP_PASSWORD")

	if cfg.AdminBootstrapPassword != "" && cfg.AdminBootstrapEmail == "" {
		return Config{}, errors.New("APP_ADMIN_BOOTSTRAP_EMAIL: required when APP_ADMIN_BOOTSTRAP_PASSWORD is set")
	}
	if cfg.AdminBootstrapPassword != "" && cfg.AdminBootstrapName == "" {
		cfg.AdminBootstrapName = "Administrator"
	}

	if cfg.IsProd() {
		if cfg.DBDSN == "" {
			return Config{}, errors.New("APP_DB_DSN: required in prod")
		}
		if len(cfg.CookieSecret) < 32 {
			return Config{}, errors.New("APP_COOKIE_SECRET: must be at least 32 bytes in prod")
		}
	}

	return cfg, nil
}

func (c Config) IsProd() bool { return c.Env == "prod" }

func (c Config) CookieSecure() bool { return c.IsProd() }

func durationEnv(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be > 0", key)
	}
	return d, nil
}
