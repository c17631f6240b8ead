package config

import (
	"strings"
	"testing"
	"time"
)

func envFunc(env map[string]string) func(string) string {
	return func(k string) string { return env[k] }
}

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv(envFunc(nil))
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.Env != "dev" || cfg.Addr != "127.0.0.1:8080" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.SessionTTL != 12*time.Hour {
		t.Fatalf("unexpected session ttl: %s", cfg.SessionTTL)
	}
	if cfg.AlarmInterval != 30*time.Minute {
		t.Fatalf("unexpected alarm interval: %s", cfg.AlarmInterval)
	}
	if !cfg.AlarmAutoStart {
		t.Fatalf("scheduler should auto-start by default")
	}
}

func TestLoadFromEnvParsesAlarmInterval(t *testing.T) {
	cfg, err := LoadFromEnv(envFunc(map[string]string{
		"APP_ALARM_INTERVAL":  "5m",
		"APP_ALARM_AUTOSTART": "false",
	}))
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.AlarmInterval != 5*time.Minute {
		t.Fatalf("unexpected interval: %s", cfg.AlarmInterval)
	}
	if cfg.AlarmAutoStart {
		t.Fatalf("autostart should be off")
	}
}

func TestLoadFromEnvRejectsBadInterval(t *testing.T) {
	if _, err := LoadFromEnv(envFunc(map[string]string{"APP_ALARM_INTERVAL": "soon"})); err == nil {
		t.Fatalf("expected error for unparseable interval")
	}
	if _, err := LoadFromEnv(envFunc(map[string]string{"APP_ALARM_INTERVAL": "-1m"})); err == nil {
		t.Fatalf("expected error for negative interval")
	}
}

func TestLoadFromEnvProdValidation(t *testing.T) {
	_, err := LoadFromEnv(envFunc(map[string]string{"APP_ENV": "prod"}))
	if err == nil {
		t.Fatalf("expected missing DSN error in prod")
	}

	_, err = LoadFromEnv(envFunc(map[string]string{
		"APP_ENV":    "prod",
		"APP_DB_DSN": "postgres://app@127.0.0.1:5432/lamisys",
	}))
	if err == nil || !strings.Contains(err.Error(), "APP_COOKIE_SECRET") {
		t.Fatalf("expected cookie secret error, got %v", err)
	}

	cfg, err := LoadFromEnv(envFunc(map[string]string{
		"APP_ENV":           "prod",
		"APP_DB_DSN":        "postgres://app@127.0.0.1:5432/lamisys",
		"APP_COOKIE_SECRET": strings.Repeat("s", 32),
	}))
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if !cfg.CookieSecure() {
		t.Fatalf("cookies must be secure in prod")
	}
}

func TestLoadFromEnvBootstrapRequiresEmail(t *testing.T) {
	_, err := LoadFromEnv(envFunc(map[string]string{"APP_ADMIN_BOOTSTRAP_PASSWORD": "secret"}))
	if err == nil {
		t.Fatalf("expected bootstrap email error")
	}

	cfg, err := LoadFromEnv(envFunc(map[string]string{
		"APP_ADMIN_BOOTSTRAP_PASSWORD": "secret",
		"APP_ADMIN_BOOTSTRAP_EMAIL":    "Admin@Example.com",
	}))
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.AdminBootstrapEmail != "admin@example.com" || cfg.AdminBootstrapName != "Administrator" {
		t.Fatalf("unexpected bootstrap config: %+v", cfg)
	}
}
