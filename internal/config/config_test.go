package config

import (
	"strings"
	"testing"
	"time"
)

func setEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL", "STORE_DRIVER", "JWT_SECRET", "REDIS_DB",
		"IDEMPOTENCY_TTL", "NOTIFY_QUEUE_SIZE", "PORT", "TELEGRAM_TOKEN",
	} {
		t.Setenv(key, "")
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, map[string]string{
		"DATABASE_URL": "postgres://localhost/wishfund",
		"JWT_SECRET":   "secret",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.StoreDriver != StorePostgres {
		t.Errorf("StoreDriver = %q, want postgres", cfg.StoreDriver)
	}
	if cfg.Port != "8080" || cfg.PrometheusPort != "9090" {
		t.Errorf("ports = %s/%s, want 8080/9090", cfg.Port, cfg.PrometheusPort)
	}
	if cfg.IdempotencyTTL != 24*time.Hour {
		t.Errorf("IdempotencyTTL = %v, want 24h", cfg.IdempotencyTTL)
	}
	if cfg.NotifyQueueSize != 256 {
		t.Errorf("NotifyQueueSize = %d, want 256", cfg.NotifyQueueSize)
	}
	if cfg.MigrationsPath != "migrations" {
		t.Errorf("MigrationsPath = %q, want migrations", cfg.MigrationsPath)
	}
}

func TestLoad_MemoryDriverNeedsNoDatabase(t *testing.T) {
	setEnv(t, map[string]string{
		"STORE_DRIVER": StoreMemory,
		"JWT_SECRET":   "secret",
	})

	if _, err := Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
}

func TestLoad_ReportsEveryProblem(t *testing.T) {
	setEnv(t, map[string]string{
		"REDIS_DB":        "zero",
		"IDEMPOTENCY_TTL": "forever",
	})

	_, err := Load()
	if err == nil {
		t.Fatal("Load() error = nil, want validation errors")
	}
	for _, want := range []string{"DATABASE_URL", "JWT_SECRET", "REDIS_DB", "IDEMPOTENCY_TTL"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err.Error(), want)
		}
	}
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := &Config{StoreDriver: "sqlite", JWTSecret: "secret"}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "STORE_DRIVER") {
		t.Errorf("Validate() error = %v, want STORE_DRIVER problem", err)
	}
}
