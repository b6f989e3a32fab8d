package config

import (
	"testing"
	"time"
)

var configKeys = []string{
	"APP_ENV", "HTTP_PORT", "LOG_LEVEL", "STORAGE_DRIVER", "POSTGRES_DSN", "LOCK_DRIVER",
	"REDIS_URL", "REDIS_ADDR", "REDIS_USERNAME", "REDIS_PASSWORD", "LOCK_TTL",
	"SHUTDOWN_TIMEOUT", "JWT_SECRET", "TOKEN_TTL", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"USER_CACHE_SIZE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Env != "dev" || cfg.HTTPPort != "8080" || cfg.LogLevel != "info" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.LockDriver != LockMemory || cfg.LockTTL != 5*time.Second || cfg.TokenTTL != 24*time.Hour {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.JWTSecret == "" {
		t.Fatalf("dev should get a fallback secret")
	}
	if cfg.RedisAddr != "127.0.0.1:6379" {
		t.Fatalf("unexpected redis addr %q", cfg.RedisAddr)
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("POSTGRES_DSN", "postgres://u:p@localhost:5432/db")
	t.Setenv("LOCK_DRIVER", "redis")
	t.Setenv("REDIS_URL", "redis://bob:pw@cache:6380")
	t.Setenv("LOCK_TTL", "3")
	t.Setenv("SHUTDOWN_TIMEOUT", "1500ms")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RedisAddr != "cache:6380" || cfg.RedisUsername != "bob" || cfg.RedisPassword != "pw" {
		t.Fatalf("unexpected redis settings %+v", cfg)
	}
	if cfg.LockTTL != 3*time.Second || cfg.ShutdownTimeout != 1500*time.Millisecond {
		t.Fatalf("unexpected durations %+v", cfg)
	}
	if cfg.RateLimitRPS != 2.5 || cfg.RateLimitBurst != 5 {
		t.Fatalf("unexpected rate limit %+v", cfg)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"postgres without dsn": {"STORAGE_DRIVER": "postgres"},
		"unknown storage":      {"STORAGE_DRIVER": "mongo"},
		"unknown lock":         {"STORAGE_DRIVER": "memory", "LOCK_DRIVER": "etcd"},
		"prod without secret":  {"STORAGE_DRIVER": "memory", "APP_ENV": "prod"},
		"short secret":         {"STORAGE_DRIVER": "memory", "JWT_SECRET": "short"},
		"bad port":             {"STORAGE_DRIVER": "memory", "HTTP_PORT": "http"},
		"bad redis url":        {"STORAGE_DRIVER": "memory", "REDIS_URL": "redis://"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
