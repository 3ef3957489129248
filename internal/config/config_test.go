package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("POSTGRES_DSN", "postgres://localhost/donations")
	t.Setenv("AUTH_SECRET", "test-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	for _, key := range []string{"REDIS_URL", "REDIS_ADDR", "HTTP_PORT", "NO_SHOW_GRACE", "TIMEZONE"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPPort != "8080" {
		t.Fatalf("unexpected port %q", cfg.HTTPPort)
	}
	if cfg.NoShowGrace != 24*time.Hour {
		t.Fatalf("unexpected grace %s", cfg.NoShowGrace)
	}
	if cfg.Timezone != time.UTC {
		t.Fatalf("unexpected zone %v", cfg.Timezone)
	}
	if cfg.RedisAddr != "127.0.0.1:6379" {
		t.Fatalf("unexpected redis addr %q", cfg.RedisAddr)
	}
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("AUTH_SECRET", "x")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without POSTGRES_DSN")
	}

	t.Setenv("POSTGRES_DSN", "postgres://localhost/donations")
	t.Setenv("AUTH_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without AUTH_SECRET")
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("NO_SHOW_GRACE", "90")
	t.Setenv("STATS_CACHE_TTL", "2m")
	t.Setenv("RATE_LIMIT_RPS", "7")
	t.Setenv("REDIS_URL", "redis://worker:pw@cache.internal:6380")
	t.Setenv("TIMEZONE", "Africa/Nairobi")
	t.Setenv("NOTIFY_ASYNC", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NoShowGrace != 90*time.Second {
		t.Fatalf("seconds form not honoured: %s", cfg.NoShowGrace)
	}
	if cfg.StatsCacheTTL != 2*time.Minute {
		t.Fatalf("duration form not honoured: %s", cfg.StatsCacheTTL)
	}
	if cfg.RateLimitRPS != 7 {
		t.Fatalf("unexpected rps %d", cfg.RateLimitRPS)
	}
	if cfg.RedisAddr != "cache.internal:6380" || cfg.RedisUsername != "worker" || cfg.RedisPassword != "pw" {
		t.Fatalf("redis url not parsed: %+v", cfg)
	}
	if cfg.Timezone.String() != "Africa/Nairobi" {
		t.Fatalf("unexpected zone %v", cfg.Timezone)
	}
	if !cfg.NotifyAsync {
		t.Fatal("NOTIFY_ASYNC not honoured")
	}
}

func TestLoadRejectsUnknownZone(t *testing.T) {
	setRequired(t)
	t.Setenv("TIMEZONE", "Mars/Olympus")
	if _, err := Load(); err == nil {
		t.Fatal("expected invalid zone error")
	}
}
