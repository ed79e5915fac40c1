package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "UPSTREAM_TIMEOUT", "AI_TIMEOUT", "ENRICH_MODE", "SYNC_CONCURRENCY", "REDIS_URL"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.UpstreamTimeout != 30*time.Second {
		t.Errorf("expected 30s upstream timeout, got %s", cfg.UpstreamTimeout)
	}
	if cfg.AITimeout >= cfg.UpstreamTimeout {
		t.Errorf("AI timeout %s should be shorter than upstream timeout %s", cfg.AITimeout, cfg.UpstreamTimeout)
	}
	if cfg.EnrichMode != "latest" {
		t.Errorf("expected latest enrich mode, got %s", cfg.EnrichMode)
	}
	if cfg.SyncConcurrency != 4 {
		t.Errorf("expected sync concurrency 4, got %d", cfg.SyncConcurrency)
	}
	if cfg.RedisURL != "" {
		t.Errorf("expected no redis url, got %s", cfg.RedisURL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("UPSTREAM_TIMEOUT", "5s")
	t.Setenv("SYNC_CONCURRENCY", "8")
	t.Setenv("AI_BASE_URL", "http://localhost:11434/v1/")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Port)
	}
	if cfg.UpstreamTimeout != 5*time.Second {
		t.Errorf("expected 5s, got %s", cfg.UpstreamTimeout)
	}
	if cfg.SyncConcurrency != 8 {
		t.Errorf("expected 8, got %d", cfg.SyncConcurrency)
	}
	if cfg.AIBaseURL != "http://localhost:11434/v1" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.AIBaseURL)
	}
}

func TestLoadIgnoresInvalidValues(t *testing.T) {
	t.Setenv("UPSTREAM_TIMEOUT", "soon")
	t.Setenv("SYNC_CONCURRENCY", "-2")

	cfg := Load()

	if cfg.UpstreamTimeout != 30*time.Second {
		t.Errorf("expected fallback 30s, got %s", cfg.UpstreamTimeout)
	}
	if cfg.SyncConcurrency != 4 {
		t.Errorf("expected fallback 4, got %d", cfg.SyncConcurrency)
	}
}
