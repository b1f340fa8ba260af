package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Listen != ":8080" {
		t.Errorf("expected :8080, got %s", cfg.Listen)
	}
	if cfg.Cache.Retention != 7*24*time.Hour {
		t.Errorf("expected 7d retention, got %v", cfg.Cache.Retention)
	}
	if cfg.Metrics.Capacity != 10000 {
		t.Errorf("expected capacity 10000, got %d", cfg.Metrics.Capacity)
	}
	if cfg.Metrics.ServerURL != "http://localhost:8080" {
		t.Errorf("expected local metrics server url, got %s", cfg.Metrics.ServerURL)
	}
	if cfg.Flags.Default.Provider != "motherduck-ai" {
		t.Errorf("expected motherduck-ai default provider, got %s", cfg.Flags.Default.Provider)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gata.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_MD_TOKEN", "md-secret")

	path := writeConfig(t, `
listen: ":9090"
log:
  level: debug
  format: json
storage:
  backend: redis
  redis:
    addr: redis:6379
    db: 2
cache:
  retention: 48h
  threshold: 0.3
  reuse_on_execute: true
metrics:
  window: 30m
flags:
  source: static
  default:
    provider: webllm
    model:
      enabled: true
      model_id: Llama-3.2-3B-Instruct-q4f16_1-MLC
  rules:
    - tier: enterprise
      config:
        provider: motherduck-ai
providers:
  motherduck:
    token: ${TEST_MD_TOKEN}
  webllm:
    url: http://localhost:8000
pricing:
  motherduck-ai: 15
router:
  timeout: 10s
  fallback:
    provider: webllm
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Listen != ":9090" {
		t.Errorf("expected :9090, got %s", cfg.Listen)
	}
	if cfg.Providers.MotherDuck.Token != "md-secret" {
		t.Errorf("env var not expanded: got %s", cfg.Providers.MotherDuck.Token)
	}
	if cfg.Providers.MotherDuck.URL != "https://api.motherduck.com" {
		t.Errorf("default motherduck url lost: %s", cfg.Providers.MotherDuck.URL)
	}
	if cfg.Storage.Backend != "redis" || cfg.Storage.Redis.DB != 2 || cfg.Storage.Redis.Prefix != "gata" {
		t.Errorf("unexpected storage config: %+v", cfg.Storage)
	}
	if cfg.Cache.Retention != 48*time.Hour || cfg.Cache.Threshold != 0.3 || !cfg.Cache.ReuseOnExecute {
		t.Errorf("unexpected cache config: %+v", cfg.Cache)
	}
	if !cfg.Cache.Enabled {
		t.Error("cache.enabled default should survive a partial cache section")
	}
	if cfg.Metrics.Window != 30*time.Minute || cfg.Metrics.Capacity != 10000 {
		t.Errorf("unexpected metrics config: %+v", cfg.Metrics)
	}
	if cfg.Flags.Default.Provider != "webllm" || cfg.Flags.Default.Model.ModelID != "Llama-3.2-3B-Instruct-q4f16_1-MLC" {
		t.Errorf("unexpected flag default: %+v", cfg.Flags.Default)
	}
	if len(cfg.Flags.Rules) != 1 || cfg.Flags.Rules[0].Tier != "enterprise" {
		t.Fatalf("unexpected rules: %+v", cfg.Flags.Rules)
	}
	if cfg.Pricing["motherduck-ai"] != 15 {
		t.Errorf("expected pricing 15, got %v", cfg.Pricing["motherduck-ai"])
	}
	if cfg.Router.Timeout != 10*time.Second {
		t.Errorf("expected 10s timeout, got %v", cfg.Router.Timeout)
	}
	if cfg.Router.Fallback == nil || cfg.Router.Fallback.Provider != "webllm" {
		t.Errorf("unexpected fallback: %+v", cfg.Router.Fallback)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/gata.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"backend", "storage:\n  backend: mongo\n", "storage.backend"},
		{"flags source", "flags:\n  source: etcd\n", "flags.source"},
		{"http without url", "flags:\n  source: http\n", "flags.url"},
		{"threshold", "cache:\n  threshold: 1.5\n", "cache.threshold"},
		{"pricing", "pricing:\n  openai: -1\n", "pricing.openai"},
		{"yaml", "listen: [", "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
