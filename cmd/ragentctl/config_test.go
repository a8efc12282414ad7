package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/ragent/internal/agent"
	"github.com/danmuck/ragent/internal/testutil/testlog"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAgentConfigExample(t *testing.T) {
	testlog.Start(t)
	cfg, err := loadAgentConfig("ex.config.toml")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.ID != "ragent.local" || cfg.StatusAddr != "127.0.0.1:9300" {
		t.Fatalf("unexpected identity: %q %q", cfg.ID, cfg.StatusAddr)
	}
	if len(cfg.CorsOrigins) != 1 || cfg.CorsOrigins[0] != "http://localhost:3000" {
		t.Fatalf("unexpected cors origins: %+v", cfg.CorsOrigins)
	}
	if len(cfg.Routers) != 2 || cfg.Routers[1] != (agent.RouterTarget{ID: "router-b", Addr: "127.0.0.1:5674"}) {
		t.Fatalf("unexpected routers: %+v", cfg.Routers)
	}
	if cfg.ConnectTimeout != 2*time.Second || cfg.RequestTimeout != 4*time.Second {
		t.Fatalf("unexpected timeouts: %v %v", cfg.ConnectTimeout, cfg.RequestTimeout)
	}
	b := cfg.Reconcile.Backoff
	if b.InitialDelay != 250*time.Millisecond || b.MaxDelay != 10*time.Second || b.Multiplier != 3 || b.Jitter {
		t.Fatalf("unexpected backoff: %+v", b)
	}
	if cfg.Reconcile.Concurrency != 8 || cfg.Reconcile.MaxFailedPasses != 0 {
		t.Fatalf("unexpected reconcile options: %+v", cfg.Reconcile)
	}
}

func TestLoadAgentConfigKeepsDefaults(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
[[routers]]
id = "router-a"
addr = "127.0.0.1:5673"
`)
	cfg, err := loadAgentConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	def := agent.DefaultConfig()
	if cfg.ID != def.ID || cfg.StatusAddr != def.StatusAddr || cfg.RequestTimeout != def.RequestTimeout {
		t.Fatalf("defaults not preserved: %+v", cfg)
	}
	if cfg.Reconcile.Backoff != def.Reconcile.Backoff || cfg.Reconcile.Concurrency != def.Reconcile.Concurrency {
		t.Fatalf("reconcile defaults not preserved: %+v", cfg.Reconcile)
	}
}

func TestLoadAgentConfigBadDuration(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `backoff_max = "soon"`)
	if _, err := loadAgentConfig(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadAgentConfigBudgetOverride(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
max_failed_passes = 5
backoff_jitter = false
`)
	cfg, err := loadAgentConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Reconcile.MaxFailedPasses != 5 || cfg.Reconcile.Backoff.Jitter {
		t.Fatalf("overrides not applied: %+v", cfg.Reconcile)
	}
}
