package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/ragent/internal/agent"
)

type fileConfig struct {
	ID                string               `toml:"id"`
	StatusAddr        string               `toml:"status_addr"`
	CorsOrigins       []string             `toml:"cors_origins"`
	AddressesFile     string               `toml:"addresses_file"`
	Routers           []agent.RouterTarget `toml:"routers"`
	ConnectTimeout    string               `toml:"connect_timeout"`
	RequestTimeout    string               `toml:"request_timeout"`
	BackoffInitial    string               `toml:"backoff_initial"`
	BackoffMax        string               `toml:"backoff_max"`
	BackoffMultiplier float64              `toml:"backoff_multiplier"`
	BackoffJitter     bool                 `toml:"backoff_jitter"`
	MaxFailedPasses   int                  `toml:"max_failed_passes"`
	Concurrency       int                  `toml:"concurrency"`
}

func loadAgentConfig(path string) (agent.Config, error) {
	cfg := agent.DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return agent.Config{}, fmt.Errorf("load agent config: %w", err)
	}

	if meta.IsDefined("id") {
		if id := strings.TrimSpace(raw.ID); id != "" {
			cfg.ID = id
		}
	}
	if meta.IsDefined("status_addr") {
		cfg.StatusAddr = strings.TrimSpace(raw.StatusAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}
	if meta.IsDefined("addresses_file") {
		cfg.AddressesFile = strings.TrimSpace(raw.AddressesFile)
	}
	if meta.IsDefined("routers") {
		cfg.Routers = make([]agent.RouterTarget, 0, len(raw.Routers))
		for _, r := range raw.Routers {
			cfg.Routers = append(cfg.Routers, agent.RouterTarget{
				ID:   strings.TrimSpace(r.ID),
				Addr: strings.TrimSpace(r.Addr),
			})
		}
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"connect_timeout", raw.ConnectTimeout, &cfg.ConnectTimeout},
		{"request_timeout", raw.RequestTimeout, &cfg.RequestTimeout},
		{"backoff_initial", raw.BackoffInitial, &cfg.Reconcile.Backoff.InitialDelay},
		{"backoff_max", raw.BackoffMax, &cfg.Reconcile.Backoff.MaxDelay},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return agent.Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if meta.IsDefined("backoff_multiplier") {
		cfg.Reconcile.Backoff.Multiplier = raw.BackoffMultiplier
	}
	if meta.IsDefined("backoff_jitter") {
		cfg.Reconcile.Backoff.Jitter = raw.BackoffJitter
	}
	if meta.IsDefined("max_failed_passes") {
		cfg.Reconcile.MaxFailedPasses = raw.MaxFailedPasses
	}
	if meta.IsDefined("concurrency") {
		cfg.Reconcile.Concurrency = raw.Concurrency
	}

	return cfg, nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
