package agent

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/ragent/internal/reconcile"
)

var ErrInvalidConfig = errors.New("agent: invalid config")

// RouterTarget is one managed router.
type RouterTarget struct {
	ID   string `toml:"id" json:"id"`
	Addr string `toml:"addr" json:"addr"`
}

// Config is the resolved agent configuration.
type Config struct {
	ID            string
	StatusAddr    string
	CorsOrigins   []string
	AddressesFile string
	Routers       []RouterTarget

	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	Reconcile      reconcile.Options
}

func DefaultConfig() Config {
	return Config{
		ID:             "ragent",
		StatusAddr:     "127.0.0.1:9300",
		CorsOrigins:    []string{"http://localhost:3000"},
		ConnectTimeout: 5 * time.Second,
		RequestTimeout: 10 * time.Second,
		Reconcile:      reconcile.DefaultOptions(),
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidConfig)
	}
	if len(c.Routers) == 0 {
		return fmt.Errorf("%w: at least one router is required", ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(c.Routers))
	for i, r := range c.Routers {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			return fmt.Errorf("%w: routers[%d] missing id", ErrInvalidConfig, i)
		}
		if strings.TrimSpace(r.Addr) == "" {
			return fmt.Errorf("%w: router %q missing addr", ErrInvalidConfig, id)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate router id %q", ErrInvalidConfig, id)
		}
		seen[id] = true
	}
	if c.ConnectTimeout < 0 || c.RequestTimeout < 0 {
		return fmt.Errorf("%w: timeouts must be >= 0", ErrInvalidConfig)
	}
	o := c.Reconcile
	if o.MaxFailedPasses < 0 {
		return fmt.Errorf("%w: max_failed_passes must be >= 0", ErrInvalidConfig)
	}
	if o.Concurrency < 0 {
		return fmt.Errorf("%w: concurrency must be >= 0", ErrInvalidConfig)
	}
	if o.Backoff.InitialDelay < 0 || o.Backoff.MaxDelay < 0 {
		return fmt.Errorf("%w: backoff delays must be >= 0", ErrInvalidConfig)
	}
	if o.Backoff.MaxDelay > 0 && o.Backoff.InitialDelay > o.Backoff.MaxDelay {
		return fmt.Errorf("%w: backoff_initial exceeds backoff_max", ErrInvalidConfig)
	}
	if o.Backoff.Multiplier != 0 && o.Backoff.Multiplier < 1 {
		return fmt.Errorf("%w: backoff_multiplier must be >= 1", ErrInvalidConfig)
	}
	return nil
}
