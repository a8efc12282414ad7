package agent

import (
	"github.com/danmuck/ragent/internal/protocol/mgmt"
	"github.com/danmuck/ragent/internal/reconcile"
	"github.com/rs/zerolog"
)

// GatewayFactory builds the gateway for one router target.
type GatewayFactory func(RouterTarget) reconcile.Gateway

// MgmtGateways dials routers over the management protocol.
func MgmtGateways(cfg Config, logger zerolog.Logger) GatewayFactory {
	return func(t RouterTarget) reconcile.Gateway {
		c := mgmt.DefaultClientConfig()
		c.RouterID = t.ID
		c.Addr = t.Addr
		c.ConnectTimeout = cfg.ConnectTimeout
		c.RequestTimeout = cfg.RequestTimeout
		return mgmt.NewClient(c, logger.With().Str("router", t.ID).Logger())
	}
}
