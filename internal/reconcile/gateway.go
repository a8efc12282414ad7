package reconcile

import (
	"context"
	"strings"

	"github.com/danmuck/ragent/internal/routerconfig"
)

// Gateway is the router management boundary. Implementations must be safe
// for concurrent calls.
type Gateway interface {
	// ID identifies the router for logs and metrics.
	ID() string
	Query(ctx context.Context, typeID string) ([]routerconfig.Record, error)
	CreateEntity(ctx context.Context, typeID, name string, attrs routerconfig.Record) error
	DeleteEntity(ctx context.Context, typeID, name string) error
}

const unknownRouter = "unknown-router"

func routerID(gw Gateway) string {
	if id := strings.TrimSpace(gw.ID()); id != "" {
		return id
	}
	return unknownRouter
}
