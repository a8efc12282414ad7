// Package addressing maps high-level address declarations onto router
// entities.
package addressing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/ragent/internal/routerconfig"
	"github.com/rs/zerolog"
)

// Address semantics a user can declare.
const (
	TypeQueue     = "queue"
	TypeTopic     = "topic"
	TypeAnycast   = "anycast"
	TypeMulticast = "multicast"
)

var ErrInvalidDefinition = errors.New("addressing: invalid definition")

// Definition is one declared address.
type Definition struct {
	Type    string `json:"type" toml:"type"`
	Address string `json:"address" toml:"address"`
}

// Validate enforces a known type and a non-empty address.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Address) == "" {
		return fmt.Errorf("%w: missing address", ErrInvalidDefinition)
	}
	switch d.Type {
	case TypeQueue, TypeTopic, TypeAnycast, TypeMulticast:
		return nil
	default:
		return fmt.Errorf("%w: address %q has unknown type %q", ErrInvalidDefinition, d.Address, d.Type)
	}
}

// Validate checks every definition and rejects duplicate addresses.
func Validate(defs []Definition) error {
	seen := make(map[string]int, len(defs))
	for i, def := range defs {
		if err := def.Validate(); err != nil {
			return fmt.Errorf("definition[%d]: %w", i, err)
		}
		if prev, dup := seen[def.Address]; dup {
			return fmt.Errorf("%w: address %q declared at %d and %d", ErrInvalidDefinition, def.Address, prev, i)
		}
		seen[def.Address] = i
	}
	return nil
}

// Map translates definitions into a sorted desired configuration set.
// Definitions of unknown type are skipped.
func Map(defs []Definition, logger zerolog.Logger) *routerconfig.Set {
	set := routerconfig.NewDesiredSet()
	for _, def := range defs {
		switch def.Type {
		case TypeQueue:
			set.AddAddress(routerconfig.Entity{
				Prefix:       def.Address,
				Distribution: routerconfig.DistributionBalanced,
				Waypoint:     true,
			})
			set.AddAutolinkPair(routerconfig.Entity{Addr: def.Address, ContainerID: def.Address})
		case TypeTopic:
			set.AddLinkroutePair(routerconfig.Entity{Prefix: def.Address, ContainerID: def.Address})
		case TypeAnycast:
			set.AddAddress(routerconfig.Entity{
				Prefix:       def.Address,
				Distribution: routerconfig.DistributionBalanced,
			})
		case TypeMulticast:
			set.AddAddress(routerconfig.Entity{
				Prefix:       def.Address,
				Distribution: routerconfig.DistributionMulticast,
			})
		default:
			logger.Warn().
				Str("address", def.Address).
				Str("type", def.Type).
				Msg("skipping address definition of unknown type")
		}
	}
	set.Sort()
	logger.Debug().
		Int("definitions", len(defs)).
		Interface("entities", set.Counts()).
		Msg("mapped address definitions")
	return set
}
