package routerconfig

import (
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"
)

const (
	DirectionIn  = "in"
	DirectionOut = "out"

	DistributionBalanced  = "balanced"
	DistributionMulticast = "multicast"
)

// Directions lists the link directions in pair order.
var Directions = [...]string{DirectionIn, DirectionOut}

// Wire attribute keys used by the router management schema.
const (
	AttrName         = "name"
	AttrPrefix       = "prefix"
	AttrDistribution = "distribution"
	AttrWaypoint     = "waypoint"
	AttrAddr         = "addr"
	AttrDirection    = "direction"
	AttrContainerID  = "containerId"
)

var (
	ErrMissingName   = errors.New("routerconfig: record missing name")
	ErrInvalidEntity = errors.New("routerconfig: invalid entity")
)

// Record is the flat attribute form exchanged with a router.
type Record map[string]string

// Entity is one managed router configuration entity. The typed fields cover
// every kind; a kind only reads the fields in its schema. Attributes carries
// anything else the router reported.
type Entity struct {
	Name         string            `json:"name"`
	Prefix       string            `json:"prefix,omitempty"`
	Addr         string            `json:"addr,omitempty"`
	Distribution string            `json:"distribution,omitempty"`
	Waypoint     bool              `json:"waypoint,omitempty"`
	Direction    string            `json:"direction,omitempty"`
	ContainerID  string            `json:"containerId,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

// Clone returns a copy that shares no maps with e.
func (e Entity) Clone() Entity {
	out := e
	if e.Attributes != nil {
		out.Attributes = maps.Clone(e.Attributes)
	}
	return out
}

// Encode converts e into the wire record for kind k.
func (k Kind) Encode(e Entity) Record {
	out := make(Record, len(k.attrs)+len(e.Attributes))
	for key, v := range e.Attributes {
		out[key] = v
	}
	out[AttrName] = e.Name
	for _, attr := range k.attrs {
		switch attr {
		case AttrPrefix:
			out[attr] = e.Prefix
		case AttrAddr:
			out[attr] = e.Addr
		case AttrDistribution:
			out[attr] = e.Distribution
		case AttrWaypoint:
			out[attr] = strconv.FormatBool(e.Waypoint)
		case AttrDirection:
			out[attr] = e.Direction
		case AttrContainerID:
			out[attr] = e.ContainerID
		}
	}
	return out
}

// Decode converts a wire record reported by a router into an entity of kind k.
// Missing schema attributes decode to zero values; only the name is required.
func (k Kind) Decode(r Record) (Entity, error) {
	name := strings.TrimSpace(r[AttrName])
	if name == "" {
		return Entity{}, fmt.Errorf("%w (%s)", ErrMissingName, k.Singular)
	}
	e := Entity{Name: name}
	known := map[string]bool{AttrName: true}
	for _, attr := range k.attrs {
		known[attr] = true
		v := r[attr]
		switch attr {
		case AttrPrefix:
			e.Prefix = v
		case AttrAddr:
			e.Addr = v
		case AttrDistribution:
			e.Distribution = v
		case AttrWaypoint:
			e.Waypoint, _ = strconv.ParseBool(v)
		case AttrDirection:
			e.Direction = v
		case AttrContainerID:
			e.ContainerID = v
		}
	}
	for key, v := range r {
		if known[key] {
			continue
		}
		if e.Attributes == nil {
			e.Attributes = make(map[string]string)
		}
		e.Attributes[key] = v
	}
	return e, nil
}

// Validate checks the schema fields of e for kind k.
func (k Kind) Validate(e Entity) error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("%w: %s missing name", ErrInvalidEntity, k.Singular)
	}
	switch k.ID {
	case KindAddress:
		if e.Prefix == "" {
			return fmt.Errorf("%w: address %q missing prefix", ErrInvalidEntity, e.Name)
		}
		if e.Distribution != DistributionBalanced && e.Distribution != DistributionMulticast {
			return fmt.Errorf("%w: address %q distribution %q", ErrInvalidEntity, e.Name, e.Distribution)
		}
	case KindAutolink:
		if e.Addr == "" {
			return fmt.Errorf("%w: autolink %q missing addr", ErrInvalidEntity, e.Name)
		}
	case KindLinkroute:
		if e.Prefix == "" {
			return fmt.Errorf("%w: linkroute %q missing prefix", ErrInvalidEntity, e.Name)
		}
	}
	if k.ID != KindAddress && e.Direction != DirectionIn && e.Direction != DirectionOut {
		return fmt.Errorf("%w: %s %q direction %q", ErrInvalidEntity, k.Singular, e.Name, e.Direction)
	}
	return nil
}
