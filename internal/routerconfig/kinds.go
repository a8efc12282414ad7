package routerconfig

import "strings"

// KindID indexes the closed set of managed entity kinds.
type KindID int

const (
	KindAddress KindID = iota
	KindAutolink
	KindLinkroute
	numKinds
)

// Management type ids understood by the router.
const (
	TypeAddress   = "org.apache.qpid.dispatch.router.config.address"
	TypeAutolink  = "org.apache.qpid.dispatch.router.config.autoLink"
	TypeLinkroute = "org.apache.qpid.dispatch.router.config.linkRoute"
)

// Kind describes one managed entity kind. Compare is a total order on the
// natural key; Equal compares semantic fields only and implies Compare == 0.
type Kind struct {
	ID       KindID
	Name     string
	Singular string
	TypeID   string
	Compare  func(a, b Entity) int
	Equal    func(a, b Entity) bool

	attrs []string
}

var kinds = [numKinds]Kind{
	{
		ID:       KindAddress,
		Name:     "addresses",
		Singular: "address",
		TypeID:   TypeAddress,
		Compare:  compareAddress,
		Equal:    sameAddress,
		attrs:    []string{AttrPrefix, AttrDistribution, AttrWaypoint},
	},
	{
		ID:       KindAutolink,
		Name:     "autolinks",
		Singular: "autolink",
		TypeID:   TypeAutolink,
		Compare:  compareAutolink,
		Equal:    sameAutolink,
		attrs:    []string{AttrAddr, AttrDirection, AttrContainerID},
	},
	{
		ID:       KindLinkroute,
		Name:     "linkroutes",
		Singular: "linkroute",
		TypeID:   TypeLinkroute,
		Compare:  compareLinkroute,
		Equal:    sameLinkroute,
		attrs:    []string{AttrPrefix, AttrDirection, AttrContainerID},
	},
}

// Kinds returns every managed kind in table order.
func Kinds() []Kind {
	out := kinds
	return out[:]
}

// Kind returns the descriptor for id.
func (id KindID) Kind() Kind {
	return kinds[id]
}

func (id KindID) String() string {
	if id < 0 || id >= numKinds {
		return "unknown"
	}
	return kinds[id].Name
}

// KindByName resolves a kind by its plural or singular name.
func KindByName(name string) (Kind, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, k := range kinds {
		if k.Name == name || k.Singular == name {
			return k, true
		}
	}
	return Kind{}, false
}

// KindByTypeID resolves a kind by its management type id.
func KindByTypeID(typeID string) (Kind, bool) {
	for _, k := range kinds {
		if k.TypeID == typeID {
			return k, true
		}
	}
	return Kind{}, false
}

func compareAddress(a, b Entity) int {
	return strings.Compare(a.Prefix, b.Prefix)
}

func sameAddress(a, b Entity) bool {
	return a.Prefix == b.Prefix && a.Distribution == b.Distribution && a.Waypoint == b.Waypoint
}

func compareAutolink(a, b Entity) int {
	if c := strings.Compare(a.Addr, b.Addr); c != 0 {
		return c
	}
	return strings.Compare(a.Direction, b.Direction)
}

func sameAutolink(a, b Entity) bool {
	return a.Addr == b.Addr && a.Direction == b.Direction && a.ContainerID == b.ContainerID
}

func compareLinkroute(a, b Entity) int {
	if c := strings.Compare(a.Prefix, b.Prefix); c != 0 {
		return c
	}
	return strings.Compare(a.Direction, b.Direction)
}

func sameLinkroute(a, b Entity) bool {
	return a.Prefix == b.Prefix && a.Direction == b.Direction && a.ContainerID == b.ContainerID
}
