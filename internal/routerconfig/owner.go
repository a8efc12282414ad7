package routerconfig

import "strings"

// Qualifier prefixes the name of every entity this agent creates. Only
// entities carrying it may be deleted.
const Qualifier = "ragent-"

// IsOwned reports whether e was created by this agent.
func IsOwned(e Entity) bool {
	return e.Name != "" && strings.HasPrefix(e.Name, Qualifier)
}
