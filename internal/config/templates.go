package config

import (
	"fmt"
	"os"
	"strings"
)

// Template kinds.
const (
	KindAgent     = "agent"
	KindAddresses = "addresses"
	KindRouterSim = "routersim"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindAgent:
		return agentTemplate, nil
	case KindAddresses:
		return addressesTemplate, nil
	case KindRouterSim:
		return routerSimTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const agentTemplate = `id = "ragent"
status_addr = "127.0.0.1:9300"
cors_origins = ["http://localhost:3000"]
addresses_file = "cmd/ragentctl/addresses.toml"

connect_timeout = "5s"
request_timeout = "10s"

backoff_initial = "100ms"
backoff_max = "5s"
backoff_multiplier = 2.0
backoff_jitter = true
max_failed_passes = 0
concurrency = 16

[[routers]]
id = "router-a"
addr = "127.0.0.1:5673"
`

const addressesTemplate = `[[addresses]]
type = "queue"
address = "q1"

[[addresses]]
type = "topic"
address = "events"

[[addresses]]
type = "anycast"
address = "rpc"

[[addresses]]
type = "multicast"
address = "broadcast"
`

const routerSimTemplate = `id = "router-a"
addr = "127.0.0.1:5673"

# entities created by other actors; the agent never deletes these
[[seed]]
kind = "address"
[seed.record]
name = "foo"
prefix = "foo"
distribution = "balanced"
waypoint = "false"
`
