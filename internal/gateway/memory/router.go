// Package memory is an in-process router that stores management entities in
// maps. It implements reconcile.Gateway and mgmt.Handler, and can be told to
// fail operations on demand.
package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/danmuck/ragent/internal/routerconfig"
)

var (
	ErrNotFound    = errors.New("memory: entity not found")
	ErrExists      = errors.New("memory: entity already exists")
	ErrUnknownType = errors.New("memory: unknown entity type")
	ErrInjected    = errors.New("memory: injected failure")
)

// Operation names a management operation.
type Operation string

const (
	OpQuery  Operation = "query"
	OpCreate Operation = "create"
	OpDelete Operation = "delete"
)

// Op is one journaled mutation.
type Op struct {
	Operation Operation
	TypeID    string
	Name      string
}

type faultKey struct {
	op     Operation
	typeID string
	name   string
}

// Router is a thread-safe in-memory router.
type Router struct {
	id string

	mu       sync.RWMutex
	entities map[string]map[string]routerconfig.Record
	faults   map[faultKey]int
	journal  []Op
}

func NewRouter(id string) *Router {
	r := &Router{
		id:       id,
		entities: make(map[string]map[string]routerconfig.Record),
		faults:   make(map[faultKey]int),
	}
	for _, k := range routerconfig.Kinds() {
		r.entities[k.TypeID] = make(map[string]routerconfig.Record)
	}
	return r
}

func (r *Router) ID() string {
	return r.id
}

// Query returns every entity of typeID ordered by name.
func (r *Router) Query(_ context.Context, typeID string) ([]routerconfig.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFaultLocked(OpQuery, typeID, ""); err != nil {
		return nil, err
	}
	table, ok := r.entities[typeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeID)
	}
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]routerconfig.Record, 0, len(names))
	for _, name := range names {
		out = append(out, maps.Clone(table[name]))
	}
	return out, nil
}

// CreateEntity stores attrs under name. The name attribute always matches name.
func (r *Router) CreateEntity(_ context.Context, typeID, name string, attrs routerconfig.Record) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: missing name", routerconfig.ErrMissingName)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFaultLocked(OpCreate, typeID, name); err != nil {
		return err
	}
	table, ok := r.entities[typeID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownType, typeID)
	}
	if _, exists := table[name]; exists {
		return fmt.Errorf("%w: %s %q", ErrExists, typeID, name)
	}
	rec := maps.Clone(attrs)
	if rec == nil {
		rec = make(routerconfig.Record)
	}
	rec[routerconfig.AttrName] = name
	table[name] = rec
	r.journal = append(r.journal, Op{Operation: OpCreate, TypeID: typeID, Name: name})
	return nil
}

func (r *Router) DeleteEntity(_ context.Context, typeID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFaultLocked(OpDelete, typeID, name); err != nil {
		return err
	}
	table, ok := r.entities[typeID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownType, typeID)
	}
	if _, exists := table[name]; !exists {
		return fmt.Errorf("%w: %s %q", ErrNotFound, typeID, name)
	}
	delete(table, name)
	r.journal = append(r.journal, Op{Operation: OpDelete, TypeID: typeID, Name: name})
	return nil
}

// StatusCode maps router errors onto management status codes.
func (r *Router) StatusCode(err error) uint32 {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrExists):
		return http.StatusConflict
	case errors.Is(err, ErrUnknownType), errors.Is(err, routerconfig.ErrMissingName):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Put stores a record directly, bypassing faults and the journal. It is how
// entities created by other actors are placed on the router.
func (r *Router) Put(typeID string, rec routerconfig.Record) error {
	name := strings.TrimSpace(rec[routerconfig.AttrName])
	if name == "" {
		return routerconfig.ErrMissingName
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	table, ok := r.entities[typeID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownType, typeID)
	}
	table[name] = maps.Clone(rec)
	return nil
}

// Fail makes the next times operations matching op/typeID/name fail with
// ErrInjected. An empty name matches every name; times < 0 fails forever.
func (r *Router) Fail(op Operation, typeID, name string, times int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faults[faultKey{op: op, typeID: typeID, name: name}] = times
}

func (r *Router) ClearFaults() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.faults)
}

// Journal returns the successful creates and deletes in order.
func (r *Router) Journal() []Op {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Op(nil), r.journal...)
}

// Len returns the number of stored entities of typeID.
func (r *Router) Len(typeID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities[typeID])
}

// Get returns one stored record.
func (r *Router) Get(typeID, name string) (routerconfig.Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.entities[typeID][name]
	if !ok {
		return nil, false
	}
	return maps.Clone(rec), true
}

func (r *Router) takeFaultLocked(op Operation, typeID, name string) error {
	for _, key := range []faultKey{{op, typeID, name}, {op, typeID, ""}} {
		left, ok := r.faults[key]
		if !ok || left == 0 {
			continue
		}
		if left > 0 {
			r.faults[key] = left - 1
		}
		if name == "" {
			return fmt.Errorf("%w: %s %s", ErrInjected, op, typeID)
		}
		return fmt.Errorf("%w: %s %s %q", ErrInjected, op, typeID, name)
	}
	return nil
}
