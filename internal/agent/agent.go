package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/danmuck/ragent/internal/addressing"
	"github.com/danmuck/ragent/internal/reconcile"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	ErrUnknownRouter  = errors.New("agent: unknown router")
	ErrAlreadyRunning = errors.New("agent: already running")
)

// State is the reconcile state of one router.
type State string

const (
	StatePending     State = "pending"
	StateReconciling State = "reconciling"
	StateConverged   State = "converged"
	StateCancelled   State = "cancelled"
	StateFailed      State = "failed"
)

// RouterStatus is a point-in-time view of one router.
type RouterStatus struct {
	ID         string         `json:"id"`
	Addr       string         `json:"addr"`
	State      State          `json:"state"`
	Generation uint64         `json:"generation"`
	RunID      string         `json:"run_id,omitempty"`
	Passes     int            `json:"passes"`
	Counts     map[string]int `json:"counts,omitempty"`
	Conflicts  int            `json:"conflicts"`
	LastError  string         `json:"last_error,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

type routerRun struct {
	target RouterTarget
	gw     reconcile.Gateway
	cancel context.CancelFunc
	done   chan struct{}
	status RouterStatus
	// stopped pins the state to cancelled until the next start.
	stopped bool
}

// Agent reconciles every configured router against the published
// definitions.
type Agent struct {
	cfg Config
	log zerolog.Logger

	mu         sync.Mutex
	order      []string
	routers    map[string]*routerRun
	defs       []addressing.Definition
	published  bool
	generation uint64
	group      *errgroup.Group
	runCtx     context.Context
	closing    bool
}

func New(cfg Config, gateways GatewayFactory, logger zerolog.Logger) *Agent {
	a := &Agent{
		cfg:     cfg,
		log:     logger,
		routers: make(map[string]*routerRun, len(cfg.Routers)),
	}
	now := time.Now()
	for _, t := range cfg.Routers {
		a.order = append(a.order, t.ID)
		a.routers[t.ID] = &routerRun{
			target: t,
			gw:     gateways(t),
			status: RouterStatus{ID: t.ID, Addr: t.Addr, State: StatePending, UpdatedAt: now},
		}
	}
	return a
}

// Apply publishes definitions. Running loops are cancelled and restarted
// against the new definitions.
func (a *Agent) Apply(defs []addressing.Definition) error {
	if err := addressing.Validate(defs); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.defs = slices.Clone(defs)
	a.published = true
	a.generation++
	a.log.Info().Uint64("generation", a.generation).Int("definitions", len(defs)).Msg("address definitions published")
	if a.group == nil || a.closing {
		return nil
	}
	for _, id := range a.order {
		a.startLocked(id)
	}
	return nil
}

// Run reconciles routers until ctx is done. Loops for definitions published
// before Run start immediately.
func (a *Agent) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.group != nil {
		a.mu.Unlock()
		return ErrAlreadyRunning
	}
	g, gctx := errgroup.WithContext(ctx)
	a.group, a.runCtx, a.closing = g, gctx, false
	g.Go(func() error {
		<-gctx.Done()
		a.mu.Lock()
		a.closing = true
		a.mu.Unlock()
		return nil
	})
	if a.published {
		for _, id := range a.order {
			a.startLocked(id)
		}
	}
	a.mu.Unlock()

	a.log.Info().Int("routers", len(a.order)).Msg("agent running")
	err := g.Wait()

	a.mu.Lock()
	a.group, a.runCtx = nil, nil
	a.mu.Unlock()
	a.log.Info().Msg("agent stopped")
	return err
}

// Stop cancels the loop for one router. The router reports cancelled,
// whether or not its loop had already finished, until the next Apply.
func (a *Agent) Stop(routerID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	run, ok := a.routers[routerID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRouter, routerID)
	}
	if run.cancel != nil {
		run.cancel()
	}
	run.stopped = true
	run.status.State = StateCancelled
	run.status.UpdatedAt = time.Now()
	return nil
}

// Status returns every router in configuration order.
func (a *Agent) Status() []RouterStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]RouterStatus, 0, len(a.order))
	for _, id := range a.order {
		s := a.routers[id].status
		s.Counts = maps.Clone(s.Counts)
		out = append(out, s)
	}
	return out
}

// RouterStatus returns one router's status.
func (a *Agent) RouterStatus(routerID string) (RouterStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	run, ok := a.routers[routerID]
	if !ok {
		return RouterStatus{}, fmt.Errorf("%w: %s", ErrUnknownRouter, routerID)
	}
	s := run.status
	s.Counts = maps.Clone(s.Counts)
	return s, nil
}

// Ready reports whether every router has converged on the latest definitions.
func (a *Agent) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.published {
		return false
	}
	for _, run := range a.routers {
		if run.status.State != StateConverged || run.status.Generation != a.generation {
			return false
		}
	}
	return true
}

// Close releases gateways that hold connections.
func (a *Agent) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var errs []error
	for _, id := range a.order {
		if c, ok := a.routers[id].gw.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// startLocked replaces the router's loop. The new loop waits for the
// previous Reconcile call to return before its first pass. Gateway operations
// the cancelled pass left in flight may still complete after that.
func (a *Agent) startLocked(id string) {
	run := a.routers[id]
	prev := run.done
	if run.cancel != nil {
		run.cancel()
	}
	ctx, cancel := context.WithCancel(a.runCtx)
	done := make(chan struct{})
	run.cancel, run.done = cancel, done
	run.stopped = false

	gen := a.generation
	defs := slices.Clone(a.defs)
	run.status = RouterStatus{
		ID:         run.target.ID,
		Addr:       run.target.Addr,
		State:      StatePending,
		Generation: gen,
		RunID:      uuid.NewString(),
		UpdatedAt:  time.Now(),
	}
	runID := run.status.RunID

	a.group.Go(func() error {
		defer close(done)
		defer cancel()
		if prev != nil {
			<-prev
		}
		a.reconcileRouter(ctx, run, gen, runID, defs)
		return nil
	})
}

func (a *Agent) reconcileRouter(ctx context.Context, run *routerRun, gen uint64, runID string, defs []addressing.Definition) {
	logger := a.log.With().Str("router", run.target.ID).Uint64("generation", gen).Str("run_id", runID).Logger()
	a.update(run, gen, func(s *RouterStatus) { s.State = StateReconciling })

	opts := a.cfg.Reconcile
	opts.Logger = &logger
	start := time.Now()
	res, err := reconcile.Realise(ctx, run.gw, defs, opts)

	a.update(run, gen, func(s *RouterStatus) {
		s.Passes = res.Passes
		switch {
		case err == nil:
			s.State = StateConverged
			s.LastError = ""
			s.Conflicts = len(res.Conflicts)
			if res.Actual != nil {
				s.Counts = res.Actual.Counts()
			}
			logger.Info().Int("passes", res.Passes).Dur("elapsed", time.Since(start)).Msg("router converged")
		case errors.Is(err, context.Canceled):
			s.State = StateCancelled
			logger.Info().Int("passes", res.Passes).Msg("router reconciliation cancelled")
		default:
			s.State = StateFailed
			s.LastError = err.Error()
			logger.Error().Err(err).Int("passes", res.Passes).Msg("router reconciliation failed")
		}
	})
}

// update applies fn unless a newer generation has replaced the run.
func (a *Agent) update(run *routerRun, gen uint64, fn func(*RouterStatus)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if run.status.Generation != gen {
		return
	}
	fn(&run.status)
	if run.stopped {
		run.status.State = StateCancelled
	}
	run.status.UpdatedAt = time.Now()
}
