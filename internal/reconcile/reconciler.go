package reconcile

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/danmuck/ragent/internal/addressing"
	"github.com/danmuck/ragent/internal/observability"
	"github.com/danmuck/ragent/internal/routerconfig"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	ErrBudgetExhausted = errors.New("reconcile: failed pass budget exhausted")
	ErrPassPanic       = errors.New("reconcile: pass panicked")
	ErrApply           = errors.New("reconcile: apply failed")
	ErrRetrieve        = errors.New("reconcile: retrieval failed")
)

const defaultConcurrency = 16

// Options tunes one Reconciler.
type Options struct {
	Backoff BackoffConfig
	// MaxFailedPasses ends the loop after this many consecutive failed
	// passes. Zero retries forever.
	MaxFailedPasses int
	// Concurrency bounds in-flight gateway operations within one batch.
	Concurrency int
	// Logger defaults to the global zerolog logger.
	Logger *zerolog.Logger
}

func DefaultOptions() Options {
	return Options{
		Backoff:     DefaultBackoffConfig(),
		Concurrency: defaultConcurrency,
	}
}

// Conflict is a desired entity whose natural key is held on the router by an
// entity this agent does not own. It is never deleted or recreated.
type Conflict struct {
	Kind    string
	Actual  routerconfig.Entity
	Desired routerconfig.Entity
}

// Result is the outcome of a converged reconciliation.
type Result struct {
	Actual    *routerconfig.Set
	Passes    int
	Conflicts []Conflict
}

// Reconciler drives one router towards a desired configuration. A Reconciler
// runs one loop at a time.
type Reconciler struct {
	gw     Gateway
	opts   Options
	router string
	log    zerolog.Logger
	rng    *rand.Rand
	sleep  func(context.Context, time.Duration) error
}

func New(gw Gateway, opts Options) *Reconciler {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	base := log.Logger
	if opts.Logger != nil {
		base = *opts.Logger
	}
	id := routerID(gw)
	return &Reconciler{
		gw:     gw,
		opts:   opts,
		router: id,
		log:    observability.RouterLogger(base, id),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:  sleepContext,
	}
}

// Realise maps address definitions and reconciles the router against them.
func Realise(ctx context.Context, gw Gateway, defs []addressing.Definition, opts Options) (Result, error) {
	r := New(gw, opts)
	return r.Reconcile(ctx, addressing.Map(defs, r.log))
}

// pass is the scratch state of one retrieve/diff/apply round.
type pass struct {
	actual    *routerconfig.Set
	missing   *routerconfig.Set
	stale     *routerconfig.Set
	retrieval map[string]error
	conflicts []Conflict
	applyErr  error
}

func (p *pass) converged() bool {
	return p.missing.Size() == 0 && p.stale.Size() == 0 && len(p.retrieval) == 0
}

func (p *pass) failed() bool {
	return len(p.retrieval) > 0 || p.applyErr != nil
}

// Reconcile loops until the router holds desired for every kind. It returns
// the last observed configuration, ctx.Err() once ctx is done, or
// ErrBudgetExhausted when MaxFailedPasses is set and exceeded.
func (r *Reconciler) Reconcile(ctx context.Context, desired *routerconfig.Set) (Result, error) {
	desired = desired.Clone()
	desired.Sort()
	r.log.Debug().Interface("desired", desired.Counts()).Msg("applying configuration")

	failures := 0
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			observability.RecordPass(r.router, observability.PassCancelled)
			return Result{Passes: n - 1}, err
		}

		p, err := r.runPass(ctx, desired)
		if ctxErr := ctx.Err(); ctxErr != nil {
			observability.RecordPass(r.router, observability.PassCancelled)
			r.log.Debug().Int("pass", n).Msg("reconciliation cancelled, discarding pass results")
			return Result{Passes: n}, ctxErr
		}

		switch {
		case err != nil:
			r.log.Error().Err(err).Int("pass", n).Msg("reconciliation pass failed, retrying")
		case p.converged():
			observability.RecordPass(r.router, observability.PassConverged)
			r.log.Debug().Int("pass", n).Interface("actual", p.actual.Counts()).Msg("configuration applied")
			return Result{Actual: p.actual, Passes: n, Conflicts: p.conflicts}, nil
		case p.failed():
			err = joinPassErrors(p)
			r.log.Error().Err(err).Int("pass", n).Msg("error while applying configuration, retrying")
		default:
			observability.RecordPass(r.router, observability.PassApplied)
			failures = 0
			continue
		}

		observability.RecordPass(r.router, observability.PassFailed)
		failures++
		if r.opts.MaxFailedPasses > 0 && failures >= r.opts.MaxFailedPasses {
			return Result{Passes: n}, fmt.Errorf("%w after %d passes: %w", ErrBudgetExhausted, failures, err)
		}
		delay := NextBackoffDelay(r.opts.Backoff, failures, r.rng)
		if err := r.sleep(ctx, delay); err != nil {
			observability.RecordPass(r.router, observability.PassCancelled)
			return Result{Passes: n}, err
		}
	}
}

// runPass performs one retrieve/diff/apply round. Panics are returned as
// ErrPassPanic so the loop can retry.
func (r *Reconciler) runPass(ctx context.Context, desired *routerconfig.Set) (p *pass, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			p = nil
			err = fmt.Errorf("%w: %v", ErrPassPanic, rec)
		}
	}()

	actual, retrieval, err := r.retrieve(ctx)
	if err != nil {
		return nil, err
	}
	p = r.plan(actual, desired, retrieval)
	if p.missing.Size() == 0 && p.stale.Size() == 0 {
		return p, nil
	}
	if err := r.apply(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// retrieve queries every kind concurrently. A failed kind is recorded in the
// returned map and leaves the others untouched.
func (r *Reconciler) retrieve(ctx context.Context) (*routerconfig.Set, map[string]error, error) {
	kinds := routerconfig.Kinds()
	type slot struct {
		list []routerconfig.Entity
		err  error
	}
	slots := make([]slot, len(kinds))

	err := r.settle(ctx, func(opCtx context.Context) {
		var g errgroup.Group
		for i, k := range kinds {
			i, k := i, k
			g.Go(func() error {
				slots[i].err = guard(func() error {
					var err error
					slots[i].list, err = r.query(opCtx, k)
					return err
				})
				return nil
			})
		}
		_ = g.Wait()
	})
	if err != nil {
		return nil, nil, err
	}

	actual := routerconfig.NewSet("")
	errs := make(map[string]error)
	for i, k := range kinds {
		if slots[i].err != nil {
			r.log.Error().Err(slots[i].err).Str("kind", k.Name).Msg("error retrieving configuration")
			errs[k.Name] = slots[i].err
			continue
		}
		r.log.Debug().Str("kind", k.Name).Int("count", len(slots[i].list)).Msg("retrieved configuration")
		actual.SetEntities(k.ID, slots[i].list)
	}
	actual.Sort()
	return actual, errs, nil
}

func (r *Reconciler) query(ctx context.Context, k routerconfig.Kind) ([]routerconfig.Entity, error) {
	start := time.Now()
	records, err := r.gw.Query(ctx, k.TypeID)
	observability.RecordGatewayOp(r.router, "query", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %w", ErrRetrieve, k.Name, err)
	}
	out := make([]routerconfig.Entity, 0, len(records))
	for _, rec := range records {
		e, err := k.Decode(rec)
		if err != nil {
			r.log.Warn().Err(err).Str("kind", k.Name).Msg("dropping unidentifiable record")
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// plan diffs every successfully retrieved kind and partitions the deltas
// into entities to delete and entities to create.
func (r *Reconciler) plan(actual, desired *routerconfig.Set, retrieval map[string]error) *pass {
	p := &pass{
		actual:    actual,
		missing:   routerconfig.NewSet(""),
		stale:     routerconfig.NewSet(""),
		retrieval: retrieval,
	}
	for _, k := range routerconfig.Kinds() {
		if _, failed := retrieval[k.Name]; failed {
			continue
		}
		delta := routerconfig.Diff(k.ID, actual, desired)
		if delta == nil {
			r.log.Debug().Str("kind", k.Name).Msg("configuration is up to date")
			continue
		}
		r.log.Info().Str("kind", k.Name).Str("delta", delta.Description()).Msg("updating configuration")
		observability.RecordChanges(r.router, k.Name, "added", len(delta.Added))
		observability.RecordChanges(r.router, k.Name, "removed", len(delta.Removed))
		observability.RecordChanges(r.router, k.Name, "modified", len(delta.Modified))

		for _, e := range delta.Removed {
			if !routerconfig.IsOwned(e) {
				r.log.Debug().Str("kind", k.Name).Str("name", e.Name).Msg("leaving unowned entity in place")
				continue
			}
			p.stale.Append(k.ID, e)
		}
		for _, m := range delta.Modified {
			if !routerconfig.IsOwned(m.Actual) {
				r.log.Warn().
					Str("kind", k.Name).
					Str("name", m.Actual.Name).
					Str("desired", m.Desired.Name).
					Msg("desired entity conflicts with unowned entity")
				p.conflicts = append(p.conflicts, Conflict{Kind: k.Name, Actual: m.Actual, Desired: m.Desired})
				continue
			}
			p.stale.Append(k.ID, m.Actual)
			p.missing.Append(k.ID, m.Desired)
		}
		p.missing.Append(k.ID, delta.Added...)
	}
	return p
}

// apply deletes p.stale and creates p.missing concurrently. Every operation
// runs to completion and failures are joined into p.applyErr. The returned
// error is only set when ctx ended before the batch settled.
func (r *Reconciler) apply(ctx context.Context, p *pass) error {
	type op struct {
		kind   routerconfig.Kind
		entity routerconfig.Entity
		create bool
	}
	ops := make([]op, 0, p.stale.Size()+p.missing.Size())
	for _, k := range routerconfig.Kinds() {
		for _, e := range p.stale.Entities(k.ID) {
			ops = append(ops, op{kind: k, entity: e})
		}
	}
	for _, k := range routerconfig.Kinds() {
		for _, e := range p.missing.Entities(k.ID) {
			ops = append(ops, op{kind: k, entity: e, create: true})
		}
	}

	errs := make([]error, len(ops))
	err := r.settle(ctx, func(opCtx context.Context) {
		var g errgroup.Group
		g.SetLimit(r.opts.Concurrency)
		for i, o := range ops {
			i, o := i, o
			g.Go(func() error {
				errs[i] = guard(func() error {
					if o.create {
						return r.create(opCtx, o.kind, o.entity)
					}
					return r.delete(opCtx, o.kind, o.entity)
				})
				return nil
			})
		}
		_ = g.Wait()
	})
	if err != nil {
		return err
	}
	p.applyErr = errors.Join(errs...)
	return nil
}

func (r *Reconciler) create(ctx context.Context, k routerconfig.Kind, e routerconfig.Entity) error {
	r.log.Debug().Str("kind", k.Singular).Str("name", e.Name).Msg("creating entity")
	start := time.Now()
	err := r.gw.CreateEntity(ctx, k.TypeID, e.Name, k.Encode(e))
	observability.RecordGatewayOp(r.router, "create", time.Since(start), err)
	if err != nil {
		r.log.Warn().Err(err).Str("kind", k.Singular).Str("name", e.Name).Msg("create failed")
		return fmt.Errorf("%w: create %s %q: %w", ErrApply, k.Singular, e.Name, err)
	}
	return nil
}

func (r *Reconciler) delete(ctx context.Context, k routerconfig.Kind, e routerconfig.Entity) error {
	r.log.Debug().Str("kind", k.Singular).Str("name", e.Name).Msg("deleting entity")
	start := time.Now()
	err := r.gw.DeleteEntity(ctx, k.TypeID, e.Name)
	observability.RecordGatewayOp(r.router, "delete", time.Since(start), err)
	if err != nil {
		r.log.Warn().Err(err).Str("kind", k.Singular).Str("name", e.Name).Msg("delete failed")
		return fmt.Errorf("%w: delete %s %q: %w", ErrApply, k.Singular, e.Name, err)
	}
	return nil
}

// settle runs batch with a context that is not cancelled along with ctx and
// waits for it. If ctx ends first, settle returns ctx.Err() and the batch
// finishes in the background with its results discarded.
func (r *Reconciler) settle(ctx context.Context, batch func(context.Context)) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		batch(context.WithoutCancel(ctx))
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// guard converts a panic in one fanned-out operation into its error so
// siblings keep running.
func guard(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrPassPanic, rec)
		}
	}()
	return fn()
}

func joinPassErrors(p *pass) error {
	errs := make([]error, 0, len(p.retrieval)+1)
	for _, k := range routerconfig.Kinds() {
		if err, ok := p.retrieval[k.Name]; ok {
			errs = append(errs, err)
		}
	}
	if p.applyErr != nil {
		errs = append(errs, p.applyErr)
	}
	return errors.Join(errs...)
}
