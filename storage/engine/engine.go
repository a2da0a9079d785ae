package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nuvex/nuvex/internal/xerrors"
	"github.com/nuvex/nuvex/logger"
	"github.com/nuvex/nuvex/resilience"
	"github.com/nuvex/nuvex/storage/memory"
	"github.com/nuvex/nuvex/storage/pgstore"
	"github.com/nuvex/nuvex/storage/rediscache"
)

// l2Layer and l3Layer are the narrow capability sets Engine depends on,
// letting tests substitute fakes without pulling in a real redis/postgres
// connection (spec.md §9: "Inheritance/interface dispatch for layers" ->
// "the engine owns three named fields, not a homogeneous vector, because
// their semantics differ").
type l2Layer interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Get(ctx context.Context, k string) (interface{}, bool)
	Set(ctx context.Context, k string, v interface{}, ttl time.Duration) error
	Delete(ctx context.Context, k string) bool
	Exists(ctx context.Context, k string) bool
	Clear(ctx context.Context) error
	Ping(ctx context.Context) bool
	Increment(ctx context.Context, k string, delta int64, ttl time.Duration) (int64, error)
}

type l3Layer interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Get(ctx context.Context, k string) (interface{}, bool, error)
	Set(ctx context.Context, k string, v interface{}, ttl time.Duration) error
	Delete(ctx context.Context, k string) (bool, error)
	Exists(ctx context.Context, k string) (bool, error)
	Clear(ctx context.Context) error
	Ping(ctx context.Context) bool
	Increment(ctx context.Context, k string, delta int64, ttl time.Duration) (int64, error)
	SetIfNotExists(ctx context.Context, k string, v interface{}, ttl time.Duration) (bool, error)
	Cleanup(ctx context.Context) (int, error)
	Keys(ctx context.Context) (map[string]time.Time, error)
}

var (
	_ l2Layer = (*rediscache.Layer)(nil)
	_ l3Layer = (*pgstore.Layer)(nil)
)

// Engine is the StorageEngine: it owns L1 unconditionally and L2/L3
// optionally, and routes every public operation across them.
type Engine struct {
	l1 *memory.Layer
	l2 l2Layer
	l3 l3Layer

	l2Breaker *resilience.CircuitBreaker
	l3Breaker *resilience.CircuitBreaker

	index   *keyIndex
	metrics *metricsCore
	log     logger.Logger

	memoryTTL       time.Duration
	redisTTL        time.Duration
	cleanupInterval time.Duration

	state      atomic.Int32
	cleanupCtx context.Context
	cancelFn   context.CancelFunc
	wg         sync.WaitGroup
}

// Options configures a new Engine.
type Options struct {
	MaxSize         int
	MemoryTTL       time.Duration
	RedisTTL        time.Duration
	CleanupInterval time.Duration
	L2              l2Layer
	L3              l3Layer
	Logger          logger.Logger
}

// New constructs an Engine in the Constructed state. Connect must be called
// before any other public operation.
func New(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = logger.Noop()
	}
	e := &Engine{
		l1:              memory.New(opts.MaxSize),
		l2:              opts.L2,
		l3:              opts.L3,
		l2Breaker:       resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		l3Breaker:       resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		index:           newKeyIndex(),
		metrics:         &metricsCore{},
		log:             log.WithPrefix("engine"),
		memoryTTL:       opts.MemoryTTL,
		redisTTL:        opts.RedisTTL,
		cleanupInterval: opts.CleanupInterval,
	}
	e.state.Store(int32(StateConstructed))
	if e.cleanupInterval <= 0 {
		if e.memoryTTL > 0 {
			e.cleanupInterval = e.memoryTTL / 24
		} else {
			e.cleanupInterval = time.Minute
		}
	}
	return e
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// IsConnected reports whether the engine is in the Connected state.
func (e *Engine) IsConnected() bool {
	return e.State() == StateConnected
}

func (e *Engine) requireConnected() error {
	if !e.IsConnected() {
		return xerrors.New(xerrors.NotConnected, "engine: not connected")
	}
	return nil
}

// Connect brings up L2 (best-effort) and L3 (fatal on failure), rebuilds
// the key index from L3 if present, and starts the cleanup scheduler.
func (e *Engine) Connect(ctx context.Context) error {
	e.state.Store(int32(StateConnecting))

	if e.l2 != nil {
		if err := e.l2.Connect(ctx); err != nil {
			e.log.Warn("l2 connect failed, proceeding without it: %v", err)
			e.l2 = nil
		}
	}

	if e.l3 != nil {
		if err := e.l3.Connect(ctx); err != nil {
			e.state.Store(int32(StateConstructed))
			return xerrors.Wrap(err, xerrors.NotConnected, "engine: l3 connect failed")
		}
		keyTimes, err := e.l3.Keys(ctx)
		if err != nil {
			e.log.Warn("key index rebuild from l3 failed: %v", err)
		} else {
			e.index.Rebuild(keyTimes)
		}
	}

	e.cleanupCtx, e.cancelFn = context.WithCancel(context.Background())
	e.wg.Add(1)
	go e.runCleanup()

	e.state.Store(int32(StateConnected))
	return nil
}

// Disconnect stops the cleanup scheduler and disconnects L2/L3 if present.
func (e *Engine) Disconnect(ctx context.Context) error {
	e.state.Store(int32(StateDisconnecting))
	if e.cancelFn != nil {
		e.cancelFn()
		e.wg.Wait()
	}

	var g errgroup.Group
	if e.l2 != nil {
		g.Go(func() error { return e.l2.Disconnect(ctx) })
	}
	if e.l3 != nil {
		g.Go(func() error { return e.l3.Disconnect(ctx) })
	}
	err := g.Wait()

	e.state.Store(int32(StateDisconnected))
	return err
}

func (e *Engine) runCleanup() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.cleanupCtx.Done():
			return
		case <-ticker.C:
			removed := e.l1.Cleanup()
			if removed > 0 {
				e.log.Debug("l1 cleanup removed %d expired entries", removed)
			}
		}
	}
}

// Configure merges new memory/redis TTL and cleanup interval settings and
// rebinds the logger sink. It does not reconnect.
func (e *Engine) Configure(memoryTTL, redisTTL, cleanupInterval time.Duration, log logger.Logger) {
	if memoryTTL > 0 {
		e.memoryTTL = memoryTTL
	}
	if redisTTL > 0 {
		e.redisTTL = redisTTL
	}
	if cleanupInterval > 0 {
		e.cleanupInterval = cleanupInterval
	}
	if log != nil {
		e.log = log.WithPrefix("engine")
	}
}

func withBreaker(ctx context.Context, breaker *resilience.CircuitBreaker, fn func() error) error {
	if breaker == nil {
		return fn()
	}
	return breaker.Execute(ctx, fn)
}
