package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/nuvex/nuvex/internal/xerrors"
)

// Set implements the L3-first write protocol: if L3 exists its write is the
// sole determinant of success (I1); cache fan-out is best-effort and only
// attempted after L3 accepts.
func (e *Engine) Set(ctx context.Context, k string, v interface{}, opts SetOptions) (bool, error) {
	ctx, span := tracer.Start(ctx, "Set", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	if !e.IsConnected() {
		span.SetStatus(codes.Error, "not connected")
		return false, nil
	}

	if opts.Layer != nil {
		return e.setLayer(ctx, *opts.Layer, k, v, opts.TTL)
	}

	if e.l3 != nil {
		if err := e.l3Set(ctx, k, v, opts.TTL); err != nil {
			e.metrics.errors.Add(1)
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
			return false, nil
		}
		e.index.Add(k)
		e.fanOutSet(ctx, k, v, opts.TTL)
		e.metrics.sets.Add(1)
		span.SetStatus(codes.Ok, "")
		return true, nil
	}

	// No L3 configured: the targeted cache (default: L1, then L2) becomes
	// the source of truth for this write (I1's fallback clause).
	e.l1.Set(k, v, opts.TTL)
	if e.l2 != nil {
		_ = e.l2Set(ctx, k, v, opts.TTL)
	}
	e.index.Add(k)
	e.metrics.sets.Add(1)
	return true, nil
}

func (e *Engine) fanOutSet(ctx context.Context, k string, v interface{}, ttl time.Duration) {
	var g errgroup.Group
	g.Go(func() error { e.l1.Set(k, v, ttl); return nil })
	if e.l2 != nil {
		g.Go(func() error { return e.l2Set(ctx, k, v, ttl) })
	}
	_ = g.Wait()
}

func (e *Engine) setLayer(ctx context.Context, layer LayerTag, k string, v interface{}, ttl time.Duration) (bool, error) {
	switch layer {
	case Memory:
		e.l1.Set(k, v, ttl)
		e.index.Add(k)
		return true, nil
	case Redis:
		if e.l2 == nil {
			return false, nil
		}
		if err := e.l2Set(ctx, k, v, ttl); err != nil {
			return false, nil
		}
		e.index.Add(k)
		return true, nil
	case Postgres:
		if e.l3 == nil {
			return false, nil
		}
		if err := e.l3Set(ctx, k, v, ttl); err != nil {
			return false, nil
		}
		e.index.Add(k)
		return true, nil
	default:
		return false, nil
	}
}

// SetIfNotExists is a CAS when L3 is configured (single INSERT ... ON
// CONFLICT DO NOTHING statement), and a non-atomic check-then-set
// otherwise — spec.md §9 leaves the cache-only case open, and the
// teacher's own cache.Exec cache-aside helper is likewise non-atomic there.
func (e *Engine) SetIfNotExists(ctx context.Context, k string, v interface{}, ttl time.Duration) (bool, error) {
	if !e.IsConnected() {
		return false, nil
	}

	if e.l3 != nil {
		var won bool
		err := withBreaker(ctx, e.l3Breaker, func() error {
			var innerErr error
			won, innerErr = e.l3.SetIfNotExists(ctx, k, v, ttl)
			return innerErr
		})
		if err != nil {
			e.metrics.errors.Add(1)
			return false, nil
		}
		if won {
			e.index.Add(k)
			e.fanOutSet(ctx, k, v, ttl)
			e.metrics.sets.Add(1)
		}
		return won, nil
	}

	if ok, _, err := e.Get(ctx, k, GetOptions{}); err == nil && ok {
		return false, nil
	}
	return e.Set(ctx, k, v, SetOptions{TTL: ttl})
}

// Delete removes k from every layer in parallel with best-effort semantics
// unless a single layer is targeted.
func (e *Engine) Delete(ctx context.Context, k string, layer *LayerTag) (bool, error) {
	if !e.IsConnected() {
		return false, nil
	}

	if layer != nil {
		return e.deleteLayer(ctx, *layer, k), nil
	}

	var g errgroup.Group
	g.Go(func() error { e.l1.Delete(k); return nil })
	if e.l2 != nil {
		g.Go(func() error {
			_ = withBreaker(ctx, e.l2Breaker, func() error { e.l2.Delete(ctx, k); return nil })
			return nil
		})
	}
	if e.l3 != nil {
		g.Go(func() error {
			_ = withBreaker(ctx, e.l3Breaker, func() error {
				_, err := e.l3.Delete(ctx, k)
				return err
			})
			return nil
		})
	}
	_ = g.Wait()
	e.index.Remove(k)
	e.metrics.deletes.Add(1)
	return true, nil
}

func (e *Engine) deleteLayer(ctx context.Context, layer LayerTag, k string) bool {
	switch layer {
	case Memory:
		ok := e.l1.Delete(k)
		return ok
	case Redis:
		if e.l2 == nil {
			return false
		}
		var ok bool
		_ = withBreaker(ctx, e.l2Breaker, func() error { ok = e.l2.Delete(ctx, k); return nil })
		return ok
	case Postgres:
		if e.l3 == nil {
			return false
		}
		var ok bool
		_ = withBreaker(ctx, e.l3Breaker, func() error {
			var err error
			ok, err = e.l3.Delete(ctx, k)
			return err
		})
		return ok
	default:
		return false
	}
}

// Exists short-circuits across L1, L2, L3 in order unless a single layer is
// targeted.
func (e *Engine) Exists(ctx context.Context, k string, layer *LayerTag) (bool, error) {
	if !e.IsConnected() {
		return false, nil
	}
	if layer != nil {
		return e.existsLayer(ctx, *layer, k), nil
	}
	if e.l1.Exists(k) {
		return true, nil
	}
	if e.l2 != nil {
		var ok bool
		_ = withBreaker(ctx, e.l2Breaker, func() error { ok = e.l2.Exists(ctx, k); return nil })
		if ok {
			return true, nil
		}
	}
	if e.l3 != nil {
		var ok bool
		err := withBreaker(ctx, e.l3Breaker, func() error {
			var innerErr error
			ok, innerErr = e.l3.Exists(ctx, k)
			return innerErr
		})
		if err == nil && ok {
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) existsLayer(ctx context.Context, layer LayerTag, k string) bool {
	switch layer {
	case Memory:
		return e.l1.Exists(k)
	case Redis:
		if e.l2 == nil {
			return false
		}
		var ok bool
		_ = withBreaker(ctx, e.l2Breaker, func() error { ok = e.l2.Exists(ctx, k); return nil })
		return ok
	case Postgres:
		if e.l3 == nil {
			return false
		}
		var ok bool
		_ = withBreaker(ctx, e.l3Breaker, func() error {
			var err error
			ok, err = e.l3.Exists(ctx, k)
			return err
		})
		return ok
	default:
		return false
	}
}

// Expire re-writes k with a new TTL, returning false if it is absent.
func (e *Engine) Expire(ctx context.Context, k string, ttl time.Duration) (bool, error) {
	v, ok, err := e.Get(ctx, k, GetOptions{})
	if err != nil || !ok {
		return false, err
	}
	return e.Set(ctx, k, v, SetOptions{TTL: ttl})
}

// Increment selects the most authoritative available layer (L3 > L2 > L1),
// applies its native atomic increment, then propagates the result via
// plain set to every less authoritative layer (I5).
func (e *Engine) Increment(ctx context.Context, k string, delta int64, ttl time.Duration) (int64, error) {
	if !e.IsConnected() {
		return 0, xerrors.New(xerrors.NotConnected, "engine: not connected")
	}

	if e.l3 != nil {
		var v int64
		err := withBreaker(ctx, e.l3Breaker, func() error {
			var innerErr error
			v, innerErr = e.l3.Increment(ctx, k, delta, ttl)
			return innerErr
		})
		if err != nil {
			e.metrics.errors.Add(1)
			return 0, err
		}
		e.index.Add(k)
		e.fanOutSet(ctx, k, v, ttl)
		e.metrics.increments.Add(1)
		return v, nil
	}

	if e.l2 != nil {
		var v int64
		err := withBreaker(ctx, e.l2Breaker, func() error {
			var innerErr error
			v, innerErr = e.l2.Increment(ctx, k, delta, ttl)
			return innerErr
		})
		if err != nil {
			e.metrics.errors.Add(1)
			return 0, err
		}
		e.index.Add(k)
		e.l1.Set(k, v, ttl)
		e.metrics.increments.Add(1)
		return v, nil
	}

	v, err := e.l1.Increment(k, delta, ttl)
	if err != nil {
		e.metrics.errors.Add(1)
		return 0, err
	}
	e.index.Add(k)
	e.metrics.increments.Add(1)
	return v, nil
}

// Decrement is Increment with a negated delta.
func (e *Engine) Decrement(ctx context.Context, k string, delta int64, ttl time.Duration) (int64, error) {
	return e.Increment(ctx, k, -delta, ttl)
}
