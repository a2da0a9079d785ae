package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Get implements the read cascade: L1 -> L2 -> L3, warming higher layers on
// a deeper hit. opts may target a single layer or bypass caches entirely.
func (e *Engine) Get(ctx context.Context, k string, opts GetOptions) (interface{}, bool, error) {
	ctx, span := tracer.Start(ctx, "Get", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	start := time.Now()
	defer func() { e.metrics.recordResponseTime(float64(time.Since(start))) }()

	if err := e.requireConnected(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return nil, false, err
	}

	if opts.SkipCache && e.l3 != nil {
		v, ok, err := e.l3Get(ctx, k)
		if err != nil {
			e.metrics.errors.Add(1)
		}
		if ok {
			e.metrics.postgresHits.Add(1)
		} else {
			e.metrics.misses.Add(1)
		}
		return v, ok, nil
	}

	if opts.Layer != nil {
		return e.getFromLayer(ctx, *opts.Layer, k)
	}

	if v, ok := e.l1.Get(k); ok {
		e.metrics.memoryHits.Add(1)
		return v, true, nil
	}

	if e.l2 != nil {
		if v, ok := e.l2Get(ctx, k); ok {
			e.l1.Set(k, v, e.warmTTL(opts))
			e.metrics.redisHits.Add(1)
			return v, true, nil
		}
	}

	if e.l3 != nil {
		v, ok, err := e.l3Get(ctx, k)
		if err != nil {
			e.metrics.errors.Add(1)
		}
		if ok {
			ttl := e.warmTTL(opts)
			var g errgroup.Group
			g.Go(func() error { e.l1.Set(k, v, ttl); return nil })
			if e.l2 != nil {
				g.Go(func() error { return e.l2Set(ctx, k, v, ttl) })
			}
			_ = g.Wait() // best-effort: warm failures never fail the read
			e.metrics.postgresHits.Add(1)
			return v, true, nil
		}
	}

	e.metrics.misses.Add(1)
	return nil, false, nil
}

func (e *Engine) warmTTL(opts GetOptions) time.Duration {
	if opts.TTL > 0 {
		return opts.TTL
	}
	return e.redisTTL
}

func (e *Engine) getFromLayer(ctx context.Context, layer LayerTag, k string) (interface{}, bool, error) {
	switch layer {
	case Memory:
		v, ok := e.l1.Get(k)
		return v, ok, nil
	case Redis:
		if e.l2 == nil {
			return nil, false, nil
		}
		v, ok := e.l2Get(ctx, k)
		return v, ok, nil
	case Postgres:
		if e.l3 == nil {
			return nil, false, nil
		}
		return e.l3Get(ctx, k)
	default:
		return nil, false, nil
	}
}

func (e *Engine) l2Get(ctx context.Context, k string) (interface{}, bool) {
	var v interface{}
	var ok bool
	_ = withBreaker(ctx, e.l2Breaker, func() error {
		v, ok = e.l2.Get(ctx, k)
		return nil
	})
	return v, ok
}

func (e *Engine) l3Get(ctx context.Context, k string) (interface{}, bool, error) {
	var v interface{}
	var ok bool
	err := withBreaker(ctx, e.l3Breaker, func() error {
		var innerErr error
		v, ok, innerErr = e.l3.Get(ctx, k)
		return innerErr
	})
	return v, ok, err
}

func (e *Engine) l2Set(ctx context.Context, k string, v interface{}, ttl time.Duration) error {
	return withBreaker(ctx, e.l2Breaker, func() error {
		return e.l2.Set(ctx, k, v, ttl)
	})
}

func (e *Engine) l3Set(ctx context.Context, k string, v interface{}, ttl time.Duration) error {
	return withBreaker(ctx, e.l3Breaker, func() error {
		return e.l3.Set(ctx, k, v, ttl)
	})
}
