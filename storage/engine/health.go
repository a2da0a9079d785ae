package engine

import (
	"context"
	"sync"
)

// HealthResult is healthCheck's outcome: the required per-layer booleans
// plus the additive process memory reading (spec.md §6's "Ambient:
// process/system health augmentation" — this field is extra, it never
// replaces the layer booleans).
type HealthResult struct {
	Layers                map[string]bool
	SystemMemoryAvailable uint64
}

// HealthCheck pings each requested layer (or all three layers, if layers is
// empty) in parallel with best-effort semantics. Layers that are not
// configured report false; an unrequested layer never appears in the result.
func (e *Engine) HealthCheck(ctx context.Context, layers []LayerTag) HealthResult {
	if len(layers) == 0 {
		layers = []LayerTag{Memory, Redis, Postgres}
	}

	result := make(map[string]bool, len(layers))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, layer := range layers {
		layer := layer
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok := e.pingLayer(ctx, layer)
			mu.Lock()
			result[layer.String()] = ok
			mu.Unlock()
		}()
	}
	wg.Wait()
	return HealthResult{Layers: result, SystemMemoryAvailable: systemMemoryAvailable()}
}

func (e *Engine) pingLayer(ctx context.Context, layer LayerTag) bool {
	switch layer {
	case Memory:
		return e.l1.Ping()
	case Redis:
		if e.l2 == nil {
			return false
		}
		var ok bool
		_ = withBreaker(ctx, e.l2Breaker, func() error { ok = e.l2.Ping(ctx); return nil })
		return ok
	case Postgres:
		if e.l3 == nil {
			return false
		}
		var ok bool
		_ = withBreaker(ctx, e.l3Breaker, func() error { ok = e.l3.Ping(ctx); return nil })
		return ok
	default:
		return false
	}
}

// GetMetrics returns the full metrics snapshot. When layers is non-empty it
// also fills the Selected* fields with those layers' names and hit totals;
// the counters of unselected layers are still present in the snapshot.
func (e *Engine) GetMetrics(layers []LayerTag) Metrics {
	return e.snapshotMetrics(layers)
}

// ResetMetrics zeroes every counter and the response-time EMA.
func (e *Engine) ResetMetrics() {
	e.metrics.reset()
}

// Promote reads k via the cascade and writes it to target.
func (e *Engine) Promote(ctx context.Context, k string, target LayerTag) (bool, error) {
	v, ok, err := e.Get(ctx, k, GetOptions{})
	if err != nil || !ok {
		return false, err
	}
	return e.setLayer(ctx, target, k, v, 0)
}

// Demote deletes k from every layer strictly higher (closer to L1) than
// target.
func (e *Engine) Demote(ctx context.Context, k string, target LayerTag) {
	switch target {
	case Redis:
		e.l1.Delete(k)
	case Postgres:
		e.l1.Delete(k)
		if e.l2 != nil {
			_ = withBreaker(ctx, e.l2Breaker, func() error { e.l2.Delete(ctx, k); return nil })
		}
	}
}

// GetLayerInfo reports which layers currently hold k.
func (e *Engine) GetLayerInfo(ctx context.Context, k string) []LayerInfo {
	var infos []LayerInfo
	if e.l1.Exists(k) {
		infos = append(infos, LayerInfo{Layer: Memory})
	}
	if e.l2 != nil {
		var ok bool
		_ = withBreaker(ctx, e.l2Breaker, func() error { ok = e.l2.Exists(ctx, k); return nil })
		if ok {
			infos = append(infos, LayerInfo{Layer: Redis})
		}
	}
	if e.l3 != nil {
		var ok bool
		_ = withBreaker(ctx, e.l3Breaker, func() error {
			var err error
			ok, err = e.l3.Exists(ctx, k)
			return err
		})
		if ok {
			infos = append(infos, LayerInfo{Layer: Postgres})
		}
	}
	return infos
}

// Compact runs L1's cleanup and, if configured, L3's cleanup function,
// returning the total number of entries purged.
func (e *Engine) Compact(ctx context.Context) (int, error) {
	purged := e.l1.Cleanup()
	if e.l3 != nil {
		var n int
		err := withBreaker(ctx, e.l3Breaker, func() error {
			var innerErr error
			n, innerErr = e.l3.Cleanup(ctx)
			return innerErr
		})
		if err != nil {
			return purged, err
		}
		purged += n
	}
	return purged, nil
}
