package client

import (
	"context"
	"time"

	"github.com/nuvex/nuvex/storage/engine"
)

// Get reads k through the engine's cascade.
func (c *Client) Get(ctx context.Context, k string, opts engine.GetOptions) (interface{}, bool, error) {
	if err := c.requireEngine(); err != nil {
		return nil, false, err
	}
	return c.engine.Get(ctx, k, opts)
}

// Set writes k via the L3-first protocol.
func (c *Client) Set(ctx context.Context, k string, v interface{}, opts engine.SetOptions) (bool, error) {
	if err := c.requireEngine(); err != nil {
		return false, err
	}
	return c.engine.Set(ctx, k, v, opts)
}

// SetIfNotExists is a CAS when L3 is configured, check-then-set otherwise.
func (c *Client) SetIfNotExists(ctx context.Context, k string, v interface{}, ttl time.Duration) (bool, error) {
	if err := c.requireEngine(); err != nil {
		return false, err
	}
	return c.engine.SetIfNotExists(ctx, k, v, ttl)
}

// Delete removes k, optionally from a single targeted layer.
func (c *Client) Delete(ctx context.Context, k string, layer *engine.LayerTag) (bool, error) {
	if err := c.requireEngine(); err != nil {
		return false, err
	}
	return c.engine.Delete(ctx, k, layer)
}

// Exists reports whether k is present in any configured layer, or a single
// targeted layer.
func (c *Client) Exists(ctx context.Context, k string, layer *engine.LayerTag) (bool, error) {
	if err := c.requireEngine(); err != nil {
		return false, err
	}
	return c.engine.Exists(ctx, k, layer)
}

// Expire re-writes k's TTL.
func (c *Client) Expire(ctx context.Context, k string, ttl time.Duration) (bool, error) {
	if err := c.requireEngine(); err != nil {
		return false, err
	}
	return c.engine.Expire(ctx, k, ttl)
}

// Increment applies a delta at the most authoritative configured layer.
func (c *Client) Increment(ctx context.Context, k string, delta int64, ttl time.Duration) (int64, error) {
	if err := c.requireEngine(); err != nil {
		return 0, err
	}
	return c.engine.Increment(ctx, k, delta, ttl)
}

// Decrement is Increment with a negated delta.
func (c *Client) Decrement(ctx context.Context, k string, delta int64, ttl time.Duration) (int64, error) {
	if err := c.requireEngine(); err != nil {
		return 0, err
	}
	return c.engine.Decrement(ctx, k, delta, ttl)
}

// SetBatch writes every entry, returning a per-key result.
func (c *Client) SetBatch(ctx context.Context, entries map[string]interface{}, opts engine.SetOptions) ([]engine.BatchResult, error) {
	if err := c.requireEngine(); err != nil {
		return nil, err
	}
	return c.engine.SetBatch(ctx, entries, opts), nil
}

// GetBatch reads every key, returning a per-key result.
func (c *Client) GetBatch(ctx context.Context, keys []string, opts engine.GetOptions) ([]engine.BatchResult, error) {
	if err := c.requireEngine(); err != nil {
		return nil, err
	}
	return c.engine.GetBatch(ctx, keys, opts), nil
}

// DeleteBatch deletes every key, returning a per-key result.
func (c *Client) DeleteBatch(ctx context.Context, keys []string, layer *engine.LayerTag) ([]engine.BatchResult, error) {
	if err := c.requireEngine(); err != nil {
		return nil, err
	}
	return c.engine.DeleteBatch(ctx, keys, layer), nil
}

// Query enumerates, fetches, sorts, and paginates.
func (c *Client) Query(ctx context.Context, opts engine.QueryOptions) (engine.QueryResult, error) {
	if err := c.requireEngine(); err != nil {
		return engine.QueryResult{}, err
	}
	return c.engine.Query(ctx, opts)
}

// Keys enumerates keys matching pattern via the in-process key index.
func (c *Client) Keys(pattern string) ([]string, error) {
	if err := c.requireEngine(); err != nil {
		return nil, err
	}
	return c.engine.Keys(pattern), nil
}

// Clear deletes every key matching pattern (or every key).
func (c *Client) Clear(ctx context.Context, pattern string) (int, error) {
	if err := c.requireEngine(); err != nil {
		return 0, err
	}
	return c.engine.Clear(ctx, pattern)
}

// GetMetrics returns the metrics snapshot, optionally restricted to layers.
func (c *Client) GetMetrics(layers []engine.LayerTag) (engine.Metrics, error) {
	if err := c.requireEngine(); err != nil {
		return engine.Metrics{}, err
	}
	return c.engine.GetMetrics(layers), nil
}

// ResetMetrics zeroes every counter.
func (c *Client) ResetMetrics() error {
	if err := c.requireEngine(); err != nil {
		return err
	}
	c.engine.ResetMetrics()
	return nil
}

// HealthCheck pings the requested layers (or all, if empty).
func (c *Client) HealthCheck(ctx context.Context, layers []engine.LayerTag) (engine.HealthResult, error) {
	if err := c.requireEngine(); err != nil {
		return engine.HealthResult{}, err
	}
	return c.engine.HealthCheck(ctx, layers), nil
}

// Promote reads k through the cascade and copies it into the target layer.
func (c *Client) Promote(ctx context.Context, k string, target engine.LayerTag) (bool, error) {
	if err := c.requireEngine(); err != nil {
		return false, err
	}
	return c.engine.Promote(ctx, k, target)
}

// Demote removes k from every layer above target.
func (c *Client) Demote(ctx context.Context, k string, target engine.LayerTag) error {
	if err := c.requireEngine(); err != nil {
		return err
	}
	c.engine.Demote(ctx, k, target)
	return nil
}

// GetLayerInfo reports which layers currently hold k.
func (c *Client) GetLayerInfo(ctx context.Context, k string) ([]engine.LayerInfo, error) {
	if err := c.requireEngine(); err != nil {
		return nil, err
	}
	return c.engine.GetLayerInfo(ctx, k), nil
}

// Compact runs expired-entry cleanup across L1 and (if configured) L3.
func (c *Client) Compact(ctx context.Context) (int, error) {
	if err := c.requireEngine(); err != nil {
		return 0, err
	}
	return c.engine.Compact(ctx)
}
