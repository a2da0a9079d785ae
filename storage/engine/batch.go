package engine

import (
	"context"
	"sort"
)

// SetBatch invokes Set for each entry sequentially, collecting per-entry
// results. A failed entry does not abort the batch.
func (e *Engine) SetBatch(ctx context.Context, entries map[string]interface{}, opts SetOptions) []BatchResult {
	results := make([]BatchResult, 0, len(entries))
	for k, v := range entries {
		ok, err := e.Set(ctx, k, v, opts)
		results = append(results, BatchResult{Key: k, Success: ok, Err: err})
	}
	return results
}

// GetBatch invokes Get for each key sequentially.
func (e *Engine) GetBatch(ctx context.Context, keys []string, opts GetOptions) []BatchResult {
	results := make([]BatchResult, 0, len(keys))
	for _, k := range keys {
		v, ok, err := e.Get(ctx, k, opts)
		results = append(results, BatchResult{Key: k, Success: ok, Value: v, Err: err})
	}
	return results
}

// DeleteBatch invokes Delete for each key sequentially.
func (e *Engine) DeleteBatch(ctx context.Context, keys []string, layer *LayerTag) []BatchResult {
	results := make([]BatchResult, 0, len(keys))
	for _, k := range keys {
		ok, err := e.Delete(ctx, k, layer)
		results = append(results, BatchResult{Key: k, Success: ok, Err: err})
	}
	return results
}

// Keys enumerates keys matching pattern via the in-process key index.
func (e *Engine) Keys(pattern string) []string {
	return e.index.Match(pattern)
}

// Clear deletes every key matching pattern (or every key, if pattern is
// empty) from every layer, returning the count removed.
func (e *Engine) Clear(ctx context.Context, pattern string) (int, error) {
	if pattern == "" {
		e.l1.Clear()
		if e.l2 != nil {
			_ = withBreaker(ctx, e.l2Breaker, func() error { return e.l2.Clear(ctx) })
		}
		count := e.index.Len()
		if e.l3 != nil {
			_ = withBreaker(ctx, e.l3Breaker, func() error { return e.l3.Clear(ctx) })
		}
		e.index.Rebuild(nil)
		return count, nil
	}

	keys := e.index.Match(pattern)
	for _, k := range keys {
		_, _ = e.Delete(ctx, k, nil)
	}
	return len(keys), nil
}

// Query enumerates keys matching opts.Pattern, fetches each via the read
// cascade, sorts, and paginates.
func (e *Engine) Query(ctx context.Context, opts QueryOptions) (QueryResult, error) {
	keys := e.index.Match(opts.Pattern)

	items := make([]QueryItem, 0, len(keys))
	for _, k := range keys {
		v, ok, err := e.Get(ctx, k, GetOptions{})
		if err != nil || !ok {
			continue
		}
		createdAt, _ := e.index.CreatedAt(k)
		items = append(items, QueryItem{Key: k, Value: v, CreatedAt: createdAt})
	}

	sortBy := opts.SortBy
	if sortBy == "" {
		sortBy = "key"
	}
	sort.Slice(items, func(i, j int) bool {
		var less bool
		switch sortBy {
		case "createdAt":
			less = items[i].CreatedAt.Before(items[j].CreatedAt)
		default:
			less = items[i].Key < items[j].Key
		}
		if opts.Desc {
			return !less
		}
		return less
	})

	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > len(items) {
		offset = len(items)
	}
	end := len(items)
	if opts.Limit > 0 && offset+opts.Limit < end {
		end = offset + opts.Limit
	}

	page := items[offset:end]
	hasMore := end < len(items)

	return QueryResult{Items: page, HasMore: hasMore}, nil
}
