package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, l3 l3Layer) *Engine {
	t.Helper()
	e := New(Options{MaxSize: 10, RedisTTL: time.Minute, L3: l3})
	require.NoError(t, e.Connect(context.Background()))
	t.Cleanup(func() { _ = e.Disconnect(context.Background()) })
	return e
}

func TestSetGetCascadeWithL3(t *testing.T) {
	e := newTestEngine(t, newFakeL3())
	ctx := context.Background()

	ok, err := e.Set(ctx, "user:1", map[string]string{"n": "A"}, SetOptions{})
	require.NoError(t, err)
	assert.True(t, ok)

	v, found, err := e.Get(ctx, "user:1", GetOptions{})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, map[string]string{"n": "A"}, v)
}

func TestReadCascadeWarmsL1FromL3(t *testing.T) {
	l3 := newFakeL3()
	e := newTestEngine(t, l3)
	ctx := context.Background()

	require.NoError(t, l3.Set(ctx, "user:1", map[string]string{"n": "A"}, 0))

	v, found, err := e.Get(ctx, "user:1", GetOptions{})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, map[string]string{"n": "A"}, v)

	// L3 goes offline; L1 must still serve the warmed value.
	l3.offline = true
	v2, found2, err := e.Get(ctx, "user:1", GetOptions{})
	require.NoError(t, err)
	assert.True(t, found2)
	assert.Equal(t, map[string]string{"n": "A"}, v2)
}

func TestL3FirstWriteIntegrity(t *testing.T) {
	l3 := newFakeL3()
	l3.rejectWrite = true
	e := newTestEngine(t, l3)
	ctx := context.Background()

	ok, err := e.Set(ctx, "x", 1, SetOptions{})
	require.NoError(t, err)
	assert.False(t, ok)

	_, found := e.l1.Get("x")
	assert.False(t, found)
}

func TestAtomicIncrementUnderConcurrency(t *testing.T) {
	e := newTestEngine(t, newFakeL3())
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]int64, 100)
	for i := 0; i < 100; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := e.Increment(ctx, "c", 1, 0)
			require.NoError(t, err)
			results[i] = v
		}()
	}
	wg.Wait()

	v, found, err := e.Get(ctx, "c", GetOptions{})
	require.NoError(t, err)
	require.True(t, found)
	assert.EqualValues(t, 100, v)

	seen := make(map[int64]bool)
	for _, r := range results {
		seen[r] = true
	}
	assert.Len(t, seen, 100)
}

func TestLRUEvictionOrderThroughEngine(t *testing.T) {
	e := New(Options{MaxSize: 3})
	require.NoError(t, e.Connect(context.Background()))
	ctx := context.Background()

	_, _ = e.Set(ctx, "a", 1, SetOptions{})
	_, _ = e.Set(ctx, "b", 2, SetOptions{})
	_, _ = e.Set(ctx, "c", 3, SetOptions{})
	_, _, _ = e.Get(ctx, "a", GetOptions{})
	_, _ = e.Set(ctx, "d", 4, SetOptions{})

	assert.LessOrEqual(t, e.l1.Size(), 3)
	_, foundB := e.l1.Get("b")
	assert.False(t, foundB)
}

func TestTTLExpiry(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	_, err := e.Set(ctx, "t", 1, SetOptions{TTL: time.Millisecond})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, found, err := e.Get(ctx, "t", GetOptions{})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPartialHealthSelector(t *testing.T) {
	l3 := newFakeL3()
	e := newTestEngine(t, l3)

	result := e.HealthCheck(context.Background(), []LayerTag{Redis, Postgres})
	assert.Len(t, result.Layers, 2)
	assert.False(t, result.Layers["redis"])
	assert.True(t, result.Layers["postgres"])
	_, hasMemory := result.Layers["memory"]
	assert.False(t, hasMemory)
}

func TestLayerTargetedSetAffectsOnlyThatLayer(t *testing.T) {
	l3 := newFakeL3()
	e := newTestEngine(t, l3)
	ctx := context.Background()

	memory := Memory
	ok, err := e.Set(ctx, "k", "v", SetOptions{Layer: &memory})
	require.NoError(t, err)
	assert.True(t, ok)

	_, foundInL1 := e.l1.Get("k")
	assert.True(t, foundInL1)
	_, foundInL3, _ := l3.Get(ctx, "k")
	assert.False(t, foundInL3)
}

func TestSetWhenNotConnectedReturnsFalse(t *testing.T) {
	e := New(Options{MaxSize: 10})
	ok, err := e.Set(context.Background(), "k", "v", SetOptions{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetMetricsMonotonicity(t *testing.T) {
	e := newTestEngine(t, newFakeL3())
	ctx := context.Background()
	_, _ = e.Set(ctx, "k", "v", SetOptions{})
	_, _, _ = e.Get(ctx, "k", GetOptions{})

	m1 := e.GetMetrics(nil)
	_, _, _ = e.Get(ctx, "k", GetOptions{})
	m2 := e.GetMetrics(nil)

	assert.GreaterOrEqual(t, m2.MemoryHits, m1.MemoryHits)
}

func TestQueryPaginatesSortedResults(t *testing.T) {
	e := newTestEngine(t, newFakeL3())
	ctx := context.Background()
	for _, k := range []string{"b", "a", "c"} {
		_, _ = e.Set(ctx, k, k, SetOptions{})
	}

	res, err := e.Query(ctx, QueryOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, res.Items, 2)
	assert.Equal(t, "a", res.Items[0].Key)
	assert.Equal(t, "b", res.Items[1].Key)
	assert.True(t, res.HasMore)
}

func TestQuerySortsByCreatedAt(t *testing.T) {
	e := newTestEngine(t, newFakeL3())
	ctx := context.Background()

	_, _ = e.Set(ctx, "z", "first", SetOptions{})
	time.Sleep(2 * time.Millisecond)
	_, _ = e.Set(ctx, "a", "second", SetOptions{})
	time.Sleep(2 * time.Millisecond)
	_, _ = e.Set(ctx, "m", "third", SetOptions{})

	res, err := e.Query(ctx, QueryOptions{SortBy: "createdAt"})
	require.NoError(t, err)
	require.Len(t, res.Items, 3)
	assert.Equal(t, []string{"z", "a", "m"}, []string{res.Items[0].Key, res.Items[1].Key, res.Items[2].Key})
	assert.False(t, res.Items[0].CreatedAt.IsZero())
	assert.True(t, res.Items[0].CreatedAt.Before(res.Items[1].CreatedAt))
	assert.True(t, res.Items[1].CreatedAt.Before(res.Items[2].CreatedAt))

	desc, err := e.Query(ctx, QueryOptions{SortBy: "createdAt", Desc: true})
	require.NoError(t, err)
	require.Len(t, desc.Items, 3)
	assert.Equal(t, "m", desc.Items[0].Key)
}

func TestQueryCreatedAtSurvivesOverwrite(t *testing.T) {
	e := newTestEngine(t, newFakeL3())
	ctx := context.Background()

	_, _ = e.Set(ctx, "k", "v1", SetOptions{})
	first, ok := e.index.CreatedAt("k")
	require.True(t, ok)

	time.Sleep(2 * time.Millisecond)
	_, _ = e.Set(ctx, "k", "v2", SetOptions{})
	second, ok := e.index.CreatedAt("k")
	require.True(t, ok)

	assert.Equal(t, first, second)
}

func TestKeysEnumeratesByPrefix(t *testing.T) {
	e := newTestEngine(t, newFakeL3())
	ctx := context.Background()
	_, _ = e.Set(ctx, "ns:a", 1, SetOptions{})
	_, _ = e.Set(ctx, "ns:b", 2, SetOptions{})
	_, _ = e.Set(ctx, "other", 3, SetOptions{})

	keys := e.Keys("ns:")
	assert.ElementsMatch(t, []string{"ns:a", "ns:b"}, keys)
}
