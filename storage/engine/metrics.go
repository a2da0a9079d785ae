package engine

import (
	"math"
	"sync/atomic"
)

// emaAlpha is the smoothing factor for response-time telemetry (spec.md
// §4.4.1: "update the EMA with α = 0.2").
const emaAlpha = 0.2

// metricsCore holds the engine's counters and response-time EMA. All
// fields are updated from multiple goroutines (read/write/increment
// cascades running concurrently), so every field is an atomic.
type metricsCore struct {
	memoryHits   atomic.Int64
	redisHits    atomic.Int64
	postgresHits atomic.Int64
	misses       atomic.Int64

	sets       atomic.Int64
	deletes    atomic.Int64
	increments atomic.Int64
	errors     atomic.Int64

	// avgResponseNanos stores the EMA as a float64 bit pattern since Go has
	// no atomic.Float64; CompareAndSwap retries handle races between
	// concurrent updates.
	avgResponseNanos atomic.Uint64
}

func (m *metricsCore) recordResponseTime(elapsedNanos float64) {
	for {
		oldBits := m.avgResponseNanos.Load()
		old := math.Float64frombits(oldBits)
		var next float64
		if old == 0 {
			next = elapsedNanos
		} else {
			next = emaAlpha*elapsedNanos + (1-emaAlpha)*old
		}
		if m.avgResponseNanos.CompareAndSwap(oldBits, math.Float64bits(next)) {
			return
		}
	}
}

func (m *metricsCore) avgResponseTimeNanos() float64 {
	return math.Float64frombits(m.avgResponseNanos.Load())
}

func (m *metricsCore) reset() {
	m.memoryHits.Store(0)
	m.redisHits.Store(0)
	m.postgresHits.Store(0)
	m.misses.Store(0)
	m.sets.Store(0)
	m.deletes.Store(0)
	m.increments.Store(0)
	m.errors.Store(0)
	m.avgResponseNanos.Store(0)
}

// LayerMetrics is the per-layer view returned by GetMetrics.
type LayerMetrics struct {
	Hits int64
}

// Metrics is the full metrics snapshot. The Selected* fields are filled only
// when GetMetrics is given a layer selector; no other field is filtered.
type Metrics struct {
	MemoryHits         int64
	RedisHits          int64
	PostgresHits       int64
	Misses             int64
	Sets               int64
	Deletes            int64
	Increments         int64
	Errors             int64
	AvgResponseTimeMs  float64
	CacheHitRatio      float64
	MemorySize         int
	MemoryMaxSize      int
	SelectedTotalHits  int64
	SelectedHitRatio   float64
	SelectedLayerNames []string
}

func (e *Engine) snapshotMetrics(layers []LayerTag) Metrics {
	memoryHits := e.metrics.memoryHits.Load()
	redisHits := e.metrics.redisHits.Load()
	postgresHits := e.metrics.postgresHits.Load()
	misses := e.metrics.misses.Load()

	totalHits := memoryHits + redisHits + postgresHits
	totalReads := totalHits + misses
	var hitRatio float64
	if totalReads > 0 {
		hitRatio = float64(totalHits) / float64(totalReads)
	}

	m := Metrics{
		MemoryHits:        memoryHits,
		RedisHits:         redisHits,
		PostgresHits:      postgresHits,
		Misses:            misses,
		Sets:              e.metrics.sets.Load(),
		Deletes:           e.metrics.deletes.Load(),
		Increments:        e.metrics.increments.Load(),
		Errors:            e.metrics.errors.Load(),
		AvgResponseTimeMs: e.metrics.avgResponseTimeNanos() / 1e6,
		CacheHitRatio:     hitRatio,
		MemorySize:        e.l1.Size(),
		MemoryMaxSize:     e.l1.MaxSize(),
	}

	if len(layers) == 0 {
		return m
	}

	var selectedHits int64
	names := make([]string, 0, len(layers))
	for _, l := range layers {
		names = append(names, l.String())
		switch l {
		case Memory:
			selectedHits += memoryHits
		case Redis:
			selectedHits += redisHits
		case Postgres:
			selectedHits += postgresHits
		}
	}
	m.SelectedLayerNames = names
	m.SelectedTotalHits = selectedHits
	if totalReads > 0 {
		m.SelectedHitRatio = float64(selectedHits) / float64(totalReads)
	}
	return m
}
