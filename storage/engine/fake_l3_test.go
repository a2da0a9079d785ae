package engine

import (
	"context"
	"sync"
	"time"

	"github.com/nuvex/nuvex/internal/xerrors"
)

// fakeL3 is a hand-rolled in-memory stand-in for pgstore.Layer — there is
// no in-process PostgreSQL fake in the dependency graph, so engine tests
// exercise the l3Layer interface boundary directly instead.
type fakeL3 struct {
	mu          sync.Mutex
	rows        map[string]fakeRow
	rejectWrite bool
	offline     bool
}

type fakeRow struct {
	value     interface{}
	expires   time.Time
	createdAt time.Time
}

func newFakeL3() *fakeL3 {
	return &fakeL3{rows: make(map[string]fakeRow)}
}

func (f *fakeL3) Connect(context.Context) error    { return nil }
func (f *fakeL3) Disconnect(context.Context) error { return nil }

func (f *fakeL3) Get(_ context.Context, k string) (interface{}, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return nil, false, xerrors.New(xerrors.L3Read, "fake l3 offline")
	}
	row, ok := f.rows[k]
	if !ok {
		return nil, false, nil
	}
	if !row.expires.IsZero() && time.Now().After(row.expires) {
		delete(f.rows, k)
		return nil, false, nil
	}
	return row.value, true, nil
}

func (f *fakeL3) Set(_ context.Context, k string, v interface{}, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rejectWrite {
		return xerrors.New(xerrors.L3Write, "fake l3 rejects writes")
	}
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	createdAt := time.Now()
	if existing, ok := f.rows[k]; ok {
		createdAt = existing.createdAt
	}
	f.rows[k] = fakeRow{value: v, expires: expires, createdAt: createdAt}
	return nil
}

func (f *fakeL3) Delete(_ context.Context, k string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rows[k]
	delete(f.rows, k)
	return ok, nil
}

func (f *fakeL3) Exists(_ context.Context, k string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rows[k]
	return ok, nil
}

func (f *fakeL3) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = make(map[string]fakeRow)
	return nil
}

func (f *fakeL3) Ping(context.Context) bool {
	return !f.offline
}

func (f *fakeL3) Increment(_ context.Context, k string, delta int64, ttl time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var cur int64
	if row, ok := f.rows[k]; ok {
		if n, ok := row.value.(int64); ok {
			cur = n
		}
	}
	next := cur + delta
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	createdAt := time.Now()
	if existing, ok := f.rows[k]; ok {
		createdAt = existing.createdAt
	}
	f.rows[k] = fakeRow{value: next, expires: expires, createdAt: createdAt}
	return next, nil
}

func (f *fakeL3) SetIfNotExists(_ context.Context, k string, v interface{}, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rejectWrite {
		return false, xerrors.New(xerrors.L3Write, "fake l3 rejects writes")
	}
	if row, ok := f.rows[k]; ok {
		if row.expires.IsZero() || time.Now().Before(row.expires) {
			return false, nil
		}
	}
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	f.rows[k] = fakeRow{value: v, expires: expires, createdAt: time.Now()}
	return true, nil
}

func (f *fakeL3) Cleanup(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	n := 0
	for k, row := range f.rows {
		if !row.expires.IsZero() && now.After(row.expires) {
			delete(f.rows, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeL3) Keys(context.Context) (map[string]time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make(map[string]time.Time, len(f.rows))
	for k, row := range f.rows {
		keys[k] = row.createdAt
	}
	return keys, nil
}
