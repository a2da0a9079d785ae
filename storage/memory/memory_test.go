package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetSetRoundTrip(t *testing.T) {
	l := New(10)
	l.Set("a", "1", 0)
	v, ok := l.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
}

func TestGetMissing(t *testing.T) {
	l := New(10)
	_, ok := l.Get("missing")
	assert.False(t, ok)
}

func TestExpiryOnGet(t *testing.T) {
	l := New(10)
	l.Set("a", "1", time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	_, ok := l.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, l.Size())
}

func TestDeleteAndExists(t *testing.T) {
	l := New(10)
	l.Set("a", "1", 0)
	assert.True(t, l.Exists("a"))
	assert.True(t, l.Delete("a"))
	assert.False(t, l.Exists("a"))
	assert.False(t, l.Delete("a"))
}

func TestClear(t *testing.T) {
	l := New(10)
	l.Set("a", "1", 0)
	l.Set("b", "2", 0)
	l.Clear()
	assert.Equal(t, 0, l.Size())
}

func TestLRUEvictionOrder(t *testing.T) {
	l := New(3)
	l.Set("a", 1, 0)
	l.Set("b", 2, 0)
	l.Set("c", 3, 0)
	_, _ = l.Get("a")
	l.Set("d", 4, 0)

	keys := l.Keys()
	assert.ElementsMatch(t, []string{"a", "c", "d"}, keys)
}

func TestMaxSizeInvariant(t *testing.T) {
	l := New(2)
	l.Set("a", 1, 0)
	l.Set("b", 2, 0)
	l.Set("c", 3, 0)
	assert.LessOrEqual(t, l.Size(), 2)
}

func TestPing(t *testing.T) {
	l := New(10)
	assert.True(t, l.Ping())
	assert.False(t, l.Exists(probeKey))
}

func TestCleanupRemovesExpired(t *testing.T) {
	l := New(10)
	l.Set("a", 1, time.Millisecond)
	l.Set("b", 2, 0)
	time.Sleep(5 * time.Millisecond)
	removed := l.Cleanup()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, l.Size())
}

func TestIncrementFromAbsent(t *testing.T) {
	l := New(10)
	v, err := l.Increment("counter", 5, 0)
	assert.NoError(t, err)
	assert.Equal(t, int64(5), v)

	v, err = l.Increment("counter", 3, 0)
	assert.NoError(t, err)
	assert.Equal(t, int64(8), v)
}

func TestIncrementNonNumericErrors(t *testing.T) {
	l := New(10)
	l.Set("k", "not-a-number", 0)
	_, err := l.Increment("k", 1, 0)
	assert.Error(t, err)
}

func TestSetExistingKeyDoesNotEvict(t *testing.T) {
	l := New(2)
	l.Set("a", 1, 0)
	l.Set("b", 2, 0)
	l.Set("a", 10, 0) // replace, not insert
	assert.Equal(t, 2, l.Size())
	v, _ := l.Get("a")
	assert.Equal(t, 10, v)
}
