package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuvex/nuvex/storage/engine"
)

func TestNamespaceSetGetAndKeys(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.NamespaceSet(ctx, "users", "1", "alice", engine.SetOptions{})
	require.NoError(t, err)
	_, err = c.NamespaceSet(ctx, "users", "2", "bob", engine.SetOptions{})
	require.NoError(t, err)

	v, found, err := c.NamespaceGet(ctx, "users", "1", engine.GetOptions{})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "alice", v)

	subkeys, err := c.NamespaceKeys("users")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2"}, subkeys)
}

func TestNamespaceClearRemovesOnlyThatNamespace(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, _ = c.NamespaceSet(ctx, "a", "x", 1, engine.SetOptions{})
	_, _ = c.Set(ctx, "unrelated", 2, engine.SetOptions{})

	n, err := c.NamespaceClear(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, found, _ := c.Get(ctx, "unrelated", engine.GetOptions{})
	assert.True(t, found)
}

func TestGetByPrefix(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, _ = c.Set(ctx, "ns:a", 1, engine.SetOptions{})
	_, _ = c.Set(ctx, "ns:b", 2, engine.SetOptions{})
	_, _ = c.Set(ctx, "other", 3, engine.SetOptions{})

	got, err := c.GetByPrefix(ctx, "ns:")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 1, got["ns:a"])
	assert.Equal(t, 2, got["ns:b"])
}
