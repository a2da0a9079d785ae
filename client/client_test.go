package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuvex/nuvex/config"
	"github.com/nuvex/nuvex/storage/engine"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	cfg := config.Default()
	cfg.Memory.MaxSize = 100
	c := New(cfg)
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(func() { _ = c.Disconnect(context.Background()) })
	return c
}

func TestConnectDisconnectMemoryOnly(t *testing.T) {
	c := newTestClient(t)
	assert.True(t, c.IsConnected())
}

func TestSetGetRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	ok, err := c.Set(ctx, "k", "v", engine.SetOptions{})
	require.NoError(t, err)
	assert.True(t, ok)

	v, found, err := c.Get(ctx, "k", engine.GetOptions{})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", v)
}

func TestConfigureMergesAndRebindsLogger(t *testing.T) {
	c := newTestClient(t)
	before := c.GetConfig()
	assert.NotEqual(t, "debug", before.Logging.Level)

	c.Configure(config.Config{Logging: config.LoggingConfig{Level: "debug"}})
	assert.Equal(t, "debug", c.GetConfig().Logging.Level)
}

func TestOperationsFailBeforeConnect(t *testing.T) {
	c := New(config.Default())
	_, err := c.Set(context.Background(), "k", "v", engine.SetOptions{})
	assert.Error(t, err)
}
