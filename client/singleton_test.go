package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuvex/nuvex/config"
)

func TestGetInstanceFailsBeforeInitialize(t *testing.T) {
	Shutdown()
	_, err := GetInstance()
	assert.Error(t, err)
}

func TestInitializeThenGetInstance(t *testing.T) {
	Shutdown()
	want := Initialize(config.Default())
	got, err := GetInstance()
	require.NoError(t, err)
	assert.Same(t, want, got)
	Shutdown()
}

func TestCreateIsIndependentOfSingleton(t *testing.T) {
	Shutdown()
	c1 := Create(config.Default())
	_, err := GetInstance()
	assert.Error(t, err, "Create must not affect the singleton")
	_ = c1
}
