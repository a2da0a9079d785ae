package client

import (
	"sync"

	"github.com/nuvex/nuvex/config"
	"github.com/nuvex/nuvex/internal/xerrors"
)

// instance is the process-wide singleton state: Uninitialized -> Initialized
// -> Uninitialized (spec.md §9's "Process-wide singleton" design note).
// Most callers should prefer an explicit *Client from New/Create; this is a
// thin adapter for call sites that cannot thread a handle through.
var (
	instanceMu sync.Mutex
	instance   *Client
)

// Initialize constructs the singleton from cfg. Calling it again before
// Shutdown replaces the previous instance without disconnecting it — callers
// are expected to Shutdown first.
func Initialize(cfg config.Config) *Client {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	instance = New(cfg)
	return instance
}

// GetInstance returns the singleton, failing if Initialize has not been
// called (or Shutdown has since been called).
func GetInstance() (*Client, error) {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance == nil {
		return nil, xerrors.New(xerrors.NotConnected, "client: singleton not initialized")
	}
	return instance, nil
}

// Create builds a non-singleton Client, independent of Initialize/GetInstance.
func Create(cfg config.Config) *Client {
	return New(cfg)
}

// Shutdown clears the singleton. It does not disconnect the underlying
// engine — callers that need a clean disconnect should call
// instance.Disconnect themselves before Shutdown.
func Shutdown() {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	instance = nil
}
