// Package client is the thin high-level facade over storage/engine: it adds
// namespace helpers, a process-singleton lifecycle, the backup/restore
// envelope, and configuration merging on top of the StorageEngine CRUD
// surface the engine already provides.
package client

import (
	"context"

	"github.com/nuvex/nuvex/config"
	"github.com/nuvex/nuvex/internal/xerrors"
	"github.com/nuvex/nuvex/logger"
	"github.com/nuvex/nuvex/storage/engine"
	"github.com/nuvex/nuvex/storage/pgstore"
	"github.com/nuvex/nuvex/storage/rediscache"
)

// Client is the public facade. Most programs should hold one explicit
// instance; the singleton in singleton.go is a thin adapter for callers
// that cannot thread a handle through.
type Client struct {
	engine *engine.Engine
	log    logger.SinkLogger
	cfg    config.Config
}

// New constructs a Client from cfg without connecting. The engine itself is
// built lazily in Connect, since L2/L3 construction can fail (an unreachable
// DSN, a bad redis URL) and New must never return an error.
func New(cfg config.Config) *Client {
	log := newLogger(nil, cfg.Logging)
	return &Client{log: log, cfg: cfg}
}

func newLogger(sink logger.Sink, cfg config.LoggingConfig) logger.SinkLogger {
	level := logger.ParseLevel(cfg.Level)
	if !cfg.Enabled {
		level = logger.LevelNone
	}
	if cfg.Logger == "json" {
		return logger.NewJSON(sink, level)
	}
	return logger.NewConsole(sink, level)
}

func pgstoreSchema(s config.PostgresSchema) pgstore.Schema {
	return pgstore.Schema{
		TableName:   s.TableName,
		KeyColumn:   s.Columns.Key,
		ValueColumn: s.Columns.Value,
	}
}

// Connect constructs L2/L3 from the configuration (when present), applies
// the L3 schema, and brings the engine up.
func (c *Client) Connect(ctx context.Context) error {
	opts := engine.Options{
		MaxSize:         c.cfg.Memory.MaxSize,
		MemoryTTL:       c.cfg.Memory.TTL,
		RedisTTL:        c.cfg.Redis.TTL,
		CleanupInterval: c.cfg.CleanupInterval(),
		Logger:          c.log,
	}

	if c.cfg.Redis.Configured() {
		l2, err := rediscache.FromURL(c.cfg.Redis.URL,
			rediscache.WithDefaultTTL(c.cfg.Redis.TTL),
			rediscache.WithLogger(c.log))
		if err != nil {
			return err
		}
		opts.L2 = l2
	}

	if c.cfg.Postgres.Configured() {
		l3, err := pgstore.New(ctx, pgstore.Config{
			Host:                    c.cfg.Postgres.Host,
			Port:                    c.cfg.Postgres.Port,
			Database:                c.cfg.Postgres.Database,
			User:                    c.cfg.Postgres.User,
			Password:                c.cfg.Postgres.Password,
			SSLMode:                 string(c.cfg.Postgres.SSL),
			MaxConns:                int32(c.cfg.Postgres.Max),
			IdleTimeoutMillis:       c.cfg.Postgres.IdleTimeoutMillis,
			ConnectionTimeoutMillis: c.cfg.Postgres.ConnectionTimeoutMillis,
			Schema:                  pgstoreSchema(c.cfg.Postgres.Schema),
		})
		if err != nil {
			return err
		}
		if err := l3.EnsureSchema(ctx); err != nil {
			return err
		}
		opts.L3 = l3
	}

	c.engine = engine.New(opts)
	return c.engine.Connect(ctx)
}

// Disconnect tears down the engine and every layer it owns.
func (c *Client) Disconnect(ctx context.Context) error {
	if c.engine == nil {
		return nil
	}
	return c.engine.Disconnect(ctx)
}

// IsConnected reports the underlying engine's connection state.
func (c *Client) IsConnected() bool {
	return c.engine != nil && c.engine.IsConnected()
}

func (c *Client) requireEngine() error {
	if c.engine == nil {
		return xerrors.New(xerrors.NotConnected, "client: not connected")
	}
	return nil
}

// Configure merges non-zero fields from partial into the running
// configuration and rebinds the logger sink, without reconnecting.
func (c *Client) Configure(partial config.Config) {
	if partial.Memory.TTL > 0 {
		c.cfg.Memory.TTL = partial.Memory.TTL
	}
	if partial.Redis.TTL > 0 {
		c.cfg.Redis.TTL = partial.Redis.TTL
	}
	if partial.Memory.CleanupInterval > 0 {
		c.cfg.Memory.CleanupInterval = partial.Memory.CleanupInterval
	}
	if partial.Logging.Logger != "" {
		c.cfg.Logging.Logger = partial.Logging.Logger
	}
	if partial.Logging.Level != "" {
		c.cfg.Logging.Level = partial.Logging.Level
	}
	c.log = newLogger(nil, c.cfg.Logging)
	if c.engine != nil {
		c.engine.Configure(c.cfg.Memory.TTL, c.cfg.Redis.TTL, c.cfg.CleanupInterval(), c.log)
	}
}

// GetConfig returns the configuration this Client currently runs with.
func (c *Client) GetConfig() config.Config {
	return c.cfg
}

// Engine exposes the underlying StorageEngine for callers that need an
// operation Client does not wrap directly (e.g. Promote/Demote).
func (c *Client) Engine() *engine.Engine {
	return c.engine
}
