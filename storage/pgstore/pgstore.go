// Package pgstore implements the L3 layer: the durable source of truth
// backed by a single PostgreSQL table whose identifiers are validated
// against I6 before any DDL/DML interpolation.
package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nuvex/nuvex/internal/xerrors"
)

// Layer is the L3 StoreLayer.
type Layer struct {
	pool      *pgxpool.Pool
	schema    Schema
	ownedPool bool
}

// Config describes how to reach L3 and which table/columns back it.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string // "off", "default", "custom"

	MaxConns                int32
	IdleTimeoutMillis       int
	ConnectionTimeoutMillis int

	Schema Schema
}

func (c Config) dsn() string {
	sslmode := "require"
	switch c.SSLMode {
	case "off":
		sslmode = "disable"
	case "custom":
		sslmode = "verify-full"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslmode)
}

// New constructs a Layer that owns its pool, built from Config. The engine
// must Close it at disconnect.
func New(ctx context.Context, cfg Config) (*Layer, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.dsn())
	if err != nil {
		return nil, xerrors.Wrap(err, xerrors.NotConnected, "pgstore: invalid connection config")
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	} else {
		poolCfg.MaxConns = 10
	}
	if cfg.IdleTimeoutMillis > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(cfg.IdleTimeoutMillis) * time.Millisecond
	}
	if cfg.ConnectionTimeoutMillis > 0 {
		poolCfg.ConnConfig.ConnectTimeout = time.Duration(cfg.ConnectionTimeoutMillis) * time.Millisecond
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, xerrors.Wrap(err, xerrors.NotConnected, "pgstore: pool creation failed")
	}
	return &Layer{pool: pool, schema: cfg.Schema, ownedPool: true}, nil
}

// FromPool wraps an already-constructed, caller-owned pool. Disconnect
// never closes it (spec.md §5 pool ownership: caller-owned).
func FromPool(pool *pgxpool.Pool, schema Schema) *Layer {
	return &Layer{pool: pool, schema: schema, ownedPool: false}
}

// EnsureSchema applies the table/index/trigger/function DDL.
func (l *Layer) EnsureSchema(ctx context.Context) error {
	return NewManager(l.pool, l.schema).Setup(ctx)
}

// Connect verifies connectivity with a SELECT 1.
func (l *Layer) Connect(ctx context.Context) error {
	if !l.Ping(ctx) {
		return xerrors.New(xerrors.NotConnected, "pgstore: ping failed")
	}
	return nil
}

// Disconnect closes the pool only if this Layer created it.
func (l *Layer) Disconnect(context.Context) error {
	if l.ownedPool {
		l.pool.Close()
	}
	return nil
}

// Ping acquires a connection and runs SELECT 1.
func (l *Layer) Ping(ctx context.Context) bool {
	var one int
	err := l.pool.QueryRow(ctx, "SELECT 1").Scan(&one)
	return err == nil && one == 1
}

// Get returns the deserialized value for k, or (nil, false) if absent,
// expired, or on a transport error (the caller falls back per spec's L3
// read failure policy).
func (l *Layer) Get(ctx context.Context, k string) (interface{}, bool, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 AND (expires_at IS NULL OR expires_at > now())`,
		l.schema.ValueColumn, l.schema.TableName, l.schema.KeyColumn)
	var raw []byte
	err := l.pool.QueryRow(ctx, query, k).Scan(&raw)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, xerrors.Wrap(err, xerrors.L3Read, "pgstore: get failed")
	}
	var val interface{}
	if err := json.Unmarshal(raw, &val); err != nil {
		return nil, false, xerrors.Wrap(err, xerrors.Serialization, "pgstore: unmarshal failed")
	}
	return val, true, nil
}

// Set performs an atomic upsert on (key).
func (l *Layer) Set(ctx context.Context, k string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return xerrors.Wrap(err, xerrors.Serialization, "pgstore: marshal failed")
	}
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (%s) DO UPDATE SET %s = excluded.%s, expires_at = excluded.expires_at`,
		l.schema.TableName, l.schema.KeyColumn, l.schema.ValueColumn,
		l.schema.KeyColumn, l.schema.ValueColumn, l.schema.ValueColumn)
	if _, err := l.pool.Exec(ctx, query, k, data, expiresAt); err != nil {
		return xerrors.Wrap(err, xerrors.L3Write, "pgstore: set failed")
	}
	return nil
}

// Delete removes the row for k, reporting whether one existed.
func (l *Layer) Delete(ctx context.Context, k string) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, l.schema.TableName, l.schema.KeyColumn)
	tag, err := l.pool.Exec(ctx, query, k)
	if err != nil {
		return false, xerrors.Wrap(err, xerrors.L3Write, "pgstore: delete failed")
	}
	return tag.RowsAffected() > 0, nil
}

// Exists checks presence with the same non-expired predicate as Get.
func (l *Layer) Exists(ctx context.Context, k string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1 AND (expires_at IS NULL OR expires_at > now()))`,
		l.schema.TableName, l.schema.KeyColumn)
	var exists bool
	if err := l.pool.QueryRow(ctx, query, k).Scan(&exists); err != nil {
		return false, xerrors.Wrap(err, xerrors.L3Read, "pgstore: exists failed")
	}
	return exists, nil
}

// Clear deletes every row of the table.
func (l *Layer) Clear(ctx context.Context) error {
	query := fmt.Sprintf(`DELETE FROM %s`, l.schema.TableName)
	if _, err := l.pool.Exec(ctx, query); err != nil {
		return xerrors.Wrap(err, xerrors.L3Write, "pgstore: clear failed")
	}
	return nil
}

// Increment performs a single-statement atomic upsert: on conflict, adds
// delta to the current numeric value if unexpired, or resets to delta if
// expired/absent, refreshing expires_at, returning the post-update value.
func (l *Layer) Increment(ctx context.Context, k string, delta int64, ttl time.Duration) (int64, error) {
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}
	query := fmt.Sprintf(`
		INSERT INTO %[1]s (%[2]s, %[3]s, expires_at) VALUES ($1, to_jsonb($2::bigint), $3)
		ON CONFLICT (%[2]s) DO UPDATE SET
			%[3]s = to_jsonb(
				CASE WHEN %[1]s.expires_at IS NULL OR %[1]s.expires_at > now()
					THEN (%[1]s.%[3]s)::text::numeric + $2
					ELSE $2
				END
			),
			expires_at = excluded.expires_at
		RETURNING %[3]s`,
		l.schema.TableName, l.schema.KeyColumn, l.schema.ValueColumn)

	var raw []byte
	if err := l.pool.QueryRow(ctx, query, k, delta, expiresAt).Scan(&raw); err != nil {
		return 0, xerrors.Wrap(err, xerrors.L3Write, "pgstore: increment failed")
	}
	var result int64
	if err := json.Unmarshal(raw, &result); err != nil {
		return 0, xerrors.Wrap(err, xerrors.Serialization, "pgstore: increment result unmarshal failed")
	}
	return result, nil
}

// SetIfNotExists performs a single-statement CAS: the row is inserted only
// if the key is absent, reporting whether this call won the race.
func (l *Layer) SetIfNotExists(ctx context.Context, k string, v interface{}, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return false, xerrors.Wrap(err, xerrors.Serialization, "pgstore: marshal failed")
	}
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (%s) DO NOTHING`,
		l.schema.TableName, l.schema.KeyColumn, l.schema.ValueColumn, l.schema.KeyColumn)
	tag, err := l.pool.Exec(ctx, query, k, data, expiresAt)
	if err != nil {
		return false, xerrors.Wrap(err, xerrors.L3Write, "pgstore: setIfNotExists failed")
	}
	return tag.RowsAffected() > 0, nil
}

// Cleanup invokes the generated cleanup_expired_<table>() function and
// returns the number of rows purged.
func (l *Layer) Cleanup(ctx context.Context) (int, error) {
	query := fmt.Sprintf(`SELECT %s()`, l.schema.cleanupFunctionName())
	var purged int
	if err := l.pool.QueryRow(ctx, query).Scan(&purged); err != nil {
		return 0, xerrors.Wrap(err, xerrors.L3Write, "pgstore: cleanup failed")
	}
	return purged, nil
}

// Keys returns every unexpired key mapped to its created_at, for rebuilding
// the in-process key index (and its query(sortBy: "createdAt") ordering) on
// connect.
func (l *Layer) Keys(ctx context.Context) (map[string]time.Time, error) {
	query := fmt.Sprintf(`SELECT %s, created_at FROM %s WHERE expires_at IS NULL OR expires_at > now()`,
		l.schema.KeyColumn, l.schema.TableName)
	rows, err := l.pool.Query(ctx, query)
	if err != nil {
		return nil, xerrors.Wrap(err, xerrors.L3Read, "pgstore: keys failed")
	}
	defer rows.Close()
	keys := make(map[string]time.Time)
	for rows.Next() {
		var k string
		var createdAt time.Time
		if err := rows.Scan(&k, &createdAt); err != nil {
			return nil, xerrors.Wrap(err, xerrors.L3Read, "pgstore: keys scan failed")
		}
		keys[k] = createdAt
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(err, xerrors.L3Read, "pgstore: keys iteration failed")
	}
	return keys, nil
}
