// Package rediscache implements the optional L2 layer: a network-backed
// cache offering O(1) lookup with native atomic increment and expiry.
package rediscache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/nuvex/nuvex/internal/xerrors"
	"github.com/nuvex/nuvex/logger"
)

// Layer is the L2 CacheLayer. A client passed to New stays owned by the
// caller and Disconnect leaves it open; a client built by FromURL is owned
// by the Layer and closed by Disconnect.
type Layer struct {
	client       *redis.Client
	queryTimeout time.Duration
	defaultTTL   time.Duration
	prefix       string
	log          logger.Logger
	ownsClient   bool
}

// Option configures a Layer.
type Option func(*Layer)

// WithQueryTimeout bounds every Redis round trip. Defaults to 5s.
func WithQueryTimeout(d time.Duration) Option {
	return func(l *Layer) { l.queryTimeout = d }
}

// WithDefaultTTL sets the TTL used when Set is called with ttl <= 0.
func WithDefaultTTL(d time.Duration) Option {
	return func(l *Layer) { l.defaultTTL = d }
}

// WithPrefix namespaces every key written through this Layer.
func WithPrefix(p string) Option {
	return func(l *Layer) { l.prefix = p }
}

// WithLogger attaches a logger for transport-error reporting.
func WithLogger(log logger.Logger) Option {
	return func(l *Layer) { l.log = log }
}

// New wraps an already-constructed *redis.Client. The caller is responsible
// for closing it; New never takes ownership.
func New(client *redis.Client, opts ...Option) *Layer {
	l := &Layer{
		client:       client,
		queryTimeout: 5 * time.Second,
		defaultTTL:   5 * time.Minute,
		log:          logger.Noop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FromURL parses a redis:// URL and constructs both the *redis.Client and
// the Layer wrapping it. The returned Layer owns the client.
func FromURL(url string, opts ...Option) (*Layer, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, xerrors.Wrap(err, xerrors.NotConnected, "rediscache: invalid url")
	}
	client := redis.NewClient(redisOpts)
	l := New(client, opts...)
	l.ownsClient = true
	return l, nil
}

func (l *Layer) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, l.queryTimeout)
}

func (l *Layer) key(k string) string {
	if l.prefix == "" {
		return k
	}
	return l.prefix + ":" + k
}

// Connect verifies connectivity with a PING.
func (l *Layer) Connect(ctx context.Context) error {
	qctx, cancel := l.ctx(ctx)
	defer cancel()
	if err := l.client.Ping(qctx).Err(); err != nil {
		return xerrors.Wrap(err, xerrors.NotConnected, "rediscache: connect failed")
	}
	return nil
}

// Disconnect closes the underlying client only if this Layer created it via
// FromURL; a caller-supplied client (New) is left open.
func (l *Layer) Disconnect(context.Context) error {
	if l.ownsClient {
		return l.client.Close()
	}
	return nil
}

// Get returns the deserialized value for k, or (nil, false) on a miss or
// transport error (logged, not propagated — spec's L2 read failure policy).
func (l *Layer) Get(ctx context.Context, k string) (interface{}, bool) {
	qctx, cancel := l.ctx(ctx)
	defer cancel()
	data, err := l.client.Get(qctx, l.key(k)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		l.log.Warn("rediscache: get transport error key=%s err=%v", k, err)
		return nil, false
	}
	var val interface{}
	if err := msgpack.Unmarshal(data, &val); err != nil {
		l.log.Warn("rediscache: get unmarshal error key=%s err=%v", k, err)
		return nil, false
	}
	return val, true
}

// Set serializes v and stores it with ttl (or the configured default TTL if
// ttl <= 0).
func (l *Layer) Set(ctx context.Context, k string, v interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = l.defaultTTL
	}
	data, err := msgpack.Marshal(v)
	if err != nil {
		return xerrors.Wrap(err, xerrors.Serialization, "rediscache: marshal failed")
	}
	qctx, cancel := l.ctx(ctx)
	defer cancel()
	if err := l.client.Set(qctx, l.key(k), data, ttl).Err(); err != nil {
		return xerrors.Wrap(err, xerrors.L2Transient, "rediscache: set failed")
	}
	return nil
}

// Delete removes k, reporting whether it was present.
func (l *Layer) Delete(ctx context.Context, k string) bool {
	qctx, cancel := l.ctx(ctx)
	defer cancel()
	n, err := l.client.Del(qctx, l.key(k)).Result()
	if err != nil {
		l.log.Warn("rediscache: delete transport error key=%s err=%v", k, err)
		return false
	}
	return n > 0
}

// Exists reports presence without deserializing the value.
func (l *Layer) Exists(ctx context.Context, k string) bool {
	qctx, cancel := l.ctx(ctx)
	defer cancel()
	n, err := l.client.Exists(qctx, l.key(k)).Result()
	if err != nil {
		l.log.Warn("rediscache: exists transport error key=%s err=%v", k, err)
		return false
	}
	return n > 0
}

// Clear flushes every key this Layer's prefix owns. With no prefix set this
// flushes the entire selected database — callers should namespace redis.url
// per environment when running against a shared instance.
func (l *Layer) Clear(ctx context.Context) error {
	qctx, cancel := l.ctx(ctx)
	defer cancel()
	if l.prefix == "" {
		if err := l.client.FlushDB(qctx).Err(); err != nil {
			return xerrors.Wrap(err, xerrors.L2Transient, "rediscache: clear failed")
		}
		return nil
	}
	iter := l.client.Scan(qctx, 0, l.prefix+":*", 0).Iterator()
	var keys []string
	for iter.Next(qctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return xerrors.Wrap(err, xerrors.L2Transient, "rediscache: clear scan failed")
	}
	if len(keys) == 0 {
		return nil
	}
	if err := l.client.Del(qctx, keys...).Err(); err != nil {
		return xerrors.Wrap(err, xerrors.L2Transient, "rediscache: clear failed")
	}
	return nil
}

// Ping exercises the connection.
func (l *Layer) Ping(ctx context.Context) bool {
	qctx, cancel := l.ctx(ctx)
	defer cancel()
	return l.client.Ping(qctx).Err() == nil
}

// Expire applies a new TTL to an existing key, reporting whether it existed.
func (l *Layer) Expire(ctx context.Context, k string, ttl time.Duration) (bool, error) {
	qctx, cancel := l.ctx(ctx)
	defer cancel()
	ok, err := l.client.Expire(qctx, l.key(k), ttl).Result()
	if err != nil {
		return false, xerrors.Wrap(err, xerrors.L2Transient, "rediscache: expire failed")
	}
	return ok, nil
}

// Increment invokes redis's native INCRBY, then conditionally applies ttl,
// returning the post-increment value.
func (l *Layer) Increment(ctx context.Context, k string, delta int64, ttl time.Duration) (int64, error) {
	qctx, cancel := l.ctx(ctx)
	defer cancel()
	rk := l.key(k)
	v, err := l.client.IncrBy(qctx, rk, delta).Result()
	if err != nil {
		return 0, xerrors.Wrap(err, xerrors.L2Transient, "rediscache: increment failed")
	}
	if ttl > 0 {
		if err := l.client.Expire(qctx, rk, ttl).Err(); err != nil {
			l.log.Warn("rediscache: post-increment expire failed key=%s err=%v", k, err)
		}
	}
	return v, nil
}
