// Package cache memoizes embeddings in Redis so identical text is only sent to the
// embedding service once.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"
	r "gopkg.in/redis.v5"

	"echomind/internal/domain"
)

const (
	prefix     = "echomind:emb:"
	DefaultTTL = 7 * 24 * time.Hour
)

// Backend is the key/value subset of Redis used by the cache.
type Backend interface {
	Get(key string) ([]byte, error)
	Set(key string, content []byte, ttl time.Duration) error
}

// Redis is a Backend on top of a Redis client.
type Redis struct {
	client *r.Client
}

// NewRedis connects to the Redis instance described by url (redis://host:port/db).
func NewRedis(url string) (*Redis, error) {
	opts, err := r.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &Redis{client: r.NewClient(opts)}, nil
}

func (c *Redis) Get(key string) ([]byte, error) {
	return c.client.Get(key).Bytes()
}

func (c *Redis) Set(key string, content []byte, ttl time.Duration) error {
	return c.client.Set(key, content, ttl).Err()
}

// Close releases the underlying connection pool.
func (c *Redis) Close() error {
	return c.client.Close()
}

// Embedder wraps another embedder with a read-through cache. Cache failures are
// logged and never fail an embed.
type Embedder struct {
	inner   domain.Embedder
	backend Backend
	ttl     time.Duration
}

func New(inner domain.Embedder, backend Backend, ttl time.Duration) *Embedder {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Embedder{inner: inner, backend: backend, ttl: ttl}
}

func (e *Embedder) Name() string { return e.inner.Name() }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	key := Key(e.inner.Name(), text)
	if data, err := e.backend.Get(key); err == nil {
		var v []float64
		if err := json.Unmarshal(data, &v); err == nil && len(v) > 0 {
			return v, nil
		}
		log.WithField("key", key).Debug("discarding undecodable cached embedding")
	} else if err != r.Nil {
		log.WithError(err).Warn("embedding cache read failed")
	}

	v, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(v)
	if err == nil {
		err = e.backend.Set(key, data, e.ttl)
	}
	if err != nil {
		log.WithError(err).Warn("embedding cache write failed")
	}
	return v, nil
}

// Key derives the cache key for text embedded by the named model.
func Key(model, text string) string {
	h := sha256.Sum256([]byte(model + "\x00" + text))
	return prefix + hex.EncodeToString(h[:])
}
