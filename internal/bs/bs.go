// Package bs implements the backing store (BS): durable persistence of
// key-bytes -> value-bytes pairs for one collection, with no recency
// semantics of its own.
//
// The durable engine is Redis, the engine the teacher repository already
// uses for its repository layer (internal/repo/store, internal/infrastructure/datastore).
// One collection maps to one Redis key prefix, the same convention those
// packages use for multi-tenancy within a single keyspace.
package bs

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edirooss/lrustore/internal/apperr"
)

// conn is the narrow slice of Redis commands the store needs. It is
// satisfied by *redisConn (the production adapter over *redis.Client) and by
// a fake in tests, so the suite never requires a live Redis server.
type conn interface {
	// mset upserts every key/value pair in one atomic round trip.
	mset(ctx context.Context, entries map[string][]byte) error
	// mget returns a value for every requested key that exists; keys absent
	// from the result were absent in the store.
	mget(ctx context.Context, keys []string) (map[string][]byte, error)
	// del removes a single key; no error if absent.
	del(ctx context.Context, key string) error
	// scanKeys returns every key present under the store's prefix.
	scanKeys(ctx context.Context) ([]string, error)
	close() error
}

// Store is the backing store for one collection.
type Store struct {
	log       *zap.Logger
	conn      conn
	keyPrefix string
}

// open wires a Store on top of the given conn. Unexported: production
// callers go through OpenRedis; tests go through the fake-backed
// constructor in bs_test.go.
func open(log *zap.Logger, c conn, keyPrefix string) (*Store, error) {
	if keyPrefix == "" {
		return nil, apperr.BadArgument("bs: keyPrefix must be non-empty")
	}
	if !strings.HasSuffix(keyPrefix, ":") {
		keyPrefix += ":"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{log: log.Named("bs"), conn: c, keyPrefix: keyPrefix}, nil
}

func (s *Store) fullKey(key string) string { return s.keyPrefix + key }

func (s *Store) stripPrefix(fullKey string) (string, bool) {
	return strings.CutPrefix(fullKey, s.keyPrefix)
}

// Create is the idempotent collection-table bootstrap step. Redis has no
// schema to create; the keyspace prefix is the "table", so this is a no-op
// kept only so Store satisfies the operation the specification names.
func (s *Store) Create(ctx context.Context) error { return nil }

// Write upserts a single (key, value) pair.
func (s *Store) Write(ctx context.Context, key string, value []byte) error {
	return s.WriteMany(ctx, map[string][]byte{key: value})
}

// WriteMany upserts every pair in entries as one atomic unit of work.
func (s *Store) WriteMany(ctx context.Context, entries map[string][]byte) error {
	if len(entries) == 0 {
		return nil
	}
	prefixed := make(map[string][]byte, len(entries))
	for k, v := range entries {
		prefixed[s.fullKey(k)] = v
	}
	start := time.Now()
	if err := s.conn.mset(ctx, prefixed); err != nil {
		return apperr.Storage(err, "bs: write %d entries", len(entries))
	}
	s.log.Debug("write", zap.Int("count", len(entries)), zap.Duration("elapsed", time.Since(start)))
	return nil
}

// Read performs a point lookup. ok is false when the key is absent — the
// absent sentinel — rather than an error.
func (s *Store) Read(ctx context.Context, key string) (value []byte, ok bool, err error) {
	res, err := s.ReadMany(ctx, []string{key})
	if err != nil {
		return nil, false, err
	}
	v, found := res[key]
	return v, found, nil
}

// ReadMany returns the subset of keys found in the store. A key absent from
// the returned map was absent in the store; this is not an error.
func (s *Store) ReadMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.fullKey(k)
	}
	raw, err := s.conn.mget(ctx, full)
	if err != nil {
		return nil, apperr.Storage(err, "bs: read %d keys", len(keys))
	}
	out := make(map[string][]byte, len(raw))
	for fk, v := range raw {
		k, ok := s.stripPrefix(fk)
		if !ok {
			continue
		}
		out[k] = v
	}
	return out, nil
}

// Keys returns every key currently persisted in the collection.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	full, err := s.conn.scanKeys(ctx)
	if err != nil {
		return nil, apperr.Storage(err, "bs: enumerate keys")
	}
	out := make([]string, 0, len(full))
	for _, fk := range full {
		if k, ok := s.stripPrefix(fk); ok {
			out = append(out, k)
		}
	}
	return out, nil
}

// Delete removes a single key. No error if absent.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.conn.del(ctx, s.fullKey(key)); err != nil {
		return apperr.Storage(err, "bs: delete %q", key)
	}
	return nil
}

// Close closes the underlying conn. For a Redis-backed Store this is a
// no-op: the *redis.Client may be shared and stays open.
func (s *Store) Close() error {
	if err := s.conn.close(); err != nil {
		return apperr.Storage(err, "bs: close")
	}
	return nil
}
