package bs

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// redisConn adapts *redis.Client to the conn interface, the same thin-wrap
// shape as the teacher's own redis.Client in internal/redis/client.go.
type redisConn struct {
	rdb     *redis.Client
	pattern string // keyPrefix+"*"; scopes scanKeys to this collection
}

func (c *redisConn) mset(ctx context.Context, entries map[string][]byte) error {
	pairs := make([]interface{}, 0, len(entries)*2)
	for k, v := range entries {
		pairs = append(pairs, k, v)
	}
	return c.rdb.MSet(ctx, pairs...).Err()
}

func (c *redisConn) mget(ctx context.Context, keys []string) (map[string][]byte, error) {
	raws, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	out := make(map[string][]byte, len(raws))
	for i, raw := range raws {
		switch v := raw.(type) {
		case nil:
			// absent; omit from result
		case string:
			out[keys[i]] = []byte(v)
		case []byte:
			out[keys[i]] = v
		default:
			return nil, fmt.Errorf("redis mget: unexpected type %T at index %d", raw, i)
		}
	}
	return out, nil
}

func (c *redisConn) del(ctx context.Context, key string) error {
	// Del is idempotent: key exists -> (1, nil), key absent -> (0, nil).
	return c.rdb.Del(ctx, key).Err()
}

func (c *redisConn) scanKeys(ctx context.Context) ([]string, error) {
	// The scanKeys caller (Store.Keys) strips the prefix afterward, so the
	// pattern here must cover the whole keyspace the conn was bound to; that
	// binding is expressed via the pattern passed at construction time.
	var out []string
	iter := c.rdb.Scan(ctx, 0, c.pattern, 0).Iterator()
	for iter.Next(ctx) {
		out = append(out, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return out, nil
}

// close is a no-op: rdb is documented (OpenRedis) as possibly shared across
// several collections, so a single collection does not hold it exclusively
// and must not tear it down on Store.Close. The process that constructed rdb
// owns its lifecycle and is responsible for closing it once every collection
// sharing it is done.
func (c *redisConn) close() error { return nil }

// OpenRedis connects a Store to Redis for the given collection. rdb may be a
// client shared by several collections (disjoint keyPrefix values), mirroring
// the teacher's multi-tenancy note: one process, one keyspace, many prefixes.
func OpenRedis(ctx context.Context, log *zap.Logger, rdb *redis.Client, keyPrefix string) (*Store, error) {
	if rdb == nil {
		return nil, fmt.Errorf("bs: nil redis client")
	}
	s, err := open(log, nil, keyPrefix)
	if err != nil {
		return nil, err
	}
	s.conn = &redisConn{rdb: rdb, pattern: s.keyPrefix + "*"}
	return s, nil
}
