package bs

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// memConn is an in-process conn, useful for tests and for driving the
// composite store without a live Redis instance. It durably persists
// nothing beyond process lifetime; callers that need real durability use
// OpenRedis.
type memConn struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (c *memConn) mset(ctx context.Context, entries map[string][]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range entries {
		cp := make([]byte, len(v))
		copy(cp, v)
		c.data[k] = cp
	}
	return nil
}

func (c *memConn) mget(ctx context.Context, keys []string) (map[string][]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string][]byte)
	for _, k := range keys {
		if v, ok := c.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (c *memConn) del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memConn) scanKeys(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.data))
	for k := range c.data {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (c *memConn) close() error { return nil }

// MemoryBacking is the shared map behind one or more in-process Stores. Two
// Stores opened against the same MemoryBacking and keyPrefix observe each
// other's writes, letting tests simulate closing and reopening a collection
// against the same durable file without a live Redis instance.
type MemoryBacking struct {
	conn *memConn
}

// NewMemoryBacking allocates a fresh, empty backing map.
func NewMemoryBacking() *MemoryBacking {
	return &MemoryBacking{conn: &memConn{data: make(map[string][]byte)}}
}

// OpenMemory opens a Store against an existing MemoryBacking.
func OpenMemory(backing *MemoryBacking, keyPrefix string) (*Store, error) {
	return open(zap.NewNop(), backing.conn, keyPrefix)
}

// NewMemory returns a Store backed by a fresh, unshared in-process map
// instead of Redis. It satisfies the same Store API as OpenRedis and is
// intended for tests and for local development without a Redis instance.
func NewMemory(keyPrefix string) (*Store, error) {
	return OpenMemory(NewMemoryBacking(), keyPrefix)
}
