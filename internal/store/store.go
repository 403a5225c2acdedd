// Package store implements the composite store (CS): the public key/value
// facade that orchestrates the recency index (internal/ri) and the backing
// store (internal/bs), encodes/decodes keys, serializes/deserializes values,
// and triggers sync-on-fullness and flush-on-close.
package store

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/edirooss/lrustore/internal/apperr"
	"github.com/edirooss/lrustore/internal/bs"
	"github.com/edirooss/lrustore/internal/ri"
)

type collectionState int32

const (
	stateNew collectionState = iota
	stateOpen
	stateClosed
)

// Config configures a collection's recency index and codecs. In Connect, a
// non-positive MaxLen and empty codec names are replaced by defaults; a zero
// SyncFraction is kept, and then every sync evicts nothing.
type Config struct {
	// MaxLen is the recency index's resident-key capacity.
	MaxLen int
	// SyncFraction is the proportion of MaxLen evicted per sync, clamped
	// into [0, 1].
	SyncFraction float64
	// KeyEncoding names the key codec ("utf8" is the only built-in).
	KeyEncoding string
	// Serialization names the value codec: "json" (default), "gob", "raw".
	Serialization string
}

func (c Config) withDefaults() Config {
	if c.MaxLen <= 0 {
		c.MaxLen = 1024
	}
	if c.SyncFraction < 0 {
		c.SyncFraction = 0
	} else if c.SyncFraction > 1 {
		c.SyncFraction = 1
	}
	return c
}

// Value is the result of a multi-key read: Present is false for a key the
// union of RI and BS has no record of — the absent sentinel.
type Value struct {
	Bytes   []byte
	Present bool
}

// Stats is a non-authoritative snapshot for observability; it never
// participates in the capacity/count/recency invariants.
type Stats struct {
	Resident      int
	SyncCount     int64
	PromotedCount int64
}

// Store is the composite store (CS): one open collection.
type Store struct {
	id   uuid.UUID
	log  *zap.Logger
	name string

	cfg      Config
	keyCodec KeyCodec
	valCodec ValueCodec
	bsStore  *bs.Store
	riIndex  *ri.Index

	mu sync.Mutex // serializes all RI access and state transitions

	// syncFlushMu serializes sync() and flush() end-to-end, including the BS
	// I/O: the specification requires the two never interleave. Unlike mu,
	// it is held across the whole operation rather than released around I/O,
	// and unlike singleflight it never coalesces a flush into an in-flight
	// sync — a coalesced flush would return without actually draining RI.
	syncFlushMu sync.Mutex

	state atomic.Int32

	syncCount     atomic.Int64
	promotedCount atomic.Int64
}

// Connect opens a collection against rdb under the given name (used as the
// BS key prefix), constructing a fresh bounded recency index per cfg. rdb
// may be shared across collections with distinct names, the same
// multi-tenancy convention the teacher's repository layer uses for
// keyPrefix.
func Connect(ctx context.Context, log *zap.Logger, rdb *redis.Client, name string, cfg Config) (*Store, error) {
	bsStore, err := bs.OpenRedis(ctx, log, rdb, name)
	if err != nil {
		return nil, apperr.Storage(err, "store: open backing store %q", name)
	}
	return newStore(log, bsStore, name, cfg)
}

// ConnectMemory opens a collection backed by an in-process BS instead of
// Redis. Intended for tests and for local development without a Redis
// instance; it does not persist beyond process lifetime.
func ConnectMemory(name string, cfg Config) (*Store, error) {
	bsStore, err := bs.NewMemory(name)
	if err != nil {
		return nil, err
	}
	return newStore(nil, bsStore, name, cfg)
}

// ConnectMemoryShared opens a collection against an existing
// bs.MemoryBacking, letting tests close a collection and reopen a fresh one
// against the same in-process "durable file".
func ConnectMemoryShared(backing *bs.MemoryBacking, name string, cfg Config) (*Store, error) {
	bsStore, err := bs.OpenMemory(backing, name)
	if err != nil {
		return nil, err
	}
	return newStore(nil, bsStore, name, cfg)
}

func newStore(log *zap.Logger, bsStore *bs.Store, name string, cfg Config) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	var keyCodec KeyCodec
	switch cfg.KeyEncoding {
	case "", "utf8":
		keyCodec = UTF8KeyCodec{}
	default:
		return nil, apperr.BadArgument("store: unknown keyencoding %q", cfg.KeyEncoding)
	}

	valCodec, err := NewValueCodec(cfg.Serialization)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	cs := &Store{
		id:       id,
		log:      log.Named("store").With(zap.String("collection", name), zap.String("instance", id.String())),
		name:     name,
		cfg:      cfg,
		keyCodec: keyCodec,
		valCodec: valCodec,
		bsStore:  bsStore,
		riIndex:  ri.New(cfg.MaxLen),
	}
	cs.state.Store(int32(stateOpen))
	cs.log.Info("connected", zap.Int("maxlen", cfg.MaxLen), zap.Float64("sync_fraction", cfg.SyncFraction))
	return cs, nil
}

func (cs *Store) requireOpen() error {
	if collectionState(cs.state.Load()) != stateOpen {
		return apperr.NotOpen("collection %q", cs.name)
	}
	return nil
}

// Write encodes key, serializes value (pass-through if value is already
// []byte), and puts it into the recency index. A sync is triggered if the
// index reports full afterward.
func (cs *Store) Write(ctx context.Context, key string, value interface{}) error {
	if err := cs.requireOpen(); err != nil {
		return err
	}
	encKey, err := cs.keyCodec.EncodeKey(key)
	if err != nil {
		return err
	}
	raw, err := marshalValue(cs.valCodec, value)
	if err != nil {
		return err
	}

	cs.mu.Lock()
	full := cs.riIndex.Put(encKey, raw)
	cs.mu.Unlock()

	if full {
		if err := cs.sync(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Read looks up key, deserializing into out (ignored if out is nil). found
// is false if neither RI nor BS holds the key — the absent sentinel.
func (cs *Store) Read(ctx context.Context, key string, out interface{}) (found bool, err error) {
	if err := cs.requireOpen(); err != nil {
		return false, err
	}
	encKey, err := cs.keyCodec.EncodeKey(key)
	if err != nil {
		return false, err
	}

	cs.mu.Lock()
	raw, riErr := cs.riIndex.Get(encKey)
	cs.mu.Unlock()

	switch {
	case riErr == nil:
		return true, cs.unmarshalInto(out, raw)
	case apperr.IsCorrupt(riErr):
		return false, riErr
	}

	raw, ok, err := cs.bsStore.Read(ctx, encKey)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	if err := cs.promote(ctx, encKey, raw); err != nil {
		return false, err
	}
	return true, cs.unmarshalInto(out, raw)
}

// Get is Read with out left untouched (rather than erroring) on absence.
func (cs *Store) Get(ctx context.Context, key string, out interface{}) (found bool, err error) {
	return cs.Read(ctx, key, out)
}

// ReadMany partitions keys into RI hits and misses, issues one BS query for
// the misses, promotes every record BS returns, and returns one Value per
// requested key (Present=false is the absent sentinel), keyed by the
// caller's original text keys.
func (cs *Store) ReadMany(ctx context.Context, keys []string) (map[string]Value, error) {
	if err := cs.requireOpen(); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return map[string]Value{}, nil
	}

	type mapping struct{ text, enc string }
	encoded := make([]mapping, len(keys))
	for i, k := range keys {
		enc, err := cs.keyCodec.EncodeKey(k)
		if err != nil {
			return nil, err
		}
		encoded[i] = mapping{text: k, enc: enc}
	}

	out := make(map[string]Value, len(keys))
	var missEnc []string
	var missText []string

	cs.mu.Lock()
	for _, m := range encoded {
		if raw, err := cs.riIndex.Get(m.enc); err == nil {
			out[m.text] = Value{Bytes: raw, Present: true}
		} else {
			missEnc = append(missEnc, m.enc)
			missText = append(missText, m.text)
		}
	}
	cs.mu.Unlock()

	if len(missEnc) > 0 {
		records, err := cs.bsStore.ReadMany(ctx, missEnc)
		if err != nil {
			return nil, err
		}
		anyPromoted := false
		cs.mu.Lock()
		for i, enc := range missEnc {
			raw, ok := records[enc]
			if !ok {
				out[missText[i]] = Value{Present: false}
				continue
			}
			out[missText[i]] = Value{Bytes: raw, Present: true}
			cs.riIndex.Put(enc, raw)
			cs.promotedCount.Add(1)
			anyPromoted = true
		}
		full := cs.riIndex.Full()
		cs.mu.Unlock()

		if anyPromoted && full {
			if err := cs.sync(ctx); err != nil {
				return nil, err
			}
		}
	}

	return out, nil
}

// Delete removes key from BS first, then RI (idempotent on either miss).
func (cs *Store) Delete(ctx context.Context, key string) error {
	if err := cs.requireOpen(); err != nil {
		return err
	}
	encKey, err := cs.keyCodec.EncodeKey(key)
	if err != nil {
		return err
	}
	if err := cs.bsStore.Delete(ctx, encKey); err != nil {
		return err
	}
	cs.mu.Lock()
	cs.riIndex.Delete(encKey)
	cs.mu.Unlock()
	return nil
}

// promote stores a BS-served raw blob into RI, triggering a sync if that
// fills the index. Per the specification's promotion policy, the raw blob
// is stored, not the deserialized value, so sync can hand it to BS unchanged.
func (cs *Store) promote(ctx context.Context, encKey string, raw []byte) error {
	cs.mu.Lock()
	full := cs.riIndex.Put(encKey, raw)
	cs.mu.Unlock()
	cs.promotedCount.Add(1)

	if full {
		return cs.sync(ctx)
	}
	return nil
}

func (cs *Store) unmarshalInto(out interface{}, raw []byte) error {
	if out == nil {
		return nil
	}
	if p, ok := out.(*[]byte); ok {
		*p = raw
		return nil
	}
	return cs.valCodec.Unmarshal(raw, out)
}

// sync obtains the eviction batch from the recency index and upserts it into
// BS in one operation. syncFlushMu serializes sync against both concurrent
// sync and concurrent flush calls on the same collection end to end (the
// specification's ordering requirement), rather than coalescing them: a
// coalesced flush would return having skipped its own drain.
//
// Once the recency index has committed a batch out of its ordering, that
// batch is not rolled back: a BS write failure here is surfaced as a
// Storage error, but the batch's keys remain absent from the index. This
// mirrors the specification's literal operation order
// (RI.sync_make_ready() before the BS upsert) rather than attempting a
// rollback the specification does not define.
func (cs *Store) sync(ctx context.Context) error {
	cs.syncFlushMu.Lock()
	defer cs.syncFlushMu.Unlock()

	cs.mu.Lock()
	batch := cs.riIndex.SyncMakeReady(cs.cfg.SyncFraction)
	cs.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	if err := cs.bsStore.WriteMany(ctx, batch); err != nil {
		cs.log.Error("sync: batch upsert failed; keys evicted from index are not yet durable",
			zap.Int("batch_size", len(batch)), zap.Error(err))
		return err
	}

	cs.mu.Lock()
	consistErr := cs.riIndex.CheckConsistent()
	resident := cs.riIndex.Len()
	cs.mu.Unlock()
	if consistErr != nil {
		return apperr.Corrupt("store %q: %v", cs.name, consistErr)
	}

	cs.syncCount.Add(1)
	cs.log.Info("sync", zap.Int("evicted", len(batch)), zap.Int("resident", resident))
	return nil
}

// Sync is the public trigger for an out-of-band eviction batch, useful for
// workload drivers that want to pace flushes explicitly.
func (cs *Store) Sync(ctx context.Context) error {
	if err := cs.requireOpen(); err != nil {
		return err
	}
	return cs.sync(ctx)
}

// FlushCache writes every resident RI entry to BS in one upsert, then resets
// RI to empty.
func (cs *Store) FlushCache(ctx context.Context) error {
	if err := cs.requireOpen(); err != nil {
		return err
	}
	return cs.flush(ctx)
}

func (cs *Store) flush(ctx context.Context) error {
	cs.syncFlushMu.Lock()
	defer cs.syncFlushMu.Unlock()

	cs.mu.Lock()
	all := cs.riIndex.Drain()
	cs.mu.Unlock()

	if len(all) == 0 {
		return nil
	}
	if err := cs.bsStore.WriteMany(ctx, all); err != nil {
		cs.log.Error("flush: batch upsert failed; drained keys are not yet durable",
			zap.Int("count", len(all)), zap.Error(err))
		return err
	}
	cs.log.Info("flush", zap.Int("count", len(all)))
	return nil
}

// Iter starts a fresh MRU-first, RI-then-BS union iteration over the
// collection's keys. The snapshot backing it is private to the returned
// Iter, so multiple concurrent iterations do not interfere with each other.
func (cs *Store) Iter() *Iter {
	return &Iter{cs: cs}
}

// Close flushes every resident entry, then releases BS and RI.
func (cs *Store) Close(ctx context.Context) error {
	if err := cs.requireOpen(); err != nil {
		return err
	}
	if err := cs.flush(ctx); err != nil {
		return err
	}
	if err := cs.bsStore.Close(); err != nil {
		return err
	}
	cs.state.Store(int32(stateClosed))
	cs.log.Info("closed")
	return nil
}

// Stats returns a point-in-time, non-authoritative snapshot. BackingCount is
// not included here: BS's key count is only computed on demand, via
// BackingStoreKeyCount, since it requires a full keyspace scan.
func (cs *Store) Stats() Stats {
	cs.mu.Lock()
	resident := cs.riIndex.Len()
	cs.mu.Unlock()
	return Stats{
		Resident:      resident,
		SyncCount:     cs.syncCount.Load(),
		PromotedCount: cs.promotedCount.Load(),
	}
}

// BackingStoreKeyCount scans BS for its current key count. Not authoritative
// the instant it returns (BS may change underneath), and not part of any
// invariant; provided purely for observability.
func (cs *Store) BackingStoreKeyCount(ctx context.Context) (int, error) {
	if err := cs.requireOpen(); err != nil {
		return 0, err
	}
	keys, err := cs.bsStore.Keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}
