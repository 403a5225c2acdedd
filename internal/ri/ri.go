// Package ri implements the recency index: a bounded in-memory key→value map
// paired with an MRU/LRU ordering over its resident keys.
//
// Every public method is synchronous and non-suspending — callers (the
// composite store) serialize access to one Index the same way the teacher's
// DataStore serializes access to its in-memory state, so the map and the
// ordering never observe a torn update.
package ri

import (
	"container/list"

	"github.com/edirooss/lrustore/internal/apperr"
)

// entry is the value stored at each list.Element. key is duplicated here so
// split/evict can report it without a second map lookup.
type entry struct {
	key   string
	value []byte
}

// Index is the recency index (RI) of the specification: a bounded map plus
// a doubly-linked recency ordering, MRU at the front.
//
// Index is not safe for concurrent use; the composite store owns one Index
// exclusively and serializes all access to it.
type Index struct {
	maxlen int
	order  *list.List               // MRU at Front, LRU at Back
	index  map[string]*list.Element // key -> element holding *entry

	full bool // derived predicate, recomputed whenever count changes
}

// New returns an empty Index with the given capacity. maxlen <= 0 is treated
// as an unbounded index that is never full.
func New(maxlen int) *Index {
	return &Index{
		maxlen: maxlen,
		order:  list.New(),
		index:  make(map[string]*list.Element),
	}
}

// Len returns the number of resident keys (I4: equal to the size of the key
// index by construction — there is only one map).
func (idx *Index) Len() int { return len(idx.index) }

// Full reports the deck_full predicate: count >= maxlen.
func (idx *Index) Full() bool { return idx.full }

func (idx *Index) recomputeFull() {
	idx.full = idx.maxlen > 0 && len(idx.index) >= idx.maxlen
}

// CheckConsistent reports apperr.Corrupt if the key index and the recency
// ordering have diverged in size (I2/I4). Both sizes must be read under the
// same lock hold as whatever mutation is being verified; comparing against a
// value captured before an intervening unlocked I/O call would race against
// concurrent Put/Delete and produce a spurious failure.
func (idx *Index) CheckConsistent() error {
	if len(idx.index) != idx.order.Len() {
		return apperr.Corrupt("ri: index size %d != order size %d", len(idx.index), idx.order.Len())
	}
	return nil
}

// Contains reports whether K is resident, without affecting recency.
func (idx *Index) Contains(key string) bool {
	_, ok := idx.index[key]
	return ok
}

// Get returns the value for K and moves K to the MRU end. Returns
// apperr.NotFound if K is absent, and apperr.Corrupt if K is indexed but the
// recency ordering has lost it (I2 violation).
func (idx *Index) Get(key string) ([]byte, error) {
	el, ok := idx.index[key]
	if !ok {
		return nil, apperr.NotFound("key %q", key)
	}
	e, ok := el.Value.(*entry)
	if !ok {
		return nil, apperr.Corrupt("ri: element for key %q holds no entry", key)
	}
	// A removed element has no neighbours and is not the list's front.
	if el.Next() == nil && el.Prev() == nil && idx.order.Front() != el {
		return nil, apperr.Corrupt("ri: key %q is indexed but missing from the recency ordering", key)
	}
	idx.order.MoveToFront(el)
	return e.value, nil
}

// GetOrDefault returns the value for K (touching recency) or def if absent.
func (idx *Index) GetOrDefault(key string, def []byte) []byte {
	v, err := idx.Get(key)
	if err != nil {
		return def
	}
	return v
}

// Put inserts or updates K, moving it to the MRU end. Returns the updated
// deck_full predicate.
func (idx *Index) Put(key string, value []byte) bool {
	if el, ok := idx.index[key]; ok {
		el.Value.(*entry).value = value
		idx.order.MoveToFront(el)
		return idx.full
	}

	el := idx.order.PushFront(&entry{key: key, value: value})
	idx.index[key] = el
	idx.recomputeFull()
	return idx.full
}

// Delete removes K from both the index and the ordering. Idempotent: no
// error if K is absent (I6).
func (idx *Index) Delete(key string) {
	el, ok := idx.index[key]
	if !ok {
		return
	}
	idx.order.Remove(el)
	delete(idx.index, key)
	idx.recomputeFull()
}

// Iter returns a snapshot of resident keys in MRU-first order. The snapshot
// is taken eagerly, so it is safe against any mutation performed after Iter
// returns.
func (idx *Index) Iter() []string {
	out := make([]string, 0, idx.order.Len())
	for el := idx.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*entry).key)
	}
	return out
}

// SplitOldest removes the oldest floor(maxlen*fraction) keys from the
// ordering (clamped to [0, len]) and returns them oldest-first. Their values
// remain in the index for the caller to drain via Delete or sync_make_ready.
// fraction is clamped into [0, 1]. An empty ordering returns an empty slice.
func (idx *Index) SplitOldest(fraction float64) []string {
	if fraction < 0 {
		fraction = 0
	} else if fraction > 1 {
		fraction = 1
	}

	n := int(float64(idx.maxlen) * fraction)
	if n > idx.order.Len() {
		n = idx.order.Len()
	}
	if n <= 0 {
		return nil
	}

	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		back := idx.order.Back()
		out = append(out, back.Value.(*entry).key)
		idx.order.Remove(back)
	}
	// out was built by repeatedly popping the LRU end, so it is already
	// oldest-first.
	return out
}

// SyncMakeReady composes SplitOldest(fraction) with a drain: every returned
// key is removed from the key index (decrementing count) and its value is
// placed into the returned map, keyed by that key. The map carries no order.
func (idx *Index) SyncMakeReady(fraction float64) map[string][]byte {
	keys := idx.SplitOldest(fraction)
	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		el := idx.index[key]
		out[key] = el.Value.(*entry).value
		delete(idx.index, key)
	}
	idx.recomputeFull()
	return out
}

// Drain removes every resident key from the ordering and the index,
// returning the full key→value mapping. Used by flush on close.
func (idx *Index) Drain() map[string][]byte {
	out := make(map[string][]byte, len(idx.index))
	for el := idx.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		out[e.key] = e.value
	}
	idx.order.Init()
	idx.index = make(map[string]*list.Element)
	idx.full = false
	return out
}
