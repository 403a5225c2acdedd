package store

import (
	"context"
	"sync"
)

type iterState int

const (
	iterUnstarted iterState = iota
	iterDraining
	iterExhausted
)

// Iter is the asynchronous iterator over a collection's keys: a small state
// machine with three states (unstarted, draining, exhausted). The snapshot
// is populated lazily on the first Next call and owned by the Iter itself,
// so multiple Iters over the same Store can coexist without interfering.
type Iter struct {
	cs *Store

	mu    sync.Mutex
	state iterState
	keys  []string
	pos   int
}

// Next returns the next key in MRU-first, RI-then-BS union order. ok is
// false once the iteration is exhausted; a subsequent call to Store.Iter
// rebuilds a fresh snapshot.
func (it *Iter) Next(ctx context.Context) (key string, ok bool, err error) {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.state == iterUnstarted {
		keys, err := it.cs.snapshotKeys(ctx)
		if err != nil {
			return "", false, err
		}
		it.keys = keys
		it.state = iterDraining
	}

	if it.pos >= len(it.keys) {
		it.state = iterExhausted
		it.keys = nil
		return "", false, nil
	}

	k := it.keys[it.pos]
	it.pos++
	return k, true, nil
}

// snapshotKeys computes the union of RI-resident and BS-persisted keys,
// MRU-first for the RI portion, deduplicated, decoded back to text.
func (cs *Store) snapshotKeys(ctx context.Context) ([]string, error) {
	cs.mu.Lock()
	riKeys := cs.riIndex.Iter()
	cs.mu.Unlock()

	bsKeys, err := cs.bsStore.Keys(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(riKeys)+len(bsKeys))
	out := make([]string, 0, len(riKeys)+len(bsKeys))

	add := func(encKey string) {
		if _, dup := seen[encKey]; dup {
			return
		}
		seen[encKey] = struct{}{}
		text, err := cs.keyCodec.DecodeKey(encKey)
		if err != nil {
			text = encKey
		}
		out = append(out, text)
	}

	for _, k := range riKeys {
		add(k)
	}
	for _, k := range bsKeys {
		add(k)
	}
	return out, nil
}
