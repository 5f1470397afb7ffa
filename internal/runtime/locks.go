package runtime

import (
	"bytes"
	"sort"
	"sync"

	"fit-token/internal/domain"
)

// lockTable serializes transactions over the accounts they touch.
// Writable keys are held exclusively, read-only keys shared.
type lockTable struct {
	mu    sync.Mutex
	locks map[domain.Pubkey]*accountLock
}

type accountLock struct {
	rw   sync.RWMutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[domain.Pubkey]*accountLock)}
}

// acquire locks every key in ascending key order, so two transactions can
// never wait on each other. The returned func releases all of them.
func (t *lockTable) acquire(keys map[domain.Pubkey]bool) func() {
	ordered := make([]domain.Pubkey, 0, len(keys))
	for k := range keys {
		ordered = append(ordered, k)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return bytes.Compare(ordered[i][:], ordered[j][:]) < 0
	})

	held := make([]*accountLock, len(ordered))
	t.mu.Lock()
	for i, k := range ordered {
		l, ok := t.locks[k]
		if !ok {
			l = &accountLock{}
			t.locks[k] = l
		}
		l.refs++
		held[i] = l
	}
	t.mu.Unlock()

	for i, k := range ordered {
		if keys[k] {
			held[i].rw.Lock()
		} else {
			held[i].rw.RLock()
		}
	}

	return func() {
		for i := len(ordered) - 1; i >= 0; i-- {
			if keys[ordered[i]] {
				held[i].rw.Unlock()
			} else {
				held[i].rw.RUnlock()
			}
		}

		t.mu.Lock()
		for i, k := range ordered {
			held[i].refs--
			if held[i].refs == 0 {
				delete(t.locks, k)
			}
		}
		t.mu.Unlock()
	}
}

// size returns the number of keys currently tracked.
func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
