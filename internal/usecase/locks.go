package usecase

import (
	"slices"
	"sync"
)

// LockTable hands out one mutex per key. Lock acquires a set of keys in
// ascending order so two callers sharing keys can never deadlock.
type LockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLockTable() *LockTable {
	return &LockTable{locks: make(map[string]*sync.Mutex)}
}

func (t *LockTable) get(key string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.locks[key]
	if !ok {
		m = &sync.Mutex{}
		t.locks[key] = m
	}
	return m
}

// Lock blocks until every key is held and returns the release function.
// Duplicate keys are taken once.
func (t *LockTable) Lock(keys ...string) (unlock func()) {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	held := make([]*sync.Mutex, 0, len(sorted))
	for _, k := range sorted {
		m := t.get(k)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func ownerKey(owner string) string {
	return "owner/" + owner
}

func bookKey(itemID, currency string) string {
	return "book/" + itemID + "/" + currency
}
