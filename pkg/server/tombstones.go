package server

import lru "github.com/hashicorp/golang-lru/v2"

// tombstoneSet tracks recently-deleted shape ids. When cacheSize > 0 it
// bounds growth with an LRU, evicting the oldest tombstoned id once full
// instead of letting deleted ids accumulate forever. cacheSize <= 0 keeps
// the unbounded behavior via a plain map.
type tombstoneSet struct {
	cache *lru.Cache[string, struct{}]
	plain map[string]struct{}
}

func newTombstoneSet(cacheSize int) *tombstoneSet {
	if cacheSize > 0 {
		c, err := lru.New[string, struct{}](cacheSize)
		if err == nil {
			return &tombstoneSet{cache: c}
		}
	}
	return &tombstoneSet{plain: make(map[string]struct{})}
}

func (t *tombstoneSet) Add(id string) {
	if t.cache != nil {
		t.cache.Add(id, struct{}{})
		return
	}
	t.plain[id] = struct{}{}
}

func (t *tombstoneSet) Has(id string) bool {
	if t.cache != nil {
		return t.cache.Contains(id)
	}
	_, ok := t.plain[id]
	return ok
}

func (t *tombstoneSet) Remove(id string) {
	if t.cache != nil {
		t.cache.Remove(id)
		return
	}
	delete(t.plain, id)
}
