package cache

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/charlesng35/userdash/internal/models"
)

// store holds cache entries. Two policies exist: an unbounded map for
// short-lived sessions and a least-recently-used store when a bound is set.
type store interface {
	// get returns the entry and marks it recently used.
	get(key models.QueryKey) (*entry, bool)
	// peek returns the entry without touching recency.
	peek(key models.QueryKey) (*entry, bool)
	// add inserts or replaces an entry, reporting whether another was evicted.
	add(key models.QueryKey, e *entry) bool
	remove(key models.QueryKey)
	keys() []models.QueryKey
	len() int
	purge()
}

type mapStore struct {
	entries map[models.QueryKey]*entry
}

func newMapStore() *mapStore {
	return &mapStore{entries: make(map[models.QueryKey]*entry)}
}

func (s *mapStore) get(key models.QueryKey) (*entry, bool) {
	e, ok := s.entries[key]
	return e, ok
}

func (s *mapStore) peek(key models.QueryKey) (*entry, bool) {
	return s.get(key)
}

func (s *mapStore) add(key models.QueryKey, e *entry) bool {
	s.entries[key] = e
	return false
}

func (s *mapStore) remove(key models.QueryKey) {
	delete(s.entries, key)
}

func (s *mapStore) keys() []models.QueryKey {
	out := make([]models.QueryKey, 0, len(s.entries))
	for k := range s.entries {
		out = append(out, k)
	}
	return out
}

func (s *mapStore) len() int {
	return len(s.entries)
}

func (s *mapStore) purge() {
	s.entries = make(map[models.QueryKey]*entry)
}

type lruStore struct {
	cache *lru.Cache
}

func newLRUStore(size int) (*lruStore, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &lruStore{cache: c}, nil
}

func (s *lruStore) get(key models.QueryKey) (*entry, bool) {
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, false
	}
	return v.(*entry), true
}

func (s *lruStore) peek(key models.QueryKey) (*entry, bool) {
	v, ok := s.cache.Peek(key)
	if !ok {
		return nil, false
	}
	return v.(*entry), true
}

func (s *lruStore) add(key models.QueryKey, e *entry) bool {
	return s.cache.Add(key, e)
}

func (s *lruStore) remove(key models.QueryKey) {
	s.cache.Remove(key)
}

func (s *lruStore) keys() []models.QueryKey {
	raw := s.cache.Keys()
	out := make([]models.QueryKey, 0, len(raw))
	for _, k := range raw {
		out = append(out, k.(models.QueryKey))
	}
	return out
}

func (s *lruStore) len() int {
	return s.cache.Len()
}

func (s *lruStore) purge() {
	s.cache.Purge()
}
