// Package memstore implements the bounded in-memory hot tier.
//
// It is a recency-ordered LRU over codec-encoded value bytes. The
// store never performs I/O and never notifies anyone about evictions:
// an entry evicted from memory is still on disk, so silent removal is
// safe. Expired entries are dropped lazily on encounter.
package memstore

import (
	"container/list"
	"sync"
	"time"

	"github.com/unkn0wn-root/strata/internal/glob"
)

type entry struct {
	key       string
	value     []byte
	expiresAt int64 // unix ms; 0 = no expiry
	size      int64
}

// Store is safe for concurrent use. List order is LRU (front) to MRU
// (back). Returned value slices are shared with the store and must not
// be modified by callers.
type Store struct {
	mu       sync.Mutex
	maxItems int
	maxBytes int64
	ll       *list.List
	items    map[string]*list.Element
	curBytes int64
}

func New(maxItems int, maxBytes int64) *Store {
	return &Store{
		maxItems: maxItems,
		maxBytes: maxBytes,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
	}
}

func isExpired(expiresAt, now int64) bool { return expiresAt > 0 && now >= expiresAt }

func nowMS() int64 { return time.Now().UnixMilli() }

// Get returns the stored bytes and promotes the entry to MRU.
// An expired entry is removed and reported as a miss.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return nil, false
	}
	ent := el.Value.(*entry)
	if isExpired(ent.expiresAt, nowMS()) {
		s.removeLocked(el)
		return nil, false
	}
	s.ll.MoveToBack(el)
	return ent.value, true
}

// Peek is Get without the LRU promotion.
func (s *Store) Peek(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return nil, false
	}
	ent := el.Value.(*entry)
	if isExpired(ent.expiresAt, nowMS()) {
		s.removeLocked(el)
		return nil, false
	}
	return ent.value, true
}

// Set inserts value at MRU, replacing any previous entry for key.
// Eviction runs until both the item and byte bounds are satisfied,
// preferring expired entries over live ones.
func (s *Store) Set(key string, value []byte, expiresAt int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[key]; ok {
		s.removeLocked(el)
	}
	size := int64(len(value))
	now := nowMS()
	for (s.ll.Len() >= s.maxItems || s.curBytes+size > s.maxBytes) && s.ll.Len() > 0 {
		s.evictOneLocked(now)
	}
	el := s.ll.PushBack(&entry{key: key, value: value, expiresAt: expiresAt, size: size})
	s.items[key] = el
	s.curBytes += size
}

// Delete removes key and reports whether it was present, expired or not.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return false
	}
	s.removeLocked(el)
	return true
}

// Has reports whether key is present and live.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return false
	}
	if isExpired(el.Value.(*entry).expiresAt, nowMS()) {
		s.removeLocked(el)
		return false
	}
	return true
}

// Keys returns the live keys matching m, in no particular order.
// Expired entries encountered during the scan are removed.
func (s *Store) Keys(m *glob.Matcher) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowMS()
	var out []string
	var dead []*list.Element
	for el := s.ll.Front(); el != nil; el = el.Next() {
		ent := el.Value.(*entry)
		if isExpired(ent.expiresAt, now) {
			dead = append(dead, el)
			continue
		}
		if m.Match(ent.key) {
			out = append(out, ent.key)
		}
	}
	for _, el := range dead {
		s.removeLocked(el)
	}
	return out
}

// SetExpiry replaces the expiry of a live entry in place, without
// changing its LRU position. Returns false when key is missing or
// already expired.
func (s *Store) SetExpiry(key string, expiresAt int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return false
	}
	ent := el.Value.(*entry)
	if isExpired(ent.expiresAt, nowMS()) {
		s.removeLocked(el)
		return false
	}
	ent.expiresAt = expiresAt
	return true
}

// Touch promotes a live entry to MRU without reading its value.
func (s *Store) Touch(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return false
	}
	if isExpired(el.Value.(*entry).expiresAt, nowMS()) {
		s.removeLocked(el)
		return false
	}
	s.ll.MoveToBack(el)
	return true
}

// ExpiresAt returns the expiry of a live entry (0 = no expiry) and
// whether the entry exists.
func (s *Store) ExpiresAt(key string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return 0, false
	}
	ent := el.Value.(*entry)
	if isExpired(ent.expiresAt, nowMS()) {
		s.removeLocked(el)
		return 0, false
	}
	return ent.expiresAt, true
}

// Prune removes every expired entry and returns how many were removed.
func (s *Store) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowMS()
	var dead []*list.Element
	for el := s.ll.Front(); el != nil; el = el.Next() {
		if isExpired(el.Value.(*entry).expiresAt, now) {
			dead = append(dead, el)
		}
	}
	for _, el := range dead {
		s.removeLocked(el)
	}
	return len(dead)
}

// Clear drops everything.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ll = list.New()
	s.items = make(map[string]*list.Element)
	s.curBytes = 0
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ll.Len()
}

func (s *Store) Bytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.curBytes
}

// Stats returns item count and byte total in one snapshot.
func (s *Store) Stats() (items int, bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ll.Len(), s.curBytes
}

func (s *Store) removeLocked(el *list.Element) {
	ent := el.Value.(*entry)
	s.ll.Remove(el)
	delete(s.items, ent.key)
	s.curBytes -= ent.size
}

// evictOneLocked prefers the first expired entry scanning from the
// cold end, falling back to the oldest.
func (s *Store) evictOneLocked(now int64) {
	for el := s.ll.Front(); el != nil; el = el.Next() {
		if isExpired(el.Value.(*entry).expiresAt, now) {
			s.removeLocked(el)
			return
		}
	}
	if el := s.ll.Front(); el != nil {
		s.removeLocked(el)
	}
}
