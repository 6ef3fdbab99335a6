package cache

import (
	"strings"
	"sync"
	"time"
)

// fifoEntry is a node of the insertion-ordered list.
type fifoEntry struct {
	Entry
	prev *fifoEntry
	next *fifoEntry
}

func (e *fifoEntry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// fifoStore is the L1 tier: a bounded map with FIFO eviction. Overwriting a
// key keeps its original insertion position, so the oldest inserted key is
// always evicted first regardless of how often it is read.
type fifoStore struct {
	mu       sync.RWMutex
	capacity int
	items    map[string]*fifoEntry
	head     *fifoEntry // oldest
	tail     *fifoEntry // newest
}

func newFIFOStore(capacity int) *fifoStore {
	return &fifoStore{
		capacity: capacity,
		items:    make(map[string]*fifoEntry, capacity),
	}
}

// get returns an unexpired entry. Expired entries are removed on the way out.
func (s *fifoStore) get(key string, now time.Time) (Entry, bool) {
	s.mu.RLock()
	entry, ok := s.items[key]
	if ok && !entry.expired(now) {
		e := entry.Entry
		s.mu.RUnlock()
		return e, true
	}
	s.mu.RUnlock()

	if ok {
		s.mu.Lock()
		// Re-check under the write lock; a concurrent set may have refreshed it.
		if current, stillThere := s.items[key]; stillThere && current.expired(now) {
			s.removeEntry(current)
		}
		s.mu.Unlock()
	}
	return Entry{}, false
}

// set inserts or overwrites key and reports the key evicted to make room, if any.
func (s *fifoStore) set(e Entry) (evicted string, didEvict bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.items[e.Key]; ok {
		existing.Value = e.Value
		existing.ExpiresAt = e.ExpiresAt
		existing.Tier = e.Tier
		return "", false
	}

	entry := &fifoEntry{Entry: e}
	s.items[e.Key] = entry
	s.append(entry)

	if len(s.items) > s.capacity && s.head != nil {
		oldest := s.head
		s.removeEntry(oldest)
		return oldest.Key, true
	}
	return "", false
}

// deletePrefix removes all keys with the given prefix.
func (s *fifoStore) deletePrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.items {
		if strings.HasPrefix(key, prefix) {
			s.removeEntry(entry)
			removed++
		}
	}
	return removed
}

// sweep removes every expired entry.
func (s *fifoStore) sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, entry := range s.items {
		if entry.expired(now) {
			s.removeEntry(entry)
			removed++
		}
	}
	return removed
}

func (s *fifoStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// keys returns keys oldest first.
func (s *fifoStore) keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.items))
	for e := s.head; e != nil; e = e.next {
		out = append(out, e.Key)
	}
	return out
}

func (s *fifoStore) append(entry *fifoEntry) {
	entry.next = nil
	entry.prev = s.tail
	if s.tail != nil {
		s.tail.next = entry
	}
	s.tail = entry
	if s.head == nil {
		s.head = entry
	}
}

func (s *fifoStore) removeEntry(entry *fifoEntry) {
	delete(s.items, entry.Key)
	if entry.prev != nil {
		entry.prev.next = entry.next
	} else {
		s.head = entry.next
	}
	if entry.next != nil {
		entry.next.prev = entry.prev
	} else {
		s.tail = entry.prev
	}
	entry.prev, entry.next = nil, nil
}
