package engine

import "sync"

// URLSet tracks product URLs already in the dataset or already queued in the
// current run. URLs are compared as exact strings.
type URLSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewURLSet creates a set seeded with known.
func NewURLSet(known map[string]struct{}) *URLSet {
	s := &URLSet{seen: make(map[string]struct{}, len(known))}
	for u := range known {
		s.seen[u] = struct{}{}
	}
	return s
}

// Has reports whether url is in the set.
func (s *URLSet) Has(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[url]
	return ok
}

// Add inserts url and reports whether it was new.
func (s *URLSet) Add(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[url]; ok {
		return false
	}
	s.seen[url] = struct{}{}
	return true
}

// Len returns the number of URLs in the set.
func (s *URLSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}

// Snapshot copies the set into a plain map.
func (s *URLSet) Snapshot() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]struct{}, len(s.seen))
	for u := range s.seen {
		out[u] = struct{}{}
	}
	return out
}
