package scout

import "sync"

// SessionCache is the client tier of the cache: raw response bodies keyed
// by request URL for the lifetime of the process. Entries never expire.
type SessionCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewSessionCache returns an empty cache.
func NewSessionCache() *SessionCache {
	return &SessionCache{entries: make(map[string][]byte)}
}

// Get returns the stored body for key.
func (s *SessionCache) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.entries[key]
	return b, ok
}

// Set stores body under key, replacing any previous entry.
func (s *SessionCache) Set(key string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = append([]byte(nil), body...)
}

// Delete drops key.
func (s *SessionCache) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Len reports the number of entries.
func (s *SessionCache) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
