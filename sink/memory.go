package sink

import (
	"context"
	"sync"
)

// MemorySink retains artifacts in memory. Test implementation of Sink.
type MemorySink struct {
	mu        sync.Mutex
	artifacts map[string][]byte
	keys      []string
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{artifacts: map[string][]byte{}}
}

// Persist stores a copy of the payload.
func (s *MemorySink) Persist(_ context.Context, key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.artifacts[key]; !seen {
		s.keys = append(s.keys, key)
	}
	s.artifacts[key] = append([]byte(nil), payload...)
	return nil
}

// Get returns the payload stored under key.
func (s *MemorySink) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.artifacts[key]
	return p, ok
}

// Keys returns artifact keys in persist order.
func (s *MemorySink) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}
