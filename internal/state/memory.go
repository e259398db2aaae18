package state

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore keeps state documents in process memory. Suitable for local
// development and tests; state is lost on restart.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]json.RawMessage
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]json.RawMessage)}
}

func (s *MemoryStore) Read(_ context.Context, keys []string) (map[string]json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make(map[string]json.RawMessage, len(keys))
	for _, key := range keys {
		if raw, ok := s.docs[key]; ok {
			// Copy so callers cannot mutate stored bytes.
			docs[key] = append(json.RawMessage(nil), raw...)
		}
	}
	return docs, nil
}

func (s *MemoryStore) Write(_ context.Context, changes map[string]json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, raw := range changes {
		s.docs[key] = append(json.RawMessage(nil), raw...)
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.docs, key)
	}
	return nil
}
