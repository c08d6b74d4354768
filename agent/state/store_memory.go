package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore keeps sessions in process. It applies the same version check as
// RedisStore.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) (*SessionState, error) {
	key, err := sessionKey(defaultNamespace, sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	payload, ok := s.sessions[key]
	s.mu.Unlock()
	if !ok {
		return nil, ErrStateNotFound
	}
	return decodeState(payload)
}

func (s *MemoryStore) Save(_ context.Context, st *SessionState) error {
	payload, err := prepareSave(st)
	if err != nil {
		return err
	}
	key, err := sessionKey(defaultNamespace, st.SessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var stored int64
	if cur, ok := s.sessions[key]; ok {
		var head struct {
			Version int64 `json:"version"`
		}
		if err := json.Unmarshal(cur, &head); err != nil {
			return fmt.Errorf("decode stored session version: %w", err)
		}
		stored = head.Version
	}
	if stored != st.Version {
		return fmt.Errorf("%w: session %s stored=%d have=%d", ErrVersionConflict, st.SessionID, stored, st.Version)
	}
	s.sessions[key] = payload
	st.Version++
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	key, err := sessionKey(defaultNamespace, sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.sessions, key)
	s.mu.Unlock()
	return nil
}
