// Package memory is an in-process session backend, used in tests and
// single-instance development setups.
package memory

import (
	"context"
	"sync"

	"github.com/mahmudulhsn/shopping-cart/internal/session"
)

// Backend holds every session in a map. Values are kept encoded so callers
// never share memory with stored state.
type Backend struct {
	mu       sync.RWMutex
	sessions map[string]map[string][]byte
}

// New creates an empty backend.
func New() *Backend {
	return &Backend{sessions: make(map[string]map[string][]byte)}
}

func (b *Backend) Name() string { return "memory" }

// Open returns the store of sessionID. Opening is free; nothing is allocated
// until the first Put.
func (b *Backend) Open(sessionID string) session.Store {
	return &store{backend: b, sessionID: sessionID}
}

// Len reports how many keys sessionID holds.
func (b *Backend) Len(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions[sessionID])
}

type store struct {
	backend   *Backend
	sessionID string
}

func (s *store) Get(ctx context.Context, key string, dst any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.backend.mu.RLock()
	raw, ok := s.backend.sessions[s.sessionID][key]
	s.backend.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return true, session.Decode(raw, dst)
}

func (s *store) Put(ctx context.Context, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := session.Encode(value)
	if err != nil {
		return err
	}

	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	values, ok := s.backend.sessions[s.sessionID]
	if !ok {
		values = make(map[string][]byte)
		s.backend.sessions[s.sessionID] = values
	}
	values[key] = raw
	return nil
}

func (s *store) Forget(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	delete(s.backend.sessions[s.sessionID], key)
	if len(s.backend.sessions[s.sessionID]) == 0 {
		delete(s.backend.sessions, s.sessionID)
	}
	return nil
}
