package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type entry struct {
	location  string
	expiresAt time.Time
}

type MemoryStore struct {
	sync.RWMutex
	sessions map[string]entry
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]entry),
		now:      time.Now,
	}
}

func (s *MemoryStore) Put(_ context.Context, token, location string, ttl time.Duration) error {
	s.Lock()
	defer s.Unlock()
	s.sessions[token] = entry{
		location:  location,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, token string) (string, bool, error) {
	s.RLock()
	defer s.RUnlock()
	e, exists := s.sessions[token]
	if !exists || !s.now().Before(e.expiresAt) {
		return "", false, nil
	}
	return e.location, true, nil
}

// Sweep drops every expired entry and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.Lock()
	defer s.Unlock()
	now := s.now()
	removed := 0
	for token, e := range s.sessions {
		if !now.Before(e.expiresAt) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}

// Run sweeps expired sessions every interval until ctx is done.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				log.Debug().Int("removed", n).Msg("expired upload sessions swept")
			}
		}
	}
}

func (s *MemoryStore) Len() int {
	s.RLock()
	defer s.RUnlock()
	return len(s.sessions)
}
