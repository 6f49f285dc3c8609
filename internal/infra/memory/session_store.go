package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
// Sessions are stored encoded so callers never share a live pointer, the same
// way they would not with Redis.
type SessionStore struct {
	clock func() time.Time

	mu       sync.RWMutex
	sessions map[string]entry
	pins     map[string]entry
	players  map[string]entry
}

type entry struct {
	data      []byte
	value     string
	expiresAt time.Time
}

func (e entry) live(now time.Time) bool {
	return e.expiresAt.IsZero() || e.expiresAt.After(now)
}

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		clock:    time.Now,
		sessions: make(map[string]entry),
		pins:     make(map[string]entry),
		players:  make(map[string]entry),
	}
}

func (s *SessionStore) Put(_ context.Context, g *domain.GameSession, ttl time.Duration) error {
	data, err := json.Marshal(g)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	exp := expiry(now, ttl)
	s.sessions[g.ID] = entry{data: data, expiresAt: exp}
	if pin, ok := s.pins[g.Pin]; ok && pin.value == g.ID && pin.live(now) {
		pin.expiresAt = exp
		s.pins[g.Pin] = pin
	}
	return nil
}

func (s *SessionStore) Get(_ context.Context, gameID string) (*domain.GameSession, error) {
	s.mu.RLock()
	e, ok := s.sessions[gameID]
	s.mu.RUnlock()
	if !ok || !e.live(s.clock()) {
		return nil, domain.ErrGameNotFound
	}
	var g domain.GameSession
	if err := json.Unmarshal(e.data, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *SessionStore) Delete(_ context.Context, gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, gameID)
	for id, p := range s.players {
		if p.value == gameID {
			delete(s.players, id)
		}
	}
	return nil
}

func (s *SessionStore) ReservePin(_ context.Context, pin, gameID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	if existing, ok := s.pins[pin]; ok && existing.live(now) {
		return false, nil
	}
	s.pins[pin] = entry{value: gameID, expiresAt: expiry(now, ttl)}
	return true, nil
}

func (s *SessionStore) ResolvePin(_ context.Context, pin string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.pins[pin]
	if !ok || !e.live(s.clock()) {
		return "", domain.ErrGameNotFound
	}
	return e.value, nil
}

func (s *SessionStore) ReleasePin(_ context.Context, pin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pins, pin)
	return nil
}

func (s *SessionStore) PutPlayerRef(_ context.Context, playerID, gameID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[playerID] = entry{value: gameID, expiresAt: expiry(s.clock(), ttl)}
	return nil
}

func (s *SessionStore) ResolvePlayer(_ context.Context, playerID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.players[playerID]
	if !ok || !e.live(s.clock()) {
		return "", domain.ErrPlayerNotFound
	}
	return e.value, nil
}
