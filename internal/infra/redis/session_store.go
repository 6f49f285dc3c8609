package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"live-quiz-service/internal/domain"
)

// SessionStore is the Redis implementation of app.SessionRepository.
// Keys:
//
//	game:{gameID}     JSON session, TTL
//	pin:{pin}         gameID, SETNX so a PIN belongs to one active game
//	player:{playerID} gameID
//
// Any Redis failure is returned as an unavailable error; callers fail closed.
type SessionStore struct {
	client *redis.Client
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func gameKey(gameID string) string     { return "game:" + gameID }
func pinKey(pin string) string         { return "pin:" + pin }
func playerKey(playerID string) string { return "player:" + playerID }

func (s *SessionStore) Put(ctx context.Context, g *domain.GameSession, ttl time.Duration) error {
	data, err := json.Marshal(g)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, gameKey(g.ID), data, ttl)
	if g.Pin != "" && ttl > 0 {
		pipe.Expire(ctx, pinKey(g.Pin), ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.Unavailable("put session", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, gameID string) (*domain.GameSession, error) {
	data, err := s.client.Get(ctx, gameKey(gameID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrGameNotFound
	}
	if err != nil {
		return nil, domain.Unavailable("get session", err)
	}
	var g domain.GameSession
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *SessionStore) Delete(ctx context.Context, gameID string) error {
	if err := s.client.Del(ctx, gameKey(gameID)).Err(); err != nil {
		return domain.Unavailable("delete session", err)
	}
	return nil
}

func (s *SessionStore) ReservePin(ctx context.Context, pin, gameID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, pinKey(pin), gameID, ttl).Result()
	if err != nil {
		return false, domain.Unavailable("reserve pin", err)
	}
	return ok, nil
}

func (s *SessionStore) ResolvePin(ctx context.Context, pin string) (string, error) {
	gameID, err := s.client.Get(ctx, pinKey(pin)).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrGameNotFound
	}
	if err != nil {
		return "", domain.Unavailable("resolve pin", err)
	}
	return gameID, nil
}

func (s *SessionStore) ReleasePin(ctx context.Context, pin string) error {
	if err := s.client.Del(ctx, pinKey(pin)).Err(); err != nil {
		return domain.Unavailable("release pin", err)
	}
	return nil
}

func (s *SessionStore) PutPlayerRef(ctx context.Context, playerID, gameID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, playerKey(playerID), gameID, ttl).Err(); err != nil {
		return domain.Unavailable("put player", err)
	}
	return nil
}

func (s *SessionStore) ResolvePlayer(ctx context.Context, playerID string) (string, error) {
	gameID, err := s.client.Get(ctx, playerKey(playerID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrPlayerNotFound
	}
	if err != nil {
		return "", domain.Unavailable("resolve player", err)
	}
	return gameID, nil
}
