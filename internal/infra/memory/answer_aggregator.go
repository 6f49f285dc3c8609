package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
)

// AnswerAggregator buffers answers per (game, question) with a short TTL and a
// size cap. Overflowing answers are dropped; scores never depend on them.
type AnswerAggregator struct {
	ttl   time.Duration
	limit int
	clock func() time.Time

	mu      sync.Mutex
	buffers map[string]*answerBuffer
}

type answerBuffer struct {
	events    []domain.AnswerEvent
	expiresAt time.Time
}

func NewAnswerAggregator(ttl time.Duration, limit int) *AnswerAggregator {
	return &AnswerAggregator{
		ttl:     ttl,
		limit:   limit,
		clock:   time.Now,
		buffers: make(map[string]*answerBuffer),
	}
}

func answersKey(gameID string, questionIndex int) string {
	return fmt.Sprintf("%s:%d", gameID, questionIndex)
}

func (a *AnswerAggregator) Append(_ context.Context, gameID string, questionIndex int, ev domain.AnswerEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.clock()
	a.evictLocked(now)

	key := answersKey(gameID, questionIndex)
	buf, ok := a.buffers[key]
	if !ok {
		buf = &answerBuffer{}
		a.buffers[key] = buf
	}
	if a.limit > 0 && len(buf.events) >= a.limit {
		return nil
	}
	buf.events = append(buf.events, ev)
	buf.expiresAt = expiry(now, a.ttl)
	return nil
}

func (a *AnswerAggregator) Drain(_ context.Context, gameID string, questionIndex int) ([]domain.AnswerEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := answersKey(gameID, questionIndex)
	buf, ok := a.buffers[key]
	delete(a.buffers, key)
	if !ok || (!buf.expiresAt.IsZero() && !buf.expiresAt.After(a.clock())) {
		return nil, nil
	}
	return buf.events, nil
}

func (a *AnswerAggregator) evictLocked(now time.Time) {
	for key, buf := range a.buffers {
		if !buf.expiresAt.IsZero() && !buf.expiresAt.After(now) {
			delete(a.buffers, key)
		}
	}
}
