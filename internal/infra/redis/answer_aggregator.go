package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"live-quiz-service/internal/domain"
)

// AnswerAggregator buffers answers in a capped list per (game, question):
// answers:{gameID}:{questionIndex}.
type AnswerAggregator struct {
	client *redis.Client
	ttl    time.Duration
	limit  int64
}

func NewAnswerAggregator(client *redis.Client, ttl time.Duration, limit int) *AnswerAggregator {
	return &AnswerAggregator{client: client, ttl: ttl, limit: int64(limit)}
}

func answersKey(gameID string, questionIndex int) string {
	return fmt.Sprintf("answers:%s:%d", gameID, questionIndex)
}

func (a *AnswerAggregator) Append(ctx context.Context, gameID string, questionIndex int, ev domain.AnswerEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	key := answersKey(gameID, questionIndex)
	pipe := a.client.Pipeline()
	pipe.RPush(ctx, key, data)
	if a.limit > 0 {
		pipe.LTrim(ctx, key, 0, a.limit-1)
	}
	if a.ttl > 0 {
		pipe.Expire(ctx, key, a.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.Unavailable("append answer", err)
	}
	return nil
}

// Drain reads and clears the buffer atomically.
func (a *AnswerAggregator) Drain(ctx context.Context, gameID string, questionIndex int) ([]domain.AnswerEvent, error) {
	key := answersKey(gameID, questionIndex)
	var lrange *redis.StringSliceCmd
	_, err := a.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		lrange = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, domain.Unavailable("drain answers", err)
	}
	raw := lrange.Val()
	out := make([]domain.AnswerEvent, 0, len(raw))
	for _, item := range raw {
		var ev domain.AnswerEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}
