package redis

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const metricsPrefix = "metrics:"

// Metrics keeps counters as plain Redis integers so every instance shares them.
type Metrics struct {
	client *redis.Client
}

func NewMetrics(client *redis.Client) *Metrics {
	return &Metrics{client: client}
}

func (m *Metrics) Incr(ctx context.Context, name string) {
	if err := m.client.Incr(ctx, metricsPrefix+name).Err(); err != nil {
		log.Printf("metrics: incr %s: %v", name, err)
	}
}

func (m *Metrics) Snapshot(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64)
	iter := m.client.Scan(ctx, 0, metricsPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return out, nil
	}
	vals, err := m.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, key := range keys {
		s, ok := vals[i].(string)
		if !ok {
			continue
		}
		var n int64
		if _, err := fmt.Sscan(s, &n); err == nil {
			out[strings.TrimPrefix(key, metricsPrefix)] = n
		}
	}
	return out, nil
}

// RateLimiter is a fixed-window counter: ratelimit:{key}:{window}.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	clock  func() time.Time
}

func NewRateLimiter(client *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: int64(limit), window: window, clock: time.Now}
}

func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 || l.window <= 0 {
		return true, nil
	}
	bucket := l.clock().UnixNano() / int64(l.window)
	k := fmt.Sprintf("ratelimit:%s:%d", key, bucket)
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= l.limit, nil
}
