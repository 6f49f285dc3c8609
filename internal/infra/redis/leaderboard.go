package redis

import (
	"context"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"live-quiz-service/internal/domain"
)

// seqSpace packs the tie-break into the low bits of the sorted set score:
// composite = score*seqSpace + (seqSpace-1-seq). Higher composites rank first,
// so among equal scores the earlier sequence wins.
const seqSpace = 1 << 20

// Leaderboard keeps a sorted set per game plus a hash of nicknames.
type Leaderboard struct {
	client *redis.Client
}

func NewLeaderboard(client *redis.Client) *Leaderboard {
	return &Leaderboard{client: client}
}

func boardKey(gameID string) string { return "leaderboard:" + gameID }
func namesKey(gameID string) string { return "leaderboard:" + gameID + ":players" }

func composite(score int, seq uint64) float64 {
	return float64(score)*seqSpace + float64(seqSpace-1-(seq%seqSpace))
}

func decodeScore(z float64) int {
	return int(math.Floor(z / seqSpace))
}

func (l *Leaderboard) Upsert(ctx context.Context, gameID string, entry domain.RankedScore, ttl time.Duration) error {
	pipe := l.client.TxPipeline()
	pipe.ZAdd(ctx, boardKey(gameID), redis.Z{Score: composite(entry.Score, entry.Seq), Member: entry.PlayerID})
	pipe.HSet(ctx, namesKey(gameID), entry.PlayerID, entry.Nickname)
	if ttl > 0 {
		pipe.Expire(ctx, boardKey(gameID), ttl)
		pipe.Expire(ctx, namesKey(gameID), ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.Unavailable("leaderboard upsert", err)
	}
	return nil
}

func (l *Leaderboard) Top(ctx context.Context, gameID string, n int) ([]domain.LeaderboardEntry, error) {
	stop := int64(n) - 1
	if n <= 0 {
		stop = -1
	}
	zs, err := l.client.ZRevRangeWithScores(ctx, boardKey(gameID), 0, stop).Result()
	if err != nil {
		return nil, domain.Unavailable("leaderboard top", err)
	}
	if len(zs) == 0 {
		return []domain.LeaderboardEntry{}, nil
	}
	ids := make([]string, len(zs))
	for i, z := range zs {
		ids[i], _ = z.Member.(string)
	}
	names, err := l.client.HMGet(ctx, namesKey(gameID), ids...).Result()
	if err != nil {
		return nil, domain.Unavailable("leaderboard names", err)
	}
	out := make([]domain.LeaderboardEntry, len(zs))
	for i, z := range zs {
		nickname, _ := names[i].(string)
		out[i] = domain.LeaderboardEntry{Rank: i + 1, PlayerID: ids[i], Nickname: nickname, Score: decodeScore(z.Score)}
	}
	return out, nil
}

func (l *Leaderboard) Remove(ctx context.Context, gameID, playerID string) error {
	pipe := l.client.TxPipeline()
	pipe.ZRem(ctx, boardKey(gameID), playerID)
	pipe.HDel(ctx, namesKey(gameID), playerID)
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.Unavailable("leaderboard remove", err)
	}
	return nil
}

func (l *Leaderboard) Delete(ctx context.Context, gameID string) error {
	if err := l.client.Del(ctx, boardKey(gameID), namesKey(gameID)).Err(); err != nil {
		return domain.Unavailable("leaderboard delete", err)
	}
	return nil
}
