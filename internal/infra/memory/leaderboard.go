package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/btree"
	"live-quiz-service/internal/domain"
)

// Leaderboard keeps one ordered B-tree per game for O(log n) upserts.
type Leaderboard struct {
	clock func() time.Time

	mu     sync.Mutex
	boards map[string]*board
}

type board struct {
	tree      *btree.BTreeG[domain.RankedScore]
	byPlayer  map[string]domain.RankedScore
	expiresAt time.Time
}

func rankLess(a, b domain.RankedScore) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Seq != b.Seq {
		return a.Seq < b.Seq
	}
	return a.PlayerID < b.PlayerID
}

func NewLeaderboard() *Leaderboard {
	return &Leaderboard{clock: time.Now, boards: make(map[string]*board)}
}

// boardLocked returns the live board for gameID, creating it when create is set.
func (l *Leaderboard) boardLocked(gameID string, create bool) *board {
	b, ok := l.boards[gameID]
	if ok && !b.expiresAt.IsZero() && !b.expiresAt.After(l.clock()) {
		delete(l.boards, gameID)
		ok = false
	}
	if !ok {
		if !create {
			return nil
		}
		b = &board{
			tree:     btree.NewG[domain.RankedScore](16, rankLess),
			byPlayer: make(map[string]domain.RankedScore),
		}
		l.boards[gameID] = b
	}
	return b
}

func (l *Leaderboard) Upsert(_ context.Context, gameID string, entry domain.RankedScore, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.boardLocked(gameID, true)
	if old, ok := b.byPlayer[entry.PlayerID]; ok {
		b.tree.Delete(old)
	}
	b.tree.ReplaceOrInsert(entry)
	b.byPlayer[entry.PlayerID] = entry
	b.expiresAt = expiry(l.clock(), ttl)
	return nil
}

func (l *Leaderboard) Top(_ context.Context, gameID string, n int) ([]domain.LeaderboardEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.boardLocked(gameID, false)
	if b == nil {
		return []domain.LeaderboardEntry{}, nil
	}
	if n <= 0 || n > b.tree.Len() {
		n = b.tree.Len()
	}
	out := make([]domain.LeaderboardEntry, 0, n)
	b.tree.Ascend(func(s domain.RankedScore) bool {
		out = append(out, domain.LeaderboardEntry{Rank: len(out) + 1, PlayerID: s.PlayerID, Nickname: s.Nickname, Score: s.Score})
		return len(out) < n
	})
	return out, nil
}

func (l *Leaderboard) Remove(_ context.Context, gameID, playerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.boardLocked(gameID, false)
	if b == nil {
		return nil
	}
	if old, ok := b.byPlayer[playerID]; ok {
		b.tree.Delete(old)
		delete(b.byPlayer, playerID)
	}
	return nil
}

func (l *Leaderboard) Delete(_ context.Context, gameID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.boards, gameID)
	return nil
}
