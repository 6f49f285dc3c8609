package domain

import (
	"sort"
	"time"
)

const defaultPoints = 1000

// Streak thresholds are cumulative.
var streakBonuses = []struct {
	minStreak int
	bonus     int
}{
	{3, 100},
	{5, 250},
	{10, 500},
}

// Score is the outcome of one scored answer.
type Score struct {
	Correct     bool `json:"isCorrect"`
	Base        int  `json:"base"`
	SpeedBonus  int  `json:"speedBonus"`
	StreakBonus int  `json:"streakBonus"`
	Points      int  `json:"points"`
	NewStreak   int  `json:"streak"`
}

// BasePoints is the item's point value, doubled for double-points items.
func BasePoints(item QuizItem) int {
	base := item.Points
	if base <= 0 {
		base = defaultPoints
	}
	if item.IsDoublePoints {
		base *= 2
	}
	return base
}

// EvaluateSelection checks selected option indices against the item. Single
// answer types take exactly one index; multi-select requires the exact set of
// correct options.
func EvaluateSelection(item QuizItem, selected []int) (bool, error) {
	if len(selected) == 0 {
		return false, ErrInvalidAnswer
	}
	known := make(map[int]bool, len(item.Options))
	for _, opt := range item.Options {
		known[opt.Index] = opt.Correct
	}
	chosen := make(map[int]struct{}, len(selected))
	for _, idx := range selected {
		if _, ok := known[idx]; !ok {
			return false, ErrInvalidAnswer
		}
		if _, dup := chosen[idx]; dup {
			return false, ErrInvalidAnswer
		}
		chosen[idx] = struct{}{}
	}

	if item.QuestionType != QuestionMultipleSelect {
		if len(selected) != 1 {
			return false, ErrInvalidAnswer
		}
		return known[selected[0]], nil
	}

	for idx, correct := range known {
		_, picked := chosen[idx]
		if correct != picked {
			return false, nil
		}
	}
	return true, nil
}

// SpeedBonus is floor(base * (limit-rt)/limit * 0.5) with rt clamped to [0, limit].
func SpeedBonus(base int, limit, responseTime time.Duration) int {
	if limit <= 0 || base <= 0 {
		return 0
	}
	if responseTime < 0 {
		responseTime = 0
	}
	if responseTime > limit {
		responseTime = limit
	}
	limitMs := limit.Milliseconds()
	if limitMs == 0 {
		return 0
	}
	left := limitMs - responseTime.Milliseconds()
	return int(int64(base) * left / (2 * limitMs))
}

// StreakBonus sums every threshold reached by streak.
func StreakBonus(streak int) int {
	total := 0
	for _, b := range streakBonuses {
		if streak >= b.minStreak {
			total += b.bonus
		}
	}
	return total
}

// ScoreAnswer computes the points for an evaluated answer.
func ScoreAnswer(item QuizItem, correct bool, responseTime time.Duration, streakBefore int) Score {
	if !correct {
		return Score{}
	}
	base := BasePoints(item)
	newStreak := streakBefore + 1
	s := Score{
		Correct:     true,
		Base:        base,
		SpeedBonus:  SpeedBonus(base, item.TimeLimitDuration(), responseTime),
		StreakBonus: StreakBonus(newStreak),
		NewStreak:   newStreak,
	}
	s.Points = s.Base + s.SpeedBonus + s.StreakBonus
	return s
}

// ApplyScore folds a scored answer into the player. seq orders players that
// reach the same score.
func (p *PlayerRecord) ApplyScore(s Score, seq uint64) {
	p.HasAnsweredCurrent = true
	if !s.Correct {
		p.CurrentStreak = 0
		return
	}
	p.Score += s.Points
	p.CurrentStreak = s.NewStreak
	if p.CurrentStreak > p.LongestStreak {
		p.LongestStreak = p.CurrentStreak
	}
	if s.Points > 0 {
		p.ScoreSeq = seq
	}
}

// ApplyTimeout records a missed question.
func (p *PlayerRecord) ApplyTimeout() {
	p.CurrentStreak = 0
}

// RankPlayers orders players by score, then by who reached it first.
func RankPlayers(players []*PlayerRecord, limit int) []LeaderboardEntry {
	scores := make([]RankedScore, 0, len(players))
	for _, p := range players {
		if p.Removed {
			continue
		}
		scores = append(scores, RankedScore{PlayerID: p.ID, Nickname: p.Nickname, Score: p.Score, Seq: p.ScoreSeq})
	}
	return RankScores(scores, limit)
}

// RankScores sorts scores and assigns 1-based ranks. limit <= 0 keeps all.
func RankScores(scores []RankedScore, limit int) []LeaderboardEntry {
	sorted := append([]RankedScore(nil), scores...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].Seq < sorted[j].Seq
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	out := make([]LeaderboardEntry, len(sorted))
	for i, s := range sorted {
		out[i] = LeaderboardEntry{Rank: i + 1, PlayerID: s.PlayerID, Nickname: s.Nickname, Score: s.Score}
	}
	return out
}
