package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// GameStatus is the coarse status of a live game.
type GameStatus string

const (
	StatusWaiting GameStatus = "waiting"
	StatusActive  GameStatus = "active"
	StatusPaused  GameStatus = "paused"
	StatusEnded   GameStatus = "ended"
)

// GameMode selects how item content is delivered.
type GameMode string

const (
	// ModeNormal broadcasts the full item to everyone.
	ModeNormal GameMode = "normal"
	// ModeDualScreen sends content to the host and only answer shapes to players.
	ModeDualScreen GameMode = "dual_screen"
)

// Valid reports whether m is a known mode.
func (m GameMode) Valid() bool {
	return m == ModeNormal || m == ModeDualScreen
}

type ItemType string

const (
	ItemQuestion ItemType = "question"
	ItemSlide    ItemType = "slide"
)

type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionMultipleSelect QuestionType = "multiple_select"
)

// End reasons carried by game-ended.
const (
	EndReasonCompleted        = "completed"
	EndReasonHostEnded        = "host_ended"
	EndReasonHostDisconnected = "host_disconnected"
)

// Option represents a possible answer for a question.
type Option struct {
	Index   int    `json:"index"`
	Text    string `json:"text"`
	Correct bool   `json:"is_correct"`
}

// QuizItem is a question or a slide.
type QuizItem struct {
	ID             string       `json:"id"`
	Type           ItemType     `json:"type"`
	QuestionType   QuestionType `json:"question_type,omitempty"`
	Content        string       `json:"content"`
	Options        []Option     `json:"options,omitempty"`
	TimeLimit      int          `json:"time_limit"` // seconds, 0 = host advances manually
	Points         int          `json:"points,omitempty"`
	IsDoublePoints bool         `json:"is_double_points,omitempty"`
	MediaURL       string       `json:"media_url,omitempty"`
}

// Scored reports whether answers to the item affect scores and streaks.
func (i QuizItem) Scored() bool {
	return i.Type != ItemSlide
}

// TimeLimitDuration returns the countdown length, zero for manual items.
func (i QuizItem) TimeLimitDuration() time.Duration {
	if i.TimeLimit <= 0 {
		return 0
	}
	return time.Duration(i.TimeLimit) * time.Second
}

// Quiz is the ordered list of items a game is played from.
type Quiz struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Background string     `json:"background,omitempty"`
	Items      []QuizItem `json:"items"`
}

// PlayerRecord is one joined player. Removal is a tombstone.
type PlayerRecord struct {
	ID                 string    `json:"id"`
	Nickname           string    `json:"nickname"`
	Score              int       `json:"score"`
	CurrentStreak      int       `json:"currentStreak"`
	LongestStreak      int       `json:"longestStreak"`
	HasAnsweredCurrent bool      `json:"hasAnsweredCurrent"`
	ConnectionID       string    `json:"connectionId,omitempty"`
	Removed            bool      `json:"removed,omitempty"`
	RemovedReason      string    `json:"removedReason,omitempty"`
	Ready              bool      `json:"ready,omitempty"`
	ScoreSeq           uint64    `json:"scoreSeq"`
	JoinedAt           time.Time `json:"joinedAt"`
	LastActivity       time.Time `json:"lastActivity"`
}

// Present reports whether the player is in the game with a live connection.
func (p *PlayerRecord) Present() bool {
	return !p.Removed && p.ConnectionID != ""
}

// GameSession is the authoritative live state of one game.
type GameSession struct {
	ID                 string                   `json:"id"`
	Pin                string                   `json:"pin"`
	QuizID             string                   `json:"quizId"`
	QuizTitle          string                   `json:"quizTitle"`
	QuizBackground     string                   `json:"quizBackground,omitempty"`
	Status             GameStatus               `json:"status"`
	Mode               GameMode                 `json:"mode"`
	AutoAdvance        bool                     `json:"autoAdvance"`
	MaxPlayers         int                      `json:"maxPlayers"`
	Items              []QuizItem               `json:"quizSnapshot"`
	CurrentItemIndex   int                      `json:"currentItemIndex"`
	Item               ItemProgress             `json:"currentItemState"`
	Players            map[string]*PlayerRecord `json:"players"`
	PlayerOrder        []string                 `json:"playerOrder"`
	ScoreSeq           uint64                   `json:"scoreSeq"`
	HostConnID         string                   `json:"hostConnectionRef,omitempty"`
	HostToken          string                   `json:"hostToken"`
	HostEpoch          uint64                   `json:"hostEpoch"`
	HostDisconnectedAt *time.Time               `json:"hostDisconnectedAt,omitempty"`
	LastResults        *QuestionAnalytics       `json:"lastResults,omitempty"`
	CreatedAt          time.Time                `json:"createdAt"`
	StartedAt          *time.Time               `json:"startedAt,omitempty"`
	EndedAt            *time.Time               `json:"endedAt,omitempty"`
	EndReason          string                   `json:"endReason,omitempty"`
}

// CurrentItem returns the active item, false before start.
func (g *GameSession) CurrentItem() (QuizItem, bool) {
	if g.CurrentItemIndex < 0 || g.CurrentItemIndex >= len(g.Items) {
		return QuizItem{}, false
	}
	return g.Items[g.CurrentItemIndex], true
}

// OrderedPlayers returns non-removed players in join order.
func (g *GameSession) OrderedPlayers() []*PlayerRecord {
	out := make([]*PlayerRecord, 0, len(g.PlayerOrder))
	for _, id := range g.PlayerOrder {
		if p, ok := g.Players[id]; ok && !p.Removed {
			out = append(out, p)
		}
	}
	return out
}

// ActivePlayerCount counts players that were not removed.
func (g *GameSession) ActivePlayerCount() int {
	return len(g.OrderedPlayers())
}

// ConnectedPlayerCount counts players with a live connection.
func (g *GameSession) ConnectedPlayerCount() int {
	n := 0
	for _, p := range g.OrderedPlayers() {
		if p.Present() {
			n++
		}
	}
	return n
}

// AnsweredCount counts non-removed players that answered the current item.
func (g *GameSession) AnsweredCount() int {
	n := 0
	for _, p := range g.OrderedPlayers() {
		if p.HasAnsweredCurrent {
			n++
		}
	}
	return n
}

// AllPresentAnswered is true when every connected player has answered and at least one did.
func (g *GameSession) AllPresentAnswered() bool {
	present := 0
	for _, p := range g.OrderedPlayers() {
		if !p.Present() {
			continue
		}
		present++
		if !p.HasAnsweredCurrent {
			return false
		}
	}
	return present > 0
}

// NextScoreSeq hands out the insertion-order tie-break for a score change.
func (g *GameSession) NextScoreSeq() uint64 {
	g.ScoreSeq++
	return g.ScoreSeq
}

// NicknameTaken reports a case-insensitive clash with another live player.
func (g *GameSession) NicknameTaken(name, exceptID string) bool {
	for _, p := range g.OrderedPlayers() {
		if p.ID != exceptID && strings.EqualFold(p.Nickname, name) {
			return true
		}
	}
	return false
}

// AnswerEvent is one accepted submission.
type AnswerEvent struct {
	GameID         string    `json:"gameId"`
	PlayerID       string    `json:"playerId"`
	Nickname       string    `json:"nickname"`
	QuestionIndex  int       `json:"questionIndex"`
	Selected       []int     `json:"selectedAnswer"`
	ResponseTimeMs int64     `json:"responseTimeMs"`
	IsCorrect      bool      `json:"isCorrect"`
	PointsEarned   int       `json:"pointsEarned"`
	SubmittedAt    time.Time `json:"submittedAt"`
}

// LeaderboardEntry is a ranked view of a player's score.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
}

// RankedScore is what the leaderboard index stores per player.
type RankedScore struct {
	PlayerID string `json:"playerId"`
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
	Seq      uint64 `json:"seq"`
}

// QuestionAnalytics summarises the answers to one item.
type QuestionAnalytics struct {
	GameID             string         `json:"gameId"`
	QuestionIndex      int            `json:"questionIndex"`
	TotalResponses     int            `json:"totalAnswers"`
	CorrectResponses   int            `json:"correctAnswers"`
	Accuracy           float64        `json:"accuracy"`
	AvgResponseTimeMs  float64        `json:"avgResponseTimeMs"`
	AnswerDistribution map[string]int `json:"answerDistribution"`
	CorrectOptions     []int          `json:"correctOptions"`
	ComputedAt         time.Time      `json:"computedAt"`
}

// QuestionResults is the question-results payload.
type QuestionResults struct {
	QuestionAnalytics
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

// FinalResults is sent with game-ended.
type FinalResults struct {
	GameID         string             `json:"gameId"`
	TotalPlayers   int                `json:"totalPlayers"`
	TotalQuestions int                `json:"totalQuestions"`
	Leaderboard    []LeaderboardEntry `json:"leaderboard"`
	GameMode       GameMode           `json:"gameMode"`
	DurationMs     int64              `json:"durationMs"`
	Reason         string             `json:"reason"`
}

// GameRecord is the durable summary of a game.
type GameRecord struct {
	ID             string
	Pin            string
	QuizID         string
	Mode           GameMode
	Status         GameStatus
	MaxPlayers     int
	TotalPlayers   int
	TotalQuestions int
	EndReason      string
	CreatedAt      time.Time
	StartedAt      *time.Time
	EndedAt        *time.Time
}

// RecordOf snapshots the durable fields of g.
func RecordOf(g *GameSession) GameRecord {
	return GameRecord{
		ID:             g.ID,
		Pin:            g.Pin,
		QuizID:         g.QuizID,
		Mode:           g.Mode,
		Status:         g.Status,
		MaxPlayers:     g.MaxPlayers,
		TotalPlayers:   g.ActivePlayerCount(),
		TotalQuestions: len(g.Items),
		EndReason:      g.EndReason,
		CreatedAt:      g.CreatedAt,
		StartedAt:      g.StartedAt,
		EndedAt:        g.EndedAt,
	}
}

const maxNicknameLength = 20

// NormalizeNickname trims name and enforces the length rule.
func NormalizeNickname(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", ErrInvalidName
	}
	if utf8.RuneCountInString(trimmed) > maxNicknameLength {
		return "", ErrNameTooLong
	}
	return trimmed, nil
}

// ValidPin reports whether pin is six ASCII digits.
func ValidPin(pin string) bool {
	if len(pin) != 6 {
		return false
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return false
		}
	}
	return true
}
