package app

import (
	"context"
	"time"

	"live-quiz-service/internal/domain"
)

// SessionRepository stores live game sessions with expiry. Implementations
// return domain.ErrGameNotFound for missing games and wrap backend failures
// with domain.Unavailable.
type SessionRepository interface {
	Put(ctx context.Context, g *domain.GameSession, ttl time.Duration) error
	Get(ctx context.Context, gameID string) (*domain.GameSession, error)
	Delete(ctx context.Context, gameID string) error

	// ReservePin claims pin for gameID. It reports false if another active game holds it.
	ReservePin(ctx context.Context, pin, gameID string, ttl time.Duration) (bool, error)
	ResolvePin(ctx context.Context, pin string) (string, error)
	ReleasePin(ctx context.Context, pin string) error

	PutPlayerRef(ctx context.Context, playerID, gameID string, ttl time.Duration) error
	ResolvePlayer(ctx context.Context, playerID string) (string, error)
}

// LeaderboardIndex is a ranked cache over PlayerRecord scores.
type LeaderboardIndex interface {
	Upsert(ctx context.Context, gameID string, entry domain.RankedScore, ttl time.Duration) error
	Top(ctx context.Context, gameID string, n int) ([]domain.LeaderboardEntry, error)
	Remove(ctx context.Context, gameID, playerID string) error
	Delete(ctx context.Context, gameID string) error
}

// AnswerAggregator buffers accepted answers per question until drained.
type AnswerAggregator interface {
	Append(ctx context.Context, gameID string, questionIndex int, ev domain.AnswerEvent) error
	Drain(ctx context.Context, gameID string, questionIndex int) ([]domain.AnswerEvent, error)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// RecordStore is the durable history sink. Writes are best-effort.
type RecordStore interface {
	SaveGame(ctx context.Context, rec domain.GameRecord) error
	SavePlayers(ctx context.Context, gameID string, players []domain.PlayerRecord) error
	SaveAnswers(ctx context.Context, answers []domain.AnswerEvent) error
	SaveAnalytics(ctx context.Context, a domain.QuestionAnalytics) error
}

// Broadcaster delivers outbound events to rooms.
type Broadcaster interface {
	ToGame(gameID, event string, payload any)
	ToHost(gameID, event string, payload any)
	ToPlayer(playerID, event string, payload any)
}

// Metrics counts service events.
type Metrics interface {
	Incr(ctx context.Context, name string)
	Snapshot(ctx context.Context) (map[string]int64, error)
}

// Metric names.
const (
	MetricGamesCreated     = "games_created"
	MetricGamesStarted     = "games_started"
	MetricGamesCompleted   = "games_completed"
	MetricPlayersJoined    = "players_joined"
	MetricAnswersSubmitted = "answers_submitted"
	MetricCorrectAnswers   = "correct_answers"
)

// MetricNames lists every counter the service maintains.
var MetricNames = []string{
	MetricGamesCreated,
	MetricGamesStarted,
	MetricGamesCompleted,
	MetricPlayersJoined,
	MetricAnswersSubmitted,
	MetricCorrectAnswers,
}

type nopBroadcaster struct{}

func (nopBroadcaster) ToGame(string, string, any)   {}
func (nopBroadcaster) ToHost(string, string, any)   {}
func (nopBroadcaster) ToPlayer(string, string, any) {}

type nopMetrics struct{}

func (nopMetrics) Incr(context.Context, string) {}
func (nopMetrics) Snapshot(context.Context) (map[string]int64, error) {
	return map[string]int64{}, nil
}
