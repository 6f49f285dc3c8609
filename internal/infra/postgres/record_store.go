package postgres

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"live-quiz-service/internal/domain"
)

type gameModel struct {
	bun.BaseModel `bun:"table:games"`

	ID             string     `bun:"id,pk"`
	Pin            string     `bun:"pin"`
	QuizID         string     `bun:"quiz_id"`
	Mode           string     `bun:"game_mode"`
	Status         string     `bun:"status"`
	MaxPlayers     int        `bun:"max_players"`
	TotalPlayers   int        `bun:"total_players"`
	TotalQuestions int        `bun:"total_questions"`
	EndReason      string     `bun:"end_reason"`
	CreatedAt      time.Time  `bun:"created_at"`
	StartedAt      *time.Time `bun:"started_at"`
	EndedAt        *time.Time `bun:"ended_at"`
}

type playerModel struct {
	bun.BaseModel `bun:"table:game_players"`

	GameID        string    `bun:"game_id,pk"`
	PlayerID      string    `bun:"player_id,pk"`
	Nickname      string    `bun:"nickname"`
	Score         int       `bun:"score"`
	LongestStreak int       `bun:"longest_streak"`
	Removed       bool      `bun:"removed"`
	RemovedReason string    `bun:"removed_reason"`
	JoinedAt      time.Time `bun:"joined_at"`
}

type answerModel struct {
	bun.BaseModel `bun:"table:player_answers"`

	GameID         string    `bun:"game_id,pk"`
	PlayerID       string    `bun:"player_id,pk"`
	QuestionIndex  int       `bun:"question_index,pk"`
	Selected       []int     `bun:"selected,type:jsonb"`
	ResponseTimeMs int64     `bun:"response_time_ms"`
	IsCorrect      bool      `bun:"is_correct"`
	PointsEarned   int       `bun:"points_earned"`
	SubmittedAt    time.Time `bun:"submitted_at"`
}

type analyticsModel struct {
	bun.BaseModel `bun:"table:game_analytics"`

	GameID             string         `bun:"game_id,pk"`
	QuestionIndex      int            `bun:"question_index,pk"`
	TotalResponses     int            `bun:"total_responses"`
	CorrectResponses   int            `bun:"correct_responses"`
	Accuracy           float64        `bun:"accuracy"`
	AvgResponseTimeMs  float64        `bun:"avg_response_time_ms"`
	AnswerDistribution map[string]int `bun:"answer_distribution,type:jsonb"`
	CorrectOptions     []int          `bun:"correct_options,type:jsonb"`
	ComputedAt         time.Time      `bun:"computed_at"`
}

// RecordStore writes game history with bun. Every write is an upsert so a
// retried or repeated record converges to the last state.
type RecordStore struct {
	db *bun.DB
}

func NewRecordStore(db *bun.DB) *RecordStore {
	return &RecordStore{db: db}
}

func (s *RecordStore) SaveGame(ctx context.Context, rec domain.GameRecord) error {
	m := &gameModel{
		ID:             rec.ID,
		Pin:            rec.Pin,
		QuizID:         rec.QuizID,
		Mode:           string(rec.Mode),
		Status:         string(rec.Status),
		MaxPlayers:     rec.MaxPlayers,
		TotalPlayers:   rec.TotalPlayers,
		TotalQuestions: rec.TotalQuestions,
		EndReason:      rec.EndReason,
		CreatedAt:      rec.CreatedAt,
		StartedAt:      rec.StartedAt,
		EndedAt:        rec.EndedAt,
	}
	_, err := s.db.NewInsert().Model(m).
		On("CONFLICT (id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("total_players = EXCLUDED.total_players").
		Set("end_reason = EXCLUDED.end_reason").
		Set("started_at = EXCLUDED.started_at").
		Set("ended_at = EXCLUDED.ended_at").
		Exec(ctx)
	return err
}

func (s *RecordStore) SavePlayers(ctx context.Context, gameID string, players []domain.PlayerRecord) error {
	if len(players) == 0 {
		return nil
	}
	models := make([]playerModel, len(players))
	for i, p := range players {
		models[i] = playerModel{
			GameID:        gameID,
			PlayerID:      p.ID,
			Nickname:      p.Nickname,
			Score:         p.Score,
			LongestStreak: p.LongestStreak,
			Removed:       p.Removed,
			RemovedReason: p.RemovedReason,
			JoinedAt:      p.JoinedAt,
		}
	}
	_, err := s.db.NewInsert().Model(&models).
		On("CONFLICT (game_id, player_id) DO UPDATE").
		Set("nickname = EXCLUDED.nickname").
		Set("score = EXCLUDED.score").
		Set("longest_streak = EXCLUDED.longest_streak").
		Set("removed = EXCLUDED.removed").
		Set("removed_reason = EXCLUDED.removed_reason").
		Exec(ctx)
	return err
}

func (s *RecordStore) SaveAnswers(ctx context.Context, answers []domain.AnswerEvent) error {
	if len(answers) == 0 {
		return nil
	}
	models := make([]answerModel, len(answers))
	for i, a := range answers {
		models[i] = answerModel{
			GameID:         a.GameID,
			PlayerID:       a.PlayerID,
			QuestionIndex:  a.QuestionIndex,
			Selected:       a.Selected,
			ResponseTimeMs: a.ResponseTimeMs,
			IsCorrect:      a.IsCorrect,
			PointsEarned:   a.PointsEarned,
			SubmittedAt:    a.SubmittedAt,
		}
	}
	// one answer per player and question; a replayed batch is ignored
	_, err := s.db.NewInsert().Model(&models).
		On("CONFLICT (game_id, player_id, question_index) DO NOTHING").
		Exec(ctx)
	return err
}

func (s *RecordStore) SaveAnalytics(ctx context.Context, a domain.QuestionAnalytics) error {
	if a.CorrectOptions == nil {
		a.CorrectOptions = []int{}
	}
	if a.AnswerDistribution == nil {
		a.AnswerDistribution = map[string]int{}
	}
	m := &analyticsModel{
		GameID:             a.GameID,
		QuestionIndex:      a.QuestionIndex,
		TotalResponses:     a.TotalResponses,
		CorrectResponses:   a.CorrectResponses,
		Accuracy:           a.Accuracy,
		AvgResponseTimeMs:  a.AvgResponseTimeMs,
		AnswerDistribution: a.AnswerDistribution,
		CorrectOptions:     a.CorrectOptions,
		ComputedAt:         a.ComputedAt,
	}
	_, err := s.db.NewInsert().Model(m).
		On("CONFLICT (game_id, question_index) DO UPDATE").
		Set("total_responses = EXCLUDED.total_responses").
		Set("correct_responses = EXCLUDED.correct_responses").
		Set("accuracy = EXCLUDED.accuracy").
		Set("avg_response_time_ms = EXCLUDED.avg_response_time_ms").
		Set("answer_distribution = EXCLUDED.answer_distribution").
		Set("correct_options = EXCLUDED.correct_options").
		Set("computed_at = EXCLUDED.computed_at").
		Exec(ctx)
	return err
}

// GameHistory reads back a stored game with its players ranked by score.
func (s *RecordStore) GameHistory(ctx context.Context, gameID string) (domain.GameRecord, []domain.LeaderboardEntry, error) {
	var g gameModel
	if err := s.db.NewSelect().Model(&g).Where("id = ?", gameID).Scan(ctx); err != nil {
		return domain.GameRecord{}, nil, err
	}
	var players []playerModel
	err := s.db.NewSelect().Model(&players).
		Where("game_id = ?", gameID).
		Where("removed = false").
		Order("score DESC", "joined_at ASC").
		Scan(ctx)
	if err != nil {
		return domain.GameRecord{}, nil, err
	}
	rec := domain.GameRecord{
		ID:             g.ID,
		Pin:            g.Pin,
		QuizID:         g.QuizID,
		Mode:           domain.GameMode(g.Mode),
		Status:         domain.GameStatus(g.Status),
		MaxPlayers:     g.MaxPlayers,
		TotalPlayers:   g.TotalPlayers,
		TotalQuestions: g.TotalQuestions,
		EndReason:      g.EndReason,
		CreatedAt:      g.CreatedAt,
		StartedAt:      g.StartedAt,
		EndedAt:        g.EndedAt,
	}
	board := make([]domain.LeaderboardEntry, len(players))
	for i, p := range players {
		board[i] = domain.LeaderboardEntry{Rank: i + 1, PlayerID: p.PlayerID, Nickname: p.Nickname, Score: p.Score}
	}
	return rec, board, nil
}
