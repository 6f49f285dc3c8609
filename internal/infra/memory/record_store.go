package memory

import (
	"context"
	"sync"

	"live-quiz-service/internal/domain"
)

// RecordStore keeps game history in memory when no database is configured.
type RecordStore struct {
	mu        sync.Mutex
	games     map[string]domain.GameRecord
	players   map[string][]domain.PlayerRecord
	answers   []domain.AnswerEvent
	analytics []domain.QuestionAnalytics
}

func NewRecordStore() *RecordStore {
	return &RecordStore{
		games:   make(map[string]domain.GameRecord),
		players: make(map[string][]domain.PlayerRecord),
	}
}

func (s *RecordStore) SaveGame(_ context.Context, rec domain.GameRecord) error {
	s.mu.Lock()
	s.games[rec.ID] = rec
	s.mu.Unlock()
	return nil
}

func (s *RecordStore) SavePlayers(_ context.Context, gameID string, players []domain.PlayerRecord) error {
	s.mu.Lock()
	s.players[gameID] = append([]domain.PlayerRecord(nil), players...)
	s.mu.Unlock()
	return nil
}

func (s *RecordStore) SaveAnswers(_ context.Context, answers []domain.AnswerEvent) error {
	s.mu.Lock()
	s.answers = append(s.answers, answers...)
	s.mu.Unlock()
	return nil
}

func (s *RecordStore) SaveAnalytics(_ context.Context, a domain.QuestionAnalytics) error {
	s.mu.Lock()
	s.analytics = append(s.analytics, a)
	s.mu.Unlock()
	return nil
}

// Game returns the last saved record of a game.
func (s *RecordStore) Game(gameID string) (domain.GameRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.games[gameID]
	return rec, ok
}

func (s *RecordStore) Players(gameID string) []domain.PlayerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.PlayerRecord(nil), s.players[gameID]...)
}

func (s *RecordStore) Answers() []domain.AnswerEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AnswerEvent(nil), s.answers...)
}

func (s *RecordStore) Analytics() []domain.QuestionAnalytics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.QuestionAnalytics(nil), s.analytics...)
}
