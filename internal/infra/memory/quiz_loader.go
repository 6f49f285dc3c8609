package memory

import (
	"context"

	"live-quiz-service/internal/domain"
)

// StaticQuizLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticQuizLoader struct {
	quizzes map[string]domain.Quiz
}

func NewStaticQuizLoader(quizzes map[string]domain.Quiz) *StaticQuizLoader {
	return &StaticQuizLoader{quizzes: quizzes}
}

func (l *StaticQuizLoader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := l.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

// DemoQuiz is served when no quiz store is configured.
func DemoQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "demo",
		Title: "Warm-up",
		Items: []domain.QuizItem{
			{
				ID:        "intro",
				Type:      domain.ItemSlide,
				Content:   "Welcome! Answer fast for a speed bonus.",
				TimeLimit: 5,
			},
			{
				ID:           "q1",
				Type:         domain.ItemQuestion,
				QuestionType: domain.QuestionMultipleChoice,
				Content:      "What is 2 + 2?",
				Options: []domain.Option{
					{Index: 0, Text: "3"},
					{Index: 1, Text: "4", Correct: true},
					{Index: 2, Text: "5"},
					{Index: 3, Text: "22"},
				},
				TimeLimit: 20,
				Points:    1000,
			},
			{
				ID:           "q2",
				Type:         domain.ItemQuestion,
				QuestionType: domain.QuestionTrueFalse,
				Content:      "Go has generics.",
				Options: []domain.Option{
					{Index: 0, Text: "True", Correct: true},
					{Index: 1, Text: "False"},
				},
				TimeLimit: 10,
				Points:    1000,
			},
			{
				ID:           "q3",
				Type:         domain.ItemQuestion,
				QuestionType: domain.QuestionMultipleSelect,
				Content:      "Pick the prime numbers.",
				Options: []domain.Option{
					{Index: 0, Text: "2", Correct: true},
					{Index: 1, Text: "4"},
					{Index: 2, Text: "7", Correct: true},
				},
				TimeLimit:      30,
				Points:         1000,
				IsDoublePoints: true,
			},
		},
	}
}
