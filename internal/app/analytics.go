package app

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"live-quiz-service/internal/domain"
)

// questionAnalytics summarises the drained answers of one item.
func questionAnalytics(gameID string, index int, item domain.QuizItem, answers []domain.AnswerEvent, now time.Time) domain.QuestionAnalytics {
	a := domain.QuestionAnalytics{
		GameID:             gameID,
		QuestionIndex:      index,
		AnswerDistribution: make(map[string]int),
		CorrectOptions:     item.CorrectOptions(),
		ComputedAt:         now,
	}
	var totalMs int64
	for _, ev := range answers {
		if ev.QuestionIndex != index {
			continue
		}
		a.TotalResponses++
		if ev.IsCorrect {
			a.CorrectResponses++
		}
		totalMs += ev.ResponseTimeMs
		a.AnswerDistribution[selectionKey(ev.Selected)]++
	}
	if a.TotalResponses > 0 {
		a.Accuracy = float64(a.CorrectResponses) / float64(a.TotalResponses)
		a.AvgResponseTimeMs = float64(totalMs) / float64(a.TotalResponses)
	}
	return a
}

func selectionKey(selected []int) string {
	sorted := append([]int(nil), selected...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, v := range sorted {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
