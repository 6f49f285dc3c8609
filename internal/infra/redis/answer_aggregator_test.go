package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"live-quiz-service/internal/domain"
)

func TestAnswerAggregatorCapsAndDrains(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	agg := NewAnswerAggregator(newClient(mr), 5*time.Minute, 2)
	for _, id := range []string{"p1", "p2", "p3"} {
		ev := domain.AnswerEvent{GameID: "g1", PlayerID: id, QuestionIndex: 0, Selected: []int{1}, IsCorrect: true}
		if err := agg.Append(ctx, "g1", 0, ev); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if ttl := mr.TTL("answers:g1:0"); ttl != 5*time.Minute {
		t.Fatalf("expected ttl on buffer, got %s", ttl)
	}

	got, err := agg.Drain(ctx, "g1", 0)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(got) != 2 || got[0].PlayerID != "p1" || !got[1].IsCorrect {
		t.Fatalf("unexpected drained answers %+v", got)
	}
	if mr.Exists("answers:g1:0") {
		t.Fatalf("drain must delete the buffer")
	}
}
