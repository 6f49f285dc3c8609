package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"live-quiz-service/internal/domain"
)

func TestLeaderboardOrdersByScoreThenSeq(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	lb := NewLeaderboard(newClient(mr))
	entries := []domain.RankedScore{
		{PlayerID: "p1", Nickname: "Ann", Score: 1433, Seq: 4},
		{PlayerID: "p2", Nickname: "Bob", Score: 1433, Seq: 2},
		{PlayerID: "p3", Nickname: "Cy", Score: 2000, Seq: 5},
		{PlayerID: "p4", Nickname: "Di", Score: 0, Seq: 1},
	}
	for _, e := range entries {
		if err := lb.Upsert(ctx, "g1", e, time.Minute); err != nil {
			t.Fatalf("upsert %s: %v", e.PlayerID, err)
		}
	}

	top, err := lb.Top(ctx, "g1", 3)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	want := []string{"p3", "p2", "p1"}
	if len(top) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(top))
	}
	for i, id := range want {
		if top[i].PlayerID != id || top[i].Rank != i+1 {
			t.Fatalf("position %d: got %+v", i, top[i])
		}
	}
	if top[1].Score != 1433 || top[1].Nickname != "Bob" {
		t.Fatalf("score or nickname not decoded: %+v", top[1])
	}

	_ = lb.Remove(ctx, "g1", "p3")
	top, _ = lb.Top(ctx, "g1", 0)
	if len(top) != 3 || top[0].PlayerID != "p2" {
		t.Fatalf("expected removal to reorder, got %+v", top)
	}

	_ = lb.Delete(ctx, "g1")
	if mr.Exists("leaderboard:g1") || mr.Exists("leaderboard:g1:players") {
		t.Fatalf("expected keys removed")
	}
}

func TestCompositeKeepsScoreOrdering(t *testing.T) {
	if composite(1, 1_000_000) <= composite(0, 0) {
		t.Fatalf("higher score must always outrank lower score")
	}
	if decodeScore(composite(2500, 77)) != 2500 {
		t.Fatalf("decode mismatch")
	}
}
