package app

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log"

	"live-quiz-service/internal/domain"
)

// HostDisconnected starts the grace period for the host connection connID.
// A disconnect of a connection that no longer holds the host role is ignored.
func (s *GameService) HostDisconnected(ctx context.Context, gameID, connID string) error {
	_, err := s.mutate(ctx, gameID, func(t *tx) error {
		g := t.g
		if connID == "" || g.HostConnID != connID || g.Status == domain.StatusEnded {
			return errNoChange
		}
		g.HostConnID = ""
		at := t.now
		g.HostDisconnectedAt = &at
		g.HostEpoch++
		epoch := g.HostEpoch
		grace := s.opts.HostGrace
		t.toGame(EventHostDisconnected, NoticeEvent{
			Message:          fmt.Sprintf("Host has disconnected. Game will end in %d seconds.", int(grace.Seconds())),
			SecondsRemaining: int(grace.Seconds()),
		})
		t.afterCommit(func() {
			s.timers.schedule(gameID, timerHostGrace, grace, func() { s.onHostGrace(gameID, epoch) })
			log.Printf("host disconnected game=%s grace=%s", gameID, grace)
		})
		return nil
	})
	return err
}

func (s *GameService) onHostGrace(gameID string, epoch uint64) {
	ctx := context.Background()
	_, err := s.mutate(ctx, gameID, func(t *tx) error {
		g := t.g
		if g.HostEpoch != epoch || g.HostConnID != "" || g.Status == domain.StatusEnded {
			return errNoChange
		}
		_, err := s.endGame(t, domain.EndReasonHostDisconnected)
		return err
	})
	if err != nil && domain.KindOf(err) != domain.KindNotFound {
		log.Printf("host grace game=%s: %v", gameID, err)
	}
}

// HostResume is returned to a host that took back control.
type HostResume struct {
	Game             domain.GameView
	Question         *domain.QuestionView
	SecondsRemaining int
}

// ReconnectHost hands host control to connID if token matches. The pending
// grace timer becomes stale.
func (s *GameService) ReconnectHost(ctx context.Context, gameID, token, connID string) (HostResume, error) {
	var out HostResume
	_, err := s.mutate(ctx, gameID, func(t *tx) error {
		g := t.g
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(g.HostToken)) != 1 {
			return domain.ErrNotHost
		}
		if g.Status == domain.StatusEnded {
			return domain.ErrGameEnded
		}
		wasAway := g.HostConnID == ""
		g.HostConnID = connID
		g.HostDisconnectedAt = nil
		g.HostEpoch++
		if wasAway {
			t.toGame(EventHostReconnected, NoticeEvent{Message: "Host has reconnected"})
		}
		t.afterCommit(func() {
			s.timers.cancel(gameID, timerHostGrace)
			log.Printf("host reconnected game=%s", gameID)
		})
		out = HostResume{Game: g.View(), SecondsRemaining: g.Item.SecondsRemaining(t.now)}
		if item, ok := g.CurrentItem(); ok && g.Status != domain.StatusWaiting {
			view := item.PublicView()
			out.Question = &view
		}
		return nil
	})
	return out, err
}

// PlayerDisconnected marks the player absent. Score and streak stay.
func (s *GameService) PlayerDisconnected(ctx context.Context, gameID, playerID, connID string) error {
	_, err := s.mutate(ctx, gameID, func(t *tx) error {
		g := t.g
		p, ok := g.Players[playerID]
		if !ok || p.Removed || p.ConnectionID != connID || g.Status == domain.StatusEnded {
			return errNoChange
		}
		p.ConnectionID = ""
		p.LastActivity = t.now
		t.toGame(EventPlayerLeft, PlayerLeftEvent{
			PlayerID:     p.ID,
			PlayerName:   p.Nickname,
			Reason:       ReasonDisconnected,
			TotalPlayers: g.ConnectedPlayerCount(),
		})
		return s.lockIfAllAnswered(t)
	})
	return err
}

func (s *GameService) lockIfAllAnswered(t *tx) error {
	g := t.g
	item, ok := g.CurrentItem()
	if g.Status == domain.StatusActive && g.Item.State == domain.ItemOpen && ok && item.Scored() && g.AllPresentAnswered() {
		return s.lockItem(t, ReasonAllAnswered)
	}
	return nil
}

// PlayerRejoin is returned to a player that reconnected.
type PlayerRejoin struct {
	Game             domain.GameView
	Player           domain.PlayerRecord
	Question         *AnswerOptionsEvent
	SecondsRemaining int
}

// RejoinPlayer reattaches a known player to connID.
func (s *GameService) RejoinPlayer(ctx context.Context, gameID, playerID, connID string) (PlayerRejoin, error) {
	var out PlayerRejoin
	_, err := s.mutate(ctx, gameID, func(t *tx) error {
		g := t.g
		if g.Status == domain.StatusEnded {
			return domain.ErrGameEnded
		}
		p, err := livePlayer(g, playerID)
		if err != nil {
			return err
		}
		p.ConnectionID = connID
		p.LastActivity = t.now
		t.toGame(EventPlayerReconnected, PlayerLeftEvent{
			PlayerID:     p.ID,
			PlayerName:   p.Nickname,
			Reason:       "reconnected",
			TotalPlayers: g.ConnectedPlayerCount(),
		})
		out = PlayerRejoin{Game: g.View(), Player: *p, SecondsRemaining: g.Item.SecondsRemaining(t.now)}
		if item, ok := g.CurrentItem(); ok && g.Item.State == domain.ItemOpen && !p.HasAnsweredCurrent {
			out.Question = &AnswerOptionsEvent{
				QuestionIndex:  g.CurrentItemIndex,
				QuestionType:   item.QuestionType,
				ItemType:       item.Type,
				Options:        item.AnswerShapes(),
				TimeLimit:      item.TimeLimit,
				IsDoublePoints: item.IsDoublePoints,
				TotalQuestions: len(g.Items),
			}
		}
		return nil
	})
	return out, err
}

// LeaveGame tombstones a player that left on purpose.
func (s *GameService) LeaveGame(ctx context.Context, gameID, playerID string) error {
	_, err := s.mutate(ctx, gameID, func(t *tx) error {
		p, ok := t.g.Players[playerID]
		if !ok || p.Removed || t.g.Status == domain.StatusEnded {
			return errNoChange
		}
		s.removePlayer(t, p, ReasonLeft)
		return s.lockIfAllAnswered(t)
	})
	return err
}

// KickPlayer removes a player on host request and returns the connection
// the player was using, empty if it was offline.
func (s *GameService) KickPlayer(ctx context.Context, gameID string, host Host, playerID string) (string, error) {
	var connID string
	_, err := s.mutate(ctx, gameID, func(t *tx) error {
		if err := authorizeHost(t.g, host); err != nil {
			return err
		}
		if playerID == "" {
			return domain.ErrPlayerIDRequired
		}
		if t.g.Status == domain.StatusEnded {
			return domain.ErrGameEnded
		}
		p, ok := t.g.Players[playerID]
		if !ok || p.Removed {
			return domain.ErrPlayerNotFound
		}
		connID = p.ConnectionID
		t.toPlayer(p.ID, EventPlayerKicked, NoticeEvent{Message: "You have been removed from the game by the host"})
		s.removePlayer(t, p, ReasonKicked)
		return s.lockIfAllAnswered(t)
	})
	return connID, err
}

func (s *GameService) removePlayer(t *tx, p *domain.PlayerRecord, reason string) {
	g := t.g
	p.Removed = true
	p.RemovedReason = reason
	p.ConnectionID = ""
	p.Ready = false
	p.LastActivity = t.now
	t.toGame(EventPlayerLeft, PlayerLeftEvent{
		PlayerID:     p.ID,
		PlayerName:   p.Nickname,
		Reason:       reason,
		TotalPlayers: g.ActivePlayerCount(),
	})
	gameID, playerID := g.ID, p.ID
	t.afterCommit(func() {
		if err := s.leaderboard.Remove(t.ctx, gameID, playerID); err != nil {
			log.Printf("leaderboard remove game=%s player=%s: %v", gameID, playerID, err)
		}
		log.Printf("player removed game=%s player=%s reason=%s", gameID, playerID, reason)
	})
}
