package app

import (
	"context"
	"log"
	"time"

	"live-quiz-service/internal/domain"
)

// StartGame leaves the lobby and opens the first item.
func (s *GameService) StartGame(ctx context.Context, gameID string, host Host) (domain.GameView, error) {
	g, err := s.mutate(ctx, gameID, func(t *tx) error {
		g := t.g
		if err := authorizeHost(g, host); err != nil {
			return err
		}
		if g.Status != domain.StatusWaiting {
			return domain.ErrGameStarted
		}
		if g.ActivePlayerCount() == 0 {
			return domain.ErrNoPlayers
		}
		g.Status = domain.StatusActive
		started := t.now
		g.StartedAt = &started
		t.toGame(EventGameStarted, GameStartedEvent{GameID: g.ID, TotalQuestions: len(g.Items), GameMode: g.Mode})
		if err := s.openItem(t, 0, false); err != nil {
			return err
		}
		rec := domain.RecordOf(g)
		t.afterCommit(func() {
			s.metrics.Incr(ctx, MetricGamesStarted)
			s.recorder.Game(rec)
			log.Printf("game started game=%s players=%d", g.ID, g.ActivePlayerCount())
		})
		return nil
	})
	if err != nil {
		return domain.GameView{}, err
	}
	return g.View(), nil
}

// Advance is the outcome of next-question.
type Advance struct {
	QuestionIndex int
	Ended         bool
	Final         *domain.FinalResults
}

// NextQuestion locks the current item if needed and opens the next one, or
// ends the game after the last. A non-nil fromIndex must match the current
// index. Without one, an item the automatic advance opened less than
// AdvanceGuard ago is kept: the host's request was meant for the previous item.
func (s *GameService) NextQuestion(ctx context.Context, gameID string, host Host, fromIndex *int) (Advance, error) {
	var out Advance
	_, err := s.mutate(ctx, gameID, func(t *tx) error {
		g := t.g
		if err := authorizeHost(g, host); err != nil {
			return err
		}
		if err := requireActive(g); err != nil {
			return err
		}
		if fromIndex != nil && *fromIndex != g.CurrentItemIndex {
			return domain.ErrStaleAdvance
		}
		if fromIndex == nil && s.justAutoOpened(g, t.now) {
			return domain.ErrStaleAdvance
		}
		var err error
		out, err = s.advance(t, domain.EndReasonCompleted, false)
		return err
	})
	return out, err
}

func (s *GameService) justAutoOpened(g *domain.GameSession, now time.Time) bool {
	return g.AutoAdvance && g.Item.AutoOpened && g.Item.State == domain.ItemOpen &&
		now.Sub(g.Item.StartedAt) < s.opts.AdvanceGuard
}

func requireActive(g *domain.GameSession) error {
	switch g.Status {
	case domain.StatusActive:
		return nil
	case domain.StatusPaused:
		return domain.ErrGamePaused
	case domain.StatusEnded:
		return domain.ErrGameEnded
	default:
		return domain.ErrGameNotActive
	}
}

func (s *GameService) advance(t *tx, endReason string, auto bool) (Advance, error) {
	g := t.g
	if g.Item.State == domain.ItemOpen {
		if err := s.lockItem(t, ReasonHost); err != nil {
			return Advance{}, err
		}
	}
	next := g.CurrentItemIndex + 1
	if next >= len(g.Items) {
		final, err := s.endGame(t, endReason)
		if err != nil {
			return Advance{}, err
		}
		return Advance{QuestionIndex: g.CurrentItemIndex, Ended: true, Final: &final}, nil
	}
	if err := s.openItem(t, next, auto); err != nil {
		return Advance{}, err
	}
	return Advance{QuestionIndex: next}, nil
}

// openItem arms and opens item index, resets answer flags and schedules the countdown.
func (s *GameService) openItem(t *tx, index int, auto bool) error {
	g := t.g
	if err := g.Item.Transition(domain.ItemArmed); err != nil {
		return err
	}
	g.CurrentItemIndex = index
	g.Item.Index = index
	g.LastResults = nil
	for _, p := range g.Players {
		p.HasAnsweredCurrent = false
	}
	item := g.Items[index]
	limit := item.TimeLimitDuration()
	if err := g.Item.Open(t.now, limit); err != nil {
		return err
	}
	g.Item.AutoOpened = auto

	view := item.PublicView()
	if g.Mode == domain.ModeDualScreen {
		t.toHost(EventQuestionDataHost, QuestionEvent{QuestionIndex: index, Question: view, TotalQuestions: len(g.Items)})
		t.toGame(EventAnswerOptionsOnly, AnswerOptionsEvent{
			QuestionIndex:  index,
			QuestionType:   item.QuestionType,
			ItemType:       item.Type,
			Options:        item.AnswerShapes(),
			TimeLimit:      item.TimeLimit,
			IsDoublePoints: item.IsDoublePoints,
			TotalQuestions: len(g.Items),
		})
	} else {
		t.toGame(EventQuestionData, QuestionEvent{QuestionIndex: index, Question: view, TotalQuestions: len(g.Items)})
	}

	seq := g.Item.Seq
	gameID := g.ID
	t.afterCommit(func() {
		s.timers.cancel(gameID, timerAdvance)
		s.scheduleCountdown(gameID, seq, limit)
		log.Printf("item opened game=%s index=%d type=%s limit=%s", gameID, index, item.Type, limit)
	})
	return nil
}

func (s *GameService) scheduleCountdown(gameID string, seq uint64, limit time.Duration) {
	if limit <= 0 {
		s.timers.cancel(gameID, timerDeadline, timerTick)
		return
	}
	s.timers.schedule(gameID, timerDeadline, limit, func() { s.onDeadline(gameID, seq) })
	s.timers.schedule(gameID, timerTick, s.opts.TickInterval, func() { s.onTick(gameID, seq) })
}

// lockItem closes the open item: missed players lose their streak, the
// buffered answers are drained into analytics and handed to the recorder.
func (s *GameService) lockItem(t *tx, reason string) error {
	g := t.g
	if err := g.Item.Transition(domain.ItemLocked); err != nil {
		return err
	}
	g.Item.Deadline = nil
	g.Item.Remaining = 0
	item, _ := g.CurrentItem()
	index := g.CurrentItemIndex

	var answers []domain.AnswerEvent
	if item.Scored() {
		for _, p := range g.OrderedPlayers() {
			if !p.HasAnsweredCurrent {
				p.ApplyTimeout()
			}
		}
		drained, err := s.answers.Drain(t.ctx, g.ID, index)
		if err != nil {
			log.Printf("drain answers game=%s index=%d: %v", g.ID, index, err)
		}
		answers = append(drained, t.takePending(index)...)
	}
	analytics := questionAnalytics(g.ID, index, item, answers, t.now)
	g.LastResults = &analytics

	t.toGame(EventTimerEnded, TimerEndedEvent{QuestionIndex: index, Reason: reason})

	gameID := g.ID
	scored := item.Scored()
	t.afterCommit(func() {
		s.timers.cancel(gameID, timerDeadline, timerTick)
		if scored {
			s.recorder.Answers(answers)
			s.recorder.Analytics(analytics)
		}
	})

	if g.AutoAdvance && g.Status == domain.StatusActive && !t.ending {
		if scored {
			if err := s.revealItem(t); err != nil {
				return err
			}
		}
		s.scheduleAutoAdvance(t)
	}
	return nil
}

func (s *GameService) scheduleAutoAdvance(t *tx) {
	gameID := t.g.ID
	seq := t.g.Item.Seq
	t.afterCommit(func() {
		s.timers.schedule(gameID, timerAdvance, s.opts.AutoAdvanceDelay, func() { s.onAutoAdvance(gameID, seq) })
	})
}

func (s *GameService) revealItem(t *tx) error {
	g := t.g
	if err := g.Item.Transition(domain.ItemRevealed); err != nil {
		return err
	}
	t.toGame(EventQuestionResults, s.results(g))
	return nil
}

func (s *GameService) results(g *domain.GameSession) domain.QuestionResults {
	res := domain.QuestionResults{Leaderboard: domain.RankPlayers(g.OrderedPlayers(), s.opts.ResultsSize)}
	if g.LastResults != nil {
		res.QuestionAnalytics = *g.LastResults
	} else {
		res.QuestionAnalytics = domain.QuestionAnalytics{GameID: g.ID, QuestionIndex: g.CurrentItemIndex, AnswerDistribution: map[string]int{}}
	}
	return res
}

// ShowResults reveals the current item, locking it first when still open.
// Repeating it after the reveal re-sends the same results.
func (s *GameService) ShowResults(ctx context.Context, gameID string, host Host) (domain.QuestionResults, error) {
	var out domain.QuestionResults
	_, err := s.mutate(ctx, gameID, func(t *tx) error {
		g := t.g
		if err := authorizeHost(g, host); err != nil {
			return err
		}
		if err := requireActive(g); err != nil {
			return err
		}
		switch g.Item.State {
		case domain.ItemOpen:
			if err := s.lockItem(t, ReasonHost); err != nil {
				return err
			}
			if g.Item.State == domain.ItemLocked {
				if err := s.revealItem(t); err != nil {
					return err
				}
			}
		case domain.ItemLocked:
			if err := s.revealItem(t); err != nil {
				return err
			}
		case domain.ItemRevealed:
			t.toGame(EventQuestionResults, s.results(g))
		default:
			return domain.ErrNoActiveQuestion
		}
		out = s.results(g)
		return nil
	})
	return out, err
}

// EndGame ends the game on host request.
func (s *GameService) EndGame(ctx context.Context, gameID string, host Host) (domain.FinalResults, error) {
	var out domain.FinalResults
	_, err := s.mutate(ctx, gameID, func(t *tx) error {
		if err := authorizeHost(t.g, host); err != nil {
			return err
		}
		if t.g.Status == domain.StatusEnded {
			return domain.ErrGameEnded
		}
		var err error
		out, err = s.endGame(t, domain.EndReasonHostEnded)
		return err
	})
	return out, err
}

// endGame freezes the game, broadcasts final results and schedules cleanup.
func (s *GameService) endGame(t *tx, reason string) (domain.FinalResults, error) {
	g := t.g
	t.ending = true
	if g.Item.State == domain.ItemOpen {
		if err := s.lockItem(t, reason); err != nil {
			return domain.FinalResults{}, err
		}
	}
	if err := g.Item.Transition(domain.ItemEnded); err != nil {
		return domain.FinalResults{}, err
	}
	g.Status = domain.StatusEnded
	ended := t.now
	g.EndedAt = &ended
	g.EndReason = reason

	final := domain.FinalResults{
		GameID:         g.ID,
		TotalPlayers:   g.ActivePlayerCount(),
		TotalQuestions: len(g.Items),
		Leaderboard:    domain.RankPlayers(g.OrderedPlayers(), s.opts.FinalResultsSize),
		GameMode:       g.Mode,
		Reason:         reason,
	}
	if g.StartedAt != nil {
		final.DurationMs = ended.Sub(*g.StartedAt).Milliseconds()
	}
	t.toGame(EventGameEnded, GameEndedEvent{GameID: g.ID, Reason: reason, FinalResults: final, Leaderboard: final.Leaderboard})

	rec := domain.RecordOf(g)
	players := make([]domain.PlayerRecord, 0, len(g.Players))
	for _, p := range g.OrderedPlayers() {
		players = append(players, *p)
	}
	gameID := g.ID
	t.afterCommit(func() {
		s.timers.cancelAll(gameID)
		s.timers.schedule(gameID, timerCleanup, s.opts.CleanupDelay, func() { s.cleanup(gameID) })
		s.recorder.Game(rec)
		s.recorder.Players(gameID, players)
		s.metrics.Incr(t.ctx, MetricGamesCompleted)
		log.Printf("game ended game=%s reason=%s players=%d", gameID, reason, final.TotalPlayers)
	})
	return final, nil
}

// PauseGame freezes the countdown of the open item.
func (s *GameService) PauseGame(ctx context.Context, gameID string, host Host) error {
	_, err := s.mutate(ctx, gameID, func(t *tx) error {
		g := t.g
		if err := authorizeHost(g, host); err != nil {
			return err
		}
		if g.Status != domain.StatusActive {
			return domain.ErrGameNotActive
		}
		g.Status = domain.StatusPaused
		g.Item.Pause(t.now)
		t.toGame(EventGamePaused, NoticeEvent{
			Message:          "Game has been paused by the host",
			SecondsRemaining: g.Item.SecondsRemaining(t.now),
		})
		t.afterCommit(func() {
			s.timers.cancel(gameID, timerDeadline, timerTick, timerAdvance)
		})
		return nil
	})
	return err
}

// ResumeGame restores the frozen countdown.
func (s *GameService) ResumeGame(ctx context.Context, gameID string, host Host) error {
	_, err := s.mutate(ctx, gameID, func(t *tx) error {
		g := t.g
		if err := authorizeHost(g, host); err != nil {
			return err
		}
		if g.Status != domain.StatusPaused {
			return domain.ErrGameNotPaused
		}
		g.Status = domain.StatusActive
		item, _ := g.CurrentItem()
		limit := item.TimeLimitDuration()
		remaining := g.Item.Remaining
		g.Item.Resume(t.now, limit)
		t.toGame(EventGameResumed, NoticeEvent{
			Message:          "Game has been resumed",
			SecondsRemaining: g.Item.SecondsRemaining(t.now),
		})

		seq := g.Item.Seq
		switch {
		case g.Item.State == domain.ItemOpen && g.Item.Deadline != nil:
			t.afterCommit(func() {
				s.timers.schedule(gameID, timerDeadline, remaining, func() { s.onDeadline(gameID, seq) })
				s.timers.schedule(gameID, timerTick, s.opts.TickInterval, func() { s.onTick(gameID, seq) })
			})
		case g.AutoAdvance && (g.Item.State == domain.ItemLocked || g.Item.State == domain.ItemRevealed):
			s.scheduleAutoAdvance(t)
		}
		return nil
	})
	return err
}

// onDeadline locks the item whose countdown ran out, unless it moved on.
func (s *GameService) onDeadline(gameID string, seq uint64) {
	ctx := context.Background()
	_, err := s.mutate(ctx, gameID, func(t *tx) error {
		g := t.g
		if g.Status != domain.StatusActive || g.Item.Seq != seq || g.Item.State != domain.ItemOpen {
			return errNoChange
		}
		return s.lockItem(t, ReasonTimeout)
	})
	if err != nil && domain.KindOf(err) != domain.KindNotFound {
		log.Printf("deadline game=%s: %v", gameID, err)
	}
}

// onTick sends timer-update and reschedules itself while the item is open.
func (s *GameService) onTick(gameID string, seq uint64) {
	ctx := context.Background()
	unlock := s.locks.lock(gameID)
	defer unlock()

	g, err := s.sessions.Get(ctx, gameID)
	if err != nil {
		return
	}
	if g.Status != domain.StatusActive || g.Item.Seq != seq || g.Item.State != domain.ItemOpen {
		return
	}
	left := g.Item.SecondsRemaining(s.now())
	s.events.ToGame(gameID, EventTimerUpdate, TimerUpdateEvent{QuestionIndex: g.CurrentItemIndex, SecondsRemaining: left})
	if left > 0 {
		s.timers.schedule(gameID, timerTick, s.opts.TickInterval, func() { s.onTick(gameID, seq) })
	}
}

// onAutoAdvance moves a fully automatic game on after the results pause.
func (s *GameService) onAutoAdvance(gameID string, seq uint64) {
	ctx := context.Background()
	_, err := s.mutate(ctx, gameID, func(t *tx) error {
		g := t.g
		if g.Status != domain.StatusActive || g.Item.Seq != seq {
			return errNoChange
		}
		_, err := s.advance(t, domain.EndReasonCompleted, true)
		return err
	})
	if err != nil && domain.KindOf(err) != domain.KindNotFound {
		log.Printf("auto advance game=%s: %v", gameID, err)
	}
}

// cleanup drops every trace of an ended game from the live stores.
func (s *GameService) cleanup(gameID string) {
	ctx := context.Background()
	unlock := s.locks.lock(gameID)
	defer unlock()
	s.timers.cancelAll(gameID)

	g, err := s.sessions.Get(ctx, gameID)
	if err != nil {
		return
	}
	if err := s.sessions.Delete(ctx, gameID); err != nil {
		log.Printf("cleanup session game=%s: %v", gameID, err)
	}
	if err := s.sessions.ReleasePin(ctx, g.Pin); err != nil {
		log.Printf("cleanup pin game=%s: %v", gameID, err)
	}
	if err := s.leaderboard.Delete(ctx, gameID); err != nil {
		log.Printf("cleanup leaderboard game=%s: %v", gameID, err)
	}
	log.Printf("game cleaned up game=%s", gameID)
}
