package app

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/google/uuid"
	"live-quiz-service/internal/domain"
)

// Options tunes game timing and limits.
type Options struct {
	SessionTTL        time.Duration
	CleanupDelay      time.Duration
	HostGrace         time.Duration
	AutoAdvanceDelay  time.Duration
	AdvanceGuard      time.Duration
	TickInterval      time.Duration
	DefaultMaxPlayers int
	MaxPlayersLimit   int
	PinAttempts       int
	ResultsSize       int
	FinalResultsSize  int
}

// DefaultOptions are used for zero fields.
func DefaultOptions() Options {
	return Options{
		SessionTTL:        2 * time.Hour,
		CleanupDelay:      5 * time.Minute,
		HostGrace:         30 * time.Second,
		AutoAdvanceDelay:  5 * time.Second,
		AdvanceGuard:      3 * time.Second,
		TickInterval:      time.Second,
		DefaultMaxPlayers: 200,
		MaxPlayersLimit:   1000,
		PinAttempts:       10,
		ResultsSize:       10,
		FinalResultsSize:  50,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SessionTTL <= 0 {
		o.SessionTTL = d.SessionTTL
	}
	if o.CleanupDelay <= 0 {
		o.CleanupDelay = d.CleanupDelay
	}
	if o.HostGrace <= 0 {
		o.HostGrace = d.HostGrace
	}
	if o.AutoAdvanceDelay <= 0 {
		o.AutoAdvanceDelay = d.AutoAdvanceDelay
	}
	if o.AdvanceGuard <= 0 {
		o.AdvanceGuard = d.AdvanceGuard
	}
	if o.TickInterval <= 0 {
		o.TickInterval = d.TickInterval
	}
	if o.DefaultMaxPlayers <= 0 {
		o.DefaultMaxPlayers = d.DefaultMaxPlayers
	}
	if o.MaxPlayersLimit <= 0 {
		o.MaxPlayersLimit = d.MaxPlayersLimit
	}
	if o.PinAttempts <= 0 {
		o.PinAttempts = d.PinAttempts
	}
	if o.ResultsSize <= 0 {
		o.ResultsSize = d.ResultsSize
	}
	if o.FinalResultsSize <= 0 {
		o.FinalResultsSize = d.FinalResultsSize
	}
	return o
}

// Option customises a GameService.
type Option func(*GameService)

func WithBroadcaster(b Broadcaster) Option { return func(s *GameService) { s.events = b } }
func WithRecorder(r *Recorder) Option { return func(s *GameService) { s.recorder = r } }
func WithMetrics(m Metrics) Option { return func(s *GameService) { s.metrics = m } }

// WithClock is test-only for deterministic timestamps.
func WithClock(now func() time.Time) Option { return func(s *GameService) { s.now = now } }

// WithPinGenerator replaces the random PIN source.
func WithPinGenerator(gen func() string) Option { return func(s *GameService) { s.newPin = gen } }

// GameService runs live games. Every mutation of a game is serialised on a
// per-game lock and written back to the session store before its events go out.
type GameService struct {
	sessions    SessionRepository
	leaderboard LeaderboardIndex
	answers     AnswerAggregator
	quizzes     QuizRepository
	recorder    *Recorder
	events      Broadcaster
	metrics     Metrics
	opts        Options
	locks       *gameLocks
	timers      *timerRegistry
	now         func() time.Time
	newID       func() string
	newPin      func() string
}

func NewGameService(sessions SessionRepository, leaderboard LeaderboardIndex, answers AnswerAggregator, quizzes QuizRepository, opts Options, options ...Option) *GameService {
	s := &GameService{
		sessions:    sessions,
		leaderboard: leaderboard,
		answers:     answers,
		quizzes:     quizzes,
		events:      nopBroadcaster{},
		metrics:     nopMetrics{},
		opts:        opts.withDefaults(),
		locks:       newGameLocks(),
		timers:      newTimerRegistry(),
		now:         time.Now,
		newID:       uuid.NewString,
		newPin:      randomPin,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Close cancels every scheduled game timer.
func (s *GameService) Close() {
	s.timers.stop()
}

func randomPin() string {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		panic(fmt.Sprintf("pin entropy: %v", err))
	}
	return fmt.Sprintf("%06d", 100000+n.Int64())
}

// Host identifies the caller of a host-only action: the live host connection
// or the host token handed out at creation.
type Host struct {
	ConnID string
	Token  string
}

func authorizeHost(g *domain.GameSession, h Host) error {
	if h.ConnID != "" && h.ConnID == g.HostConnID {
		return nil
	}
	if h.Token != "" && subtle.ConstantTimeCompare([]byte(h.Token), []byte(g.HostToken)) == 1 {
		return nil
	}
	return domain.ErrNotHost
}

type roomKind int

const (
	roomGame roomKind = iota
	roomHost
	roomPlayer
)

type outEvent struct {
	room    roomKind
	target  string
	name    string
	payload any
}

// tx is one serialised mutation. Events and side effects queued on it run
// only after the session was written back.
type tx struct {
	ctx    context.Context
	g      *domain.GameSession
	now    time.Time
	events []outEvent
	after  []func()
	ending bool

	// answers scored in this mutation and not yet in the aggregator
	pending []domain.AnswerEvent
}

func (t *tx) toGame(name string, payload any) {
	t.events = append(t.events, outEvent{room: roomGame, target: t.g.ID, name: name, payload: payload})
}

func (t *tx) toHost(name string, payload any) {
	t.events = append(t.events, outEvent{room: roomHost, target: t.g.ID, name: name, payload: payload})
}

func (t *tx) toPlayer(playerID, name string, payload any) {
	t.events = append(t.events, outEvent{room: roomPlayer, target: playerID, name: name, payload: payload})
}

func (t *tx) afterCommit(fn func()) {
	t.after = append(t.after, fn)
}

// takePending hands over the answers for index that were scored in this
// mutation, so a lock in the same mutation sees them.
func (t *tx) takePending(index int) []domain.AnswerEvent {
	var out, rest []domain.AnswerEvent
	for _, ev := range t.pending {
		if ev.QuestionIndex == index {
			out = append(out, ev)
		} else {
			rest = append(rest, ev)
		}
	}
	t.pending = rest
	return out
}

// errNoChange aborts a mutation without writing or emitting anything.
var errNoChange = errors.New("no change")

func (s *GameService) mutate(ctx context.Context, gameID string, fn func(t *tx) error) (*domain.GameSession, error) {
	unlock := s.locks.lock(gameID)
	defer unlock()

	g, err := s.sessions.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}
	t := &tx{ctx: ctx, g: g, now: s.now()}
	if err := fn(t); err != nil {
		if errors.Is(err, errNoChange) {
			return g, nil
		}
		return nil, err
	}
	if err := s.sessions.Put(ctx, g, s.ttlFor(g)); err != nil {
		return nil, err
	}
	s.flush(t)
	return g, nil
}

func (s *GameService) flush(t *tx) {
	for _, ev := range t.events {
		switch ev.room {
		case roomGame:
			s.events.ToGame(ev.target, ev.name, ev.payload)
		case roomHost:
			s.events.ToHost(ev.target, ev.name, ev.payload)
		case roomPlayer:
			s.events.ToPlayer(ev.target, ev.name, ev.payload)
		}
	}
	for _, fn := range t.after {
		fn()
	}
}

func (s *GameService) ttlFor(g *domain.GameSession) time.Duration {
	if g.Status == domain.StatusEnded {
		return s.opts.CleanupDelay + time.Minute
	}
	return s.opts.SessionTTL
}

// CreateGameInput are the host's choices for a new game.
type CreateGameInput struct {
	QuizID      string
	Mode        domain.GameMode
	MaxPlayers  int
	AutoAdvance bool
}

// CreatedGame is returned once to the host.
type CreatedGame struct {
	Game      domain.GameView
	HostToken string
}

// CreateGame snapshots the quiz and opens a lobby under a fresh PIN.
func (s *GameService) CreateGame(ctx context.Context, in CreateGameInput, hostConnID string) (CreatedGame, error) {
	if in.QuizID == "" {
		return CreatedGame{}, domain.ErrQuizIDRequired
	}
	mode := in.Mode
	if mode == "" {
		mode = domain.ModeDualScreen
	}
	if !mode.Valid() {
		return CreatedGame{}, domain.ErrInvalidGameMode
	}
	maxPlayers := in.MaxPlayers
	if maxPlayers == 0 {
		maxPlayers = s.opts.DefaultMaxPlayers
	}
	if maxPlayers < 1 || maxPlayers > s.opts.MaxPlayersLimit {
		return CreatedGame{}, domain.ErrInvalidMaxPlayers
	}

	quiz, err := s.quizzes.GetQuiz(ctx, in.QuizID)
	if err != nil {
		return CreatedGame{}, err
	}
	if len(quiz.Items) == 0 {
		return CreatedGame{}, domain.ErrQuizEmpty
	}

	gameID := s.newID()
	pin, err := s.reservePin(ctx, gameID)
	if err != nil {
		return CreatedGame{}, err
	}

	now := s.now()
	g := &domain.GameSession{
		ID:               gameID,
		Pin:              pin,
		QuizID:           quiz.ID,
		QuizTitle:        quiz.Title,
		QuizBackground:   quiz.Background,
		Status:           domain.StatusWaiting,
		Mode:             mode,
		AutoAdvance:      in.AutoAdvance,
		MaxPlayers:       maxPlayers,
		Items:            snapshotItems(quiz.Items),
		CurrentItemIndex: -1,
		Item:             domain.ItemProgress{Index: -1, State: domain.ItemIdle},
		Players:          make(map[string]*domain.PlayerRecord),
		PlayerOrder:      []string{},
		HostConnID:       hostConnID,
		HostToken:        s.newID(),
		CreatedAt:        now,
	}

	unlock := s.locks.lock(gameID)
	err = s.sessions.Put(ctx, g, s.opts.SessionTTL)
	unlock()
	if err != nil {
		if relErr := s.sessions.ReleasePin(ctx, pin); relErr != nil {
			log.Printf("release pin %s: %v", pin, relErr)
		}
		return CreatedGame{}, err
	}

	s.metrics.Incr(ctx, MetricGamesCreated)
	s.recorder.Game(domain.RecordOf(g))
	log.Printf("game created game=%s pin=%s quiz=%s mode=%s", g.ID, g.Pin, g.QuizID, g.Mode)
	return CreatedGame{Game: g.View(), HostToken: g.HostToken}, nil
}

func (s *GameService) reservePin(ctx context.Context, gameID string) (string, error) {
	for attempt := 1; attempt <= s.opts.PinAttempts; attempt++ {
		pin := s.newPin()
		ok, err := s.sessions.ReservePin(ctx, pin, gameID, s.opts.SessionTTL)
		if err != nil {
			return "", err
		}
		if ok {
			return pin, nil
		}
		log.Printf("pin collision pin=%s attempt=%d", pin, attempt)
	}
	return "", domain.ErrPinExhausted
}

func snapshotItems(items []domain.QuizItem) []domain.QuizItem {
	out := make([]domain.QuizItem, len(items))
	for i, item := range items {
		item.Options = append([]domain.Option(nil), item.Options...)
		out[i] = item
	}
	return out
}

// JoinGame resolves a PIN to a game that still accepts players.
func (s *GameService) JoinGame(ctx context.Context, pin string) (domain.GameView, error) {
	if !domain.ValidPin(pin) {
		return domain.GameView{}, domain.ErrInvalidPin
	}
	gameID, err := s.sessions.ResolvePin(ctx, pin)
	if err != nil {
		return domain.GameView{}, err
	}
	g, err := s.sessions.Get(ctx, gameID)
	if err != nil {
		return domain.GameView{}, err
	}
	if g.Status == domain.StatusEnded {
		return domain.GameView{}, domain.ErrGameNotJoinable
	}
	if g.ActivePlayerCount() >= g.MaxPlayers {
		return domain.GameView{}, domain.ErrGameFull
	}
	return g.View(), nil
}

// PlayerJoin is the result of naming a player.
type PlayerJoin struct {
	GameID       string
	PlayerID     string
	PlayerName   string
	TotalPlayers int
}

// SetPlayerName creates the player on first call and renames it afterwards.
func (s *GameService) SetPlayerName(ctx context.Context, gameID, playerID, connID, name string) (PlayerJoin, error) {
	nickname, err := domain.NormalizeNickname(name)
	if err != nil {
		return PlayerJoin{}, err
	}

	var out PlayerJoin
	_, err = s.mutate(ctx, gameID, func(t *tx) error {
		g := t.g
		if g.Status == domain.StatusEnded {
			return domain.ErrGameEnded
		}
		if playerID != "" {
			if _, ok := g.Players[playerID]; ok {
				p, err := s.renamePlayer(t, playerID, nickname)
				if err != nil {
					return err
				}
				out = PlayerJoin{GameID: g.ID, PlayerID: p.ID, PlayerName: p.Nickname, TotalPlayers: g.ActivePlayerCount()}
				return nil
			}
		}
		if g.ActivePlayerCount() >= g.MaxPlayers {
			return domain.ErrGameFull
		}
		if g.NicknameTaken(nickname, "") {
			return domain.ErrNameTaken
		}

		p := &domain.PlayerRecord{
			ID:           s.newID(),
			Nickname:     nickname,
			ConnectionID: connID,
			ScoreSeq:     g.NextScoreSeq(),
			JoinedAt:     t.now,
			LastActivity: t.now,
		}
		g.Players[p.ID] = p
		g.PlayerOrder = append(g.PlayerOrder, p.ID)

		total := g.ActivePlayerCount()
		t.toGame(EventPlayerJoined, PlayerJoinedEvent{
			PlayerID:     p.ID,
			PlayerName:   p.Nickname,
			TotalPlayers: total,
			Players:      g.PlayerSummaries(),
		})
		rank := domain.RankedScore{PlayerID: p.ID, Nickname: p.Nickname, Score: p.Score, Seq: p.ScoreSeq}
		t.afterCommit(func() {
			if err := s.sessions.PutPlayerRef(ctx, p.ID, g.ID, s.opts.SessionTTL); err != nil {
				log.Printf("player ref game=%s player=%s: %v", g.ID, p.ID, err)
			}
			s.upsertScore(ctx, g.ID, rank)
			s.metrics.Incr(ctx, MetricPlayersJoined)
			log.Printf("player joined game=%s player=%s name=%q", g.ID, p.ID, p.Nickname)
		})
		out = PlayerJoin{GameID: g.ID, PlayerID: p.ID, PlayerName: p.Nickname, TotalPlayers: total}
		return nil
	})
	return out, err
}

func (s *GameService) renamePlayer(t *tx, playerID, nickname string) (*domain.PlayerRecord, error) {
	g := t.g
	p, ok := g.Players[playerID]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	if p.Removed {
		return nil, domain.ErrPlayerRemoved
	}
	if g.NicknameTaken(nickname, p.ID) {
		return nil, domain.ErrNameTaken
	}
	p.Nickname = nickname
	p.LastActivity = t.now
	t.toGame(EventPlayerJoined, PlayerJoinedEvent{
		PlayerID:     p.ID,
		PlayerName:   p.Nickname,
		TotalPlayers: g.ActivePlayerCount(),
		Players:      g.PlayerSummaries(),
	})
	rank := domain.RankedScore{PlayerID: p.ID, Nickname: p.Nickname, Score: p.Score, Seq: p.ScoreSeq}
	t.afterCommit(func() { s.upsertScore(t.ctx, g.ID, rank) })
	return p, nil
}

// GetPlayer returns a player by id together with its game id.
func (s *GameService) GetPlayer(ctx context.Context, playerID string) (domain.PlayerRecord, string, error) {
	if playerID == "" {
		return domain.PlayerRecord{}, "", domain.ErrPlayerIDRequired
	}
	gameID, err := s.sessions.ResolvePlayer(ctx, playerID)
	if err != nil {
		return domain.PlayerRecord{}, "", err
	}
	g, err := s.sessions.Get(ctx, gameID)
	if err != nil {
		return domain.PlayerRecord{}, "", err
	}
	p, ok := g.Players[playerID]
	if !ok || p.Removed {
		return domain.PlayerRecord{}, "", domain.ErrPlayerNotFound
	}
	return *p, gameID, nil
}

// UpdatePlayer renames a player outside of a live connection.
func (s *GameService) UpdatePlayer(ctx context.Context, playerID, name string) (domain.PlayerRecord, error) {
	nickname, err := domain.NormalizeNickname(name)
	if err != nil {
		return domain.PlayerRecord{}, err
	}
	gameID, err := s.sessions.ResolvePlayer(ctx, playerID)
	if err != nil {
		return domain.PlayerRecord{}, err
	}
	var out domain.PlayerRecord
	_, err = s.mutate(ctx, gameID, func(t *tx) error {
		if t.g.Status == domain.StatusEnded {
			return domain.ErrGameEnded
		}
		p, err := s.renamePlayer(t, playerID, nickname)
		if err != nil {
			return err
		}
		out = *p
		return nil
	})
	return out, err
}

// PlayerReady toggles the lobby ready flag and tells the host.
func (s *GameService) PlayerReady(ctx context.Context, gameID, playerID string, ready bool) error {
	_, err := s.mutate(ctx, gameID, func(t *tx) error {
		p, err := livePlayer(t.g, playerID)
		if err != nil {
			return err
		}
		p.Ready = ready
		p.LastActivity = t.now
		readyCount := 0
		for _, other := range t.g.OrderedPlayers() {
			if other.Ready {
				readyCount++
			}
		}
		t.toHost(EventPlayerReady, PlayerReadyEvent{
			PlayerID:     p.ID,
			PlayerName:   p.Nickname,
			IsReady:      ready,
			ReadyCount:   readyCount,
			TotalPlayers: t.g.ActivePlayerCount(),
		})
		return nil
	})
	return err
}

func livePlayer(g *domain.GameSession, playerID string) (*domain.PlayerRecord, error) {
	if playerID == "" {
		return nil, domain.ErrNotInGame
	}
	p, ok := g.Players[playerID]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	if p.Removed {
		return nil, domain.ErrPlayerRemoved
	}
	return p, nil
}

// AnswerInput is one submission. A nil ResponseTime is measured server side.
type AnswerInput struct {
	Selected     []int
	ResponseTime *time.Duration
}

// AnswerResult is acknowledged to the submitting player.
type AnswerResult struct {
	QuestionIndex  int   `json:"questionIndex"`
	IsCorrect      bool  `json:"isCorrect"`
	Points         int   `json:"points"`
	TotalScore     int   `json:"totalScore"`
	Streak         int   `json:"streak"`
	ResponseTimeMs int64 `json:"responseTimeMs"`
}

// SubmitAnswer scores the first valid submission of a player for the open
// question. The arrival time is taken before waiting for the game lock so an
// answer that lost the race against the lock is rejected.
func (s *GameService) SubmitAnswer(ctx context.Context, gameID, playerID string, in AnswerInput) (AnswerResult, error) {
	arrived := s.now()
	var out AnswerResult
	_, err := s.mutate(ctx, gameID, func(t *tx) error {
		g := t.g
		switch g.Status {
		case domain.StatusEnded:
			return domain.ErrGameEnded
		case domain.StatusPaused:
			return domain.ErrGamePaused
		case domain.StatusWaiting:
			return domain.ErrGameNotActive
		}
		p, err := livePlayer(g, playerID)
		if err != nil {
			return err
		}
		item, ok := g.CurrentItem()
		if !ok || !item.Scored() {
			return domain.ErrNoActiveQuestion
		}
		switch g.Item.State {
		case domain.ItemOpen:
		case domain.ItemLocked, domain.ItemRevealed:
			return domain.ErrQuestionClosed
		default:
			return domain.ErrNoActiveQuestion
		}
		if p.HasAnsweredCurrent {
			return domain.ErrAlreadyAnswered
		}
		if !g.Item.AcceptsAnswers(arrived) {
			return domain.ErrQuestionClosed
		}
		correct, err := domain.EvaluateSelection(item, in.Selected)
		if err != nil {
			return err
		}

		rt := arrived.Sub(g.Item.StartedAt)
		if in.ResponseTime != nil {
			rt = *in.ResponseTime
		}
		if rt < 0 {
			rt = 0
		}
		score := domain.ScoreAnswer(item, correct, rt, p.CurrentStreak)
		var seq uint64
		if score.Points > 0 {
			seq = g.NextScoreSeq()
		}
		p.ApplyScore(score, seq)
		p.LastActivity = t.now

		ev := domain.AnswerEvent{
			GameID:         g.ID,
			PlayerID:       p.ID,
			Nickname:       p.Nickname,
			QuestionIndex:  g.CurrentItemIndex,
			Selected:       append([]int(nil), in.Selected...),
			ResponseTimeMs: rt.Milliseconds(),
			IsCorrect:      correct,
			PointsEarned:   score.Points,
			SubmittedAt:    arrived,
		}
		out = AnswerResult{
			QuestionIndex:  g.CurrentItemIndex,
			IsCorrect:      correct,
			Points:         score.Points,
			TotalScore:     p.Score,
			Streak:         p.CurrentStreak,
			ResponseTimeMs: ev.ResponseTimeMs,
		}

		t.toPlayer(p.ID, EventAnswerSubmitted, out)
		t.toHost(EventPlayerAnswered, PlayerAnsweredEvent{
			PlayerID:       p.ID,
			PlayerName:     p.Nickname,
			AnswerIndex:    ev.Selected,
			IsCorrect:      correct,
			Points:         score.Points,
			ResponseTimeMs: ev.ResponseTimeMs,
			TotalAnswered:  g.AnsweredCount(),
			TotalPlayers:   g.ActivePlayerCount(),
		})

		rank := domain.RankedScore{PlayerID: p.ID, Nickname: p.Nickname, Score: p.Score, Seq: p.ScoreSeq}
		t.pending = append(t.pending, ev)
		t.afterCommit(func() {
			// empty when a lock in this mutation already took the answer
			for _, ev := range t.pending {
				if err := s.answers.Append(ctx, ev.GameID, ev.QuestionIndex, ev); err != nil {
					log.Printf("buffer answer game=%s player=%s: %v", ev.GameID, ev.PlayerID, err)
				}
			}
			t.pending = nil
			s.upsertScore(ctx, g.ID, rank)
			s.metrics.Incr(ctx, MetricAnswersSubmitted)
			if correct {
				s.metrics.Incr(ctx, MetricCorrectAnswers)
			}
		})

		if g.AllPresentAnswered() {
			return s.lockItem(t, ReasonAllAnswered)
		}
		return nil
	})
	return out, err
}

func (s *GameService) upsertScore(ctx context.Context, gameID string, rank domain.RankedScore) {
	if err := s.leaderboard.Upsert(ctx, gameID, rank, s.opts.SessionTTL); err != nil {
		log.Printf("leaderboard upsert game=%s player=%s: %v", gameID, rank.PlayerID, err)
	}
}

// GetGame returns the public view of a game.
func (s *GameService) GetGame(ctx context.Context, gameID string) (domain.GameView, error) {
	g, err := s.sessions.Get(ctx, gameID)
	if err != nil {
		return domain.GameView{}, err
	}
	return g.View(), nil
}

// GetGameByPin resolves a PIN without joining.
func (s *GameService) GetGameByPin(ctx context.Context, pin string) (domain.GameView, error) {
	if !domain.ValidPin(pin) {
		return domain.GameView{}, domain.ErrInvalidPin
	}
	gameID, err := s.sessions.ResolvePin(ctx, pin)
	if err != nil {
		return domain.GameView{}, err
	}
	return s.GetGame(ctx, gameID)
}

// Leaderboard reads the top n from the index, falling back to the session.
func (s *GameService) Leaderboard(ctx context.Context, gameID string, n int) ([]domain.LeaderboardEntry, error) {
	if n <= 0 {
		n = s.opts.ResultsSize
	}
	g, err := s.sessions.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}
	entries, err := s.leaderboard.Top(ctx, gameID, n)
	if err != nil {
		log.Printf("leaderboard read game=%s: %v", gameID, err)
		return domain.RankPlayers(g.OrderedPlayers(), n), nil
	}
	if len(entries) == 0 && g.ActivePlayerCount() > 0 {
		return domain.RankPlayers(g.OrderedPlayers(), n), nil
	}
	return entries, nil
}

// Metrics returns every counter, zero when unset.
func (s *GameService) Metrics(ctx context.Context) (map[string]int64, error) {
	snap, err := s.metrics.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(MetricNames))
	for _, name := range MetricNames {
		out[name] = snap[name]
	}
	return out, nil
}
