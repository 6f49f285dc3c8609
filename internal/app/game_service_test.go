package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentEvent struct {
	room    string
	target  string
	name    string
	payload any
}

// recordingBroadcaster keeps every outbound event for assertions.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []sentEvent
}

func (b *recordingBroadcaster) add(room, target, name string, payload any) {
	b.mu.Lock()
	b.events = append(b.events, sentEvent{room: room, target: target, name: name, payload: payload})
	b.mu.Unlock()
}

func (b *recordingBroadcaster) ToGame(gameID, event string, payload any) {
	b.add("game", gameID, event, payload)
}

func (b *recordingBroadcaster) ToHost(gameID, event string, payload any) {
	b.add("host", gameID, event, payload)
}

func (b *recordingBroadcaster) ToPlayer(playerID, event string, payload any) {
	b.add("player", playerID, event, payload)
}

func (b *recordingBroadcaster) named(name string) []sentEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []sentEvent
	for _, ev := range b.events {
		if ev.name == name {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	svc     *app.GameService
	clock   *testClock
	events  *recordingBroadcaster
	records *memory.RecordStore
	rec     *app.Recorder
	metrics *memory.Metrics
}

func testQuiz() domain.Quiz {
	q := func(id, content string) domain.QuizItem {
		return domain.QuizItem{
			ID:           id,
			Type:         domain.ItemQuestion,
			QuestionType: domain.QuestionMultipleChoice,
			Content:      content,
			Options: []domain.Option{
				{Index: 0, Text: "a"},
				{Index: 1, Text: "b", Correct: true},
				{Index: 2, Text: "c"},
			},
			TimeLimit: 30,
			Points:    1000,
		}
	}
	return domain.Quiz{
		ID:    "quiz-1",
		Title: "Basics",
		Items: []domain.QuizItem{q("q1", "first"), q("q2", "second"), q("q3", "third")},
	}
}

// slideQuiz puts an untimed slide between two questions.
func slideQuiz() domain.Quiz {
	q := testQuiz()
	slide := domain.QuizItem{ID: "s1", Type: domain.ItemSlide, Content: "intermission"}
	q.ID = "slides"
	q.Items = []domain.QuizItem{q.Items[0], slide, q.Items[1]}
	return q
}

func newFixture(t *testing.T, opts app.Options) *fixture {
	t.Helper()
	f := &fixture{
		clock:   newTestClock(),
		events:  &recordingBroadcaster{},
		records: memory.NewRecordStore(),
		metrics: memory.NewMetrics(),
	}
	f.rec = app.NewRecorder(f.records, 64, time.Second)
	quizzes := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{
		"quiz-1": testQuiz(),
		"slides": slideQuiz(),
		"empty":  {ID: "empty"},
	}), time.Minute)
	f.svc = app.NewGameService(
		memory.NewSessionStore(),
		memory.NewLeaderboard(),
		memory.NewAnswerAggregator(5*time.Minute, 1000),
		quizzes,
		opts,
		app.WithBroadcaster(f.events),
		app.WithRecorder(f.rec),
		app.WithMetrics(f.metrics),
		app.WithClock(f.clock.Now),
	)
	t.Cleanup(func() {
		f.svc.Close()
		f.rec.Close()
	})
	return f
}

func (f *fixture) create(t *testing.T, in app.CreateGameInput) app.CreatedGame {
	t.Helper()
	if in.QuizID == "" {
		in.QuizID = "quiz-1"
	}
	created, err := f.svc.CreateGame(context.Background(), in, "host-conn")
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	return created
}

func (f *fixture) join(t *testing.T, gameID, conn, name string) string {
	t.Helper()
	joined, err := f.svc.SetPlayerName(context.Background(), gameID, "", conn, name)
	if err != nil {
		t.Fatalf("join %s: %v", name, err)
	}
	return joined.PlayerID
}

var host = app.Host{ConnID: "host-conn"}

func TestCreateJoinAndNamePlayers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, app.Options{})
	created := f.create(t, app.CreateGameInput{})

	if !domain.ValidPin(created.Game.Pin) {
		t.Fatalf("expected 6 digit pin, got %q", created.Game.Pin)
	}
	if created.HostToken == "" {
		t.Fatalf("expected host token")
	}
	if created.Game.Mode != domain.ModeDualScreen || created.Game.MaxPlayers != 200 {
		t.Fatalf("unexpected defaults: %+v", created.Game)
	}

	view, err := f.svc.JoinGame(ctx, created.Game.Pin)
	if err != nil {
		t.Fatalf("join game: %v", err)
	}
	if view.ID != created.Game.ID {
		t.Fatalf("pin resolved to %s, want %s", view.ID, created.Game.ID)
	}

	alice := f.join(t, view.ID, "c1", "  Alice ")
	if _, err := f.svc.SetPlayerName(ctx, view.ID, "", "c2", "ALICE"); !errors.Is(err, domain.ErrNameTaken) {
		t.Fatalf("expected name taken, got %v", err)
	}
	if _, err := f.svc.SetPlayerName(ctx, view.ID, "", "c2", "   "); !errors.Is(err, domain.ErrInvalidName) {
		t.Fatalf("expected invalid name, got %v", err)
	}

	renamed, err := f.svc.SetPlayerName(ctx, view.ID, alice, "c1", "Alicia")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.PlayerID != alice || renamed.PlayerName != "Alicia" || renamed.TotalPlayers != 1 {
		t.Fatalf("unexpected rename result %+v", renamed)
	}

	p, gameID, err := f.svc.GetPlayer(ctx, alice)
	if err != nil || gameID != view.ID || p.Nickname != "Alicia" {
		t.Fatalf("get player: %+v %s %v", p, gameID, err)
	}
	if got := len(f.events.named(app.EventPlayerJoined)); got != 2 {
		t.Fatalf("expected 2 player-joined events, got %d", got)
	}
}

func TestJoinRejectsBadPinsAndFullGames(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, app.Options{})

	if _, err := f.svc.JoinGame(ctx, "12ab"); !errors.Is(err, domain.ErrInvalidPin) {
		t.Fatalf("expected invalid pin, got %v", err)
	}
	if _, err := f.svc.JoinGame(ctx, "999999"); !errors.Is(err, domain.ErrGameNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	created := f.create(t, app.CreateGameInput{MaxPlayers: 1})
	f.join(t, created.Game.ID, "c1", "Ann")
	if _, err := f.svc.JoinGame(ctx, created.Game.Pin); !errors.Is(err, domain.ErrGameFull) {
		t.Fatalf("expected game full on join, got %v", err)
	}
	if _, err := f.svc.SetPlayerName(ctx, created.Game.ID, "", "c2", "Bob"); !errors.Is(err, domain.ErrGameFull) {
		t.Fatalf("expected game full on name, got %v", err)
	}
}

func TestCreateGameValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, app.Options{})
	cases := []struct {
		in   app.CreateGameInput
		want error
	}{
		{app.CreateGameInput{}, domain.ErrQuizIDRequired},
		{app.CreateGameInput{QuizID: "missing"}, domain.ErrQuizNotFound},
		{app.CreateGameInput{QuizID: "empty"}, domain.ErrQuizEmpty},
		{app.CreateGameInput{QuizID: "quiz-1", Mode: "split"}, domain.ErrInvalidGameMode},
		{app.CreateGameInput{QuizID: "quiz-1", MaxPlayers: 5000}, domain.ErrInvalidMaxPlayers},
	}
	for _, tc := range cases {
		if _, err := f.svc.CreateGame(ctx, tc.in, "h"); !errors.Is(err, tc.want) {
			t.Fatalf("%+v: expected %v, got %v", tc.in, tc.want, err)
		}
	}
}

func TestPinCollisionRetries(t *testing.T) {
	ctx := context.Background()
	pins := []string{"111111", "111111", "222222"}
	var mu sync.Mutex
	next := func() string {
		mu.Lock()
		defer mu.Unlock()
		p := pins[0]
		pins = pins[1:]
		return p
	}
	quizzes := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": testQuiz()}), time.Minute)
	svc := app.NewGameService(memory.NewSessionStore(), memory.NewLeaderboard(), memory.NewAnswerAggregator(time.Minute, 10), quizzes, app.Options{}, app.WithPinGenerator(next))
	defer svc.Close()

	first, err := svc.CreateGame(ctx, app.CreateGameInput{QuizID: "quiz-1"}, "h1")
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := svc.CreateGame(ctx, app.CreateGameInput{QuizID: "quiz-1"}, "h2")
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if first.Game.Pin != "111111" || second.Game.Pin != "222222" {
		t.Fatalf("expected distinct pins, got %s and %s", first.Game.Pin, second.Game.Pin)
	}
}

func TestPinExhausted(t *testing.T) {
	quizzes := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": testQuiz()}), time.Minute)
	svc := app.NewGameService(memory.NewSessionStore(), memory.NewLeaderboard(), memory.NewAnswerAggregator(time.Minute, 10), quizzes,
		app.Options{PinAttempts: 3}, app.WithPinGenerator(func() string { return "123456" }))
	defer svc.Close()

	ctx := context.Background()
	if _, err := svc.CreateGame(ctx, app.CreateGameInput{QuizID: "quiz-1"}, "h1"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.CreateGame(ctx, app.CreateGameInput{QuizID: "quiz-1"}, "h2"); !errors.Is(err, domain.ErrPinExhausted) {
		t.Fatalf("expected pin exhausted, got %v", err)
	}
}

func TestHostOnlyActions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, app.Options{})
	created := f.create(t, app.CreateGameInput{})
	gameID := created.Game.ID
	pid := f.join(t, gameID, "c1", "Ann")

	intruder := app.Host{ConnID: "c1"}
	if _, err := f.svc.StartGame(ctx, gameID, intruder); !errors.Is(err, domain.ErrNotHost) {
		t.Fatalf("expected not host, got %v", err)
	}
	if _, err := f.svc.KickPlayer(ctx, gameID, intruder, pid); !errors.Is(err, domain.ErrNotHost) {
		t.Fatalf("expected not host on kick, got %v", err)
	}
	if _, err := f.svc.StartGame(ctx, gameID, app.Host{Token: "wrong"}); !errors.Is(err, domain.ErrNotHost) {
		t.Fatalf("expected wrong token to fail, got %v", err)
	}

	// the token authorises from any connection
	view, err := f.svc.StartGame(ctx, gameID, app.Host{Token: created.HostToken})
	if err != nil {
		t.Fatalf("start with token: %v", err)
	}
	if view.Status != domain.StatusActive || view.ItemState != domain.ItemOpen || view.CurrentItemIndex != 0 {
		t.Fatalf("unexpected view after start %+v", view)
	}
	if _, err := f.svc.StartGame(ctx, gameID, host); !errors.Is(err, domain.ErrGameStarted) {
		t.Fatalf("expected already started, got %v", err)
	}
	if err := f.svc.PauseGame(ctx, gameID, intruder); !errors.Is(err, domain.ErrNotHost) {
		t.Fatalf("expected not host on pause, got %v", err)
	}
}

func TestStartRequiresPlayers(t *testing.T) {
	f := newFixture(t, app.Options{})
	created := f.create(t, app.CreateGameInput{})
	if _, err := f.svc.StartGame(context.Background(), created.Game.ID, host); !errors.Is(err, domain.ErrNoPlayers) {
		t.Fatalf("expected no players, got %v", err)
	}
}

func TestDualScreenSplitsQuestionContent(t *testing.T) {
	f := newFixture(t, app.Options{})
	created := f.create(t, app.CreateGameInput{Mode: domain.ModeDualScreen})
	f.join(t, created.Game.ID, "c1", "Ann")
	if _, err := f.svc.StartGame(context.Background(), created.Game.ID, host); err != nil {
		t.Fatalf("start: %v", err)
	}

	hostQ := f.events.named(app.EventQuestionDataHost)
	if len(hostQ) != 1 || hostQ[0].room != "host" {
		t.Fatalf("expected host question event, got %+v", hostQ)
	}
	opts := f.events.named(app.EventAnswerOptionsOnly)
	if len(opts) != 1 || opts[0].room != "game" {
		t.Fatalf("expected answer options to the game room, got %+v", opts)
	}
	shapes := opts[0].payload.(app.AnswerOptionsEvent)
	for _, o := range shapes.Options {
		if o.Text != "" {
			t.Fatalf("players must not see option text in dual screen mode: %+v", o)
		}
	}
	if len(f.events.named(app.EventQuestionData)) != 0 {
		t.Fatalf("full question must not be broadcast in dual screen mode")
	}
}

func TestSubmitAnswerScoresOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, app.Options{})
	created := f.create(t, app.CreateGameInput{Mode: domain.ModeNormal})
	gameID := created.Game.ID
	ann := f.join(t, gameID, "c1", "Ann")
	f.join(t, gameID, "c2", "Bob")
	if _, err := f.svc.StartGame(ctx, gameID, host); err != nil {
		t.Fatalf("start: %v", err)
	}

	f.clock.Advance(10 * time.Second)
	res, err := f.svc.SubmitAnswer(ctx, gameID, ann, app.AnswerInput{Selected: []int{1}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.IsCorrect || res.Points != 1333 || res.TotalScore != 1333 || res.Streak != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := f.svc.SubmitAnswer(ctx, gameID, ann, app.AnswerInput{Selected: []int{0}}); !errors.Is(err, domain.ErrAlreadyAnswered) {
		t.Fatalf("expected already answered, got %v", err)
	}
	if _, err := f.svc.SubmitAnswer(ctx, gameID, "ghost", app.AnswerInput{Selected: []int{1}}); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("expected unknown player, got %v", err)
	}

	answered := f.events.named(app.EventPlayerAnswered)
	if len(answered) != 1 || answered[0].room != "host" {
		t.Fatalf("expected one player-answered to host, got %+v", answered)
	}
	ack := f.events.named(app.EventAnswerSubmitted)
	if len(ack) != 1 || ack[0].target != ann {
		t.Fatalf("expected answer-submitted to the player, got %+v", ack)
	}

	lb, err := f.svc.Leaderboard(ctx, gameID, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb) != 2 || lb[0].PlayerID != ann || lb[0].Score != 1333 {
		t.Fatalf("unexpected leaderboard %+v", lb)
	}
}

func TestStreakAcrossQuestions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, app.Options{})
	created := f.create(t, app.CreateGameInput{})
	gameID := created.Game.ID
	ann := f.join(t, gameID, "c1", "Ann")
	if _, err := f.svc.StartGame(ctx, gameID, host); err != nil {
		t.Fatalf("start: %v", err)
	}

	want := []int{1333, 1333, 1433}
	total := 0
	for i, points := range want {
		f.clock.Advance(10 * time.Second)
		res, err := f.svc.SubmitAnswer(ctx, gameID, ann, app.AnswerInput{Selected: []int{1}})
		if err != nil {
			t.Fatalf("question %d: %v", i, err)
		}
		total += points
		if res.Points != points || res.TotalScore != total {
			t.Fatalf("question %d: expected %d/%d, got %+v", i, points, total, res)
		}

		// a lone player answering locks the question
		view, _ := f.svc.GetGame(ctx, gameID)
		if view.ItemState != domain.ItemLocked {
			t.Fatalf("question %d: expected locked, got %s", i, view.ItemState)
		}
		from := i
		adv, err := f.svc.NextQuestion(ctx, gameID, host, &from)
		if err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
		if i == len(want)-1 && !adv.Ended {
			t.Fatalf("expected game to end after last question")
		}
	}

	ended := f.events.named(app.EventGameEnded)
	if len(ended) != 1 {
		t.Fatalf("expected one game-ended, got %d", len(ended))
	}
	final := ended[0].payload.(app.GameEndedEvent)
	if final.Reason != domain.EndReasonCompleted || final.Leaderboard[0].Score != 4099 {
		t.Fatalf("unexpected final results %+v", final)
	}
	timers := f.events.named(app.EventTimerEnded)
	if len(timers) != 3 || timers[0].payload.(app.TimerEndedEvent).Reason != app.ReasonAllAnswered {
		t.Fatalf("expected all_answered locks, got %+v", timers)
	}
}

func TestLateAnswerRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, app.Options{})
	created := f.create(t, app.CreateGameInput{})
	ann := f.join(t, created.Game.ID, "c1", "Ann")
	if _, err := f.svc.StartGame(ctx, created.Game.ID, host); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.clock.Advance(31 * time.Second)
	if _, err := f.svc.SubmitAnswer(ctx, created.Game.ID, ann, app.AnswerInput{Selected: []int{1}}); !errors.Is(err, domain.ErrQuestionClosed) {
		t.Fatalf("expected question closed, got %v", err)
	}
}

func TestNextQuestionIsIdempotentPerIndex(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, app.Options{})
	created := f.create(t, app.CreateGameInput{})
	gameID := created.Game.ID
	f.join(t, gameID, "c1", "Ann")
	if _, err := f.svc.StartGame(ctx, gameID, host); err != nil {
		t.Fatalf("start: %v", err)
	}

	zero := 0
	adv, err := f.svc.NextQuestion(ctx, gameID, host, &zero)
	if err != nil || adv.QuestionIndex != 1 {
		t.Fatalf("advance: %+v %v", adv, err)
	}
	if _, err := f.svc.NextQuestion(ctx, gameID, host, &zero); !errors.Is(err, domain.ErrStaleAdvance) {
		t.Fatalf("expected stale advance, got %v", err)
	}
	view, _ := f.svc.GetGame(ctx, gameID)
	if view.CurrentItemIndex != 1 {
		t.Fatalf("duplicate advance must not skip, index %d", view.CurrentItemIndex)
	}

	// the skipped question is locked with a host reason
	timers := f.events.named(app.EventTimerEnded)
	if len(timers) != 1 || timers[0].payload.(app.TimerEndedEvent).Reason != app.ReasonHost {
		t.Fatalf("expected host lock of question 0, got %+v", timers)
	}
}

func TestShowResultsRevealsAnalytics(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, app.Options{})
	created := f.create(t, app.CreateGameInput{})
	gameID := created.Game.ID
	ann := f.join(t, gameID, "c1", "Ann")
	bob := f.join(t, gameID, "c2", "Bob")
	f.join(t, gameID, "c3", "Cy")
	if _, err := f.svc.StartGame(ctx, gameID, host); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.clock.Advance(2 * time.Second)
	_, _ = f.svc.SubmitAnswer(ctx, gameID, ann, app.AnswerInput{Selected: []int{1}})
	_, _ = f.svc.SubmitAnswer(ctx, gameID, bob, app.AnswerInput{Selected: []int{2}})

	res, err := f.svc.ShowResults(ctx, gameID, host)
	if err != nil {
		t.Fatalf("show results: %v", err)
	}
	if res.TotalResponses != 2 || res.CorrectResponses != 1 || res.Accuracy != 0.5 {
		t.Fatalf("unexpected analytics %+v", res.QuestionAnalytics)
	}
	if res.AnswerDistribution["1"] != 1 || res.AnswerDistribution["2"] != 1 {
		t.Fatalf("unexpected distribution %v", res.AnswerDistribution)
	}
	if len(res.CorrectOptions) != 1 || res.CorrectOptions[0] != 1 {
		t.Fatalf("unexpected correct options %v", res.CorrectOptions)
	}
	if res.Leaderboard[0].PlayerID != ann {
		t.Fatalf("expected Ann on top, got %+v", res.Leaderboard)
	}
	// Bob and Cy tie on zero; Bob joined first
	if res.Leaderboard[1].PlayerID != bob {
		t.Fatalf("expected join order tie-break, got %+v", res.Leaderboard)
	}

	again, err := f.svc.ShowResults(ctx, gameID, host)
	if err != nil || again.TotalResponses != 2 {
		t.Fatalf("repeated show results: %+v %v", again, err)
	}
	if got := len(f.events.named(app.EventQuestionResults)); got != 2 {
		t.Fatalf("expected results sent twice, got %d", got)
	}
}

func TestPauseFreezesResponseTime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, app.Options{})
	created := f.create(t, app.CreateGameInput{})
	gameID := created.Game.ID
	ann := f.join(t, gameID, "c1", "Ann")
	if _, err := f.svc.StartGame(ctx, gameID, host); err != nil {
		t.Fatalf("start: %v", err)
	}

	f.clock.Advance(5 * time.Second)
	if err := f.svc.PauseGame(ctx, gameID, host); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := f.svc.PauseGame(ctx, gameID, host); !errors.Is(err, domain.ErrGameNotActive) {
		t.Fatalf("expected second pause to fail, got %v", err)
	}
	if _, err := f.svc.SubmitAnswer(ctx, gameID, ann, app.AnswerInput{Selected: []int{1}}); !errors.Is(err, domain.ErrGamePaused) {
		t.Fatalf("expected paused, got %v", err)
	}
	paused := f.events.named(app.EventGamePaused)
	if len(paused) != 1 || paused[0].payload.(app.NoticeEvent).SecondsRemaining != 25 {
		t.Fatalf("unexpected pause event %+v", paused)
	}

	f.clock.Advance(time.Minute)
	if err := f.svc.ResumeGame(ctx, gameID, host); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if err := f.svc.ResumeGame(ctx, gameID, host); !errors.Is(err, domain.ErrGameNotPaused) {
		t.Fatalf("expected not paused, got %v", err)
	}

	f.clock.Advance(2 * time.Second)
	res, err := f.svc.SubmitAnswer(ctx, gameID, ann, app.AnswerInput{Selected: []int{1}})
	if err != nil {
		t.Fatalf("submit after resume: %v", err)
	}
	// 7s of play time: 1000 + 1000*23/60
	if res.ResponseTimeMs != 7000 || res.Points != 1383 {
		t.Fatalf("pause should not count as response time: %+v", res)
	}
}

func TestKickTombstonesPlayer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, app.Options{})
	created := f.create(t, app.CreateGameInput{})
	gameID := created.Game.ID
	ann := f.join(t, gameID, "c1", "Ann")
	f.join(t, gameID, "c2", "Bob")

	conn, err := f.svc.KickPlayer(ctx, gameID, host, ann)
	if err != nil {
		t.Fatalf("kick: %v", err)
	}
	if conn != "c1" {
		t.Fatalf("expected kicked connection c1, got %q", conn)
	}
	kicked := f.events.named(app.EventPlayerKicked)
	if len(kicked) != 1 || kicked[0].target != ann {
		t.Fatalf("expected player-kicked to Ann, got %+v", kicked)
	}
	if _, err := f.svc.KickPlayer(ctx, gameID, host, ann); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("expected second kick to fail, got %v", err)
	}
	if _, err := f.svc.RejoinPlayer(ctx, gameID, ann, "c9"); !errors.Is(err, domain.ErrPlayerRemoved) {
		t.Fatalf("kicked player must not rejoin, got %v", err)
	}
	// the nickname is free again
	f.join(t, gameID, "c3", "Ann")

	view, _ := f.svc.GetGame(ctx, gameID)
	if view.TotalPlayers != 2 {
		t.Fatalf("expected 2 players after kick and join, got %d", view.TotalPlayers)
	}
}

func TestReadyAndLeave(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, app.Options{})
	created := f.create(t, app.CreateGameInput{})
	gameID := created.Game.ID
	ann := f.join(t, gameID, "c1", "Ann")
	bob := f.join(t, gameID, "c2", "Bob")

	if err := f.svc.PlayerReady(ctx, gameID, ann, true); err != nil {
		t.Fatalf("ready: %v", err)
	}
	ready := f.events.named(app.EventPlayerReady)
	if len(ready) != 1 || ready[0].room != "host" {
		t.Fatalf("expected ready status for the host, got %+v", ready)
	}
	if ev := ready[0].payload.(app.PlayerReadyEvent); ev.ReadyCount != 1 || ev.TotalPlayers != 2 || !ev.IsReady {
		t.Fatalf("unexpected ready payload %+v", ev)
	}

	if err := f.svc.LeaveGame(ctx, gameID, bob); err != nil {
		t.Fatalf("leave: %v", err)
	}
	left := f.events.named(app.EventPlayerLeft)
	if len(left) != 1 || left[0].payload.(app.PlayerLeftEvent).Reason != app.ReasonLeft {
		t.Fatalf("expected player-left with reason left, got %+v", left)
	}
	// leaving twice is harmless
	if err := f.svc.LeaveGame(ctx, gameID, bob); err != nil {
		t.Fatalf("second leave: %v", err)
	}
	if err := f.svc.PlayerReady(ctx, gameID, bob, true); !errors.Is(err, domain.ErrPlayerRemoved) {
		t.Fatalf("removed player cannot toggle ready, got %v", err)
	}
	if view, _ := f.svc.GetGame(ctx, gameID); view.TotalPlayers != 1 {
		t.Fatalf("expected 1 player after leave, got %d", view.TotalPlayers)
	}
}

func TestDisconnectedPlayerDoesNotBlockAllAnswered(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, app.Options{})
	created := f.create(t, app.CreateGameInput{})
	gameID := created.Game.ID
	ann := f.join(t, gameID, "c1", "Ann")
	bob := f.join(t, gameID, "c2", "Bob")
	if _, err := f.svc.StartGame(ctx, gameID, host); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.svc.SubmitAnswer(ctx, gameID, ann, app.AnswerInput{Selected: []int{1}}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// a stale connection id is ignored
	if err := f.svc.PlayerDisconnected(ctx, gameID, bob, "old-conn"); err != nil {
		t.Fatalf("stale disconnect: %v", err)
	}
	if view, _ := f.svc.GetGame(ctx, gameID); view.ItemState != domain.ItemOpen {
		t.Fatalf("stale disconnect must not lock, got %s", view.ItemState)
	}

	if err := f.svc.PlayerDisconnected(ctx, gameID, bob, "c2"); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if view, _ := f.svc.GetGame(ctx, gameID); view.ItemState != domain.ItemLocked {
		t.Fatalf("expected lock once every present player answered, got %s", view.ItemState)
	}

	rejoin, err := f.svc.RejoinPlayer(ctx, gameID, bob, "c5")
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if rejoin.Question != nil {
		t.Fatalf("no open question to resend after lock")
	}
	if got := len(f.events.named(app.EventPlayerReconnected)); got != 1 {
		t.Fatalf("expected player-reconnected, got %d", got)
	}
}

func TestHostReconnectWithinGrace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, app.Options{HostGrace: 50 * time.Millisecond})
	created := f.create(t, app.CreateGameInput{})
	gameID := created.Game.ID
	f.join(t, gameID, "c1", "Ann")
	if _, err := f.svc.StartGame(ctx, gameID, host); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := f.svc.HostDisconnected(ctx, gameID, "host-conn"); err != nil {
		t.Fatalf("host disconnected: %v", err)
	}
	if _, err := f.svc.ReconnectHost(ctx, gameID, "bad-token", "host-2"); !errors.Is(err, domain.ErrNotHost) {
		t.Fatalf("expected bad token to fail, got %v", err)
	}
	resume, err := f.svc.ReconnectHost(ctx, gameID, created.HostToken, "host-2")
	if err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if resume.Question == nil || resume.Question.Content != "first" {
		t.Fatalf("expected current question on resume, got %+v", resume.Question)
	}

	time.Sleep(150 * time.Millisecond)
	view, _ := f.svc.GetGame(ctx, gameID)
	if view.Status != domain.StatusActive || !view.HostConnected {
		t.Fatalf("game must survive a reconnect within grace, got %+v", view)
	}
	if len(f.events.named(app.EventHostReconnected)) != 1 {
		t.Fatalf("expected host-reconnected event")
	}
	// the new connection is the host now
	if err := f.svc.PauseGame(ctx, gameID, app.Host{ConnID: "host-2"}); err != nil {
		t.Fatalf("pause from new host connection: %v", err)
	}
}

func TestHostGraceExpiryEndsGame(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, app.Options{HostGrace: 20 * time.Millisecond})
	created := f.create(t, app.CreateGameInput{})
	gameID := created.Game.ID
	f.join(t, gameID, "c1", "Ann")
	if _, err := f.svc.StartGame(ctx, gameID, host); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.svc.HostDisconnected(ctx, gameID, "host-conn"); err != nil {
		t.Fatalf("host disconnected: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		view, err := f.svc.GetGame(ctx, gameID)
		if err != nil {
			t.Fatalf("get game: %v", err)
		}
		if view.Status == domain.StatusEnded {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("game did not end after host grace")
		}
		time.Sleep(10 * time.Millisecond)
	}
	ended := f.events.named(app.EventGameEnded)
	if len(ended) != 1 || ended[0].payload.(app.GameEndedEvent).Reason != domain.EndReasonHostDisconnected {
		t.Fatalf("expected host_disconnected end, got %+v", ended)
	}
}

func TestEndGameRecordsHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, app.Options{})
	created := f.create(t, app.CreateGameInput{})
	gameID := created.Game.ID
	ann := f.join(t, gameID, "c1", "Ann")
	f.join(t, gameID, "c2", "Bob")
	if _, err := f.svc.StartGame(ctx, gameID, host); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.clock.Advance(3 * time.Second)
	if _, err := f.svc.SubmitAnswer(ctx, gameID, ann, app.AnswerInput{Selected: []int{1}}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	final, err := f.svc.EndGame(ctx, gameID, host)
	if err != nil {
		t.Fatalf("end game: %v", err)
	}
	if final.Reason != domain.EndReasonHostEnded || final.TotalPlayers != 2 || final.DurationMs != 3000 {
		t.Fatalf("unexpected final results %+v", final)
	}
	if _, err := f.svc.EndGame(ctx, gameID, host); !errors.Is(err, domain.ErrGameEnded) {
		t.Fatalf("expected second end to fail, got %v", err)
	}
	if _, err := f.svc.SubmitAnswer(ctx, gameID, ann, app.AnswerInput{Selected: []int{1}}); !errors.Is(err, domain.ErrGameEnded) {
		t.Fatalf("expected ended game to reject answers, got %v", err)
	}
	if _, err := f.svc.JoinGame(ctx, created.Game.Pin); !errors.Is(err, domain.ErrGameNotJoinable) {
		t.Fatalf("expected ended game to reject joins, got %v", err)
	}

	f.rec.Close()
	rec, ok := f.records.Game(gameID)
	if !ok || rec.Status != domain.StatusEnded || rec.EndReason != domain.EndReasonHostEnded {
		t.Fatalf("expected ended game record, got %+v", rec)
	}
	if got := len(f.records.Players(gameID)); got != 2 {
		t.Fatalf("expected 2 player records, got %d", got)
	}
	answers := f.records.Answers()
	if len(answers) != 1 || answers[0].PlayerID != ann || answers[0].ResponseTimeMs != 3000 {
		t.Fatalf("unexpected answer history %+v", answers)
	}
	if len(f.records.Analytics()) != 1 {
		t.Fatalf("expected analytics of the open question")
	}

	metrics, _ := f.svc.Metrics(ctx)
	if metrics[app.MetricGamesCreated] != 1 || metrics[app.MetricGamesCompleted] != 1 || metrics[app.MetricCorrectAnswers] != 1 {
		t.Fatalf("unexpected metrics %v", metrics)
	}
	if _, ok := metrics[app.MetricPlayersJoined]; !ok {
		t.Fatalf("metrics must list every counter")
	}
}

func TestAutoAdvanceRunsWholeGame(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, app.Options{AutoAdvanceDelay: 10 * time.Millisecond})
	created := f.create(t, app.CreateGameInput{AutoAdvance: true})
	gameID := created.Game.ID
	ann := f.join(t, gameID, "c1", "Ann")
	if _, err := f.svc.StartGame(ctx, gameID, host); err != nil {
		t.Fatalf("start: %v", err)
	}

	for i := 0; i < 3; i++ {
		waitFor(t, func() bool {
			view, _ := f.svc.GetGame(ctx, gameID)
			return view.CurrentItemIndex == i && view.ItemState == domain.ItemOpen
		})
		if _, err := f.svc.SubmitAnswer(ctx, gameID, ann, app.AnswerInput{Selected: []int{1}}); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	waitFor(t, func() bool {
		view, _ := f.svc.GetGame(ctx, gameID)
		return view.Status == domain.StatusEnded
	})
	if got := len(f.events.named(app.EventQuestionResults)); got != 3 {
		t.Fatalf("expected automatic reveal per question, got %d", got)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAllAnsweredLockKeepsLastAnswer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, app.Options{})
	created := f.create(t, app.CreateGameInput{})
	gameID := created.Game.ID
	ann := f.join(t, gameID, "c1", "Ann")
	bob := f.join(t, gameID, "c2", "Bob")
	if _, err := f.svc.StartGame(ctx, gameID, host); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.clock.Advance(3 * time.Second)
	for _, id := range []string{ann, bob} {
		if _, err := f.svc.SubmitAnswer(ctx, gameID, id, app.AnswerInput{Selected: []int{1}}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	if got := len(f.events.named(app.EventTimerEnded)); got != 1 {
		t.Fatalf("expected the last answer to lock the question, got %d timer-ended", got)
	}

	res, err := f.svc.ShowResults(ctx, gameID, host)
	if err != nil {
		t.Fatalf("show results: %v", err)
	}
	if res.TotalResponses != 2 || res.CorrectResponses != 2 || res.AnswerDistribution["1"] != 2 {
		t.Fatalf("both answers must be counted, got %+v", res.QuestionAnalytics)
	}

	f.rec.Close()
	if got := len(f.records.Answers()); got != 2 {
		t.Fatalf("expected 2 recorded answers, got %d", got)
	}
	analytics := f.records.Analytics()
	if len(analytics) != 1 || analytics[0].TotalResponses != 2 {
		t.Fatalf("unexpected recorded analytics %+v", analytics)
	}
}

func TestHostAdvanceDoesNotSkipAutoOpenedItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, app.Options{AutoAdvanceDelay: 10 * time.Millisecond, AdvanceGuard: 3 * time.Second})
	created := f.create(t, app.CreateGameInput{AutoAdvance: true})
	gameID := created.Game.ID
	ann := f.join(t, gameID, "c1", "Ann")
	if _, err := f.svc.StartGame(ctx, gameID, host); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.svc.SubmitAnswer(ctx, gameID, ann, app.AnswerInput{Selected: []int{1}}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitFor(t, func() bool {
		view, _ := f.svc.GetGame(ctx, gameID)
		return view.CurrentItemIndex == 1 && view.ItemState == domain.ItemOpen
	})

	// the host meant to leave item 0 and lost the race
	if _, err := f.svc.NextQuestion(ctx, gameID, host, nil); !errors.Is(err, domain.ErrStaleAdvance) {
		t.Fatalf("expected stale advance, got %v", err)
	}
	if view, _ := f.svc.GetGame(ctx, gameID); view.CurrentItemIndex != 1 {
		t.Fatalf("item 1 was skipped, index %d", view.CurrentItemIndex)
	}

	one := 1
	adv, err := f.svc.NextQuestion(ctx, gameID, host, &one)
	if err != nil || adv.QuestionIndex != 2 {
		t.Fatalf("explicit advance from 1: %+v %v", adv, err)
	}
}

func TestHostAdvanceAfterGuard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, app.Options{AutoAdvanceDelay: 10 * time.Millisecond, AdvanceGuard: 3 * time.Second})
	created := f.create(t, app.CreateGameInput{AutoAdvance: true})
	gameID := created.Game.ID
	ann := f.join(t, gameID, "c1", "Ann")
	if _, err := f.svc.StartGame(ctx, gameID, host); err != nil {
		t.Fatalf("start: %v", err)
	}
	// a host-opened item is never guarded
	if _, err := f.svc.NextQuestion(ctx, gameID, host, nil); err != nil {
		t.Fatalf("advance from the first item: %v", err)
	}
	if _, err := f.svc.SubmitAnswer(ctx, gameID, ann, app.AnswerInput{Selected: []int{1}}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitFor(t, func() bool {
		view, _ := f.svc.GetGame(ctx, gameID)
		return view.CurrentItemIndex == 2 && view.ItemState == domain.ItemOpen
	})
	f.clock.Advance(4 * time.Second)
	adv, err := f.svc.NextQuestion(ctx, gameID, host, nil)
	if err != nil || !adv.Ended {
		t.Fatalf("advance after the guard should end the game: %+v %v", adv, err)
	}
}

func TestSlideTakesNoAnswersAndKeepsStreak(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, app.Options{})
	created := f.create(t, app.CreateGameInput{QuizID: "slides"})
	gameID := created.Game.ID
	ann := f.join(t, gameID, "c1", "Ann")
	if _, err := f.svc.StartGame(ctx, gameID, host); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.svc.SubmitAnswer(ctx, gameID, ann, app.AnswerInput{Selected: []int{1}}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.svc.NextQuestion(ctx, gameID, host, nil); err != nil {
		t.Fatalf("advance to slide: %v", err)
	}

	if _, err := f.svc.SubmitAnswer(ctx, gameID, ann, app.AnswerInput{Selected: []int{1}}); !errors.Is(err, domain.ErrNoActiveQuestion) {
		t.Fatalf("answers on a slide must be rejected, got %v", err)
	}
	if _, err := f.svc.ShowResults(ctx, gameID, host); err != nil {
		t.Fatalf("lock slide: %v", err)
	}
	p, _, err := f.svc.GetPlayer(ctx, ann)
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	if p.CurrentStreak != 1 {
		t.Fatalf("a slide must not reset the streak, got %d", p.CurrentStreak)
	}

	f.rec.Close()
	if got := len(f.records.Analytics()); got != 1 {
		t.Fatalf("slides produce no analytics, got %d records", got)
	}
}

func TestConcurrentAnswersScoreOncePerPlayer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, app.Options{})
	created := f.create(t, app.CreateGameInput{})
	gameID := created.Game.ID
	const players = 40
	ids := make([]string, players)
	for i := range ids {
		ids[i] = f.join(t, gameID, fmt.Sprintf("c%d", i), fmt.Sprintf("P%d", i))
	}
	if _, err := f.svc.StartGame(ctx, gameID, host); err != nil {
		t.Fatalf("start: %v", err)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		accepted  int
		conflicts int
	)
	for _, id := range ids {
		for n := 0; n < 2; n++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, err := f.svc.SubmitAnswer(ctx, gameID, id, app.AnswerInput{Selected: []int{1}})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					accepted++
				case domain.KindOf(err) == domain.KindConflict:
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(id)
		}
	}
	wg.Wait()

	if accepted != players || conflicts != players {
		t.Fatalf("expected %d accepted and %d rejected, got %d and %d", players, players, accepted, conflicts)
	}
	res, err := f.svc.ShowResults(ctx, gameID, host)
	if err != nil {
		t.Fatalf("show results: %v", err)
	}
	if res.TotalResponses != players || res.CorrectResponses != players {
		t.Fatalf("expected %d responses, got %+v", players, res.QuestionAnalytics)
	}
	view, _ := f.svc.GetGame(ctx, gameID)
	for _, p := range view.Players {
		if p.Score != 1500 {
			t.Fatalf("player %s scored %d, expected a single 1500", p.Nickname, p.Score)
		}
	}
}
