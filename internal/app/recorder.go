package app

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"live-quiz-service/internal/domain"
)

type recordJob struct {
	name string
	run  func(ctx context.Context, store RecordStore) error
}

// Recorder is a write-behind queue in front of a RecordStore. Live operations
// never wait on it; when the queue is full the record is dropped and logged.
type Recorder struct {
	store   RecordStore
	jobs    chan recordJob
	timeout time.Duration
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewRecorder starts a single worker draining a queue of size capacity.
func NewRecorder(store RecordStore, capacity int, timeout time.Duration) *Recorder {
	if capacity <= 0 {
		capacity = 256
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	r := &Recorder{store: store, jobs: make(chan recordJob, capacity), timeout: timeout}
	r.wg.Add(1)
	go r.loop()
	return r
}

func (r *Recorder) loop() {
	defer r.wg.Done()
	for job := range r.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if err := job.run(ctx, r.store); err != nil {
			log.Printf("record %s failed: %v", job.name, err)
		}
		cancel()
	}
}

func (r *Recorder) enqueue(job recordJob) {
	if r == nil || r.store == nil {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		log.Printf("record %s dropped: recorder closed", job.name)
		return
	}
	select {
	case r.jobs <- job:
	default:
		log.Printf("record %s dropped: queue full", job.name)
	}
}

func (r *Recorder) Game(rec domain.GameRecord) {
	r.enqueue(recordJob{name: "game " + rec.ID, run: func(ctx context.Context, s RecordStore) error {
		return s.SaveGame(ctx, rec)
	}})
}

func (r *Recorder) Players(gameID string, players []domain.PlayerRecord) {
	if len(players) == 0 {
		return
	}
	r.enqueue(recordJob{name: "players " + gameID, run: func(ctx context.Context, s RecordStore) error {
		return s.SavePlayers(ctx, gameID, players)
	}})
}

func (r *Recorder) Answers(answers []domain.AnswerEvent) {
	if len(answers) == 0 {
		return
	}
	r.enqueue(recordJob{name: "answers " + answers[0].GameID, run: func(ctx context.Context, s RecordStore) error {
		return s.SaveAnswers(ctx, answers)
	}})
}

func (r *Recorder) Analytics(a domain.QuestionAnalytics) {
	r.enqueue(recordJob{name: "analytics " + a.GameID, run: func(ctx context.Context, s RecordStore) error {
		return s.SaveAnalytics(ctx, a)
	}})
}

// Close stops accepting records and waits for queued ones to flush.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.jobs)
	r.mu.Unlock()
	r.wg.Wait()
}

// MultiRecordStore writes every record to all sinks concurrently.
type MultiRecordStore []RecordStore

func (m MultiRecordStore) each(ctx context.Context, fn func(context.Context, RecordStore) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, s := range m {
		s := s
		g.Go(func() error { return fn(ctx, s) })
	}
	return g.Wait()
}

func (m MultiRecordStore) SaveGame(ctx context.Context, rec domain.GameRecord) error {
	return m.each(ctx, func(ctx context.Context, s RecordStore) error { return s.SaveGame(ctx, rec) })
}

func (m MultiRecordStore) SavePlayers(ctx context.Context, gameID string, players []domain.PlayerRecord) error {
	return m.each(ctx, func(ctx context.Context, s RecordStore) error { return s.SavePlayers(ctx, gameID, players) })
}

func (m MultiRecordStore) SaveAnswers(ctx context.Context, answers []domain.AnswerEvent) error {
	return m.each(ctx, func(ctx context.Context, s RecordStore) error { return s.SaveAnswers(ctx, answers) })
}

func (m MultiRecordStore) SaveAnalytics(ctx context.Context, a domain.QuestionAnalytics) error {
	return m.each(ctx, func(ctx context.Context, s RecordStore) error { return s.SaveAnalytics(ctx, a) })
}
