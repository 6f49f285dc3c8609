package memory

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"live-quiz-service/internal/domain"
)

// missTTL bounds how long an unknown quiz id is remembered.
const missTTL = 5 * time.Second

// QuizLoader fetches quiz content from the quiz store.
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizRepository keeps loaded quizzes for ttl (plus jitter) and remembers
// unknown ids briefly so mistyped create-game requests do not each reach the
// store. Games copy the items they play, so a stale entry only affects games
// created later.
type QuizRepository struct {
	loader QuizLoader
	ttl    time.Duration
	clock  func() time.Time
	loads  singleflight.Group

	mu      sync.RWMutex
	rnd     *rand.Rand
	entries map[string]quizEntry
}

type quizEntry struct {
	quiz      domain.Quiz
	missing   bool
	expiresAt time.Time
}

func NewQuizRepository(loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		loader:  loader,
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		entries: make(map[string]quizEntry),
	}
}

func (r *QuizRepository) lookup(quizID string, now time.Time) (quizEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[quizID]
	if !ok || !entry.expiresAt.After(now) {
		return quizEntry{}, false
	}
	return entry, true
}

func (e quizEntry) result() (domain.Quiz, error) {
	if e.missing {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return e.quiz, nil
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quizID == "" {
		return domain.Quiz{}, domain.ErrQuizIDRequired
	}
	if entry, ok := r.lookup(quizID, r.clock()); ok {
		return entry.result()
	}

	v, err, _ := r.loads.Do(quizID, func() (interface{}, error) {
		now := r.clock()
		if entry, ok := r.lookup(quizID, now); ok {
			return entry, nil
		}
		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		var entry quizEntry
		switch {
		case errors.Is(err, domain.ErrQuizNotFound):
			entry = quizEntry{missing: true, expiresAt: now.Add(missTTL)}
		case err != nil:
			return nil, err
		default:
			r.mu.Lock()
			entry = quizEntry{quiz: quiz, expiresAt: now.Add(r.jitteredTTLLocked())}
			r.mu.Unlock()
		}
		r.mu.Lock()
		r.entries[quizID] = entry
		r.mu.Unlock()
		return entry, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return v.(quizEntry).result()
}

// Invalidate drops a cached quiz after it was edited.
func (r *QuizRepository) Invalidate(quizID string) {
	r.mu.Lock()
	delete(r.entries, quizID)
	r.mu.Unlock()
}

func (r *QuizRepository) jitteredTTLLocked() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// up to 10% so entries loaded together expire apart
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
