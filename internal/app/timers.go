package app

import (
	"sync"
	"time"
)

type timerKind int

const (
	timerDeadline timerKind = iota
	timerTick
	timerAdvance
	timerHostGrace
	timerCleanup
)

// timerRegistry owns every scheduled callback of every game. Scheduling a kind
// replaces the previous timer of that kind.
type timerRegistry struct {
	mu     sync.Mutex
	timers map[string]map[timerKind]*time.Timer
}

func newTimerRegistry() *timerRegistry {
	return &timerRegistry{timers: make(map[string]map[timerKind]*time.Timer)}
}

func (r *timerRegistry) schedule(gameID string, kind timerKind, d time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byKind, ok := r.timers[gameID]
	if !ok {
		byKind = make(map[timerKind]*time.Timer)
		r.timers[gameID] = byKind
	}
	if t, ok := byKind[kind]; ok {
		t.Stop()
	}
	byKind[kind] = time.AfterFunc(d, fn)
}

func (r *timerRegistry) cancel(gameID string, kinds ...timerKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byKind := r.timers[gameID]
	for _, k := range kinds {
		if t, ok := byKind[k]; ok {
			t.Stop()
			delete(byKind, k)
		}
	}
	if len(byKind) == 0 {
		delete(r.timers, gameID)
	}
}

func (r *timerRegistry) cancelAll(gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.timers[gameID] {
		t.Stop()
	}
	delete(r.timers, gameID)
}

func (r *timerRegistry) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, byKind := range r.timers {
		for _, t := range byKind {
			t.Stop()
		}
		delete(r.timers, id)
	}
}

func (r *timerRegistry) pending(gameID string, kind timerKind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.timers[gameID][kind]
	return ok
}
