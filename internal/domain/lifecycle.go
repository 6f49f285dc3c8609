package domain

import (
	"fmt"
	"time"
)

// ItemState is the lifecycle state of the game's current item.
type ItemState string

const (
	ItemIdle     ItemState = "idle"
	ItemArmed    ItemState = "armed"
	ItemOpen     ItemState = "open"
	ItemLocked   ItemState = "locked"
	ItemRevealed ItemState = "revealed"
	ItemEnded    ItemState = "ended"
)

var itemTransitions = map[ItemState][]ItemState{
	ItemIdle:     {ItemArmed, ItemEnded},
	ItemArmed:    {ItemOpen, ItemEnded},
	ItemOpen:     {ItemLocked, ItemEnded},
	ItemLocked:   {ItemRevealed, ItemArmed, ItemEnded},
	ItemRevealed: {ItemArmed, ItemEnded},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to ItemState) bool {
	for _, next := range itemTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ItemProgress tracks the current item. Seq changes on every transition and
// pause so scheduled callbacks can tell whether they are still current.
type ItemProgress struct {
	Index     int           `json:"index"`
	State     ItemState     `json:"state"`
	StartedAt time.Time     `json:"questionStartTime"`
	Deadline  *time.Time    `json:"deadline,omitempty"`
	Remaining time.Duration `json:"remaining,omitempty"`
	Seq       uint64        `json:"seq"`

	// AutoOpened marks an item opened by the automatic advance.
	AutoOpened bool `json:"autoOpened,omitempty"`
}

// Transition moves to the next state or fails with ErrIllegalTransition.
func (p *ItemProgress) Transition(to ItemState) error {
	from := p.State
	if from == "" {
		from = ItemIdle
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	p.State = to
	p.Seq++
	return nil
}

// Open records the start time and the optional wall-clock deadline.
func (p *ItemProgress) Open(now time.Time, limit time.Duration) error {
	if err := p.Transition(ItemOpen); err != nil {
		return err
	}
	p.StartedAt = now
	p.Remaining = 0
	p.Deadline = nil
	if limit > 0 {
		d := now.Add(limit)
		p.Deadline = &d
	}
	return nil
}

// AcceptsAnswers reports whether a submission at t is still in time.
func (p *ItemProgress) AcceptsAnswers(t time.Time) bool {
	if p.State != ItemOpen {
		return false
	}
	return p.Deadline == nil || !t.After(*p.Deadline)
}

// Pause freezes the countdown. The seq bump invalidates pending timers.
func (p *ItemProgress) Pause(now time.Time) {
	if p.Deadline != nil {
		p.Remaining = p.Deadline.Sub(now)
		if p.Remaining < 0 {
			p.Remaining = 0
		}
		p.Deadline = nil
	}
	p.Seq++
}

// Resume restores the frozen countdown. Elapsed response time excludes the pause.
func (p *ItemProgress) Resume(now time.Time, limit time.Duration) {
	if p.State == ItemOpen && limit > 0 {
		d := now.Add(p.Remaining)
		p.Deadline = &d
		p.StartedAt = d.Add(-limit)
	}
	p.Remaining = 0
	p.Seq++
}

// SecondsRemaining rounds the countdown up to whole seconds.
func (p *ItemProgress) SecondsRemaining(now time.Time) int {
	if p.Deadline == nil {
		return int((p.Remaining + time.Second - 1) / time.Second)
	}
	left := p.Deadline.Sub(now)
	if left <= 0 {
		return 0
	}
	return int((left + time.Second - 1) / time.Second)
}
