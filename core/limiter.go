package core

import "sync"

// DefaultMaxTurns is the maximum number of model invocations per user
// message, counted across every agent the message is handed to.
const DefaultMaxTurns = 20

// TurnLimiter enforces a maximum number of model invocations.
type TurnLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewTurnLimiter creates a limiter that has already counted used turns.
// If max == 0, unlimited turns are allowed.
func NewTurnLimiter(max, used int) *TurnLimiter {
	return &TurnLimiter{max: max, count: used}
}

// Increment counts one model invocation and returns *TurnLimitExceeded once
// the limit is passed.
func (tl *TurnLimiter) Increment() error {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	tl.count++
	if tl.max > 0 && tl.count > tl.max {
		return &TurnLimitExceeded{Max: tl.max}
	}

	return nil
}

// Count returns the number of turns counted so far.
func (tl *TurnLimiter) Count() int {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	return tl.count
}

// Remaining returns how many turns are left before hitting the limit.
func (tl *TurnLimiter) Remaining() int {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	if tl.max == 0 {
		return -1 // unlimited
	}

	return tl.max - tl.count
}
