package oracle

import (
	"sync"
	"time"
)

// CircuitState is the state of a Breaker
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"   // calls go through
	CircuitOpen     CircuitState = "open"     // calls fail fast
	CircuitHalfOpen CircuitState = "halfopen" // one probe decides
)

// Breaker stops calling an unreachable oracle server. After failureThreshold
// consecutive transport failures it opens for cooldown, then lets a probe
// through; successThreshold successful probes close it again.
type Breaker struct {
	mu               sync.Mutex
	failureThreshold int
	successThreshold int
	cooldown         time.Duration

	state        CircuitState
	failures     int
	successes    int
	stateChanged time.Time
}

// NewBreaker creates a closed breaker; a threshold below 1 is treated as 1
func NewBreaker(failureThreshold, successThreshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		failureThreshold: max(failureThreshold, 1),
		successThreshold: max(successThreshold, 1),
		cooldown:         cooldown,
		state:            CircuitClosed,
		stateChanged:     time.Now(),
	}
}

// Allow reports whether a call may be attempted at now
func (b *Breaker) Allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance(now)
	return b.state != CircuitOpen
}

// RecordSuccess notes a call that reached the server
func (b *Breaker) RecordSuccess(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case CircuitHalfOpen:
		b.successes++
		if b.successes >= b.successThreshold {
			b.setState(CircuitClosed, now)
		}
	case CircuitClosed:
		b.failures = 0
	}
}

// RecordFailure notes a call that could not reach the server
func (b *Breaker) RecordFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	switch b.state {
	case CircuitHalfOpen:
		b.setState(CircuitOpen, now)
	case CircuitClosed:
		if b.failures >= b.failureThreshold {
			b.setState(CircuitOpen, now)
		}
	}
}

// State returns the state at now
func (b *Breaker) State(now time.Time) CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance(now)
	return b.state
}

func (b *Breaker) advance(now time.Time) {
	if b.state == CircuitOpen && now.Sub(b.stateChanged) >= b.cooldown {
		b.setState(CircuitHalfOpen, now)
	}
}

func (b *Breaker) setState(s CircuitState, now time.Time) {
	b.state = s
	b.stateChanged = now
	b.successes = 0
	if s == CircuitClosed {
		b.failures = 0
	}
}
