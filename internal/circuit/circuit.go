package circuit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned when the breaker refuses a call without attempting
// it. Callers can fail fast and surface the outage instead of piling on.
var ErrOpen = errors.New("circuit breaker open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

// Breaker trips after a run of consecutive failures, refuses calls for a
// cooldown window, then half-opens to let a single probe through. A probe
// success closes the breaker; a probe failure re-opens it for another
// cooldown. Safe for concurrent use.
type Breaker struct {
	mu        sync.Mutex
	state     state
	failures  int
	threshold int
	cooldown  time.Duration
	openedAt  time.Time
	probing   bool
	now       func() time.Time
}

// NewBreaker creates a closed breaker that opens after threshold
// consecutive failures.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 1
	}
	return &Breaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Do runs fn if the breaker allows it and records the outcome. Context
// cancellation is not counted as a dependency failure.
func (b *Breaker) Do(ctx context.Context, fn func() error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn()
	if err != nil && ctx.Err() != nil {
		b.release()
		return err
	}
	b.record(err)
	return err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case stateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrOpen
		}
		b.state = stateHalfOpen
		b.probing = true
		return nil
	case stateHalfOpen:
		if b.probing {
			return ErrOpen
		}
		b.probing = true
		return nil
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	if err == nil {
		b.state = stateClosed
		b.failures = 0
		return
	}
	if b.state == stateHalfOpen {
		b.state = stateOpen
		b.openedAt = b.now()
		return
	}
	b.failures++
	if b.failures >= b.threshold {
		b.state = stateOpen
		b.openedAt = b.now()
		b.failures = 0
	}
}

// release frees a half-open probe slot without recording an outcome.
func (b *Breaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
}
