package amqp

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures = 5
	openTimeout = 30 * time.Second
	maxBackoff  = 30 * time.Second
)

var ErrCircuitOpen = errors.New("amqp circuit breaker is open")

// breaker stops publish attempts after repeated failures so a dead broker
// costs requests nothing. After openTimeout exactly one caller is let
// through as a trial call; everyone else stays blocked until it records a result.
type breaker struct {
	state        atomic.Int32
	failureCount atomic.Int64

	mu          sync.Mutex
	lastFailure time.Time
	now         func() time.Time
}

func newBreaker() *breaker {
	return &breaker{now: time.Now}
}

func (b *breaker) isOpen() bool {
	switch b.state.Load() {
	case StateClosed:
		return false
	case StateHalfOpen:
		return true
	}
	b.mu.Lock()
	elapsed := b.now().Sub(b.lastFailure)
	b.mu.Unlock()
	if elapsed > openTimeout {
		// Only the caller that wins the transition goes through.
		return !b.state.CompareAndSwap(StateOpen, StateHalfOpen)
	}
	return true
}

func (b *breaker) recordSuccess() {
	b.failureCount.Store(0)
	b.state.Store(StateClosed)
}

func (b *breaker) recordFailure() {
	b.mu.Lock()
	b.lastFailure = b.now()
	b.mu.Unlock()

	if b.failureCount.Add(1) >= maxFailures || b.state.Load() == StateHalfOpen {
		b.state.Store(StateOpen)
	}
}

// exponentialBackoff doubles from one second, capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "connection closed", "channel/connection is not open", "eof", "broken pipe", "closed network connection", "connection reset", "i/o timeout"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
