package db

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker is open and store calls are
// failing fast.
var ErrCircuitOpen = errors.New("circuit breaker is open: store temporarily disabled")

const (
	stateClosed   = "CLOSED"
	stateOpen     = "OPEN"
	stateHalfOpen = "HALF_OPEN"
)

// CircuitBreaker fails fast after a threshold of store connectivity
// failures, then probes again once the recovery timeout has passed.
// Only errors the classifier accepts count as failures; query-level
// errors pass through without tripping the breaker.
type CircuitBreaker struct {
	mu               sync.Mutex
	failureThreshold int
	recoveryTimeout  time.Duration
	isFailure        func(error) bool

	failures    int
	lastFailure time.Time
	state       string
}

func NewCircuitBreaker(failureThreshold int, recoveryTimeout time.Duration, isFailure func(error) bool) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = 30 * time.Second
	}
	if isFailure == nil {
		isFailure = func(err error) bool { return err != nil }
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		isFailure:        isFailure,
		state:            stateClosed,
	}
}

// Execute runs fn under breaker protection.
func (b *CircuitBreaker) Execute(fn func() (any, error)) (any, error) {
	if err := b.allow(); err != nil {
		return nil, err
	}
	v, err := fn()
	b.record(err)
	return v, err
}

func (b *CircuitBreaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *CircuitBreaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == stateOpen {
		if time.Since(b.lastFailure) > b.recoveryTimeout {
			b.state = stateHalfOpen
			return nil
		}
		return ErrCircuitOpen
	}
	return nil
}

func (b *CircuitBreaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil || !b.isFailure(err) {
		if b.state == stateHalfOpen {
			b.state = stateClosed
		}
		b.failures = 0
		return
	}

	b.failures++
	b.lastFailure = time.Now()
	if b.failures >= b.failureThreshold {
		b.state = stateOpen
	}
}
