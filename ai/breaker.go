package ai

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// BreakerState is the state of a CircuitBreaker.
type BreakerState int

const (
	// BreakerClosed lets calls through and counts consecutive failures.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls until the cool-down elapses.
	BreakerOpen
	// BreakerHalfOpen admits a limited number of probe calls.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// BreakerConfig holds the circuit breaker thresholds. Zero values take the
// defaults noted on each field.
type BreakerConfig struct {
	// FailureThreshold consecutive failures open the circuit. Defaults to 5.
	FailureThreshold int `yaml:"failure_threshold" json:"failureThreshold"`

	// SuccessThreshold consecutive half-open successes close it. Defaults to 2.
	SuccessThreshold int `yaml:"success_threshold" json:"successThreshold"`

	// Cooldown is how long the circuit stays open. Defaults to 30s.
	Cooldown time.Duration `yaml:"cooldown" json:"cooldown"`

	// MaxProbes bounds concurrent half-open calls. Defaults to 1.
	MaxProbes int `yaml:"max_probes" json:"maxProbes"`
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.MaxProbes <= 0 {
		c.MaxProbes = 1
	}
	return c
}

// CircuitBreaker stops calling a completion backend that keeps failing.
type CircuitBreaker struct {
	cfg       BreakerConfig
	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int
	openedAt  time.Time
	probes    int
	onChange  func(from, to BreakerState)
	now       func() time.Time
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		cfg:   cfg.withDefaults(),
		state: BreakerClosed,
		now:   time.Now,
	}
}

// OnStateChange registers a callback fired on every transition. It runs
// with the breaker locked and must not call back into it.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to BreakerState)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onChange = fn
}

// Execute runs fn unless the circuit is open, and records its outcome.
// A rejected call returns ErrCircuitOpen without invoking fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	if err != nil {
		cb.RecordFailure()
	} else {
		cb.RecordSuccess()
	}
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		return nil
	case BreakerOpen:
		if cb.now().Sub(cb.openedAt) < cb.cfg.Cooldown {
			return ErrCircuitOpen
		}
		cb.transition(BreakerHalfOpen)
		cb.probes++
		return nil
	case BreakerHalfOpen:
		if cb.probes >= cb.cfg.MaxProbes {
			return ErrCircuitOpen
		}
		cb.probes++
		return nil
	}
	return ErrCircuitOpen
}

// State reports the current state. An open circuit whose cool-down has
// elapsed reports half-open; the transition itself happens on the next call.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == BreakerOpen && cb.now().Sub(cb.openedAt) >= cb.cfg.Cooldown {
		return BreakerHalfOpen
	}
	return cb.state
}

// Reset closes the circuit and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(BreakerClosed)
	cb.failures, cb.successes, cb.probes = 0, 0, 0
}

// RecordSuccess records a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		cb.failures = 0
	case BreakerHalfOpen:
		cb.successes++
		cb.probes = max(cb.probes-1, 0)
		if cb.successes >= cb.cfg.SuccessThreshold {
			cb.transition(BreakerClosed)
		}
	}
}

// RecordFailure records a failed call.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.openedAt = cb.now()
			cb.transition(BreakerOpen)
		}
	case BreakerHalfOpen:
		cb.openedAt = cb.now()
		cb.transition(BreakerOpen)
	case BreakerOpen:
		cb.openedAt = cb.now()
	}
}

// transition must be called with cb.mu held.
func (cb *CircuitBreaker) transition(to BreakerState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.failures, cb.successes, cb.probes = 0, 0, 0
	if cb.onChange != nil {
		cb.onChange(from, to)
	}
}

// Counts returns the consecutive failure and success counters.
func (cb *CircuitBreaker) Counts() (failures, successes int) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures, cb.successes
}
