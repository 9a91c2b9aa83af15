package ai

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// DefaultCallTimeout bounds a single completion attempt.
const DefaultCallTimeout = 60 * time.Second

// CompletionObserver receives the outcome of every completion attempt.
type CompletionObserver interface {
	ObserveCompletion(provider string, elapsed time.Duration, err error)
}

// ResilientOption configures a Resilient provider.
type ResilientOption func(*Resilient)

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) ResilientOption {
	return func(r *Resilient) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRetry sets the retry policy.
func WithRetry(cfg RetryConfig) ResilientOption {
	return func(r *Resilient) { r.retry = cfg.withDefaults() }
}

// WithBreaker replaces the circuit breaker, e.g. to share one between providers.
func WithBreaker(cb *CircuitBreaker) ResilientOption {
	return func(r *Resilient) {
		if cb != nil {
			r.breaker = cb
		}
	}
}

// WithRateLimit allows rps attempts per second with the given burst. A
// non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) ResilientOption {
	return func(r *Resilient) {
		if rps <= 0 {
			r.limiter = nil
			return
		}
		r.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// WithObserver registers a completion observer.
func WithObserver(o CompletionObserver) ResilientOption {
	return func(r *Resilient) { r.observer = o }
}

// WithLogger sets the logger for retry and breaker events.
func WithLogger(l *slog.Logger) ResilientOption {
	return func(r *Resilient) { r.logger = l }
}

// Resilient wraps a Provider with a per-attempt timeout, bounded retry with
// exponential backoff, a circuit breaker and an optional rate limiter.
// Every failure it returns is a *TransportError.
type Resilient struct {
	next     Provider
	timeout  time.Duration
	retry    RetryConfig
	breaker  *CircuitBreaker
	limiter  *rate.Limiter
	observer CompletionObserver
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewResilient wraps next.
func NewResilient(next Provider, opts ...ResilientOption) *Resilient {
	r := &Resilient{
		next:    next,
		timeout: DefaultCallTimeout,
		retry:   DefaultRetryConfig(),
		breaker: NewCircuitBreaker(BreakerConfig{}),
		logger:  slog.Default(),
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.breaker.OnStateChange(func(from, to BreakerState) {
		r.logger.Warn("completion circuit breaker state changed",
			"provider", next.Name(), "from", from.String(), "to", to.String())
	})
	return r
}

// Name returns the wrapped provider's name.
func (r *Resilient) Name() string { return r.next.Name() }

// Breaker exposes the circuit breaker for inspection.
func (r *Resilient) Breaker() *CircuitBreaker { return r.breaker }

// Complete calls the wrapped provider until it succeeds, the error is final,
// or the retry budget is spent.
func (r *Resilient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= r.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := r.sleep(ctx, r.retry.Backoff(attempt)); err != nil {
				lastErr = err
				break
			}
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				lastErr = err
				break
			}
		}

		attempts++
		resp, err := r.attempt(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil || !Retryable(err) {
			break
		}
		if attempt < r.retry.MaxRetries {
			r.logger.Warn("completion attempt failed, retrying",
				"provider", r.next.Name(), "attempt", attempts, "error", err)
		}
	}
	return nil, &TransportError{Provider: r.next.Name(), Attempts: attempts, Err: lastErr}
}

func (r *Resilient) attempt(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	var resp *CompletionResponse
	start := time.Now()
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		out, err := r.next.Complete(callCtx, req)
		if err != nil {
			return err
		}
		if out == nil {
			return errors.New("provider returned no response")
		}
		resp = out
		return nil
	})
	if r.observer != nil {
		r.observer.ObserveCompletion(r.next.Name(), time.Since(start), err)
	}
	return resp, err
}
