package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling the guarded function while the
// breaker is open or its trial slots are taken.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// CircuitBreakerConfig sets when the breaker opens and how it tests for
// recovery. Zero values take defaults: 5 failures, 30s, 1 trial.
type CircuitBreakerConfig struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	HalfOpenMaxRequests int
}

func (c CircuitBreakerConfig) withDefaults() CircuitBreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 30 * time.Second
	}
	if c.HalfOpenMaxRequests <= 0 {
		c.HalfOpenMaxRequests = 1
	}
	return c
}

// CircuitBreaker opens after FailureThreshold consecutive failures. Once
// ResetTimeout has passed it lets up to HalfOpenMaxRequests trials through;
// a successful trial closes it and a failed one reopens it.
//
// OnStateChange, when set, is called on every transition with the breaker's
// lock held, so it must not call back into the breaker.
type CircuitBreaker struct {
	name   string
	cfg    CircuitBreakerConfig
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	trials   int

	OnStateChange func(name string, state State)
}

func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg.withDefaults(),
		logger: slog.Default().With("component", "circuit-breaker", "name", name),
	}
}

// Execute calls fn unless the breaker rejects it. An error caused by ctx
// ending is returned without counting against the guarded dependency.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	trial, err := cb.admit(time.Now())
	if err != nil {
		return err
	}
	err = fn(ctx)
	switch {
	case err != nil && ctx.Err() != nil:
		cb.abandon(trial)
	case err != nil:
		cb.fail(trial)
	default:
		cb.succeed(trial)
	}
	return err
}

func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset closes the breaker and clears its failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.trials = 0
	if cb.state != StateClosed {
		cb.transition(StateClosed)
	}
	cb.logger.Info("circuit reset")
}

// admit reports whether the call is a half-open trial, or rejects it.
func (cb *CircuitBreaker) admit(now time.Time) (trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen {
		wait := cb.cfg.ResetTimeout - now.Sub(cb.openedAt)
		if wait > 0 {
			return false, fmt.Errorf("%w: %s (retry after %v)", ErrCircuitOpen, cb.name, wait)
		}
		cb.trials = 0
		cb.transition(StateHalfOpen)
	}
	if cb.state == StateHalfOpen {
		if cb.trials >= cb.cfg.HalfOpenMaxRequests {
			return false, fmt.Errorf("%w: %s (trial in flight)", ErrCircuitOpen, cb.name)
		}
		cb.trials++
		return true, nil
	}
	return false, nil
}

func (cb *CircuitBreaker) succeed(trial bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	if trial && cb.state == StateHalfOpen {
		cb.trials = 0
		cb.transition(StateClosed)
	}
}

func (cb *CircuitBreaker) fail(trial bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	switch {
	case trial && cb.state == StateHalfOpen:
		cb.open()
	case cb.state == StateClosed && cb.failures >= cb.cfg.FailureThreshold:
		cb.open()
	}
}

// abandon returns a trial slot without judging the dependency.
func (cb *CircuitBreaker) abandon(trial bool) {
	if !trial {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateHalfOpen && cb.trials > 0 {
		cb.trials--
	}
}

func (cb *CircuitBreaker) open() {
	cb.openedAt = time.Now()
	cb.transition(StateOpen)
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	cb.logger.Info("circuit state changed",
		"from", from.String(),
		"to", to.String(),
		"consecutive_failures", cb.failures,
	)
	if cb.OnStateChange != nil {
		cb.OnStateChange(cb.name, to)
	}
}
