// Package circuitbreaker guards calls to the social-graph API so a failing
// upstream is not hammered page after page by concurrent scans.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/follow-scanner/internal/logging"
)

// State represents the circuit breaker state
type State string

const (
	// StateClosed means the circuit is closed and requests are allowed
	StateClosed State = "closed"
	// StateOpen means the circuit is open and requests are blocked
	StateOpen State = "open"
	// StateHalfOpen means a limited number of probe requests are allowed
	StateHalfOpen State = "half_open"
)

// ErrCircuitOpen is returned when the circuit breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config configures a circuit breaker
type Config struct {
	Name string
	// MaxConsecutiveFailures opens the circuit once reached
	MaxConsecutiveFailures int
	// Cooldown is how long the circuit stays open before probing
	Cooldown time.Duration
	// HalfOpenMaxCalls successful probes close the circuit again.
	// Further calls wait for the probes to settle instead of failing.
	HalfOpenMaxCalls int
	// IsFailure decides which errors count against the upstream.
	// Nil counts every non-nil error.
	IsFailure func(error) bool
}

// DefaultConfig returns a default circuit breaker configuration
func DefaultConfig(name string) *Config {
	return &Config{
		Name:                   name,
		MaxConsecutiveFailures: 5,
		Cooldown:               30 * time.Second,
		HalfOpenMaxCalls:       1,
	}
}

// CircuitBreaker implements the circuit breaker pattern
type CircuitBreaker struct {
	cfg Config
	now func() time.Time

	mu               sync.Mutex
	state            State
	consecutiveFails int
	halfOpenCalls    int
	halfOpenOK       int
	openedAt         time.Time
	// probeDone is closed whenever a half-open slot may have freed up
	probeDone chan struct{}
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(cfg *Config) *CircuitBreaker {
	c := *cfg
	if c.MaxConsecutiveFailures <= 0 {
		c.MaxConsecutiveFailures = 1
	}
	if c.HalfOpenMaxCalls <= 0 {
		c.HalfOpenMaxCalls = 1
	}
	return &CircuitBreaker{cfg: c, now: time.Now, state: StateClosed}
}

// Execute runs fn unless the circuit is open.
// While probes are in flight in the half-open state, fn waits for their
// outcome and then runs or fails with ErrCircuitOpen accordingly.
// A cancelled context is never recorded as an upstream failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	for {
		wait, err := cb.beforeRequest()
		if err != nil {
			return err
		}
		if wait == nil {
			break
		}
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	err := fn()
	if err != nil && ctx.Err() != nil {
		cb.release()
		return err
	}

	cb.afterRequest(err)
	return err
}

// beforeRequest admits a call, rejects it, or hands back a channel to wait on
func (cb *CircuitBreaker) beforeRequest() (<-chan struct{}, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cfg.Cooldown {
			return nil, ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
		cb.halfOpenCalls = 1
		return nil, nil
	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.cfg.HalfOpenMaxCalls {
			return cb.probeDone, nil
		}
		cb.halfOpenCalls++
		return nil, nil
	default:
		return nil, nil
	}
}

// release gives back a half-open slot taken by a call that did not complete
func (cb *CircuitBreaker) release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateHalfOpen && cb.halfOpenCalls > 0 {
		cb.halfOpenCalls--
		close(cb.probeDone)
		cb.probeDone = make(chan struct{})
	}
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	failed := err != nil
	if failed && cb.cfg.IsFailure != nil {
		failed = cb.cfg.IsFailure(err)
	}

	if !failed {
		cb.consecutiveFails = 0
		if cb.state == StateHalfOpen {
			cb.halfOpenOK++
			if cb.halfOpenOK >= cb.cfg.HalfOpenMaxCalls {
				cb.transition(StateClosed)
			}
		}
		return
	}

	cb.consecutiveFails++
	switch cb.state {
	case StateHalfOpen:
		cb.transition(StateOpen)
	case StateClosed:
		if cb.consecutiveFails >= cb.cfg.MaxConsecutiveFailures {
			cb.transition(StateOpen)
		}
	}
}

// transition must be called with mu held
func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	if cb.state == StateHalfOpen && cb.probeDone != nil {
		close(cb.probeDone)
		cb.probeDone = nil
	}
	if to == StateHalfOpen {
		cb.probeDone = make(chan struct{})
	}
	cb.state = to
	cb.halfOpenCalls = 0
	cb.halfOpenOK = 0

	fields := map[string]interface{}{
		"circuitBreaker":   cb.cfg.Name,
		"state":            to,
		"consecutiveFails": cb.consecutiveFails,
	}
	switch to {
	case StateOpen:
		cb.openedAt = cb.now()
		logging.WithFields(fields).Warn("Circuit breaker opened")
	case StateClosed:
		cb.consecutiveFails = 0
		logging.WithFields(fields).Info("Circuit breaker closed after successful recovery")
	default:
		logging.WithFields(fields).Info("Circuit breaker transitioning to half-open")
	}
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats represents circuit breaker statistics
type Stats struct {
	Name             string    `json:"name"`
	State            State     `json:"state"`
	ConsecutiveFails int       `json:"consecutiveFails"`
	OpenedAt         time.Time `json:"openedAt,omitempty"`
}

// GetStats returns statistics about the circuit breaker
func (cb *CircuitBreaker) GetStats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Stats{
		Name:             cb.cfg.Name,
		State:            cb.state,
		ConsecutiveFails: cb.consecutiveFails,
		OpenedAt:         cb.openedAt,
	}
}

// Reset manually resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
	cb.consecutiveFails = 0
}
