// Package breaker wraps github.com/sony/gobreaker/v2 with the three-state
// (CLOSED/OPEN/HALF_OPEN) failure/recovery/success-threshold model the
// gateway's pipeline expects, adding a "retry in N seconds" hint that
// gobreaker itself does not expose.
package breaker

import (
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/askdba/oracle-guardrail-gateway/internal/audit"
)

// Config mirrors the reference implementation's breaker parameters.
type Config struct {
	FailureThreshold uint32
	RecoveryTimeout  time.Duration
	SuccessThreshold uint32

	// OnEvent, if set, is invoked with an audit.EventCircuitOpened or
	// audit.EventCircuitClosed event name on every state transition into
	// that state.
	OnEvent func(event string, fields map[string]any)
}

// DefaultConfig matches the reference implementation's constants.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		SuccessThreshold: 2,
	}
}

// Breaker guards calls to the executor pool, tripping open after consecutive
// failures and recovering through a half-open trial period.
type Breaker struct {
	cb              *gobreaker.CircuitBreaker[any]
	recoveryTimeout time.Duration

	mu          sync.Mutex
	lastOpenAt  time.Time
}

// New constructs a Breaker from cfg, applying DefaultConfig for zero fields.
func New(name string, cfg Config) *Breaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if cfg.RecoveryTimeout == 0 {
		cfg.RecoveryTimeout = DefaultConfig().RecoveryTimeout
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = DefaultConfig().SuccessThreshold
	}

	onEvent := cfg.OnEvent
	if onEvent == nil {
		onEvent = func(string, map[string]any) {}
	}

	b := &Breaker{recoveryTimeout: cfg.RecoveryTimeout}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.SuccessThreshold,
		Timeout:     cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			switch to {
			case gobreaker.StateOpen:
				b.mu.Lock()
				b.lastOpenAt = time.Now()
				b.mu.Unlock()
				onEvent(audit.EventCircuitOpened, map[string]any{"breaker": name})
			case gobreaker.StateClosed:
				onEvent(audit.EventCircuitClosed, map[string]any{"breaker": name})
			}
		},
	}
	b.cb = gobreaker.NewCircuitBreaker[any](settings)
	return b
}

// ErrOpen is returned (wrapped with a retry hint) when the breaker rejects a
// call because it is open.
type ErrOpen struct {
	RetrySeconds int
}

func (e *ErrOpen) Error() string {
	return fmt.Sprintf("circuit breaker is open, retry in %d seconds", e.RetrySeconds)
}

// Execute runs fn through the breaker. If the breaker is open, fn is not
// called and ErrOpen is returned with a remaining-seconds estimate.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, &ErrOpen{RetrySeconds: b.retrySeconds()}
	}
	return result, err
}

func (b *Breaker) retrySeconds() int {
	b.mu.Lock()
	lastOpen := b.lastOpenAt
	b.mu.Unlock()

	if lastOpen.IsZero() {
		return int(b.recoveryTimeout.Seconds())
	}
	remaining := b.recoveryTimeout - time.Since(lastOpen)
	if remaining < 0 {
		return 0
	}
	return int(remaining.Seconds())
}

// State reports the current breaker state as a string for diagnostics.
func (b *Breaker) State() string {
	switch b.cb.State() {
	case gobreaker.StateClosed:
		return "CLOSED"
	case gobreaker.StateHalfOpen:
		return "HALF_OPEN"
	case gobreaker.StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}
