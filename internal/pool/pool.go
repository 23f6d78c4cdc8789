// Package pool manages a fixed-size set of executor.Executor subprocesses,
// handing out a free one per query and restarting any that fail.
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/askdba/oracle-guardrail-gateway/internal/audit"
	"github.com/askdba/oracle-guardrail-gateway/internal/executor"
)

// Config controls pool sizing and wait behavior.
type Config struct {
	Size       int
	MaxWait    time.Duration
	PollPeriod time.Duration

	// OnEvent, if set, is invoked with audit.EventConnectionRestarted
	// whenever a failed executor is restarted in place.
	OnEvent func(event string, fields map[string]any)
}

func (c Config) size() int {
	if c.Size > 0 {
		return c.Size
	}
	return 2
}

func (c Config) maxWait() time.Duration {
	if c.MaxWait > 0 {
		return c.MaxWait
	}
	return 30 * time.Second
}

func (c Config) pollPeriod() time.Duration {
	if c.PollPeriod > 0 {
		return c.PollPeriod
	}
	return 100 * time.Millisecond
}

type slot struct {
	exec *executor.Executor
	busy bool
}

// Pool is a bounded collection of executor subprocesses.
type Pool struct {
	cfg   Config
	execg executor.Config

	mu    sync.Mutex
	slots []*slot
}

// New starts cfg.Size executors (execCfg describes each one) upfront,
// aborting and tearing down everything already started if any one fails.
func New(ctx context.Context, cfg Config, execCfg executor.Config) (*Pool, error) {
	p := &Pool{cfg: cfg, execg: execCfg}
	n := cfg.size()
	p.slots = make([]*slot, 0, n)
	for i := 0; i < n; i++ {
		e, err := executor.New(ctx, execCfg)
		if err != nil {
			p.shutdownLocked()
			return nil, fmt.Errorf("pool: starting executor %d/%d: %w", i+1, n, err)
		}
		p.slots = append(p.slots, &slot{exec: e})
	}
	return p, nil
}

// ErrExhausted is returned when no executor becomes free within MaxWait.
var ErrExhausted = fmt.Errorf("pool: no executor became available before the wait timeout")

// Execute acquires a free executor, runs query on it, and releases it. If
// the query fails due to a transport error the executor is restarted before
// the slot is released, matching the reference pool's restart-on-failure
// behavior.
func (p *Pool) Execute(ctx context.Context, query string) (*executor.Response, error) {
	deadline := time.Now().Add(p.cfg.maxWait())
	for {
		if s := p.acquire(); s != nil {
			resp, err := s.exec.Execute(query)
			if err != nil && !s.exec.IsAlive() {
				if restartErr := s.exec.Restart(ctx); restartErr == nil && p.cfg.OnEvent != nil {
					p.cfg.OnEvent(audit.EventConnectionRestarted, map[string]any{"cause": err.Error()})
				}
			}
			p.release(s)
			return resp, err
		}

		if time.Now().After(deadline) {
			return nil, ErrExhausted
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.cfg.pollPeriod()):
		}
	}
}

// acquire selects a slot that is both free and alive, matching the pool's
// busy-scan admission rule. A free-but-dead slot (its executor crashed and
// has not yet been restarted) is left unselected; it becomes eligible again
// once Execute's restart-on-failure path revives it.
func (p *Pool) acquire() *slot {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.slots {
		if !s.busy && s.exec.IsAlive() {
			s.busy = true
			return s
		}
	}
	return nil
}

func (p *Pool) release(s *slot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s.busy = false
}

// HealthCheck pings every executor and reports how many responded healthy.
func (p *Pool) HealthCheck() (healthy, total int) {
	p.mu.Lock()
	slots := append([]*slot{}, p.slots...)
	p.mu.Unlock()

	total = len(slots)
	for _, s := range slots {
		ok, err := s.exec.Ping()
		if err == nil && ok {
			healthy++
		}
	}
	return healthy, total
}

// Shutdown stops every executor in the pool.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shutdownLocked()
}

func (p *Pool) shutdownLocked() {
	for _, s := range p.slots {
		_ = s.exec.Stop()
	}
}
