// Package circuitbreaker guards outbound gateway calls. A tripped breaker
// fails fast instead of holding the callback page open against a gateway
// that is already timing out.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

var ErrOpen = errors.New("circuit breaker is open")

type Breaker struct {
	maxFailures  int
	resetTimeout time.Duration

	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	state       state
}

func New(maxFailures int, resetTimeout time.Duration) *Breaker {
	return &Breaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        stateClosed,
	}
}

// Execute runs fn unless the breaker is open. The lock is not held during fn
// so a slow gateway call cannot serialize unrelated requests.
func (b *Breaker) Execute(ctx context.Context, fn func() error) error {
	if err := b.allow(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateOpen {
		if time.Since(b.lastFailure) <= b.resetTimeout {
			return ErrOpen
		}
		// Probe with a single request.
		b.state = stateHalfOpen
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		b.lastFailure = time.Now()
		if b.state == stateHalfOpen || b.failures >= b.maxFailures {
			b.state = stateOpen
		}
		return
	}

	b.state = stateClosed
	b.failures = 0
}

// Registry holds one breaker per gateway so one flapping gateway does not
// block the others.
type Registry struct {
	mu           sync.Mutex
	breakers     map[string]*Breaker
	maxFailures  int
	resetTimeout time.Duration
}

func NewRegistry(maxFailures int, resetTimeout time.Duration) *Registry {
	return &Registry{
		breakers:     make(map[string]*Breaker),
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
	}
}

func (r *Registry) For(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[name]
	if !ok {
		b = New(r.maxFailures, r.resetTimeout)
		r.breakers[name] = b
	}
	return b
}
