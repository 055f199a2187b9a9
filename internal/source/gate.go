package source

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Clock abstracts time for the Gate so it can be tested without sleeping.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock is the wall clock.
var RealClock Clock = realClock{}

// Gate enforces a minimum interval between requests issued by one adapter
// instance. Each adapter owns its own Gate; nothing is shared across adapters.
type Gate struct {
	// mu pairs each clock read with its reservation so reservations are made
	// at non-decreasing times; the limiter alone is already goroutine-safe.
	mu      sync.Mutex
	limiter *rate.Limiter
	clock   Clock
}

// NewGate creates a Gate allowing one request per interval. A non-positive
// interval disables gating. A nil clock means the wall clock.
func NewGate(interval time.Duration, clock Clock) *Gate {
	if clock == nil {
		clock = RealClock
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Gate{limiter: rate.NewLimiter(limit, 1), clock: clock}
}

// Wait blocks until the next request may be issued or ctx ends.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	now := g.clock.Now()
	r := g.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	g.mu.Unlock()

	if delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		g.mu.Lock()
		r.CancelAt(g.clock.Now())
		g.mu.Unlock()
		return ctx.Err()
	case <-g.clock.After(delay):
		return nil
	}
}
