package search

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Gate admits one request at a time to a provider and keeps consecutive
// admissions at least Interval apart, no matter how many goroutines share it.
type Gate struct {
	slot    chan struct{}
	limiter *rate.Limiter
}

// NewGate returns a gate with the given minimum spacing. A non-positive
// interval still serialises requests but adds no delay.
func NewGate(interval time.Duration) *Gate {
	g := &Gate{slot: make(chan struct{}, 1)}
	if interval > 0 {
		g.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	return g
}

// Do runs fn while holding the gate.
func (g *Gate) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if g == nil {
		return fn(ctx)
	}
	select {
	case g.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-g.slot }()
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return fn(ctx)
}
