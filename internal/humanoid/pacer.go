// Package humanoid produces the human-like pauses between browser actions.
package humanoid

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Pacer turns a mean duration into a jittered pause. The jitter is normally
// distributed with a standard deviation of StdDevRatio*mean and the result
// is clamped to [0, 3*mean].
type Pacer struct {
	mu          sync.Mutex
	rng         *rand.Rand
	stdDevRatio float64
	sleep       Sleeper
}

// Option configures a Pacer.
type Option func(*Pacer)

// WithRand sets the random source. The Pacer takes ownership of rng.
func WithRand(rng *rand.Rand) Option {
	return func(p *Pacer) { p.rng = rng }
}

// WithSleeper replaces the real clock, typically in tests.
func WithSleeper(s Sleeper) Option {
	return func(p *Pacer) { p.sleep = s }
}

// NewPacer creates a Pacer with the given jitter ratio. A ratio of 0 makes
// every pause exactly its mean.
func NewPacer(stdDevRatio float64, opts ...Option) *Pacer {
	p := &Pacer{stdDevRatio: stdDevRatio, sleep: Sleep}
	for _, opt := range opts {
		opt(p)
	}
	if p.rng == nil {
		p.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return p
}

// Instant returns a Pacer that never waits but still honors cancellation.
func Instant() *Pacer {
	return NewPacer(0, WithSleeper(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }))
}

// Duration draws one pause length around mean.
func (p *Pacer) Duration(mean time.Duration) time.Duration {
	if mean <= 0 {
		return 0
	}
	if p.stdDevRatio == 0 {
		return mean
	}
	p.mu.Lock()
	noise := p.rng.NormFloat64()
	p.mu.Unlock()

	d := time.Duration(float64(mean) * (1 + noise*p.stdDevRatio))
	switch {
	case d < 0:
		return 0
	case d > 3*mean:
		return 3 * mean
	}
	return d
}

// Pause waits for a jittered duration around mean.
func (p *Pacer) Pause(ctx context.Context, mean time.Duration) error {
	return p.sleep(ctx, p.Duration(mean))
}

// Jitter spreads d uniformly over [d*(1-ratio), d*(1+ratio)]. It is used for
// the pacing delay between attempts, which is configured as a range rather
// than a gaussian.
func (p *Pacer) Jitter(d time.Duration, ratio float64) time.Duration {
	if d <= 0 || ratio <= 0 {
		return d
	}
	p.mu.Lock()
	u := p.rng.Float64()
	p.mu.Unlock()
	return time.Duration(float64(d) * (1 - ratio + 2*ratio*u))
}
