// Package expirer reclaims addresses of expired leases. The Periodic
// expirer re-scans the lease table at a fixed interval, so an expired
// lease may be kept for up to one interval before it's address can be
// leased again.
package expirer

import (
	"context"
	"time"

	"github.com/apex/log"
	"github.com/nextdhcp/nextlease/core/lease"
)

// DefaultInterval is the sweep interval used if none is configured
const DefaultInterval = time.Second

type (
	// Sweeper removes all leases that expired before now and returns them.
	// *lease.Table implements Sweeper
	Sweeper interface {
		SweepExpired(ctx context.Context, now time.Time) ([]lease.Lease, error)
	}

	// Expirer runs until ctx is canceled and frees expired leases. Implementations
	// must sweep a lease once now is past it's expiration time
	Expirer interface {
		Run(ctx context.Context) error
	}

	// ExpiredFunc is called with every non-empty batch of expired leases
	ExpiredFunc func(ctx context.Context, expired []lease.Lease)

	// Option configures a Periodic expirer
	Option func(p *Periodic)

	// Periodic is an Expirer that sweeps the lease table at a fixed interval
	Periodic struct {
		sweeper   Sweeper
		interval  time.Duration
		now       func() time.Time
		onExpired ExpiredFunc
		l         log.Interface
	}
)

// WithInterval configures the sweep interval
func WithInterval(d time.Duration) Option {
	return func(p *Periodic) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithClock configures the clock passed to the sweeper
func WithClock(now func() time.Time) Option {
	return func(p *Periodic) {
		p.now = now
	}
}

// WithExpiredFunc configures a function that is called with all leases
// removed during a sweep
func WithExpiredFunc(fn ExpiredFunc) Option {
	return func(p *Periodic) {
		p.onExpired = fn
	}
}

// WithLogger configures the logger to use
func WithLogger(l log.Interface) Option {
	return func(p *Periodic) {
		p.l = l
	}
}

// NewPeriodic returns a new periodic expirer for s
func NewPeriodic(s Sweeper, opts ...Option) *Periodic {
	p := &Periodic{
		sweeper:  s,
		interval: DefaultInterval,
		now:      time.Now,
		l:        log.Log,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Interval returns the sweep interval
func (p *Periodic) Interval() time.Duration {
	return p.interval
}

// Run sweeps expired leases every interval until ctx is canceled. It
// returns nil once ctx is done
func (p *Periodic) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.l.Debugf("sweeping expired leases every %s", p.interval)

	for {
		select {
		case <-ctx.Done():
			p.l.Debugf("lease expirer stopped")
			return nil
		case <-ticker.C:
			p.Sweep(ctx)
		}
	}
}

// Sweep performs a single sweep and returns the expired leases
func (p *Periodic) Sweep(ctx context.Context) []lease.Lease {
	expired, err := p.sweeper.SweepExpired(ctx, p.now())
	if err != nil {
		if ctx.Err() == nil {
			p.l.Errorf("failed to sweep expired leases: %s", err.Error())
		}
		return nil
	}

	if len(expired) == 0 {
		return nil
	}

	for _, l := range expired {
		p.l.WithFields(log.Fields{
			"client":  string(l.Client),
			"address": l.Address.String(),
		}).Infof("expired lease removed for %s", l.Client)
	}

	if p.onExpired != nil {
		p.onExpired(ctx, expired)
	}

	return expired
}

// Compile-Time check
var _ Expirer = &Periodic{}
var _ Sweeper = &lease.Table{}
