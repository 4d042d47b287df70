package lease

import (
	"context"
	"sort"
	"time"

	"github.com/nextdhcp/nextlease/core/lease/iprange"
	"github.com/ppacher/webthings-mqtt-gateway/pkg/mutex"
)

type (
	// Table maps clients to their address leases and owns the address
	// pool. All compound operations on the lease map and the pool are
	// executed while holding a single lock
	Table struct {
		l         *mutex.Mutex        // context.Context aware mutex to protect all fields below
		pool      *Pool               // addresses available for leasing
		leases    map[ClientID]*Lease // maps a client to it's lease
		leaseTime time.Duration       // fixed lease duration for new and renewed leases
		now       func() time.Time    // clock used for lease expiration
	}

	// Grant is the result of a successful address request
	Grant struct {
		// Lease is a copy of the client lease
		Lease Lease

		// Remaining is the lease time left, truncated to full seconds
		Remaining time.Duration

		// Created is true if the lease has been created by the request
		// and false if the client already held it
		Created bool
	}

	// TableOption configures a Table
	TableOption func(t *Table)
)

// WithClock configures the clock used by the table
func WithClock(now func() time.Time) TableOption {
	return func(t *Table) {
		t.now = now
	}
}

// NewTable returns a new lease table that leases addresses from pool
// for leaseTime
func NewTable(pool *Pool, leaseTime time.Duration, opts ...TableOption) *Table {
	t := &Table{
		l:         mutex.New(),
		pool:      pool,
		leases:    make(map[ClientID]*Lease),
		leaseTime: leaseTime,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// LeaseTime returns the lease duration used by the table
func (t *Table) LeaseTime() time.Duration {
	return t.leaseTime
}

// Range returns the address range leased by the table
func (t *Table) Range() *iprange.IPRange {
	return t.pool.Range()
}

// Lookup returns a copy of the lease held by id
func (t *Table) Lookup(ctx context.Context, id ClientID) (*Lease, error) {
	if !t.l.TryLock(ctx) {
		return nil, ctx.Err()
	}
	defer t.l.Unlock()

	l, ok := t.leases[id]
	if !ok {
		return nil, ErrNoLeaseFound
	}

	return l.Clone(), nil
}

// RequestLease returns the address leased to id. Clients that already
// hold a lease get their address and the remaining lease time without
// extending it. For all other clients the lowest free address is leased
// for the configured lease time. A *NoAddressError is returned if the
// pool is exhausted
func (t *Table) RequestLease(ctx context.Context, id ClientID) (Grant, error) {
	if !t.l.TryLock(ctx) {
		return Grant{}, ctx.Err()
	}
	defer t.l.Unlock()

	now := t.now()

	if l, ok := t.leases[id]; ok {
		return Grant{
			Lease:     *l.Clone(),
			Remaining: l.Remaining(now),
		}, nil
	}

	if t.pool.IsFull() {
		return Grant{}, &NoAddressError{Client: id, Reason: ReasonPoolFull}
	}

	ip, ok := t.pool.Allocate()
	if !ok {
		return Grant{}, &NoAddressError{Client: id, Reason: ReasonExhausted}
	}

	l := &Lease{
		Client:  id,
		Address: ip,
		Expires: now.Add(t.leaseTime),
	}
	t.leases[id] = l

	return Grant{
		Lease:     *l.Clone(),
		Remaining: t.leaseTime.Truncate(time.Second),
		Created:   true,
	}, nil
}

// RenewLease extends the lease of id to now plus the configured lease time.
// The leased address does not change. ErrNoLeaseFound is returned if the client
// does not hold a lease
func (t *Table) RenewLease(ctx context.Context, id ClientID) (*Lease, error) {
	if !t.l.TryLock(ctx) {
		return nil, ctx.Err()
	}
	defer t.l.Unlock()

	l, ok := t.leases[id]
	if !ok {
		return nil, ErrNoLeaseFound
	}

	l.Expires = t.now().Add(t.leaseTime)

	return l.Clone(), nil
}

// SweepExpired removes all leases that expired before now and releases
// their addresses. It returns the removed leases ordered by address
func (t *Table) SweepExpired(ctx context.Context, now time.Time) ([]Lease, error) {
	if !t.l.TryLock(ctx) {
		return nil, ctx.Err()
	}
	defer t.l.Unlock()

	var expired []Lease
	for id, l := range t.leases {
		if !l.ExpiredAt(now) {
			continue
		}

		t.pool.Release(l.Address)
		delete(t.leases, id)

		expired = append(expired, *l)
	}

	sortByAddress(expired)

	return expired, nil
}

// Leases returns a copy of all leases ordered by address
func (t *Table) Leases(ctx context.Context) ([]Lease, error) {
	if !t.l.TryLock(ctx) {
		return nil, ctx.Err()
	}
	defer t.l.Unlock()

	leases := make([]Lease, 0, len(t.leases))
	for _, l := range t.leases {
		leases = append(leases, *l.Clone())
	}

	sortByAddress(leases)

	return leases, nil
}

// Usage returns the number of allocated addresses and the pool size
func (t *Table) Usage(ctx context.Context) (int, int, error) {
	if !t.l.TryLock(ctx) {
		return 0, 0, ctx.Err()
	}
	defer t.l.Unlock()

	return t.pool.Allocated(), t.pool.Size(), nil
}

func sortByAddress(leases []Lease) {
	sort.Slice(leases, func(i, j int) bool {
		a, _ := iprange.IP2Int(leases[i].Address)
		b, _ := iprange.IP2Int(leases[j].Address)
		return a < b
	})
}
