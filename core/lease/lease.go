package lease

import (
	"fmt"
	"net"
	"time"
)

// ClientID identifies a lease holder. NextLease uses the hardware
// address string as reported by the client and compares it verbatim
type ClientID string

// Lease describes an IPv4 address that has been leased to a client
type Lease struct {
	// Client is the client that received the lease
	Client ClientID

	// Expires holds the timestamp when the lease is going to
	// expire
	Expires time.Time

	// Address holds the address that has been leased to the client
	Address net.IP
}

// ExpiredAt returns true if the lease was expired at t. A lease that
// expires exactly at t is still valid
func (l *Lease) ExpiredAt(t time.Time) bool {
	return l.Expires.Before(t)
}

// Remaining returns the lease time left at t, truncated to whole seconds.
// It never returns a negative duration
func (l *Lease) Remaining(t time.Time) time.Duration {
	d := l.Expires.Sub(t).Truncate(time.Second)
	if d < 0 {
		return 0
	}

	return d
}

// String implements fmt.Stringer
func (l *Lease) String() string {
	return fmt.Sprintf("%s (%s; expires %s)", l.Address.String(), l.Client, l.Expires.Format(time.RFC3339))
}

// Clone returns a deep copy of the lease
func (l *Lease) Clone() *Lease {
	return &Lease{
		Client:  l.Client,
		Expires: l.Expires,
		Address: append(net.IP{}, l.Address...),
	}
}
