package lease

import (
	"errors"
)

const (
	// ReasonPoolFull is reported when every address of the pool is bound
	// and the client does not hold a lease yet
	ReasonPoolFull = "Cache is full. No new IP address can be assigned."

	// ReasonExhausted is reported when the pool did not return a free
	// address even though it was not considered full
	ReasonExhausted = "No available IP addresses."
)

var (
	// ErrNoLeaseFound indicates that the client does not hold a lease
	ErrNoLeaseFound = errors.New("no lease found for client")
)

// NoAddressError is returned when no address can be leased to a client.
// Reason holds a human readable explanation that is safe to forward to
// clients
type NoAddressError struct {
	Client ClientID
	Reason string
}

func (e *NoAddressError) Error() string {
	return e.Reason
}

// IsNoAddressAvailable returns true if err is or wraps a *NoAddressError
func IsNoAddressAvailable(err error) bool {
	if err == nil {
		return false
	}

	var nae *NoAddressError
	return errors.As(err, &nae)
}
