package leaseserver

import (
	"context"
	"errors"
	"net"
)

var (
	// ErrNoResponse is returned by plugins if no response should be sent to the client.
	// This may be used by middleware handlers that filtered the request. It's not an
	// actual error
	ErrNoResponse = errors.New("no response should be sent")
)

// PeerKey is the key used to associate a net.Addr with a
// context.Context
type PeerKey struct{}

// GetPeer returns the peer address associated with ctx or nil
func GetPeer(ctx context.Context) net.Addr {
	val, _ := ctx.Value(PeerKey{}).(net.Addr)
	return val
}

// WithPeer associates a peer addr with the ctx
func WithPeer(ctx context.Context, peer net.Addr) context.Context {
	return context.WithValue(ctx, PeerKey{}, peer)
}
