package plugin

import (
	"context"

	"github.com/nextdhcp/nextlease/core/wire"
)

type (
	// Handler for lease requests created by a plugin factory (see Plugin).
	// Each handler is responsible of calling the next handling in the chain
	// which was passed to Plugin
	Handler interface {
		// Name returns the name of the handler
		Name() string

		// ServeLease is a HandlerFunc and called for each decoded request. See HandlerFunc
		// for more information
		ServeLease(ctx context.Context, req *wire.Request, res *wire.Response) error
	}

	// Plugin represents Setup func for a NextLease plugin. It is passed the
	// next plugin in the chain
	Plugin func(Handler) Handler

	// HandlerFunc allows to easily wrap a function as a Handler type.
	// The last handler of each chain operates on the lease table and fills
	// res. Returning leaseserver.ErrNoResponse suppresses the reply
	HandlerFunc func(ctx context.Context, req *wire.Request, res *wire.Response) error
)

// ServeLease implements the Handler interface
func (fn HandlerFunc) ServeLease(ctx context.Context, req *wire.Request, res *wire.Response) error {
	return fn(ctx, req, res)
}

// Name returns "HandlerFunc" and implements the Handler interface
func (fn HandlerFunc) Name() string {
	return "HandlerFunc"
}
