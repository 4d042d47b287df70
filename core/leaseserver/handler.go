package leaseserver

import (
	"context"
	"errors"

	"github.com/caddyserver/caddy"
	"github.com/nextdhcp/nextlease/core/events"
	"github.com/nextdhcp/nextlease/core/lease"
	"github.com/nextdhcp/nextlease/core/log"
	"github.com/nextdhcp/nextlease/core/wire"
	"github.com/nextdhcp/nextlease/plugin"
)

// RequestHandler is the last handler of each middleware chain. It serves
// requests from the lease table and emits lease events once the table
// is unlocked again
type RequestHandler struct {
	Table  *lease.Table
	Events *events.Dispatcher
	Logger log.Logger
}

// Name returns "lease" and implements plugin.Handler
func (h *RequestHandler) Name() string {
	return "lease"
}

// ServeLease implements plugin.Handler
func (h *RequestHandler) ServeLease(ctx context.Context, req *wire.Request, res *wire.Response) error {
	id := lease.ClientID(req.MACAddress)

	switch req.Command {
	case wire.CommandRequestIP:
		return h.requestIP(ctx, id, res)

	case wire.CommandUpdateLease:
		return h.updateLease(ctx, id, res)
	}

	log.With(ctx, h.Logger).Warnf("unknown command %q, dropping", req.Command)
	return ErrNoResponse
}

func (h *RequestHandler) requestIP(ctx context.Context, id lease.ClientID, res *wire.Response) error {
	grant, err := h.Table.RequestLease(ctx, id)
	if err != nil {
		var noAddr *lease.NoAddressError
		if errors.As(err, &noAddr) {
			log.With(ctx, h.Logger).Warn(noAddr.Reason)

			*res = wire.NotAssigned(noAddr.Reason)
			h.emit(events.EventPoolExhausted, &lease.Lease{Client: id})
			return nil
		}

		return err
	}

	*res = wire.Assigned(grant.Lease.Address.String(), int(grant.Remaining.Seconds()))

	if grant.Created {
		log.With(ctx, h.Logger).Infof("leased %s for %s", grant.Lease.Address, h.Table.LeaseTime())
		h.emit(events.EventLeaseCreated, &grant.Lease)
	} else {
		log.With(ctx, h.Logger).Debugf("client already holds %s", grant.Lease.Address)
	}

	return nil
}

func (h *RequestHandler) updateLease(ctx context.Context, id lease.ClientID, res *wire.Response) error {
	l, err := h.Table.RenewLease(ctx, id)
	if errors.Is(err, lease.ErrNoLeaseFound) {
		log.With(ctx, h.Logger).Debug("no lease to renew")

		*res = wire.NotAssigned("")
		return nil
	}
	if err != nil {
		return err
	}

	log.With(ctx, h.Logger).Debugf("renewed %s", l.Address)

	*res = wire.LeaseUpdated()
	h.emit(events.EventLeaseRenewed, l)

	return nil
}

func (h *RequestHandler) emit(event caddy.EventName, l *lease.Lease) {
	if h.Events == nil {
		return
	}

	h.Events.Emit(event, l)
}

// Compile-Time check
var _ plugin.Handler = &RequestHandler{}
