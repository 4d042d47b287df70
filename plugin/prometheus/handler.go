package prometheus

import (
	"context"
	"errors"
	"time"

	"github.com/caddyserver/caddy"
	"github.com/nextdhcp/nextlease/core/lease"
	"github.com/nextdhcp/nextlease/core/leaseserver"
	"github.com/nextdhcp/nextlease/core/wire"
	"github.com/nextdhcp/nextlease/plugin"
)

// Plugin counts lease requests and measures how long they took
type Plugin struct {
	Next    plugin.Handler
	Metrics *Metrics
}

// Name implements plugin.Handler
func (p *Plugin) Name() string {
	return "prometheus"
}

// ServeLease implements plugin.Handler
func (p *Plugin) ServeLease(ctx context.Context, req *wire.Request, res *wire.Response) error {
	start := time.Now()

	err := p.Next.ServeLease(ctx, req, res)

	status := string(res.Status)
	switch {
	case errors.Is(err, leaseserver.ErrNoResponse):
		status = "none"
	case err != nil:
		status = "error"
	}

	command := string(req.Command)
	p.Metrics.requestCount.WithLabelValues(command, status).Inc()
	p.Metrics.requestDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())

	return err
}

// onEvent counts lease events
func (p *Plugin) onEvent(event caddy.EventName, _ *lease.Lease) error {
	p.Metrics.eventCount.WithLabelValues(string(event)).Inc()
	return nil
}
