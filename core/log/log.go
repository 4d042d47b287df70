package log

import (
	"context"
	"net"

	"github.com/apex/log"
	"github.com/caddyserver/caddy"
	"github.com/nextdhcp/nextlease/core/wire"
)

// Logger is the logging interface used throughout NextLease
type Logger = log.Interface

type requestFieldsKey struct{}

// WithRequest returns a new context.Context that has log fields for the
// given request and peer assigned
func WithRequest(parent context.Context, peer net.Addr, req *wire.Request) context.Context {
	fields := log.Fields{}

	if peer != nil {
		fields["peer"] = peer.String()
	}

	if req != nil {
		fields["client"] = req.MACAddress
		fields["command"] = string(req.Command)
	}

	return context.WithValue(parent, requestFieldsKey{}, fields)
}

// With returns l with all request fields stored in ctx
func With(ctx context.Context, l Logger) Logger {
	if l == nil {
		l = log.Log
	}

	val := ctx.Value(requestFieldsKey{})
	if val == nil {
		return l
	}

	if fields, ok := val.(log.Fields); ok {
		return l.WithFields(fields)
	}

	return l
}

// GetLogger returns a logger for the plugin name configured in the
// server block of c
func GetLogger(c *caddy.Controller, name string) Logger {
	fields := log.Fields{
		"plugin": name,
	}

	if c != nil && len(c.ServerBlockKeys) > c.ServerBlockKeyIndex && c.ServerBlockKeyIndex >= 0 {
		fields["server"] = c.ServerBlockKeys[c.ServerBlockKeyIndex]
	}

	return log.WithFields(fields)
}
