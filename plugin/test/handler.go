package test

import (
	"context"
	"errors"

	"github.com/nextdhcp/nextlease/core/wire"
)

type (
	// HandlerFunc implements plugin.Handler
	HandlerFunc func(ctx context.Context, req *wire.Request, res *wire.Response) error
)

// ServeLease implements plugin.Handler
func (fn HandlerFunc) ServeLease(ctx context.Context, req *wire.Request, res *wire.Response) error {
	return fn(ctx, req, res)
}

// Name implements plugin.Handler
func (fn HandlerFunc) Name() string {
	return "test.HandlerFunc"
}

var (
	// ErrorHandler is a plugin.Handler and always returns an error
	ErrorHandler = HandlerFunc(func(_ context.Context, req *wire.Request, res *wire.Response) error {
		return errors.New("simulated error")
	})

	// NoOpHandler is a No-Operation plugin.Handler
	NoOpHandler = HandlerFunc(func(_ context.Context, req *wire.Request, res *wire.Response) error {
		return nil
	})

	// AssignHandler is a plugin.Handler that answers every request with
	// an ASSIGNED_IP response for 192.168.1.1
	AssignHandler = HandlerFunc(func(_ context.Context, req *wire.Request, res *wire.Response) error {
		*res = wire.Assigned("192.168.1.1", 10)
		return nil
	})
)
