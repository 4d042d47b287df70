// Package leaseclient implements a NextLease client that requests and
// renews address leases.
package leaseclient

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/apex/log"
	"github.com/nextdhcp/nextlease/core/wire"
)

// DefaultTimeout is the time a client waits for a response
const DefaultTimeout = 5 * time.Second

// RenewFactor is the fraction of the lease time a client waits before
// renewing its lease
const RenewFactor = 0.7

// ErrUnexpectedStatus is returned if the server answered with an unknown
// status
var ErrUnexpectedStatus = errors.New("unexpected response status")

// Client talks to a single NextLease server using a fixed hardware address
type Client struct {
	conn    net.Conn
	hwaddr  string
	timeout time.Duration
}

// RandomHardwareAddr returns a random hardware address in the
// 00:16:3e OUI
func RandomHardwareAddr() string {
	return fmt.Sprintf("00:16:3e:%02x:%02x:%02x", rand.Intn(256), rand.Intn(256), rand.Intn(256))
}

// Dial creates a new client for server. If hwaddr is empty a random
// hardware address is used
func Dial(server, hwaddr string) (*Client, error) {
	conn, err := net.Dial("udp4", server)
	if err != nil {
		return nil, err
	}

	if hwaddr == "" {
		hwaddr = RandomHardwareAddr()
	}

	return &Client{
		conn:    conn,
		hwaddr:  hwaddr,
		timeout: DefaultTimeout,
	}, nil
}

// HardwareAddr returns the hardware address used by the client
func (c *Client) HardwareAddr() string {
	return c.hwaddr
}

// SetTimeout sets the time the client waits for each response
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// Close closes the underlying connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// RequestIP asks the server for an address lease
func (c *Client) RequestIP(ctx context.Context) (*wire.Response, error) {
	return c.exchange(ctx, wire.CommandRequestIP)
}

// UpdateLease asks the server to renew the lease of the client
func (c *Client) UpdateLease(ctx context.Context) (*wire.Response, error) {
	return c.exchange(ctx, wire.CommandUpdateLease)
}

func (c *Client) exchange(ctx context.Context, cmd wire.Command) (*wire.Response, error) {
	payload, err := wire.EncodeRequest(&wire.Request{
		Command:    cmd,
		MACAddress: c.hwaddr,
	})
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(c.timeout)
	ctxDeadline := false
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
		ctxDeadline = true
	}

	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	if _, err := c.conn.Write(payload); err != nil {
		return nil, err
	}

	buf := make([]byte, wire.MaxMessageSize)
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			var netErr net.Error
			if ctxDeadline && errors.As(err, &netErr) && netErr.Timeout() {
				return nil, context.DeadlineExceeded
			}
			return nil, err
		}

		res, err := wire.DecodeResponse(buf[:n])
		if err != nil {
			// not for us, wait for the next datagram
			continue
		}

		return res, nil
	}
}

// Simulate requests an address for a new client and, if renew is set,
// renews the lease after RenewFactor of the lease time passed
func Simulate(ctx context.Context, server string, renew bool, l log.Interface) error {
	cli, err := Dial(server, "")
	if err != nil {
		return err
	}
	defer cli.Close()

	l = l.WithField("client", cli.HardwareAddr())

	l.Infof("requesting address from %s", server)
	res, err := cli.RequestIP(ctx)
	if err != nil {
		return fmt.Errorf("%s: failed to receive response: %w", cli.HardwareAddr(), err)
	}

	switch res.Status {
	case wire.StatusAssigned:
		l.Infof("assigned address %s, lease time %ds", res.AssignedIP, res.LeaseTime)

	case wire.StatusNotAssigned:
		if res.Message == "" {
			l.Warn("no address assigned")
		} else {
			l.Warnf("no address assigned: %s", res.Message)
		}
		return nil

	default:
		return fmt.Errorf("%w: %s", ErrUnexpectedStatus, res.Status)
	}

	wait := time.Duration(float64(res.LeaseTime) * RenewFactor * float64(time.Second))

	select {
	case <-time.After(wait):
	case <-ctx.Done():
		return ctx.Err()
	}

	if !renew {
		return nil
	}

	res, err = cli.UpdateLease(ctx)
	if err != nil {
		return fmt.Errorf("%s: failed to renew lease: %w", cli.HardwareAddr(), err)
	}

	switch res.Status {
	case wire.StatusLeaseUpdated:
		l.Info("lease updated")
	case wire.StatusNotAssigned:
		l.Warn("lease could not be renewed")
	default:
		return fmt.Errorf("%w: %s", ErrUnexpectedStatus, res.Status)
	}

	return nil
}
