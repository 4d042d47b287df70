package pool

import (
	"errors"
	"net"
	"strconv"

	"github.com/caddyserver/caddy"
	"github.com/nextdhcp/nextlease/core/lease"
	"github.com/nextdhcp/nextlease/core/lease/iprange"
	"github.com/nextdhcp/nextlease/core/leaseserver"
)

var errInvalidSize = errors.New("pool size must be a number or the last address of the pool")

func init() {
	caddy.RegisterPlugin("pool", caddy.Plugin{
		ServerType: "lease",
		Action:     setupPool,
	})
}

// setupPool parses the address pool of a server. The pool may either be
// configured by it's first address and size or by the first and the last
// address:
//
//	pool 192.168.1.1 5
//	pool 192.168.1.1 192.168.1.5
func setupPool(c *caddy.Controller) error {
	cfg := leaseserver.GetConfig(c)
	configured := false

	for c.Next() {
		if configured {
			return c.Err("only one pool per server is supported")
		}

		args := c.RemainingArgs()
		if len(args) != 2 {
			return c.ArgErr()
		}

		start := net.ParseIP(args[0])
		if start == nil || start.To4() == nil {
			return c.SyntaxErr("IPv4 address")
		}

		size, err := parseSize(start, args[1])
		if err != nil {
			return c.Err(err.Error())
		}

		if size > lease.MaxPoolSize {
			return c.Errf("pool of %d addresses is too large, at most %d addresses are supported", size, lease.MaxPoolSize)
		}

		r, err := iprange.New(start, size)
		if err != nil {
			return c.Err(err.Error())
		}

		cfg.PoolStart = r.Start
		cfg.PoolSize = r.Len()
		configured = true
	}

	return nil
}

func parseSize(start net.IP, arg string) (int, error) {
	if end := net.ParseIP(arg); end != nil {
		r := &iprange.IPRange{Start: start.To4(), End: end.To4()}
		if err := r.Validate(); err != nil {
			return 0, err
		}

		return r.Len(), nil
	}

	size, err := strconv.Atoi(arg)
	if err != nil {
		return 0, errInvalidSize
	}

	return size, nil
}
