package lease

import (
	"time"

	"github.com/caddyserver/caddy"
	"github.com/nextdhcp/nextlease/core/leaseserver"
)

func init() {
	caddy.RegisterPlugin("lease", caddy.Plugin{
		ServerType: "lease",
		Action:     setupLease,
	})

	caddy.RegisterPlugin("sweep", caddy.Plugin{
		ServerType: "lease",
		Action:     setupSweep,
	})
}

// setupLease configures the lease time of all new and renewed leases.
// Clients cannot negotiate a different lease time
func setupLease(c *caddy.Controller) error {
	config := leaseserver.GetConfig(c)

	for c.Next() {
		d, err := parseDuration(c, time.Second)
		if err != nil {
			return err
		}

		config.LeaseTime = d
	}

	return nil
}

// setupSweep configures how often expired leases are reclaimed
func setupSweep(c *caddy.Controller) error {
	config := leaseserver.GetConfig(c)

	for c.Next() {
		d, err := parseDuration(c, time.Millisecond)
		if err != nil {
			return err
		}

		config.SweepInterval = d
	}

	return nil
}

// parseDuration parses the single duration argument of the current
// directive
func parseDuration(c *caddy.Controller, min time.Duration) (time.Duration, error) {
	if !c.NextArg() {
		return 0, c.ArgErr()
	}

	d, err := time.ParseDuration(c.Val())
	if err != nil {
		return 0, c.SyntaxErr("time.Duration")
	}

	if d < min {
		return 0, c.Errf("duration must be at least %s, got %s", min, d)
	}

	if c.NextArg() {
		return 0, c.ArgErr()
	}

	return d, nil
}
