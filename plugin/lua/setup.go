package lua

import (
	"github.com/caddyserver/caddy"
	"github.com/nextdhcp/nextlease/core/leaseserver"
	"github.com/nextdhcp/nextlease/core/log"
)

func init() {
	caddy.RegisterPlugin("lua", caddy.Plugin{
		ServerType: "lease",
		Action:     setupLua,
	})
}

// setupLua loads a lua script for each lua directive:
//
//	lua hooks.lua
func setupLua(c *caddy.Controller) error {
	cfg := leaseserver.GetConfig(c)

	for c.Next() {
		if !c.NextArg() {
			return c.ArgErr()
		}
		path := c.Val()

		if c.NextArg() {
			return c.ArgErr()
		}

		logger := log.GetLogger(c, "lua").WithField("script", path)

		runner, err := NewFromFile(path, logger)
		if err != nil {
			return c.Errf("failed to load %s: %s", path, err)
		}

		cfg.OnEvent(runner.onEvent)
		c.OnShutdown(runner.Close)
	}

	return nil
}
