package nats

import (
	"net/url"
	"strings"

	"github.com/caddyserver/caddy"
	"github.com/nextdhcp/nextlease/core/leaseserver"
	"github.com/nextdhcp/nextlease/core/log"
)

func init() {
	caddy.RegisterPlugin("nats", caddy.Plugin{
		ServerType: "lease",
		Action:     setupNATS,
	})
}

// setupNATS configures the nats directive:
//
//	nats [url] {
//	    subject nextlease.events
//	    name nextlease
//	    user foo bar
//	    token secret
//	    jetstream
//	    on lease-created lease-expired
//	    if client == 'aa:bb:cc:dd:ee:ff'
//	}
func setupNATS(c *caddy.Controller) error {
	p, err := parseNATS(c)
	if err != nil {
		return err
	}

	leaseserver.GetConfig(c).OnEvent(p.onEvent)
	c.OnStartup(p.start)
	c.OnShutdown(p.shutdown)

	return nil
}

func parseNATS(c *caddy.Controller) (*natsPlugin, error) {
	p := &natsPlugin{
		url:     defaultURL,
		subject: defaultSubject,
		server:  leaseserver.GetConfig(c).Addr,
		l:       log.GetLogger(c, "nats"),
		connect: connectNATS,
	}

	parsed := false
	for c.Next() {
		if parsed {
			return nil, c.Err("nats can only be configured once per server")
		}
		parsed = true

		args := c.RemainingArgs()
		switch len(args) {
		case 0:
		case 1:
			p.url = args[0]
		default:
			return nil, c.ArgErr()
		}

		for c.NextBlock() {
			ok, err := p.Parse(&c.Dispenser)
			if err != nil {
				return nil, err
			}
			if ok {
				continue
			}

			switch c.Val() {
			case "url":
				if !c.NextArg() {
					return nil, c.ArgErr()
				}
				p.url = c.Val()

			case "subject":
				if !c.NextArg() {
					return nil, c.ArgErr()
				}
				p.subject = c.Val()

				if strings.ContainsAny(p.subject, " \t") || strings.HasSuffix(p.subject, ".") {
					return nil, c.Errf("invalid NATS subject %q", p.subject)
				}

			case "name":
				if !c.NextArg() {
					return nil, c.ArgErr()
				}
				p.name = c.Val()

			case "user":
				args := c.RemainingArgs()
				if len(args) != 2 {
					return nil, c.ArgErr()
				}
				p.user, p.password = args[0], args[1]

			case "token":
				if !c.NextArg() {
					return nil, c.ArgErr()
				}
				p.token = c.Val()

			case "jetstream":
				if c.NextArg() {
					return nil, c.ArgErr()
				}
				p.jetstream = true

			default:
				return nil, c.Errf("nats: unknown item: %s", c.Val())
			}
		}
	}

	for _, u := range strings.Split(p.url, ",") {
		parsedURL, err := url.Parse(strings.TrimSpace(u))
		if err != nil {
			return nil, c.Errf("invalid NATS url %q: %s", u, err)
		}
		if parsedURL.Host == "" {
			return nil, c.Errf("invalid NATS url %q: missing host", u)
		}
	}

	if err := p.Compile(); err != nil {
		return nil, c.Err(err.Error())
	}

	return p, nil
}
