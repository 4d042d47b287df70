package gotify

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/caddyserver/caddy"
	"github.com/nextdhcp/nextlease/core/leaseserver"
	"github.com/nextdhcp/nextlease/core/log"
)

func init() {
	caddy.RegisterPlugin("gotify", caddy.Plugin{
		ServerType: "lease",
		Action:     setupGotify,
	})
}

func setupGotify(c *caddy.Controller) error {
	g, err := makeGotifyPlugin(c)
	if err != nil {
		return err
	}

	leaseserver.GetConfig(c).OnEvent(g.onEvent)
	c.OnShutdown(g.shutdown)

	return nil
}

// makeGotifyPlugin parses all gotify directives. Server and token are
// inherited from the previous gotify directive:
//
//	gotify {
//	    server https://gotify.example.com some-app-token
//	}
//
//	gotify event == 'pool-exhausted' {
//	    title "NextLease"
//	    message "no address left for {client}"
//	    priority 8
//	}
func makeGotifyPlugin(c *caddy.Controller) (*gotifyPlugin, error) {
	g := &gotifyPlugin{
		l: log.GetLogger(c, "gotify"),
	}

	for c.Next() {
		n := &notification{
			priority: defaultPriority,
		}

		condition := strings.Join(c.RemainingArgs(), " ")
		n.AddCondition(condition)
		conditional := condition != ""

		for c.NextBlock() {
			ok, err := n.Parse(&c.Dispenser)
			if err != nil {
				return nil, err
			}
			if ok {
				conditional = true
				continue
			}

			switch c.Val() {
			case "message", "body":
				if !c.NextArg() {
					return nil, c.ArgErr()
				}
				n.msg = c.Val()

			case "title":
				if !c.NextArg() {
					return nil, c.ArgErr()
				}
				n.title = c.Val()

			case "priority":
				if !c.NextArg() {
					return nil, c.ArgErr()
				}
				p, err := strconv.Atoi(c.Val())
				if err != nil || p < 0 {
					return nil, c.SyntaxErr("a positive number")
				}
				n.priority = p

			case "server":
				args := c.RemainingArgs()
				if len(args) == 0 || len(args) > 2 {
					return nil, c.ArgErr()
				}

				if _, err := url.Parse(args[0]); err != nil {
					return nil, c.Errf("invalid gotify server URL: %s", err)
				}

				n.srv = args[0]
				if len(args) == 2 {
					n.token = args[1]
				}

			case "token":
				if !c.NextArg() {
					return nil, c.ArgErr()
				}
				n.token = c.Val()

			default:
				return nil, c.Errf("gotify: unknown item: %s", c.Val())
			}
		}

		if n.srv == "" || n.token == "" {
			srv, token, ok := g.findLastCreds()
			if n.srv == "" && ok {
				n.srv = srv
			}
			if n.token == "" && ok {
				n.token = token
			}
		}

		if n.srv == "" || n.token == "" {
			return nil, c.Err("gotify: server and token must be configured")
		}

		if conditional && n.msg == "" {
			return nil, c.Err("gotify: a message is required if a condition is used")
		}

		if err := n.Compile(); err != nil {
			return nil, c.Err(err.Error())
		}

		g.addNotification(n)
	}

	return g, nil
}
