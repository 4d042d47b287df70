package mqtt

import (
	"strconv"
	"strings"

	"github.com/caddyserver/caddy"
	"github.com/nextdhcp/nextlease/core/leaseserver"
	"github.com/nextdhcp/nextlease/core/log"
)

const (
	defaultTopic   = "nextlease/{event}"
	defaultPayload = "{event} {client} {address} {lease_seconds}"
)

func init() {
	caddy.RegisterPlugin("mqtt", caddy.Plugin{
		ServerType: "lease",
		Action:     setupMqtt,
	})
}

// setupMqtt parses one or more mqtt directives:
//
//	mqtt [condition] {
//	    name home
//	    broker tcp://localhost:1883
//	    on lease-created
//	    if client == 'aa:bb:cc:dd:ee:ff'
//	    topic nextlease/{event}
//	    payload "{client} {address}"
//	}
func setupMqtt(c *caddy.Controller) error {
	plg, err := parseMqtt(c)
	if err != nil {
		return err
	}

	leaseserver.GetConfig(c).OnEvent(plg.onEvent)
	c.OnShutdown(plg.shutdown)

	return nil
}

func parseMqtt(c *caddy.Controller) (*mqttPlugin, error) {
	plg := &mqttPlugin{}
	plg.l = log.GetLogger(c, "mqtt")
	plg.connect = connectBroker(plg.l)

	for c.Next() {
		cfg := &mqttConfig{
			topic:   defaultTopic,
			payload: defaultPayload,
		}
		useExisting := false

		cfg.AddCondition(strings.Join(c.RemainingArgs(), " "))

		for c.NextBlock() {
			ok, err := cfg.Parse(&c.Dispenser)
			if err != nil {
				return nil, err
			}
			if ok {
				continue
			}

			switch c.Val() {
			case "name", "broker", "user", "password", "client-id",
				"clean-session", "qos":
				if useExisting {
					return nil, c.SyntaxErr("either configure a new connection or \"use\" and existing one")
				}

				if err := parseConnectionSettings(cfg, c); err != nil {
					return nil, err
				}

			case "use":
				if cfg.conn != nil {
					return nil, c.SyntaxErr("either configure a new connection or \"use\" and existing one")
				}
				useExisting = true

				if !c.NextArg() {
					return nil, c.ArgErr()
				}
				cfg.name = c.Val()

			case "topic":
				if !c.NextArg() {
					return nil, c.ArgErr()
				}
				cfg.topic = c.Val()

			case "payload", "body":
				if !c.NextArg() {
					return nil, c.ArgErr()
				}
				cfg.payload = c.Val()

			case "retain":
				cfg.retain = true

			default:
				return nil, c.Errf("mqtt: unknown item: %s", c.Val())
			}
		}

		if !useExisting && cfg.conn == nil {
			return nil, c.SyntaxErr("Either configure a MQTT connection or \"use\" an existing one")
		}

		if cfg.conn != nil && len(cfg.conn.broker) == 0 {
			return nil, c.Err("mqtt: no broker configured")
		}

		if err := cfg.Compile(); err != nil {
			return nil, c.Err(err.Error())
		}

		plg.configs = append(plg.configs, cfg)
	}

	// make sure all referenced connections exist
	for _, cfg := range plg.configs {
		if cfg.conn != nil {
			continue
		}

		found := false
		for _, other := range plg.configs {
			if other.conn != nil && other.name == cfg.name {
				found = true
				break
			}
		}

		if !found {
			return nil, c.Errf("MQTT configuration with name %q not found", cfg.name)
		}
	}

	return plg, nil
}

func parseConnectionSettings(cfg *mqttConfig, c *caddy.Controller) error {
	if cfg.conn == nil {
		cfg.conn = &mqttConnConfig{}
	}

	action := c.Val()
	if action == "clean-session" {
		cfg.conn.cleanSession = true
		return nil
	}

	if !c.NextArg() {
		return c.ArgErr()
	}

	switch action {
	case "name":
		cfg.name = c.Val()
	case "broker":
		cfg.conn.broker = append([]string{c.Val()}, c.RemainingArgs()...)
	case "user":
		cfg.conn.user = c.Val()
	case "password":
		cfg.conn.password = c.Val()
	case "client-id":
		cfg.conn.clientID = c.Val()
	case "qos":
		i, err := strconv.Atoi(c.Val())
		if err != nil || i < 0 || i > 2 {
			return c.SyntaxErr("expected a number between 0 and 2")
		}
		cfg.conn.qos = i
	}

	return nil
}
