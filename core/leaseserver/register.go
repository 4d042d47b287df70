package leaseserver

import (
	"fmt"
	"net"

	"github.com/caddyserver/caddy"
	"github.com/caddyserver/caddy/caddyfile"
)

const serverType = "lease"

func init() {
	caddy.RegisterServerType(serverType, caddy.ServerType{
		Directives: func() []string { return Directives },
		DefaultInput: func() caddy.Input {
			return caddy.CaddyfileInput{
				Filepath:       "Leasefile",
				Contents:       []byte("127.0.0.1:" + DefaultPort),
				ServerTypeName: serverType,
			}
		},
		NewContext: newContext,
	})
}

func newContext(i *caddy.Instance) caddy.Context {
	return &leaseContext{
		keyToConfig: make(map[string]*Config),
	}
}

type leaseContext struct {
	configs     []*Config
	keyToConfig map[string]*Config
}

func (c *leaseContext) addConfig(key string, cfg *Config) {
	c.configs = append(c.configs, cfg)
	c.keyToConfig[key] = cfg
}

// normalizeAddr returns key as host:port adding the default port if
// required
func normalizeAddr(key string) (string, error) {
	host, port, err := net.SplitHostPort(key)
	if err != nil {
		host, port = key, DefaultPort
	}

	addr := net.JoinHostPort(host, port)
	if _, err := net.ResolveUDPAddr("udp4", addr); err != nil {
		return "", err
	}

	return addr, nil
}

func (c *leaseContext) InspectServerBlocks(sourceFile string, serverBlocks []caddyfile.ServerBlock) ([]caddyfile.ServerBlock, error) {
	seen := make(map[string]struct{})

	for si, s := range serverBlocks {
		for ki, k := range s.Keys {
			addr, err := normalizeAddr(k)
			if err != nil {
				return nil, fmt.Errorf("invalid listen address '%s' in server block %d: %w", k, si, err)
			}

			if _, ok := seen[addr]; ok {
				return nil, fmt.Errorf("duplicate listen address '%s' in server block %d", addr, si)
			}
			seen[addr] = struct{}{}

			s.Keys[ki] = addr
			c.addConfig(keyForConfig(si, ki), newConfig(addr))
		}
	}

	return serverBlocks, nil
}

func (c *leaseContext) MakeServers() ([]caddy.Server, error) {
	for _, cfg := range c.configs {
		if err := setup(cfg); err != nil {
			return nil, fmt.Errorf("failed to setup server %s: %w", cfg.Addr, err)
		}
	}

	var servers []caddy.Server
	for _, cfg := range c.configs {
		s, err := NewServer(cfg)
		if err != nil {
			return servers, err
		}

		servers = append(servers, s)
	}

	return servers, nil
}
