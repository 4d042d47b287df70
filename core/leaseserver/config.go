package leaseserver

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/apex/log"
	"github.com/caddyserver/caddy"
	"github.com/nextdhcp/nextlease/core/events"
	"github.com/nextdhcp/nextlease/core/expirer"
	"github.com/nextdhcp/nextlease/core/lease"
	"github.com/nextdhcp/nextlease/plugin"
)

const (
	// DefaultPort is used if a server block key does not specify a port
	DefaultPort = "6767"

	// DefaultPoolSize is the number of addresses leased if the pool
	// directive is not used
	DefaultPoolSize = 5

	// DefaultLeaseTime is the lease time used if the lease directive is
	// not used
	DefaultLeaseTime = 10 * time.Second
)

// DefaultPoolStart is the first address of the pool if the pool directive
// is not used
var DefaultPoolStart = net.IP{192, 168, 1, 1}

// Config configures a single lease server
type Config struct {
	// Addr is the UDP address (host:port) the server listens on
	Addr string

	// PoolStart is the first address of the address pool
	PoolStart net.IP

	// PoolSize is the number of addresses in the pool
	PoolSize int

	// LeaseTime is the lease duration for new and renewed leases
	LeaseTime time.Duration

	// SweepInterval configures how often expired leases are reclaimed
	SweepInterval time.Duration

	// Table holds all leases of the server. It is created in MakeServers
	// so plugins must only access it at runtime
	Table *lease.Table

	// Events delivers lease events to hooks registered by plugins
	Events *events.Dispatcher

	// Expirer reclaims expired leases. If nil a periodic expirer is
	// created using SweepInterval
	Expirer expirer.Expirer

	logger log.Interface

	// plugins is a list of middleware setup functions
	plugins []plugin.Plugin

	// chain is the beginning of the middleware chain for this server
	chain plugin.Handler
}

func newConfig(addr string) *Config {
	l := log.WithField("server", addr)

	return &Config{
		Addr:          addr,
		PoolStart:     DefaultPoolStart,
		PoolSize:      DefaultPoolSize,
		LeaseTime:     DefaultLeaseTime,
		SweepInterval: expirer.DefaultInterval,
		Events:        events.NewDispatcher(l),
		logger:        l,
	}
}

// AddPlugin adds a new plugin to the middleware chain
func (cfg *Config) AddPlugin(p plugin.Plugin) {
	cfg.plugins = append(cfg.plugins, p)
}

// OnEvent registers hook for all lease events of this server
func (cfg *Config) OnEvent(hook events.LeaseEventHook) {
	cfg.Events.Register(hook)
}

// Logger returns the logger of the server
func (cfg *Config) Logger() log.Interface {
	return cfg.logger
}

func keyForConfig(serverBlockIndex, serverBlockKeyIndex int) string {
	return fmt.Sprintf("%d:%d", serverBlockIndex, serverBlockKeyIndex)
}

// GetConfig gets the Config that corresponds to c. If none exists (i.e.
// for test controllers) a new one is created and stored on the context
func GetConfig(c *caddy.Controller) *Config {
	ctx := c.Context().(*leaseContext)
	key := keyForConfig(c.ServerBlockIndex, c.ServerBlockKeyIndex)

	if cfg, ok := ctx.keyToConfig[key]; ok {
		return cfg
	}

	addr := ""
	if c.ServerBlockKeyIndex < len(c.ServerBlockKeys) && c.ServerBlockKeyIndex >= 0 {
		addr = c.ServerBlockKeys[c.ServerBlockKeyIndex]
	}

	cfg := newConfig(addr)
	ctx.addConfig(key, cfg)

	return cfg
}

// setup creates the lease table, the expirer and the middleware chain
func setup(cfg *Config) error {
	pool, err := lease.NewPool(cfg.PoolStart, cfg.PoolSize)
	if err != nil {
		return err
	}

	cfg.Table = lease.NewTable(pool, cfg.LeaseTime)

	if cfg.Expirer == nil {
		cfg.Expirer = expirer.NewPeriodic(cfg.Table,
			expirer.WithInterval(cfg.SweepInterval),
			expirer.WithLogger(cfg.logger),
			expirer.WithExpiredFunc(func(_ context.Context, expired []lease.Lease) {
				for i := range expired {
					cfg.Events.Emit(events.EventLeaseExpired, &expired[i])
				}
			}),
		)
	}

	buildMiddlewareChain(cfg)

	return nil
}

func buildMiddlewareChain(cfg *Config) {
	var chain plugin.Handler = &RequestHandler{
		Table:  cfg.Table,
		Events: cfg.Events,
		Logger: cfg.logger,
	}

	for i := len(cfg.plugins) - 1; i >= 0; i-- {
		chain = cfg.plugins[i](chain)
	}

	cfg.chain = chain
}
