package leaseserver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/caddyserver/caddy"
	"github.com/caddyserver/caddy/caddyfile"
	"github.com/nextdhcp/nextlease/core/wire"
	"github.com/nextdhcp/nextlease/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAddr(t *testing.T) {
	cases := []struct {
		I   string
		E   string
		Err bool
	}{
		{"127.0.0.1:6767", "127.0.0.1:6767", false},
		{"127.0.0.1", "127.0.0.1:6767", false},
		{"localhost", "localhost:6767", false},
		{":7000", ":7000", false},
		{"127.0.0.1:notaport", "", true},
	}

	for i, c := range cases {
		addr, err := normalizeAddr(c.I)
		if c.Err {
			assert.Error(t, err, "case #%d", i)
			continue
		}

		assert.NoError(t, err, "case #%d", i)
		assert.Equal(t, c.E, addr, "case #%d", i)
	}
}

func TestInspectServerBlocks(t *testing.T) {
	ctx := newContext(nil).(*leaseContext)

	blocks, err := ctx.InspectServerBlocks("Leasefile", []caddyfile.ServerBlock{
		{Keys: []string{"127.0.0.1", "127.0.0.1:7000"}},
		{Keys: []string{"127.0.0.2:6767"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"127.0.0.1:6767", "127.0.0.1:7000"}, blocks[0].Keys)
	require.Len(t, ctx.configs, 3)
	assert.Equal(t, "127.0.0.2:6767", ctx.keyToConfig["1:0"].Addr)

	cfg := ctx.keyToConfig["0:1"]
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
	assert.Equal(t, DefaultPoolStart, cfg.PoolStart)
	assert.Equal(t, DefaultPoolSize, cfg.PoolSize)
	assert.Equal(t, DefaultLeaseTime, cfg.LeaseTime)
	assert.Equal(t, time.Second, cfg.SweepInterval)
	assert.NotNil(t, cfg.Events)
}

func TestInspectServerBlocks_errors(t *testing.T) {
	ctx := newContext(nil).(*leaseContext)
	_, err := ctx.InspectServerBlocks("Leasefile", []caddyfile.ServerBlock{
		{Keys: []string{"127.0.0.1", "127.0.0.1:6767"}},
	})
	assert.Error(t, err, "duplicate addresses should be rejected")

	ctx = newContext(nil).(*leaseContext)
	_, err = ctx.InspectServerBlocks("Leasefile", []caddyfile.ServerBlock{
		{Keys: []string{"127.0.0.1:foo"}},
	})
	assert.Error(t, err)
}

func TestMakeServers(t *testing.T) {
	ctx := newContext(nil).(*leaseContext)
	_, err := ctx.InspectServerBlocks("Leasefile", []caddyfile.ServerBlock{
		{Keys: []string{"127.0.0.1:6767"}},
	})
	require.NoError(t, err)

	servers, err := ctx.MakeServers()
	require.NoError(t, err)
	require.Len(t, servers, 1)

	cfg := ctx.configs[0]
	assert.NotNil(t, cfg.Table)
	assert.NotNil(t, cfg.Expirer)
	assert.Equal(t, 10*time.Second, cfg.Table.LeaseTime())
	assert.Equal(t, 5, cfg.Table.Range().Len())

	ctx.configs[0].PoolSize = 0
	_, err = ctx.MakeServers()
	assert.Error(t, err)
}

func TestGetConfig(t *testing.T) {
	c := caddy.NewTestController("lease", "")
	cfg := GetConfig(c)
	require.NotNil(t, cfg)
	assert.Same(t, cfg, GetConfig(c), "configs should be stored on the context")
}

func TestBuildMiddlewareChain(t *testing.T) {
	cfg := newConfig("127.0.0.1:6767")

	var order []string
	for _, name := range []string{"first", "second"} {
		name := name
		cfg.AddPlugin(func(next plugin.Handler) plugin.Handler {
			return plugin.HandlerFunc(func(ctx context.Context, req *wire.Request, res *wire.Response) error {
				order = append(order, name)
				return next.ServeLease(ctx, req, res)
			})
		})
	}

	require.NoError(t, setup(cfg))

	var res wire.Response
	err := cfg.chain.ServeLease(context.Background(), &wire.Request{
		Command:    wire.CommandRequestIP,
		MACAddress: "aa:aa",
	}, &res)
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, wire.Assigned(net.IP{192, 168, 1, 1}.String(), 10), res)
}

func TestStartupInfo(t *testing.T) {
	cfg := newConfig("127.0.0.1:6767")
	info := getStartupInfo([]*Config{cfg})

	assert.Contains(t, info, "127.0.0.1:6767")
	assert.Contains(t, info, "192.168.1.1")
	assert.Empty(t, getStartupInfo(nil))
}
