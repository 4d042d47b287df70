package test

import (
	"testing"

	"github.com/caddyserver/caddy"
	"github.com/caddyserver/caddy/caddyfile"
	"github.com/stretchr/testify/require"

	// register the lease server type
	_ "github.com/nextdhcp/nextlease/core/leaseserver"
)

// ServerAddr is the listen address of the server block created by
// CreateTestBed
const ServerAddr = "127.0.0.1:6767"

// CreateTestBed creates a new caddy.Controller that is configured for
// testing the setup and configuration of plugins. It creates a dummy server
// block in the context of the "lease" server type so plugins can safely assume
// leaseserver.GetConfig(ctrl) will return a valid configuration. The server
// block itself is configured to serve on ServerAddr
func CreateTestBed(t *testing.T, input string) *caddy.Controller {
	ctrl := caddy.NewTestController("lease", input)
	ctx := ctrl.Context()

	serverBlock := caddyfile.ServerBlock{
		Keys:   []string{ServerAddr},
		Tokens: map[string][]caddyfile.Token{},
	}

	blks, err := ctx.InspectServerBlocks("test-source", []caddyfile.ServerBlock{serverBlock})
	require.NoError(t, err)
	require.Equal(t, []caddyfile.ServerBlock{serverBlock}, blks)

	ctrl.ServerBlockKeys = serverBlock.Keys

	return ctrl
}
