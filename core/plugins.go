package core

import (
	// Include the lease server type
	_ "github.com/nextdhcp/nextlease/core/leaseserver"

	// Include all built-in directives
	_ "github.com/nextdhcp/nextlease/plugin/gotify"
	_ "github.com/nextdhcp/nextlease/plugin/journal"
	_ "github.com/nextdhcp/nextlease/plugin/lease"
	_ "github.com/nextdhcp/nextlease/plugin/log"
	_ "github.com/nextdhcp/nextlease/plugin/lua"
	_ "github.com/nextdhcp/nextlease/plugin/mqtt"
	_ "github.com/nextdhcp/nextlease/plugin/nats"
	_ "github.com/nextdhcp/nextlease/plugin/pool"
	_ "github.com/nextdhcp/nextlease/plugin/prometheus"
)
