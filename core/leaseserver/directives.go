package leaseserver

// Directives that we register at caddy. The order defines the order of
// the middleware chain, the first directive wraps all others
var Directives = []string{
	"log",
	"pool",
	"lease",
	"sweep",
	"prometheus",
	"journal",
	"lua",
	"mqtt",
	"gotify",
	"nats",
}
