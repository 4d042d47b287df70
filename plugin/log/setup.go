package log

import (
	"io"
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"
	"github.com/caddyserver/caddy"
	"github.com/mattn/go-isatty"
)

func init() {
	caddy.RegisterPlugin("log", caddy.Plugin{
		ServerType: "lease",
		Action:     setupLogging,
	})
}

// output is where log handlers write to
var output io.Writer = os.Stdout

// isTerminal reports whether output is attached to a terminal
var isTerminal = func() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// setupLogging configures the global logger:
//
//	log debug
//	log info json
//	log text
func setupLogging(c *caddy.Controller) error {
	c.Next()

	args := c.RemainingArgs()
	if len(args) == 0 || len(args) > 2 {
		return c.ArgErr()
	}

	format := ""
	levelSet := false

	for _, arg := range args {
		switch arg {
		case "json", "text", "cli":
			if format != "" {
				return c.SyntaxErr("a single log format")
			}
			format = arg
			continue
		}

		if levelSet {
			return c.SyntaxErr("a single log level")
		}

		l, err := log.ParseLevel(arg)
		if err != nil {
			return c.SyntaxErr(err.Error())
		}

		log.SetLevel(l)
		levelSet = true
	}

	log.SetHandler(newHandler(format))

	if c.Next() {
		return c.SyntaxErr("invalid token or multiple \"log\" configurations")
	}

	return nil
}

func newHandler(format string) log.Handler {
	if format == "" {
		format = "text"
		if isTerminal() {
			format = "cli"
		}
	}

	switch format {
	case "json":
		return json.New(output)
	case "cli":
		return cli.New(output)
	default:
		return text.New(output)
	}
}
