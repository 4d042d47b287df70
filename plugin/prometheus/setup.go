package prometheus

import (
	"context"
	"strconv"
	"strings"

	"github.com/caddyserver/caddy"
	"github.com/nextdhcp/nextlease/core/leaseserver"
	"github.com/nextdhcp/nextlease/core/log"
	"github.com/nextdhcp/nextlease/plugin"
	"github.com/prometheus/common/model"
)

func init() {
	caddy.RegisterPlugin("prometheus", caddy.Plugin{
		ServerType: "lease",
		Action:     setupPrometheus,
	})
}

var reservedLabels = map[string]struct{}{
	"command": {},
	"status":  {},
	"event":   {},
}

func setupPrometheus(c *caddy.Controller) error {
	metrics, err := parse(c)
	if err != nil {
		return err
	}

	cfg := leaseserver.GetConfig(c)
	metrics.log = log.GetLogger(c, "prometheus")
	metrics.define(func(ctx context.Context) (int, int, error) {
		if cfg.Table == nil {
			return 0, cfg.PoolSize, nil
		}
		return cfg.Table.Usage(ctx)
	})

	plg := &Plugin{Metrics: metrics}

	cfg.OnEvent(plg.onEvent)
	cfg.AddPlugin(func(next plugin.Handler) plugin.Handler {
		plg.Next = next
		return plg
	})

	c.OnStartup(metrics.start)
	c.OnShutdown(metrics.stop)

	return nil
}

// prometheus {
//	address localhost:9180
// }
// Or just: prometheus localhost:9180
func parse(c *caddy.Controller) (*Metrics, error) {
	var metrics *Metrics

	for c.Next() {
		if metrics != nil {
			return nil, c.Err("prometheus: can only have one metrics module per server")
		}

		args := c.RemainingArgs()
		metrics = NewMetrics("", "")
		switch len(args) {
		case 0:
		case 1:
			metrics.addr = args[0]
		default:
			return nil, c.ArgErr()
		}
		for c.NextBlock() {
			switch c.Val() {
			case "path":
				args = c.RemainingArgs()
				if len(args) != 1 || !strings.HasPrefix(args[0], "/") {
					return nil, c.ArgErr()
				}
				metrics.path = args[0]
			case "address":
				args = c.RemainingArgs()
				if len(args) != 1 {
					return nil, c.ArgErr()
				}
				metrics.addr = args[0]
			case "label":
				args = c.RemainingArgs()
				if len(args) != 2 {
					return nil, c.ArgErr()
				}

				labelName := strings.TrimSpace(args[0])
				if !model.LabelName(labelName).IsValidLegacy() {
					return nil, c.Errf("prometheus: invalid label name %q", labelName)
				}
				if _, ok := reservedLabels[labelName]; ok {
					return nil, c.Errf("prometheus: label name %q is reserved", labelName)
				}

				metrics.extraLabels = append(metrics.extraLabels, extraLabel{name: labelName, value: args[1]})
			case "latency_buckets":
				args = c.RemainingArgs()
				if len(args) < 1 {
					return nil, c.Err("prometheus: must specify 1 or more latency buckets")
				}
				metrics.latencyBuckets = make([]float64, len(args))
				for i, v := range args {
					b, err := strconv.ParseFloat(v, 64)
					if err != nil {
						return nil, c.Errf("prometheus: invalid bucket %q - must be a number", v)
					}
					metrics.latencyBuckets[i] = b
				}
			default:
				return nil, c.Errf("prometheus: unknown item: %s", c.Val())
			}
		}
	}

	return metrics, nil
}
