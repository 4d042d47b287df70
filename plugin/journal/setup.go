package journal

import (
	"context"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/caddyserver/caddy"
	"github.com/nextdhcp/nextlease/core/journal"
	"github.com/nextdhcp/nextlease/core/lease"
	"github.com/nextdhcp/nextlease/core/leaseserver"
	corelog "github.com/nextdhcp/nextlease/core/log"
)

func init() {
	caddy.RegisterPlugin("journal", caddy.Plugin{
		ServerType: "lease",
		Action:     setupJournal,
	})
}

// writeTimeout bounds how long a single journal write may take
const writeTimeout = 5 * time.Second

type journalPlugin struct {
	path string
	log  log.Interface

	l sync.Mutex
	j *journal.Journal
}

func (p *journalPlugin) open() error {
	p.l.Lock()
	defer p.l.Unlock()

	j, err := journal.Open(p.path)
	if err != nil {
		return err
	}

	p.j = j
	p.log.Infof("writing lease events to %s", p.path)

	return nil
}

func (p *journalPlugin) close() error {
	p.l.Lock()
	defer p.l.Unlock()

	if p.j == nil {
		return nil
	}

	err := p.j.Close()
	p.j = nil

	return err
}

func (p *journalPlugin) onEvent(event caddy.EventName, l *lease.Lease) error {
	p.l.Lock()
	defer p.l.Unlock()

	if p.j == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	seq, err := p.j.Append(ctx, event, l, time.Now())
	if err != nil {
		return err
	}

	p.log.Debugf("journaled %s as #%d", event, seq)
	return nil
}

// setupJournal parses the journal directive:
//
//	journal /var/lib/nextlease/journal.db
func setupJournal(c *caddy.Controller) error {
	p := &journalPlugin{
		log: corelog.GetLogger(c, "journal"),
	}

	for c.Next() {
		if p.path != "" {
			return c.Err("only one journal per server is supported")
		}

		if !c.NextArg() {
			return c.ArgErr()
		}
		p.path = c.Val()

		if c.NextArg() {
			return c.ArgErr()
		}
	}

	leaseserver.GetConfig(c).OnEvent(p.onEvent)

	c.OnStartup(p.open)
	c.OnShutdown(p.close)

	return nil
}
