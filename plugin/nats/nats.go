package nats

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/caddyserver/caddy"
	"github.com/nats-io/nats.go"
	"github.com/nextdhcp/nextlease/core/lease"
	"github.com/nextdhcp/nextlease/core/matcher"
)

const (
	defaultURL     = nats.DefaultURL
	defaultSubject = "nextlease.events"
)

// errNotConnected is returned when an event is published before the
// connection has been opened
var errNotConnected = errors.New("not connected to NATS")

type (
	// publisher is the subset of *nats.Conn used by the plugin
	publisher interface {
		Publish(subj string, data []byte) error
		Drain() error
	}

	// jetStream publishes through a JetStream context and waits for
	// the stream acknowledgement
	jetStream struct {
		conn *nats.Conn
		js   nats.JetStreamContext
	}

	// eventMessage is the JSON document published for each lease event
	eventMessage struct {
		Event        string `json:"event"`
		Server       string `json:"server"`
		Client       string `json:"client"`
		Address      string `json:"address,omitempty"`
		Expires      int64  `json:"expires,omitempty"`
		LeaseSeconds int    `json:"lease_seconds"`
		Time         int64  `json:"time"`
	}

	natsPlugin struct {
		matcher.Filter

		server    string
		url       string
		subject   string
		name      string
		user      string
		password  string
		token     string
		jetstream bool

		l  log.Interface
		wg sync.WaitGroup

		connLock sync.Mutex
		conn     publisher

		// connect opens the NATS connection
		connect func(p *natsPlugin) (publisher, error)
	}
)

func (j *jetStream) Publish(subj string, data []byte) error {
	_, err := j.js.Publish(subj, data)
	return err
}

func (j *jetStream) Drain() error {
	return j.conn.Drain()
}

func newEventMessage(server string, event caddy.EventName, l *lease.Lease, now time.Time) eventMessage {
	msg := eventMessage{
		Event:  string(event),
		Server: server,
		Time:   now.Unix(),
	}

	if l == nil {
		return msg
	}

	msg.Client = string(l.Client)
	if len(l.Address) > 0 {
		msg.Address = l.Address.String()
	}
	if !l.Expires.IsZero() {
		msg.Expires = l.Expires.Unix()
		msg.LeaseSeconds = int(l.Remaining(now) / time.Second)
	}

	return msg
}

func (p *natsPlugin) options() []nats.Option {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	}

	if p.name != "" {
		opts = append(opts, nats.Name(p.name))
	}

	if p.user != "" {
		opts = append(opts, nats.UserInfo(p.user, p.password))
	}

	if p.token != "" {
		opts = append(opts, nats.Token(p.token))
	}

	return opts
}

func connectNATS(p *natsPlugin) (publisher, error) {
	nc, err := nats.Connect(p.url, p.options()...)
	if err != nil {
		return nil, err
	}

	if !p.jetstream {
		return nc, nil
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}

	return &jetStream{conn: nc, js: js}, nil
}

// start opens the connection to the NATS server
func (p *natsPlugin) start() error {
	p.connLock.Lock()
	defer p.connLock.Unlock()

	if p.conn != nil {
		return nil
	}

	conn, err := p.connect(p)
	if err != nil {
		return err
	}

	p.l.Infof("publishing lease events to %s on subject %s", p.url, p.subject)
	p.conn = conn

	return nil
}

// shutdown waits for pending events and drains the connection
func (p *natsPlugin) shutdown() error {
	p.wg.Wait()

	p.connLock.Lock()
	defer p.connLock.Unlock()

	if p.conn == nil {
		return nil
	}

	err := p.conn.Drain()
	p.conn = nil

	return err
}

func (p *natsPlugin) getConn() publisher {
	p.connLock.Lock()
	defer p.connLock.Unlock()

	return p.conn
}

// onEvent publishes matching lease events in the background
func (p *natsPlugin) onEvent(event caddy.EventName, l *lease.Lease) error {
	now := time.Now()

	match, err := p.Match(event, l, now)
	if err != nil {
		return err
	}

	if !match {
		return nil
	}

	data, err := json.Marshal(newEventMessage(p.server, event, l, now))
	if err != nil {
		return err
	}

	conn := p.getConn()
	if conn == nil {
		return errNotConnected
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		if err := conn.Publish(p.subject, data); err != nil {
			p.l.Errorf("failed to publish %s event to %s: %s", event, p.subject, err.Error())
			return
		}

		p.l.Debugf("published %s event to %s", event, p.subject)
	}()

	return nil
}
