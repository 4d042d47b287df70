package mqtt

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/caddyserver/caddy"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/nextdhcp/nextlease/core/lease"
	"github.com/nextdhcp/nextlease/core/matcher"
	"github.com/nextdhcp/nextlease/core/replacer"
)

// publishTimeout is the maximum time we wait for a publish to be
// acknowledged
const publishTimeout = 10 * time.Second

type (
	// client is the subset of mqtt.Client used by the plugin
	client interface {
		Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
		Disconnect(quiesce uint)
	}

	mqttConnConfig struct {
		broker       []string
		user         string
		password     string
		clientID     string
		cleanSession bool
		qos          int

		l sync.Mutex
		c client
	}

	mqttConfig struct {
		matcher.Filter

		conn    *mqttConnConfig
		name    string // optional name for the mqtt config
		topic   string
		payload string
		retain  bool
	}

	mqttPlugin struct {
		configs []*mqttConfig
		l       log.Interface
		wg      sync.WaitGroup

		// connect opens a new client connection
		connect func(conn *mqttConnConfig) (client, error)
	}
)

// onEvent publishes MQTT messages for all configurations that match the
// lease event. Messages are published in the background
func (m *mqttPlugin) onEvent(event caddy.EventName, l *lease.Lease) error {
	now := time.Now()

	var lc *lease.Lease
	if l != nil {
		lc = l.Clone()
	}

	for _, cfg := range m.configs {
		match, err := cfg.Match(event, lc, now)
		if err != nil {
			m.l.Errorf("matching failed for MQTT plugin with name %q: %s", cfg.name, err.Error())
			continue
		}

		if !match {
			continue
		}

		rep := replacer.NewReplacer(context.Background(), &replacer.Event{
			Name:  event,
			Lease: lc,
			Time:  now,
		})

		m.wg.Add(1)
		go func(cfg *mqttConfig, topic, payload string) {
			defer m.wg.Done()

			if err := m.publish(cfg, topic, payload); err != nil {
				m.l.Errorf("failed to publish MQTT message for %q: %s", cfg.name, err.Error())
				return
			}

			m.l.Debugf("published MQTT message to topic %s", topic)
		}(cfg, rep.Replace(cfg.topic), rep.Replace(cfg.payload))
	}

	return nil
}

func (m *mqttPlugin) publish(cfg *mqttConfig, topic, payload string) error {
	cli, qos, err := m.getClient(cfg)
	if err != nil {
		return err
	}

	token := cli.Publish(topic, byte(qos), cfg.retain, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timeout publishing to %s", topic)
	}

	return token.Error()
}

func (m *mqttPlugin) getClient(cfg *mqttConfig) (client, int, error) {
	// check if we should use a different configuration
	if cfg.name != "" && cfg.conn == nil {
		for _, c := range m.configs {
			if c.name == cfg.name && c.conn != nil {
				return m.getClient(c)
			}
		}
		return nil, 0, fmt.Errorf("MQTT configuration with name %q not found", cfg.name)
	}

	cfg.conn.l.Lock()
	defer cfg.conn.l.Unlock()

	if cfg.conn.c == nil {
		cli, err := m.connect(cfg.conn)
		if err != nil {
			return nil, 0, err
		}
		cfg.conn.c = cli
	}

	return cfg.conn.c, cfg.conn.qos, nil
}

// shutdown waits for pending messages and closes all connections
func (m *mqttPlugin) shutdown() error {
	m.wg.Wait()

	for _, cfg := range m.configs {
		if cfg.conn == nil {
			continue
		}

		cfg.conn.l.Lock()
		if cfg.conn.c != nil {
			cfg.conn.c.Disconnect(250)
			cfg.conn.c = nil
		}
		cfg.conn.l.Unlock()
	}

	return nil
}

func (conn *mqttConnConfig) options() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()

	for _, b := range conn.broker {
		opts.AddBroker(b)
	}

	if conn.user != "" {
		opts.SetUsername(conn.user)
	}

	if conn.password != "" {
		opts.SetPassword(conn.password)
	}

	if conn.cleanSession {
		opts.SetCleanSession(true)
	}

	if conn.clientID != "" {
		opts.SetClientID(conn.clientID)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(publishTimeout)

	return opts
}

func connectBroker(l log.Interface) func(conn *mqttConnConfig) (client, error) {
	return func(conn *mqttConnConfig) (client, error) {
		opts := conn.options()
		cli := mqtt.NewClient(opts)

		var servers []string
		for _, s := range opts.Servers {
			servers = append(servers, s.String())
		}

		l.Debugf("connecting to MQTT brokers at %s", strings.Join(servers, ", "))
		if token := cli.Connect(); token.Wait() && token.Error() != nil {
			return nil, token.Error()
		}
		l.Infof("connected to MQTT brokers at %s", strings.Join(servers, ", "))

		return cli, nil
	}
}
