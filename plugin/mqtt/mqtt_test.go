package mqtt

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/nextdhcp/nextlease/core/events"
	"github.com/nextdhcp/nextlease/core/lease"
	"github.com/nextdhcp/nextlease/plugin/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic   string
	qos     byte
	retain  bool
	payload string
}

type fakeClient struct {
	l            sync.Mutex
	messages     []published
	disconnected bool
	err          error
}

func (f *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.l.Lock()
	defer f.l.Unlock()

	f.messages = append(f.messages, published{topic, qos, retained, payload.(string)})
	return &fakeToken{err: f.err}
}

func (f *fakeClient) Disconnect(uint) {
	f.l.Lock()
	defer f.l.Unlock()
	f.disconnected = true
}

func (f *fakeClient) get() []published {
	f.l.Lock()
	defer f.l.Unlock()
	return append([]published(nil), f.messages...)
}

func getTestPlugin(t *testing.T, input string) (*mqttPlugin, map[string]*fakeClient) {
	plg, err := parseMqtt(test.CreateTestBed(t, input))
	require.NoError(t, err)

	clients := make(map[string]*fakeClient)
	plg.connect = func(conn *mqttConnConfig) (client, error) {
		if conn.broker[0] == "tcp://unreachable:1883" {
			return nil, errors.New("simulated connection error")
		}

		cli := &fakeClient{}
		clients[conn.broker[0]] = cli
		return cli, nil
	}

	return plg, clients
}

func testLease() *lease.Lease {
	return &lease.Lease{
		Client:  "aa:bb:cc:dd:ee:ff",
		Address: net.IP{192, 168, 1, 1},
		Expires: time.Now().Add(10 * time.Second),
	}
}

func TestMqttPlugin(t *testing.T) {
	plg, clients := getTestPlugin(t, `mqtt {
		name home
		broker tcp://localhost:1883
		qos 1
		on lease-created
		topic leases/{client}
		payload "{event} {address}"
		retain
	}
	mqtt event == 'lease-expired' {
		use home
	}`)

	require.NoError(t, plg.onEvent(events.EventLeaseCreated, testLease()))
	require.NoError(t, plg.onEvent(events.EventLeaseRenewed, testLease()))
	expired := testLease()
	expired.Expires = time.Now().Add(-time.Second)
	require.NoError(t, plg.onEvent(events.EventLeaseExpired, expired))
	require.NoError(t, plg.shutdown())

	cli := clients["tcp://localhost:1883"]
	require.NotNil(t, cli)
	assert.True(t, cli.disconnected)

	msgs := cli.get()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs, published{"leases/aa:bb:cc:dd:ee:ff", 1, true, "lease-created 192.168.1.1"})
	assert.Contains(t, msgs, published{"nextlease/lease-expired", 1, false, "lease-expired aa:bb:cc:dd:ee:ff 192.168.1.1 0"})
}

func TestMqttPlugin_errors_are_logged(t *testing.T) {
	plg, clients := getTestPlugin(t, `mqtt {
		broker tcp://unreachable:1883
	}`)

	assert.NoError(t, plg.onEvent(events.EventLeaseCreated, testLease()))
	assert.NoError(t, plg.shutdown())
	assert.Empty(t, clients)
}

func TestParseMqtt(t *testing.T) {
	plg, err := parseMqtt(test.CreateTestBed(t, `mqtt {
		broker tcp://a:1883 tcp://b:1883
		user admin
		password secret
		client-id nextlease
		clean-session
	}`))
	require.NoError(t, err)
	require.Len(t, plg.configs, 1)

	conn := plg.configs[0].conn
	assert.Equal(t, []string{"tcp://a:1883", "tcp://b:1883"}, conn.broker)
	assert.Equal(t, "admin", conn.user)
	assert.Equal(t, "secret", conn.password)
	assert.Equal(t, "nextlease", conn.clientID)
	assert.True(t, conn.cleanSession)
	assert.Equal(t, defaultTopic, plg.configs[0].topic)
	assert.Equal(t, defaultPayload, plg.configs[0].payload)

	opts := conn.options()
	assert.Len(t, opts.Servers, 2)
	assert.Equal(t, "nextlease", opts.ClientID)
	assert.True(t, opts.AutoReconnect)
}

func TestParseMqtt_errors(t *testing.T) {
	for _, input := range []string{
		"mqtt",
		"mqtt {\n topic foo\n}",
		"mqtt {\n use other\n}",
		"mqtt {\n broker tcp://a:1883\n use other\n}",
		"mqtt {\n use other\n broker tcp://a:1883\n}",
		"mqtt {\n user foo\n}",
		"mqtt {\n broker tcp://a:1883\n qos 3\n}",
		"mqtt {\n broker tcp://a:1883\n on lease-deleted\n}",
		"mqtt {\n broker tcp://a:1883\n unknown\n}",
		"mqtt ((( {\n broker tcp://a:1883\n}",
	} {
		_, err := parseMqtt(test.CreateTestBed(t, input))
		assert.Error(t, err, input)
	}
}

func TestSetupMqtt(t *testing.T) {
	assert.NoError(t, setupMqtt(test.CreateTestBed(t, "mqtt {\n broker tcp://localhost:1883\n}")))
}
