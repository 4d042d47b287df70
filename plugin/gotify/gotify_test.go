package gotify

import (
	"errors"
	"net"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/apex/log"
	"github.com/caddyserver/caddy/caddyfile"
	"github.com/gotify/go-api-client/v2/client/message"
	"github.com/gotify/go-api-client/v2/models"
	"github.com/nextdhcp/nextlease/core/events"
	"github.com/nextdhcp/nextlease/core/lease"
	"github.com/nextdhcp/nextlease/core/matcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLease(now time.Time) *lease.Lease {
	return &lease.Lease{
		Client:  "aa:bb:cc:dd:ee:ff",
		Address: net.IP{192, 168, 1, 2},
		Expires: now.Add(10 * time.Second),
	}
}

// failOnClient errors for every event that carries a client
var failOnClient = map[string]matcher.ExprFunc{
	"failOnClient": func(args ...interface{}) (interface{}, error) {
		if args[0].(string) != "" {
			return nil, errors.New("simulated error")
		}
		return true, nil
	},
}

func newNotification(t *testing.T, cond, title, msg string) *notification {
	n := &notification{
		msg:      msg,
		title:    title,
		priority: defaultPriority,
		srv:      "http://gotify.com",
		token:    "some-token",
	}
	n.AddCondition(cond)
	require.NoError(t, n.Compile(failOnClient))

	return n
}

func TestNotificationPrepare(t *testing.T) {
	now := time.Now()
	l := testLease(now)

	// empty title should be replaced with NextLease
	n := newNotification(t, "", "", "{client} got {address}")
	nt, nm, err := n.Prepare(events.EventLeaseCreated, l, now)
	assert.NoError(t, err)
	assert.Equal(t, "NextLease", nt)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff got 192.168.1.2", nm)

	n = newNotification(t, "", "{event}", "{lease_seconds}s left")
	nt, nm, err = n.Prepare(events.EventLeaseRenewed, l, now)
	assert.NoError(t, err)
	assert.Equal(t, "lease-renewed", nt)
	assert.Equal(t, "10s left", nm)

	// credential only notifications never send anything
	n = newNotification(t, "", "title", "")
	nt, nm, err = n.Prepare(events.EventLeaseCreated, l, now)
	assert.NoError(t, err)
	assert.Empty(t, nt)
	assert.Empty(t, nm)

	// should return empty strings if not matched
	n = newNotification(t, "1 == 0", "title", "message")
	nt, nm, err = n.Prepare(events.EventLeaseCreated, l, now)
	assert.NoError(t, err)
	assert.Empty(t, nt)
	assert.Empty(t, nm)

	n = newNotification(t, "failOnClient(client)", "title", "message")
	_, _, err = n.Prepare(events.EventLeaseCreated, l, now)
	assert.Error(t, err)
}

func TestNotificationSend(t *testing.T) {
	n := newNotification(t, "", "", "")
	n.priority = 8

	called := false
	returnErr := errors.New("simulated error")
	notify = func(srv *url.URL, token string, msg *message.CreateMessageParams) error {
		called = true

		assert.Equal(t, "http://gotify.com", srv.String())
		assert.Equal(t, "some-token", token)
		assert.Equal(t, "title", msg.Body.Title)
		assert.Equal(t, "message", msg.Body.Message)
		assert.Equal(t, 8, msg.Body.Priority)

		return returnErr
	}

	assert.Equal(t, returnErr, n.Send("title", "message"))
	assert.True(t, called)
}

func TestGotifyOnEvent(t *testing.T) {
	var (
		mu       sync.Mutex
		messages []*models.MessageExternal
	)

	notify = func(srv *url.URL, token string, msg *message.CreateMessageParams) error {
		mu.Lock()
		defer mu.Unlock()

		messages = append(messages, msg.Body)
		if srv.Host == "gotify5.com" {
			return errors.New("simulated error")
		}
		return nil
	}

	onExpired := newNotification(t, "", "title1", "{client} expired")
	d := caddyfile.NewDispenser("", strings.NewReader("on "+string(events.EventLeaseExpired)))
	require.True(t, d.Next())
	_, err := onExpired.Parse(&d)
	require.NoError(t, err)

	failing := newNotification(t, "", "title5", "failing")
	failing.srv = "http://gotify5.com"

	g := &gotifyPlugin{
		notifications: []*notification{
			onExpired,
			newNotification(t, "1 == 0", "title2", "message2"),
			newNotification(t, "failOnClient(client)", "title3", "message3"),
			newNotification(t, "", "title4", ""),
			failing,
		},
		l: log.Log,
	}

	now := time.Now()

	assert.NoError(t, g.onEvent(events.EventLeaseCreated, testLease(now)))
	require.NoError(t, g.shutdown())

	mu.Lock()
	require.Len(t, messages, 1)
	assert.Equal(t, "failing", messages[0].Message)
	messages = nil
	mu.Unlock()

	assert.NoError(t, g.onEvent(events.EventLeaseExpired, testLease(now)))
	require.NoError(t, g.shutdown())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, messages, 2)

	bodies := []string{messages[0].Message, messages[1].Message}
	assert.ElementsMatch(t, []string{"aa:bb:cc:dd:ee:ff expired", "failing"}, bodies)
}
