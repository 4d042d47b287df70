package events

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/caddyserver/caddy"
	"github.com/nextdhcp/nextlease/core/lease"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var eventHooks = &sync.Map{}

func init() {
	caddy.RegisterEventHook("event-testing-hook", func(name caddy.EventName, info interface{}) error {
		eventHooks.Range(func(_, value interface{}) bool {
			_ = value.(caddy.EventHook)(name, info)
			return true
		})

		return nil
	})
}

func registerTestingHook(name string, hook caddy.EventHook) {
	eventHooks.LoadOrStore(name, hook)
}

func removeTestingHook(name string) {
	eventHooks.Delete(name)
}

func testLease() *lease.Lease {
	return &lease.Lease{
		Address: net.IP{192, 168, 0, 1},
		Expires: time.Now().Add(time.Minute),
		Client:  "aa:bb:cc:dd:ee:ff",
	}
}

func TestEmitLeaseEvent(t *testing.T) {
	l := testLease()

	firedLeaseCreated := false
	registerTestingHook("test-emit-lease-event", func(name caddy.EventName, info interface{}) error {
		firedLeaseCreated = true
		assert.Equal(t, EventLeaseCreated, name)

		lp, ok := info.(*lease.Lease)
		require.True(t, ok)
		assert.Equal(t, l, lp)

		return nil
	})
	defer removeTestingHook("test-emit-lease-event")

	EmitLeaseEvent(EventLeaseCreated, l)
	assert.True(t, firedLeaseCreated)
}

func TestEmitLeaseEvent_invalid_name(t *testing.T) {
	eventFired := false
	registerTestingHook("test-emit-lease-event-invalid-name", func(name caddy.EventName, info interface{}) error {
		eventFired = true
		return nil
	})
	defer removeTestingHook("test-emit-lease-event-invalid-name")

	EmitLeaseEvent("invalid-name", nil)

	assert.False(t, eventFired)
}

func TestDispatcher(t *testing.T) {
	d := NewDispatcher(nil)
	l := testLease()

	var order []string
	d.Register(func(e caddy.EventName, got *lease.Lease) error {
		order = append(order, "first")
		assert.Equal(t, EventLeaseExpired, e)
		assert.Equal(t, l, got)
		return errors.New("simulated error")
	})
	d.Register(func(e caddy.EventName, got *lease.Lease) error {
		order = append(order, "second")
		panic("simulated panic")
	})
	d.Register(func(e caddy.EventName, got *lease.Lease) error {
		order = append(order, "third")
		return nil
	})

	forwarded := false
	registerTestingHook("test-dispatcher", func(name caddy.EventName, info interface{}) error {
		if name == EventLeaseExpired {
			forwarded = true
		}
		return nil
	})
	defer removeTestingHook("test-dispatcher")

	assert.NotPanics(t, func() {
		d.Emit(EventLeaseExpired, l)
	})
	assert.Equal(t, []string{"first", "second", "third"}, order)
	assert.True(t, forwarded, "events should be forwarded to caddy")

	order = nil
	d.Emit("unknown", l)
	assert.Empty(t, order)
}

func TestIsValid(t *testing.T) {
	for _, e := range Names() {
		assert.True(t, IsValid(e))
	}
	assert.False(t, IsValid("lease-deleted"))
}
