package replacer

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/nextdhcp/nextlease/core/lease"
	"github.com/stretchr/testify/assert"
)

func Test_Replacer_Context_Utils(t *testing.T) {
	t.Run("WithReplacer should add it to the context", func(t *testing.T) {
		ctx := context.Background()

		r := &replacer{}
		ctx = WithReplacer(ctx, r)

		fromCtx := ctx.Value(CtxKey{})
		assert.NotNil(t, fromCtx)
		assert.Exactly(t, r, fromCtx)
	})

	t.Run("GetReplacer should return it from a context", func(t *testing.T) {
		ctx := context.Background()

		r := &replacer{}
		ctx = context.WithValue(ctx, CtxKey{}, r)

		assert.Exactly(t, r, GetReplacer(ctx))
	})

	t.Run("GetReplacer should return nil if not in a context", func(t *testing.T) {
		assert.Nil(t, GetReplacer(context.Background()))
	})

	t.Run("GetReplacer should panic if key is misused", func(t *testing.T) {
		assert.Panics(t, func() {
			GetReplacer(context.WithValue(context.Background(), CtxKey{}, "foobar"))
		})
	})

	t.Run("NewReplacer should prefer the parent", func(t *testing.T) {
		parent := ForLease("lease-created", nil)
		ctx := WithReplacer(context.Background(), parent)

		assert.Exactly(t, parent, NewReplacer(ctx, &Event{Name: "lease-expired"}))
	})
}

func testEvent() *Event {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	return &Event{
		Name: "lease-created",
		Time: now,
		Lease: &lease.Lease{
			Client:  "de:ad:be:ef:01:02",
			Address: net.IP{10, 0, 0, 3},
			Expires: now.Add(10 * time.Second),
		},
	}
}

func Test_Replacer_KnownKeys(t *testing.T) {
	ev := testEvent()
	r := NewReplacer(context.Background(), ev)

	cases := []struct {
		I string
		E string
	}{
		{"event", "lease-created"},
		{"client", "de:ad:be:ef:01:02"},
		{"address", "10.0.0.3"},
		{"expires", "2026-01-02T03:04:15Z"},
		{"lease_seconds", "10"},
		{"time", "2026-01-02T03:04:05Z"},
		{"unknown", ""},
	}

	for i, c := range cases {
		assert.Equal(t, c.E, r.Get(c.I), "in case %d", i)
	}

	t.Run("custom keys", func(t *testing.T) {
		r.Set("key1", StringValue("value1"))
		assert.Equal(t, "value1", r.Get("key1"))

		r.Set("foo", getter(func() string {
			return "bar"
		}))
		assert.Equal(t, "bar", r.Get("foo"))

		r.Set("client", ValueGetter(func(e *Event) string {
			assert.Exactly(t, ev, e)
			return "overwritten"
		}))
		assert.Equal(t, "overwritten", r.Get("client"))
	})
}

func Test_Replacer_without_lease(t *testing.T) {
	r := NewReplacer(context.Background(), &Event{Name: "pool-exhausted"})

	assert.Equal(t, "pool-exhausted", r.Get("event"))
	assert.Equal(t, "", r.Get("client"))
	assert.Equal(t, "", r.Get("address"))
	assert.Equal(t, "", r.Get("expires"))
	assert.Equal(t, "0", r.Get("lease_seconds"))
	assert.NotEmpty(t, r.Get("time"))

	r = NewReplacer(context.Background(), nil)
	assert.Equal(t, "", r.Get("event"))
}

func Test_Replacer_Replace(t *testing.T) {
	r := NewReplacer(context.Background(), testEvent())

	cases := []struct {
		I string
		E string
	}{
		{
			"{client} got {address} for {lease_seconds}s",
			"de:ad:be:ef:01:02 got 10.0.0.3 for 10s",
		},
		{
			"\\{client} {address} on {event}",
			"{client} 10.0.0.3 on lease-created",
		},
		{
			"\\{client\\} {address} on {event}",
			"{client} 10.0.0.3 on lease-created",
		},
		{
			"{client\\} {address} on {event}",
			" on lease-created",
		},
		{
			"no placeholders",
			"no placeholders",
		},
		{
			"{",
			"{",
		},
		{
			"{}",
			"",
		},
		{
			"}",
			"}",
		},
	}

	for i, c := range cases {
		assert.Equal(t, c.E, r.Replace(c.I), "in case %d", i)
	}
}

type getter func() string

func (g getter) Get(_ *Event) string {
	return g()
}
