package events

import (
	"runtime/debug"
	"sync"

	"github.com/apex/log"
	"github.com/caddyserver/caddy"
	"github.com/nextdhcp/nextlease/core/lease"
)

const (
	// EventLeaseCreated is emitted when an address has been bound
	// to a client
	EventLeaseCreated caddy.EventName = "lease-created"

	// EventLeaseRenewed is emitted when a client renewed it's lease
	EventLeaseRenewed caddy.EventName = "lease-renewed"

	// EventLeaseExpired is emitted when a client address lease expired
	// and the address has been returned to the pool
	EventLeaseExpired caddy.EventName = "lease-expired"

	// EventPoolExhausted is emitted when a client requested an address
	// but none was available. Only the Client field of the lease is set
	EventPoolExhausted caddy.EventName = "pool-exhausted"
)

type (
	// LeaseEventHook is the function type that can receive lease-based events.
	// Hooks must not modify the lease
	LeaseEventHook func(event caddy.EventName, l *lease.Lease) error

	// Dispatcher delivers lease events to the hooks registered for a
	// single server
	Dispatcher struct {
		rw    sync.RWMutex
		hooks []LeaseEventHook
		l     log.Interface
	}
)

var (
	validLeaseEvents = map[caddy.EventName]struct{}{
		EventLeaseCreated:  {},
		EventLeaseRenewed:  {},
		EventLeaseExpired:  {},
		EventPoolExhausted: {},
	}
)

// IsValid returns true if event is a known lease event
func IsValid(event caddy.EventName) bool {
	_, ok := validLeaseEvents[event]
	return ok
}

// Names returns the names of all lease events
func Names() []caddy.EventName {
	return []caddy.EventName{
		EventLeaseCreated,
		EventLeaseRenewed,
		EventLeaseExpired,
		EventPoolExhausted,
	}
}

// NewDispatcher returns a new event dispatcher
func NewDispatcher(l log.Interface) *Dispatcher {
	if l == nil {
		l = log.Log
	}

	return &Dispatcher{l: l}
}

// Register adds hook to the dispatcher. Hooks are called in the order they
// have been registered
func (d *Dispatcher) Register(hook LeaseEventHook) {
	d.rw.Lock()
	defer d.rw.Unlock()

	d.hooks = append(d.hooks, hook)
}

// Emit delivers event to all registered hooks and afterwards to all
// event hooks registered at caddy. A failing or panicking hook does
// not prevent delivery to the remaining ones
func (d *Dispatcher) Emit(event caddy.EventName, l *lease.Lease) {
	if !IsValid(event) {
		d.l.Errorf("invalid lease event type %q\n%s", event, debug.Stack())
		return
	}

	d.rw.RLock()
	hooks := append([]LeaseEventHook(nil), d.hooks...)
	d.rw.RUnlock()

	for _, hook := range hooks {
		d.call(hook, event, l)
	}

	EmitLeaseEvent(event, l)
}

func (d *Dispatcher) call(hook LeaseEventHook, event caddy.EventName, l *lease.Lease) {
	defer func() {
		if x := recover(); x != nil {
			d.l.Errorf("caught panic while handling %s event: %v\n%s", event, x, debug.Stack())
		}
	}()

	if err := hook(event, l); err != nil {
		d.l.Warnf("failed to handle %s event: %s", event, err.Error())
	}
}

// EmitLeaseEvent emits a lease-based event to all hooks registered
// at caddy
func EmitLeaseEvent(event caddy.EventName, l *lease.Lease) {
	if !IsValid(event) {
		log.Errorf("invalid lease event type %q\n%s", event, debug.Stack())
		return
	}

	caddy.EmitEvent(event, l)
}
