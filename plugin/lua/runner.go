package lua

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/caddyserver/caddy"
	"github.com/nextdhcp/nextlease/core/events"
	"github.com/nextdhcp/nextlease/core/lease"
	"github.com/yuin/gluamapper"
	lua "github.com/yuin/gopher-lua"
)

// ErrNoEventHandler is returned if a script does not define a global
// on_event function
var ErrNoEventHandler = errors.New("script does not define on_event")

// HookConfig is the optional global "hook" table of a script
type HookConfig struct {
	// Events limits the lease events passed to on_event
	Events []string
}

// Runner executes lease event handlers of a single lua script. Calls are
// serialized as a lua.LState is not safe for concurrent use
type Runner struct {
	l      sync.Mutex
	vm     *lua.LState
	fn     *lua.LFunction
	events map[caddy.EventName]struct{}
	log    log.Interface
}

// NewFromFile loads the lua script at path
func NewFromFile(path string, logger log.Interface) (*Runner, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return NewFromReader(f, logger)
}

// NewFromReader executes the lua script read from r once and returns a
// runner for its on_event function
func NewFromReader(r io.Reader, logger log.Interface) (*Runner, error) {
	if logger == nil {
		logger = log.Log
	}

	runner := &Runner{
		vm:  lua.NewState(),
		log: logger,
	}

	runner.vm.SetGlobal("log", runner.vm.NewFunction(runner.luaLog))

	fn, err := runner.vm.Load(r, "<script>")
	if err != nil {
		runner.vm.Close()
		return nil, err
	}

	runner.vm.Push(fn)
	if err := runner.vm.PCall(0, lua.MultRet, nil); err != nil {
		runner.vm.Close()
		return nil, err
	}

	if err := runner.loadHook(); err != nil {
		runner.vm.Close()
		return nil, err
	}

	return runner, nil
}

func (r *Runner) loadHook() error {
	handler, ok := r.vm.GetGlobal("on_event").(*lua.LFunction)
	if !ok {
		return ErrNoEventHandler
	}
	r.fn = handler

	switch hook := r.vm.GetGlobal("hook").(type) {
	case *lua.LNilType:
		return nil

	case *lua.LTable:
		var cfg HookConfig
		if err := gluamapper.Map(hook, &cfg); err != nil {
			return fmt.Errorf("invalid hook table: %w", err)
		}

		if len(cfg.Events) == 0 {
			return nil
		}

		r.events = make(map[caddy.EventName]struct{}, len(cfg.Events))
		for _, e := range cfg.Events {
			name := caddy.EventName(e)
			if !events.IsValid(name) {
				return fmt.Errorf("invalid hook table: unknown lease event %q", e)
			}
			r.events[name] = struct{}{}
		}

		return nil

	default:
		return fmt.Errorf("invalid hook table: expected a table but got %s", hook.Type().String())
	}
}

// Handles returns true if the script wants to receive event
func (r *Runner) Handles(event caddy.EventName) bool {
	if len(r.events) == 0 {
		return true
	}

	_, ok := r.events[event]
	return ok
}

// Call invokes on_event(event, client, address, lease_seconds)
func (r *Runner) Call(event caddy.EventName, l *lease.Lease, now time.Time) error {
	if !r.Handles(event) {
		return nil
	}

	var (
		client  string
		address string
		seconds int
	)

	if l != nil {
		client = string(l.Client)
		if len(l.Address) > 0 {
			address = l.Address.String()
		}
		if !l.Expires.IsZero() {
			seconds = int(l.Remaining(now) / time.Second)
		}
	}

	r.l.Lock()
	defer r.l.Unlock()

	if r.vm == nil {
		return errors.New("runner closed")
	}

	return r.vm.CallByParam(lua.P{
		Fn:      r.fn,
		NRet:    0,
		Protect: true,
	}, lua.LString(event), lua.LString(client), lua.LString(address), lua.LNumber(seconds))
}

func (r *Runner) onEvent(event caddy.EventName, l *lease.Lease) error {
	return r.Call(event, l, time.Now())
}

// Close closes the lua VM. Subsequent calls return an error
func (r *Runner) Close() error {
	r.l.Lock()
	defer r.l.Unlock()

	if r.vm != nil {
		r.vm.Close()
		r.vm = nil
	}

	return nil
}

func (r *Runner) luaLog(L *lua.LState) int {
	msg := L.CheckString(1)
	r.log.Info(msg)
	return 0
}
