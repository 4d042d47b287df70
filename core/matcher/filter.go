package matcher

import (
	"sort"
	"time"

	"github.com/caddyserver/caddy"
	"github.com/caddyserver/caddy/caddyfile"
	"github.com/nextdhcp/nextlease/core/events"
	"github.com/nextdhcp/nextlease/core/lease"
)

// Filter decides whether a plugin handles a lease event. An event passes if
// it's selected by an "on" line (or no "on" line exists) and all conditions
// match. Use it inside directive blocks:
//
//	on lease-created lease-expired
//	if client == 'aa:bb:cc:dd:ee:ff'
type Filter struct {
	events map[caddy.EventName]struct{}
	cond   Conditions
	m      *Matcher
}

// Parse consumes the current token of d if it is an "on", "if" or "if_op"
// line. It returns false for all other tokens
func (f *Filter) Parse(d *caddyfile.Dispenser) (bool, error) {
	if d.Val() != "on" {
		return f.cond.Parse(d)
	}

	args := d.RemainingArgs()
	if len(args) == 0 {
		return true, d.ArgErr()
	}

	if f.events == nil {
		f.events = make(map[caddy.EventName]struct{})
	}

	for _, arg := range args {
		name := caddy.EventName(arg)
		if !events.IsValid(name) {
			return true, d.Errf("unknown lease event %q", arg)
		}

		f.events[name] = struct{}{}
	}

	return true, nil
}

// AddCondition adds a condition expression to the filter
func (f *Filter) AddCondition(expr string) {
	f.cond.Add(expr)
}

// Compile compiles the conditions of the filter. It must be called once
// all directive lines have been parsed
func (f *Filter) Compile(fns ...map[string]ExprFunc) error {
	m, err := f.cond.Build(fns...)
	if err != nil {
		return err
	}

	f.m = m
	return nil
}

// Events returns the event names selected by "on" lines or all lease
// events if there are none
func (f *Filter) Events() []caddy.EventName {
	if len(f.events) == 0 {
		return events.Names()
	}

	names := make([]caddy.EventName, 0, len(f.events))
	for name := range f.events {
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool {
		return names[i] < names[j]
	})

	return names
}

// Match returns true if event for l passes the filter
func (f *Filter) Match(event caddy.EventName, l *lease.Lease, now time.Time) (bool, error) {
	if len(f.events) > 0 {
		if _, ok := f.events[event]; !ok {
			return false, nil
		}
	}

	return f.m.Match(event, l, now)
}
