package replacer

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/caddyserver/caddy"
	"github.com/nextdhcp/nextlease/core/lease"
)

type (
	// Replacer is capable of replacing variables in a template string
	Replacer interface {
		// Replace replaces all variables in string and returns the result
		Replace(string) string

		// Set adds a custom replacement value
		Set(key string, value Value)

		// Get returns the replacement value for key
		Get(key string) string
	}

	// Event describes the lease event a replacer resolves placeholders for
	Event struct {
		Name  caddy.EventName
		Lease *lease.Lease
		Time  time.Time
	}

	// Value is a getter for string representations of custom fields
	Value interface {
		// Get returns the string representation for the given event
		Get(ev *Event) string
	}

	// ValueGetter implements the Value interface
	ValueGetter func(ev *Event) string

	// StringValue is a utility method to use string constants for
	// the Value interface
	StringValue string

	// CtxKey is used to store a replace instance in a context value
	CtxKey struct{}

	replacer struct {
		ev     *Event
		custom map[string]Value
	}
)

// Get implements the Value interface and calls g itself
func (g ValueGetter) Get(ev *Event) string {
	return g(ev)
}

// Get implements the Value interface and returns s itself
func (s StringValue) Get(_ *Event) string {
	return string(s)
}

// WithReplacer returns a new context with a replacer instance
func WithReplacer(ctx context.Context, r Replacer) context.Context {
	return context.WithValue(ctx, CtxKey{}, r)
}

// GetReplacer returns the replacer associated with ctx
func GetReplacer(ctx context.Context) Replacer {
	v := ctx.Value(CtxKey{})
	if v == nil {
		return nil
	}

	r, ok := v.(Replacer)
	if !ok {
		panic("replacer.CtxKey used for a none replacer type")
	}
	return r
}

// NewReplacer returns a new replacer for the given lease event. If ctx
// already carries a replacer that one is returned instead
func NewReplacer(ctx context.Context, ev *Event) Replacer {
	if parent := GetReplacer(ctx); parent != nil {
		return parent
	}

	if ev == nil {
		ev = &Event{}
	}

	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	return &replacer{
		ev:     ev,
		custom: make(map[string]Value),
	}
}

// ForLease is a shortcut for NewReplacer(context.Background(), ...) at the
// current time
func ForLease(name caddy.EventName, l *lease.Lease) Replacer {
	return NewReplacer(context.Background(), &Event{
		Name:  name,
		Lease: l,
	})
}

func (r *replacer) Set(key string, val Value) {
	r.custom[key] = val
}

func (r *replacer) Get(key string) string {
	if val, ok := r.custom[key]; ok {
		return val.Get(r.ev)
	}

	l := r.ev.Lease

	switch key {
	case "event":
		return string(r.ev.Name)

	case "time":
		return r.ev.Time.Format(time.RFC3339)

	case "client":
		if l == nil {
			return ""
		}
		return string(l.Client)

	case "address":
		if l == nil || len(l.Address) == 0 {
			return ""
		}
		return l.Address.String()

	case "expires":
		if l == nil || l.Expires.IsZero() {
			return ""
		}
		return l.Expires.Format(time.RFC3339)

	case "lease_seconds":
		if l == nil || l.Expires.IsZero() {
			return "0"
		}
		return strconv.Itoa(int(l.Remaining(r.ev.Time).Seconds()))
	}

	return ""
}

// Replace replaces all placeholders in s with their value. Braces may be
// escaped using a backslash. The algorithm follows the one of
// https://github.com/caddyserver/caddy/blob/master/caddyhttp/httpserver/replacer.go
func (r *replacer) Replace(s string) string {
	if !strings.ContainsAny(s, "{}") {
		return s
	}

	var result strings.Builder

	for {
		start := indexUnescaped(s, "{", 0)
		if start == -1 {
			break
		}

		end := indexUnescaped(s, "}", start)
		if end == -1 {
			break
		}

		placeholder := unescapeBraces(s[start : end+1])
		value := r.Get(placeholder[1 : len(placeholder)-1])

		result.WriteString(strings.TrimPrefix(unescapeBraces(s[:start]), "\\"))
		result.WriteString(value)

		s = s[end+1:]
	}

	result.WriteString(unescapeBraces(s))
	return result.String()
}

// indexUnescaped returns the index of the first sep in s at or after from
// that is not preceded by a backslash
func indexUnescaped(s, sep string, from int) int {
	offset := from
	for {
		idx := strings.Index(s[offset:], sep)
		if idx == -1 {
			return -1
		}

		if idx+offset == 0 || s[idx+offset-1] != '\\' {
			return idx + offset
		}

		offset += idx + 1
	}
}

// unescapeBraces finds escaped braces in s and returns
// a string with those braces unescaped.
func unescapeBraces(s string) string {
	s = strings.Replace(s, "\\{", "{", -1)
	s = strings.Replace(s, "\\}", "}", -1)
	return s
}
