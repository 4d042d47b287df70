// Package matcher provides a simple "rule" language that may be used
// inside NextLease plugin directives to filter lease events. The matcher
// library is based on github.com/Knetic/govaluate.
//
// Expressions can access the following parameters:
//
//	event          name of the lease event (i.e. "lease-created")
//	client         the client identifier
//	address        the leased address, empty for pool-exhausted events
//	lease_seconds  the lease time left in seconds
package matcher

import (
	"fmt"
	"strings"
	"time"

	"github.com/Knetic/govaluate"
	"github.com/caddyserver/caddy"
	"github.com/caddyserver/caddy/caddyfile"
	"github.com/nextdhcp/nextlease/core/events"
	"github.com/nextdhcp/nextlease/core/lease"
)

type (
	// Matcher is a lease event matcher
	Matcher struct {
		// expr holds the pre-compiled expression
		expr *govaluate.EvaluableExpression
	}

	// ExprFunc can be used expose functions to matcher expressions
	ExprFunc func(args ...interface{}) (interface{}, error)

	// Conditions collects "if" and "if_op" lines of a directive block
	Conditions struct {
		conds []string
		op    string
	}
)

// Parse consumes the current token of d if it is an "if" or "if_op" line.
// It returns false if the token is not a condition
func (c *Conditions) Parse(d *caddyfile.Dispenser) (bool, error) {
	switch d.Val() {
	case "if":
		args := d.RemainingArgs()
		if len(args) == 0 {
			return true, d.ArgErr()
		}

		c.conds = append(c.conds, strings.Join(args, " "))
		return true, nil

	case "if_op":
		if !d.NextArg() {
			return true, d.ArgErr()
		}

		switch d.Val() {
		case "and", "&&":
			c.op = "&&"
		case "or", "||":
			c.op = "||"
		default:
			return true, d.Errf("unknown condition operator %q", d.Val())
		}

		return true, nil
	}

	return false, nil
}

// Add adds a condition expression
func (c *Conditions) Add(expr string) {
	if expr == "" {
		return
	}
	c.conds = append(c.conds, expr)
}

// String returns the concatenated expression
func (c *Conditions) String() string {
	op := c.op
	if op == "" {
		op = "&&"
	}

	exprStr := ""
	for i, cond := range c.conds {
		if i > 0 {
			exprStr += " " + op + " "
		}
		exprStr += "(" + cond + ")"
	}

	return exprStr
}

// Build compiles all collected conditions into a matcher
func (c *Conditions) Build(fns ...map[string]ExprFunc) (*Matcher, error) {
	return SetupMatcherString(c.String(), fns...)
}

// SetupMatcherString returns a matcher for the given expression. An empty
// expression matches everything
func SetupMatcherString(exprStr string, fns ...map[string]ExprFunc) (*Matcher, error) {
	functions := make(map[string]govaluate.ExpressionFunction)

	for _, m := range fns {
		for name, fn := range m {
			functions[name] = govaluate.ExpressionFunction(fn)
		}
	}

	var expr *govaluate.EvaluableExpression

	if exprStr != "" {
		var err error

		expr, err = govaluate.NewEvaluableExpressionWithFunctions(exprStr, functions)
		if err != nil {
			return nil, err
		}

		if err := validate(expr); err != nil {
			return nil, fmt.Errorf("invalid expression %q: %w", exprStr, err)
		}
	}

	return &Matcher{
		expr: expr,
	}, nil
}

// validate rejects expressions that govaluate accepts but that can never
// be evaluated as intended, like a trailing comparator. The expression is
// evaluated once against an empty lease and must yield a boolean
func validate(expr *govaluate.EvaluableExpression) error {
	tokens := expr.Tokens()

	for i, tok := range tokens {
		if !isOperator(tok.Kind) {
			continue
		}

		if i == len(tokens)-1 || tokens[i+1].Kind == govaluate.CLAUSE_CLOSE {
			return fmt.Errorf("missing operand after %v", tok.Value)
		}
	}

	result, err := expr.Evaluate(Parameters(events.EventLeaseCreated, &lease.Lease{}, time.Now()))
	if err != nil {
		return err
	}

	if _, ok := result.(bool); !ok {
		return fmt.Errorf("expression does not evaluate to a boolean, got %v", result)
	}

	return nil
}

func isOperator(kind govaluate.TokenKind) bool {
	switch kind {
	case govaluate.PREFIX, govaluate.MODIFIER, govaluate.COMPARATOR,
		govaluate.LOGICALOP, govaluate.TERNARY:
		return true
	}

	return false
}

// Match evaluates the expression stored in the matcher against the given
// lease event
func (m *Matcher) Match(event caddy.EventName, l *lease.Lease, now time.Time) (bool, error) {
	if m == nil || m.expr == nil {
		return true, nil
	}

	result, err := m.expr.Evaluate(Parameters(event, l, now))
	if err != nil {
		return false, err
	}

	if b, ok := result.(bool); ok {
		return b, nil
	}

	return false, fmt.Errorf("expression did not evaluate to a boolean. instead, got: %v", result)
}

// Parameters returns the expression parameters for a lease event
func Parameters(event caddy.EventName, l *lease.Lease, now time.Time) map[string]interface{} {
	params := map[string]interface{}{
		"event":         string(event),
		"client":        "",
		"address":       "",
		"lease_seconds": float64(0),
	}

	if l == nil {
		return params
	}

	params["client"] = string(l.Client)
	if len(l.Address) > 0 {
		params["address"] = l.Address.String()
		params["lease_seconds"] = l.Remaining(now).Seconds()
	}

	return params
}
