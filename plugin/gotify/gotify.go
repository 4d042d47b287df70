package gotify

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/caddyserver/caddy"
	"github.com/gotify/go-api-client/v2/auth"
	"github.com/gotify/go-api-client/v2/client/message"
	"github.com/gotify/go-api-client/v2/gotify"
	"github.com/gotify/go-api-client/v2/models"
	"github.com/nextdhcp/nextlease/core/lease"
	"github.com/nextdhcp/nextlease/core/log"
	"github.com/nextdhcp/nextlease/core/matcher"
	"github.com/nextdhcp/nextlease/core/replacer"
)

const (
	defaultTitle    = "NextLease"
	defaultPriority = 5
)

type (
	// gotifyPlugin matches lease events against a set of conditions
	// and sends notifications
	gotifyPlugin struct {
		notifications []*notification
		l             log.Logger
		wg            sync.WaitGroup
	}

	// notification combines the filter (condition) and the message
	// templates for a gotify notification
	notification struct {
		matcher.Filter
		msg      string
		title    string
		priority int
		srv      string
		token    string
	}
)

// notify sends msg to the gotify server at srv
var notify = func(srv *url.URL, token string, msg *message.CreateMessageParams) error {
	cli := gotify.NewClient(srv, &http.Client{Timeout: 10 * time.Second})

	_, err := cli.Message.CreateMessage(msg, auth.TokenAuth(token))
	return err
}

// Prepare checks if we should send a notification for the given event and returns
// the message body. An empty message body indicates that no notification should be
// sent
func (n *notification) Prepare(event caddy.EventName, l *lease.Lease, now time.Time) (string, string, error) {
	if n.msg == "" {
		return "", "", nil
	}

	matched, err := n.Match(event, l, now)
	if err != nil {
		return "", "", err
	}

	if !matched {
		return "", "", nil
	}

	rep := replacer.NewReplacer(context.Background(), &replacer.Event{
		Name:  event,
		Lease: l,
		Time:  now,
	})

	title := rep.Replace(n.title)
	if title == "" {
		title = defaultTitle
	}

	return title, rep.Replace(n.msg), nil
}

// Send sends the notification to the gotify server
func (n *notification) Send(title, msg string) error {
	gotifyURL, err := url.Parse(n.srv)
	if err != nil {
		return err
	}

	params := message.NewCreateMessageParams()
	params.Body = &models.MessageExternal{
		Title:    title,
		Message:  msg,
		Priority: n.priority,
	}

	return notify(gotifyURL, n.token, params)
}

// addNotification adds a new notification to the gotify plugin
func (g *gotifyPlugin) addNotification(n *notification) {
	g.notifications = append(g.notifications, n)
}

// findLastCreds returns the last credentials used for a notification
func (g *gotifyPlugin) findLastCreds() (string, string, bool) {
	if len(g.notifications) == 0 {
		return "", "", false
	}

	last := g.notifications[len(g.notifications)-1]
	return last.srv, last.token, true
}

// onEvent checks if we should send notifications for a lease event and
// sends them in the background
func (g *gotifyPlugin) onEvent(event caddy.EventName, l *lease.Lease) error {
	now := time.Now()

	var lc *lease.Lease
	if l != nil {
		lc = l.Clone()
	}

	for _, n := range g.notifications {
		title, body, err := n.Prepare(event, lc, now)
		if err != nil {
			g.l.Warnf("failed to prepare notification: %s", err.Error())
			continue
		}

		if body == "" {
			continue
		}

		g.wg.Add(1)
		go func(n *notification, title, body string) {
			defer g.wg.Done()

			g.l.Debugf("sending notification: %s\n%s", title, body)

			if err := n.Send(title, body); err != nil {
				g.l.Warnf("failed to send notification: %s", err.Error())
				return
			}

			g.l.Debugf("notification sent via %s: %s", n.srv, title)
		}(n, title, body)
	}

	return nil
}

// shutdown waits for all pending notifications
func (g *gotifyPlugin) shutdown() error {
	g.wg.Wait()
	return nil
}
