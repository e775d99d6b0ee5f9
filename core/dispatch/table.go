package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/m3rciful/calcbot/core/conversation"
	"github.com/m3rciful/calcbot/core/event"
	"github.com/m3rciful/calcbot/core/telegram/gateway"
)

// Input is what a handler sees for one event.
type Input struct {
	ChatID int64
	Event  event.Event
	State  conversation.State
	Out    gateway.Gateway
}

// Handler validates input, delivers replies through in.Out and returns the next state.
// Returning in.State leaves the conversation where it is.
type Handler func(ctx context.Context, in Input) (conversation.State, error)

// Route binds a (state, event, command) triple to a handler.
// Command is non-empty only for text routes that react to one bot command.
type Route struct {
	Name        string
	State       conversation.Kind
	On          event.Kind
	Command     string
	Description string
	Handler     Handler
}

type routeKey struct {
	state   conversation.Kind
	on      event.Kind
	command string
}

// Table is a validated set of routes.
type Table struct {
	routes []Route
	index  map[routeKey]int
}

// NewTable validates routes and indexes them.
func NewTable(routes ...Route) (*Table, error) {
	states := make(map[conversation.Kind]bool)
	for _, k := range conversation.Kinds() {
		states[k] = true
	}
	t := &Table{index: make(map[routeKey]int, len(routes))}
	names := make(map[string]bool, len(routes))
	for i, r := range routes {
		if strings.TrimSpace(r.Name) == "" {
			return nil, fmt.Errorf("dispatch: route #%d has no name", i)
		}
		if names[r.Name] {
			return nil, fmt.Errorf("dispatch: duplicate route name %q", r.Name)
		}
		names[r.Name] = true
		if r.Handler == nil {
			return nil, fmt.Errorf("dispatch: route %q has no handler", r.Name)
		}
		if !states[r.State] {
			return nil, fmt.Errorf("dispatch: route %q: unknown state %q", r.Name, r.State)
		}
		switch r.On {
		case event.KindText, event.KindNonText, event.KindCallback:
		default:
			return nil, fmt.Errorf("dispatch: route %q: unknown event kind %q", r.Name, r.On)
		}
		if r.Command != "" {
			if r.On != event.KindText {
				return nil, fmt.Errorf("dispatch: route %q: commands bind only to text events", r.Name)
			}
			if name, ok := event.Command(r.Command); !ok || name != r.Command {
				return nil, fmt.Errorf("dispatch: route %q: malformed command %q", r.Name, r.Command)
			}
		}
		key := routeKey{state: r.State, on: r.On, command: r.Command}
		if prev, dup := t.index[key]; dup {
			return nil, fmt.Errorf("dispatch: routes %q and %q overlap", routes[prev].Name, r.Name)
		}
		t.index[key] = i
		t.routes = append(t.routes, r)
	}
	return t, nil
}

// MustTable is NewTable that panics on an invalid table.
func MustTable(routes ...Route) *Table {
	t, err := NewTable(routes...)
	if err != nil {
		panic(err)
	}
	return t
}

// Match selects the route for (st, ev). A command route wins over the plain text route of the same state.
func (t *Table) Match(st conversation.State, ev event.Event) (Route, bool) {
	return t.MatchFor(st, ev, "")
}

// MatchFor is Match for the bot named username: a command mentioning another bot
// is matched as plain text.
func (t *Table) MatchFor(st conversation.State, ev event.Event, username string) (Route, bool) {
	kind := conversation.Normalize(st).Kind()
	if txt, ok := ev.(event.TextMessage); ok {
		if cmd, mention, isCmd := event.ParseCommand(txt.Text); isCmd && event.AddressedTo(mention, username) {
			if i, found := t.index[routeKey{state: kind, on: event.KindText, command: cmd}]; found {
				return t.routes[i], true
			}
		}
	}
	i, found := t.index[routeKey{state: kind, on: ev.Kind()}]
	if !found {
		return Route{}, false
	}
	return t.routes[i], true
}

// Routes returns the routes in declaration order.
func (t *Table) Routes() []Route {
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	return out
}

// Commands returns the command routes in declaration order.
func (t *Table) Commands() []Route {
	var out []Route
	for _, r := range t.routes {
		if r.Command != "" {
			out = append(out, r)
		}
	}
	return out
}
