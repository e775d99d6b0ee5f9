// Package dispatch runs one inbound event through the conversation state machine.
//
// A Dispatch loads the chat's state, picks the route for (state, event), lets the handler
// deliver its replies and commits the returned state. Nothing is committed when the
// handler fails, so a transport error leaves the conversation at its prior state.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/calcbot/core/conversation"
	"github.com/m3rciful/calcbot/core/event"
	"github.com/m3rciful/calcbot/core/logger"
	"github.com/m3rciful/calcbot/core/metrics"
	"github.com/m3rciful/calcbot/core/telegram/gateway"
)

// ErrUnhandled is returned when no route matches the state and event.
var ErrUnhandled = errors.New("dispatch: no route for event")

// Result describes one evaluation.
type Result struct {
	Route    string
	Prev     conversation.State
	Next     conversation.State
	Requests []gateway.Request
	Acks     []gateway.Acknowledgment
}

// Changed reports whether the evaluation moved the conversation.
func (r Result) Changed() bool {
	return !conversation.Equal(r.Prev, r.Next)
}

// Dispatcher evaluates events against a table and persists transitions.
type Dispatcher struct {
	table  *Table
	store  conversation.Store
	out    gateway.Gateway
	locker Locker
	bot    string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLocker replaces the in-process per-chat lock.
func WithLocker(l Locker) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.locker = l
		}
	}
}

// WithBotUsername makes commands addressed to other bots ("/start@otherbot") plain text.
func WithBotUsername(username string) Option {
	return func(d *Dispatcher) { d.bot = username }
}

// New builds a dispatcher.
func New(table *Table, store conversation.Store, out gateway.Gateway, opts ...Option) *Dispatcher {
	d := &Dispatcher{table: table, store: store, out: out, locker: NewKeyedMutex()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Table returns the routing table.
func (d *Dispatcher) Table() *Table { return d.table }

// Evaluate runs the handler matching (st, ev) without touching the store.
// On error Next equals Prev.
func (d *Dispatcher) Evaluate(ctx context.Context, st conversation.State, ev event.Event) (Result, error) {
	st = conversation.Normalize(st)
	res := Result{Prev: st, Next: st}
	route, ok := d.table.MatchFor(st, ev, d.bot)
	if !ok {
		return res, ErrUnhandled
	}
	res.Route = route.Name

	rec := gateway.NewRecorder(d.out)
	next, err := route.Handler(logger.WithHandler(ctx, route.Name), Input{
		ChatID: ev.Metadata().ChatID,
		Event:  ev,
		State:  st,
		Out:    rec,
	})
	res.Requests = rec.Requests()
	res.Acks = rec.Acks()
	if err != nil {
		return res, fmt.Errorf("dispatch: route %s: %w", route.Name, err)
	}
	res.Next = conversation.Normalize(next)
	return res, nil
}

// Dispatch serializes on the event's chat, evaluates the event against the stored state
// and commits the next state when it changed.
func (d *Dispatcher) Dispatch(ctx context.Context, ev event.Event) (Result, error) {
	start := time.Now()
	chatID := ev.Metadata().ChatID

	unlock, err := d.locker.Lock(ctx, chatID)
	if err != nil {
		return Result{}, fmt.Errorf("dispatch: lock chat %d: %w", chatID, err)
	}
	defer unlock()

	dlg := conversation.NewDialogue(d.store, chatID)
	st, err := dlg.Get(ctx)
	if err != nil {
		err = asStoreError("get", chatID, err)
		d.finish(ctx, Result{}, "error", start, err)
		return Result{}, err
	}

	res, err := d.Evaluate(ctx, st, ev)
	switch {
	case errors.Is(err, ErrUnhandled):
		d.finish(ctx, res, "unhandled", start, err)
		return res, err
	case err != nil:
		d.finish(ctx, res, "error", start, err)
		return res, err
	case !res.Changed():
		d.finish(ctx, res, "unchanged", start, nil)
		return res, nil
	}

	if err := dlg.Update(ctx, res.Next); err != nil {
		err = asStoreError("set", chatID, err)
		d.finish(ctx, res, "error", start, err)
		return res, err
	}
	d.finish(ctx, res, "ok", start, nil)
	return res, nil
}

func asStoreError(op string, chatID int64, err error) error {
	var se *conversation.StoreError
	if errors.As(err, &se) {
		return err
	}
	return &conversation.StoreError{Op: op, ChatID: chatID, Err: err}
}

func (d *Dispatcher) finish(ctx context.Context, res Result, outcome string, start time.Time, err error) {
	took := time.Since(start)
	metrics.ObserveDispatch(res.Route, outcome, took)

	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("outcome", outcome),
		slog.Duration("took", logger.RoundMS(took)),
	}
	if res.Route != "" {
		attrs = append(attrs, slog.String("route", res.Route))
	}
	if res.Prev != nil {
		attrs = append(attrs, slog.String("state", res.Prev.String()))
	}
	if res.Next != nil && res.Changed() {
		attrs = append(attrs, slog.String("next", res.Next.String()))
	}
	if n := len(res.Requests); n > 0 {
		attrs = append(attrs, slog.Int("requests", n))
	}
	switch {
	case err == nil:
		logger.Debug(ctx, "dispatch", "dispatch", attrs...)
	case errors.Is(err, ErrUnhandled):
		logger.Debug(ctx, "dispatch", "dispatch", attrs...)
	default:
		attrs = append(attrs, slog.String("error", err.Error()))
		logger.Error(ctx, "dispatch", "dispatch", attrs...)
	}
}
