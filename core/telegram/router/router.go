// Package router turns telebot updates into conversation events and hands them to
// the worker pool, keyed by chat, for dispatch.
package router

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/m3rciful/calcbot/core/dispatch"
	"github.com/m3rciful/calcbot/core/event"
	"github.com/m3rciful/calcbot/core/logger"
	tg "github.com/m3rciful/calcbot/core/telegram"
	"github.com/m3rciful/calcbot/core/telegram/middleware"
	"github.com/m3rciful/calcbot/core/worker"

	tele "gopkg.in/telebot.v4"
)

// Dispatcher runs one event through the state machine.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev event.Event) (dispatch.Result, error)
}

// Submitter queues work for asynchronous execution.
type Submitter interface {
	Submit(ctx context.Context, j worker.Job) error
}

// Options customises a Router.
type Options struct {
	// Answer acknowledges a button press so the client stops its spinner.
	// Nil answers with an empty callback response.
	Answer func(c tele.Context) error
	// OnBusy is called when the worker queue rejects an update.
	OnBusy tele.HandlerFunc
}

// Router is the single handler behind every supported endpoint.
type Router struct {
	disp   Dispatcher
	pool   Submitter
	answer func(c tele.Context) error
	onBusy tele.HandlerFunc
}

// New returns a router dispatching through d on pool.
func New(d Dispatcher, pool Submitter, opts Options) *Router {
	r := &Router{disp: d, pool: pool, answer: opts.Answer, onBusy: opts.OnBusy}
	if r.answer == nil {
		r.answer = func(c tele.Context) error { return c.Respond() }
	}
	return r
}

// endpoints lists every update type that maps to an event.
// Media types without their own handler fall through to OnMedia.
var endpoints = []string{
	tele.OnText,
	tele.OnCallback,
	tele.OnMedia,
	tele.OnSticker,
	tele.OnLocation,
	tele.OnVenue,
	tele.OnContact,
	tele.OnPoll,
	tele.OnDice,
}

// Routes binds Handle to every supported endpoint.
func (r *Router) Routes() []tg.Route {
	routes := make([]tg.Route, 0, len(endpoints))
	for _, e := range endpoints {
		routes = append(routes, tg.Route{Endpoint: e, Handler: r.Handle})
	}
	return routes
}

// Handle converts the update and queues its dispatch. It never blocks on the dispatch itself.
func (r *Router) Handle(c tele.Context) error {
	ev, ok := event.FromUpdate(c.Update())
	if !ok {
		return nil
	}
	ctx := middleware.ContextOf(c)

	if _, isCallback := ev.(event.CallbackAction); isCallback {
		if err := r.answer(c); err != nil {
			logger.Debug(ctx, "tg", "callback.answer",
				slog.String("status", "error"),
				slog.String("error", logger.SanitizeLimit(err.Error(), 256)),
			)
		}
	}

	job := worker.Job{
		Key:    ev.Metadata().ChatID,
		Action: "dispatch." + string(ev.Kind()),
		Run: func(jctx context.Context) error {
			return r.run(jctx, ev)
		},
	}
	if err := r.pool.Submit(ctx, job); err != nil {
		logger.Warn(ctx, "tg", "update.rejected",
			slog.String("status", "error"),
			slog.String("outcome", "rejected"),
			slog.String("kind", string(ev.Kind())),
			slog.String("error", err.Error()),
		)
		if r.onBusy != nil && errors.Is(err, worker.ErrQueueFull) {
			return r.onBusy(c)
		}
		return nil
	}
	return nil
}

// run dispatches ev and writes the handler summary line. Unmatched events are not failures.
func (r *Router) run(ctx context.Context, ev event.Event) error {
	start := time.Now()
	res, err := r.disp.Dispatch(ctx, ev)
	if res.Route != "" {
		ctx = logger.WithHandler(ctx, res.Route)
	}

	outcome := "ok"
	switch {
	case errors.Is(err, dispatch.ErrUnhandled):
		outcome = "unhandled"
		err = nil
	case err != nil:
		outcome = "error"
	case !res.Changed():
		outcome = "unchanged"
	}

	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("outcome", outcome),
		slog.String("kind", string(ev.Kind())),
		slog.Int("requests", len(res.Requests)),
		slog.Duration("took", logger.Took(start)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", logger.SanitizeLimit(err.Error(), 256)))
	}
	logger.Info(ctx, "tg", "handler.handled", attrs...)
	return err
}
