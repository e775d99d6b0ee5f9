// Package gateway delivers outbound requests either to the Bot API or to an in-memory record.
//
// Handlers see only the Gateway interface; the variant is chosen once at startup by New.
package gateway

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"
)

const (
	ModeLive      = "live"
	ModeIntercept = "intercept"
)

// Gateway delivers one request and returns its acknowledgment.
type Gateway interface {
	Deliver(ctx context.Context, req Request) (Acknowledgment, error)
}

type options struct {
	parseMode tele.ParseMode
	record    *Record
}

// Option configures New.
type Option func(*options)

// WithParseMode sets the parse mode the live gateway applies to every text.
func WithParseMode(mode tele.ParseMode) Option {
	return func(o *options) { o.parseMode = mode }
}

// WithRecord sets the record the intercepting gateway writes to.
func WithRecord(rec *Record) Option {
	return func(o *options) { o.record = rec }
}

// New selects the gateway variant for mode. The live variant requires bot.
func New(mode string, bot Bot, opts ...Option) (Gateway, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ModeLive, "":
		if bot == nil {
			return nil, fmt.Errorf("gateway: live mode requires a bot")
		}
		return NewLive(bot, o.parseMode), nil
	case ModeIntercept:
		rec := o.record
		if rec == nil {
			rec = NewRecord()
		}
		return NewInterceptor(rec), nil
	}
	return nil, fmt.Errorf("gateway: unknown mode %q", mode)
}

// Recorder collects the requests and acknowledgments of one dispatch.
// It is not safe for concurrent use.
type Recorder struct {
	next     Gateway
	requests []Request
	acks     []Acknowledgment
}

// NewRecorder wraps next.
func NewRecorder(next Gateway) *Recorder {
	return &Recorder{next: next}
}

// Deliver forwards to the wrapped gateway and keeps successful deliveries.
func (r *Recorder) Deliver(ctx context.Context, req Request) (Acknowledgment, error) {
	ack, err := r.next.Deliver(ctx, req)
	if err != nil {
		return ack, err
	}
	r.requests = append(r.requests, req)
	r.acks = append(r.acks, ack)
	return ack, nil
}

// Requests returns the delivered requests in order.
func (r *Recorder) Requests() []Request { return r.requests }

// Acks returns the acknowledgments in delivery order.
func (r *Recorder) Acks() []Acknowledgment { return r.acks }
