package gateway

import (
	"context"
	"sync"

	"github.com/m3rciful/calcbot/core/metrics"
	"github.com/m3rciful/calcbot/core/telegram/fixture"
)

// Record keeps what an Interceptor delivered. Each test owns its own record.
type Record struct {
	mu       sync.Mutex
	last     Acknowledgment
	hasLast  bool
	requests []Request
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{}
}

func (r *Record) add(req Request, ack Acknowledgment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	if ProducesMessage(req) {
		r.last = ack
		r.hasLast = true
	}
}

// Last returns the acknowledgment of the most recent SendMessage or EditMessageText.
func (r *Record) Last() (Acknowledgment, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.hasLast
}

// Requests returns a copy of every request delivered since the last reset.
func (r *Record) Requests() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Request, len(r.requests))
	copy(out, r.requests)
	return out
}

// Reset clears the record.
func (r *Record) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = Acknowledgment{}
	r.hasLast = false
	r.requests = nil
}

// Interceptor synthesizes acknowledgments without any I/O and always succeeds.
type Interceptor struct {
	rec *Record
}

// NewInterceptor returns a gateway writing into rec.
func NewInterceptor(rec *Record) *Interceptor {
	return &Interceptor{rec: rec}
}

// Record returns the record this interceptor writes to.
func (i *Interceptor) Record() *Record { return i.rec }

// Deliver synthesizes the acknowledgment a Bot API call would return for req.
func (i *Interceptor) Deliver(_ context.Context, req Request) (Acknowledgment, error) {
	var ack Acknowledgment
	switch r := req.(type) {
	case SendMessage:
		ack = AckFromMessage(fixture.BotMessage(r.ChatID, 0, r.Text, r.ReplyMarkup))
	case EditMessageText:
		ack = AckFromMessage(fixture.BotMessage(r.ChatID, r.MessageID, r.Text, r.ReplyMarkup))
	}
	i.rec.add(req, ack)
	metrics.IncDelivery(ModeIntercept, string(req.Kind()), "")
	return ack, nil
}
