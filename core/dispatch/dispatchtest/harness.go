// Package dispatchtest drives a dispatch table through the intercepting gateway.
//
// Each Harness owns its store and record, so tests using separate harnesses may run in parallel.
package dispatchtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/m3rciful/calcbot/core/conversation"
	"github.com/m3rciful/calcbot/core/dispatch"
	"github.com/m3rciful/calcbot/core/event"
	"github.com/m3rciful/calcbot/core/telegram/gateway"

	tele "gopkg.in/telebot.v4"
)

// Harness bundles a dispatcher with an in-memory store and an intercept record.
type Harness struct {
	t          testing.TB
	Store      *conversation.MemoryStore
	Record     *gateway.Record
	Dispatcher *dispatch.Dispatcher
}

// New builds a harness for table.
func New(t testing.TB, table *dispatch.Table) *Harness {
	t.Helper()
	store := conversation.NewMemoryStore()
	rec := gateway.NewRecord()
	return &Harness{
		t:          t,
		Store:      store,
		Record:     rec,
		Dispatcher: dispatch.New(table, store, gateway.NewInterceptor(rec)),
	}
}

// Reset clears the record and the stored state of chatID.
func (h *Harness) Reset(chatID int64) {
	h.Record.Reset()
	h.Store.Delete(chatID)
}

// Dispatch seeds the chat with st, then dispatches ev.
func (h *Harness) Dispatch(ev event.Event, st conversation.State) (dispatch.Result, error) {
	h.t.Helper()
	chatID := ev.Metadata().ChatID
	h.Reset(chatID)
	require.NoError(h.t, h.Store.Set(context.Background(), chatID, conversation.Normalize(st)))
	return h.Dispatcher.Dispatch(context.Background(), ev)
}

// RunEvent is Dispatch that fails the test on error.
func (h *Harness) RunEvent(ev event.Event, st conversation.State) dispatch.Result {
	h.t.Helper()
	res, err := h.Dispatch(ev, st)
	require.NoError(h.t, err)
	return res
}

// Run converts u into an event and runs it from st.
func (h *Harness) Run(u tele.Update, st conversation.State) dispatch.Result {
	h.t.Helper()
	ev, ok := event.FromUpdate(u)
	require.True(h.t, ok, "update %d carries no event", u.ID)
	return h.RunEvent(ev, st)
}

// State returns the stored state of chatID.
func (h *Harness) State(chatID int64) conversation.State {
	h.t.Helper()
	st, err := h.Store.Get(context.Background(), chatID)
	require.NoError(h.t, err)
	return st
}

// LastText returns the text of the last message-producing delivery.
func (h *Harness) LastText() string {
	h.t.Helper()
	ack, ok := h.Record.Last()
	require.True(h.t, ok, "no message was delivered")
	return ack.Text
}

// AssertStateAndText checks the stored state of chatID and the last delivered text.
func (h *Harness) AssertStateAndText(chatID int64, want conversation.State, text string) {
	h.t.Helper()
	require.Equal(h.t, conversation.Normalize(want), h.State(chatID))
	require.Equal(h.t, text, h.LastText())
}
