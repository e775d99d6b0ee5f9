package conversation

import (
	"context"
	"fmt"
)

// Store maps a chat id to its current state.
// Get returns Start when nothing is stored; Set is an atomic upsert.
type Store interface {
	Get(ctx context.Context, chatID int64) (State, error)
	Set(ctx context.Context, chatID int64, st State) error
}

// StoreError wraps an infrastructure failure of a Store.
type StoreError struct {
	Op     string
	ChatID int64
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("conversation store %s chat=%d: %v", e.Op, e.ChatID, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Dialogue binds one chat to a store. It holds no state of its own.
type Dialogue struct {
	ChatID int64
	Store  Store
}

// NewDialogue returns a dialogue for chatID.
func NewDialogue(store Store, chatID int64) Dialogue {
	return Dialogue{ChatID: chatID, Store: store}
}

// Get loads the current state.
func (d Dialogue) Get(ctx context.Context) (State, error) {
	st, err := d.Store.Get(ctx, d.ChatID)
	if err != nil {
		return nil, err
	}
	return Normalize(st), nil
}

// Update replaces the current state.
func (d Dialogue) Update(ctx context.Context, st State) error {
	return d.Store.Set(ctx, d.ChatID, Normalize(st))
}

// Reset returns the conversation to Start.
func (d Dialogue) Reset(ctx context.Context) error {
	return d.Update(ctx, Start{})
}
