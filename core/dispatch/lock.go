package dispatch

import (
	"context"
	"sync"
)

// Locker serializes dispatches of one chat.
type Locker interface {
	Lock(ctx context.Context, chatID int64) (unlock func(), err error)
}

type lockEntry struct {
	ch   chan struct{}
	refs int
}

// KeyedMutex is an in-process Locker. Entries are dropped once nobody holds or waits for them.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[int64]*lockEntry
}

// NewKeyedMutex returns an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[int64]*lockEntry)}
}

// Lock blocks until chatID is free or ctx is done.
func (k *KeyedMutex) Lock(ctx context.Context, chatID int64) (func(), error) {
	k.mu.Lock()
	e, ok := k.entries[chatID]
	if !ok {
		e = &lockEntry{ch: make(chan struct{}, 1)}
		k.entries[chatID] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(chatID, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			k.release(chatID, e)
		})
	}, nil
}

func (k *KeyedMutex) release(chatID int64, e *lockEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, chatID)
	}
}

// Len reports the number of chats currently locked or awaited.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
