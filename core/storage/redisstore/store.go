package redisstore

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/m3rciful/calcbot/core/conversation"
	"github.com/m3rciful/calcbot/core/metrics"
)

const keyPrefix = "dialogue:"

// Key returns the Redis key holding chatID's state.
func Key(chatID int64) string {
	return keyPrefix + strconv.FormatInt(chatID, 10)
}

// Store is a conversation.Store backed by Redis. Values are codec bytes.
type Store struct {
	client Client
	ttl    time.Duration
}

var _ conversation.Store = (*Store)(nil)

// New returns a store. A zero ttl keeps states forever.
func New(client Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func (s *Store) Get(ctx context.Context, chatID int64) (conversation.State, error) {
	raw, err := s.client.Get(ctx, Key(chatID))
	if errors.Is(err, redis.Nil) {
		metrics.IncStoreOp("redis", "get", nil)
		return conversation.Start{}, nil
	}
	metrics.IncStoreOp("redis", "get", err)
	if err != nil {
		return nil, &conversation.StoreError{Op: "get", ChatID: chatID, Err: err}
	}
	st, err := conversation.Decode(raw)
	if err != nil {
		return nil, &conversation.StoreError{Op: "decode", ChatID: chatID, Err: err}
	}
	return st, nil
}

func (s *Store) Set(ctx context.Context, chatID int64, st conversation.State) error {
	raw, err := conversation.Encode(st)
	if err != nil {
		return &conversation.StoreError{Op: "encode", ChatID: chatID, Err: err}
	}
	err = s.client.Set(ctx, Key(chatID), raw, s.ttl)
	metrics.IncStoreOp("redis", "set", err)
	if err != nil {
		return &conversation.StoreError{Op: "set", ChatID: chatID, Err: err}
	}
	return nil
}

// Ping reports whether Redis answers; it backs the health check.
func (s *Store) Ping(ctx context.Context) error { return s.client.Ping(ctx) }

func (s *Store) Close() error { return s.client.Close() }
