package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/calcbot/core/logger"
)

// ErrLockBusy is returned when a chat stays locked for every attempt.
var ErrLockBusy = errors.New("redisstore: chat lock busy")

const lockPrefix = "dialogue-lock:"

// Locker serializes dispatches of one chat across processes.
// A held lease is renewed every Refresh until it is released, so it only
// expires after TTL when its holder dies.
type Locker struct {
	client   Client
	TTL      time.Duration
	Refresh  time.Duration
	Attempts int
	Backoff  time.Duration
}

// NewLocker returns a locker with a 10s lease renewed every 3s, 40 attempts and 50ms between them.
func NewLocker(client Client) *Locker {
	return &Locker{client: client, TTL: 10 * time.Second, Refresh: 3 * time.Second, Attempts: 40, Backoff: 50 * time.Millisecond}
}

// Lock acquires chatID's lease. The returned func stops the renewal and releases
// the lease only while it is still ours.
func (l *Locker) Lock(ctx context.Context, chatID int64) (func(), error) {
	key := lockPrefix + strconv.FormatInt(chatID, 10)
	token := uuid.NewString()
	attempts := max(l.Attempts, 1)

	var lastErr error
	for i := 0; i < attempts; i++ {
		ok, err := l.client.SetNX(ctx, key, token, l.TTL)
		if err == nil && ok {
			return l.hold(key, token), nil
		}
		if err != nil {
			lastErr = err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.Backoff):
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("redisstore: lock chat %d: %w", chatID, lastErr)
	}
	return nil, ErrLockBusy
}

func (l *Locker) refreshInterval() time.Duration {
	if l.Refresh > 0 && l.Refresh < l.TTL {
		return l.Refresh
	}
	return l.TTL / 3
}

// hold starts the renewal loop and returns the unlock func.
func (l *Locker) hold(key, token string) func() {
	stop := make(chan struct{})
	done := make(chan struct{})
	go l.renew(key, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// the caller's context may already be cancelled
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			released, err := l.client.CompareAndDelete(ctx, key, token)
			if err != nil || !released {
				logger.Warn(ctx, "store", "redis.unlock",
					slog.String("status", logger.Status(err)),
					slog.String("key", key),
					slog.Bool("released", released),
					slog.Any("error", err),
				)
			}
		})
	}
}

func (l *Locker) renew(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	interval := l.refreshInterval()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		ok, err := l.client.CompareAndExpire(ctx, key, token, l.TTL)
		cancel()
		switch {
		case err != nil:
			// the next tick retries while the lease is still alive
			logger.Warn(context.Background(), "store", "redis.lock_renew",
				slog.String("status", "error"),
				slog.String("key", key),
				slog.Any("error", err),
			)
		case !ok:
			logger.Error(context.Background(), "store", "redis.lock_lost",
				slog.String("status", "error"),
				slog.String("key", key),
			)
			return
		}
	}
}
