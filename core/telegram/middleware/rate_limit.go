package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/calcbot/core/logger"
	"github.com/m3rciful/calcbot/core/metrics"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures RateLimit.
type RateLimitOptions struct {
	Interval time.Duration
	// Exclude lists update kinds ("message", "callback") that bypass the limit.
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// RateLimit drops updates from a user that arrive within Interval of the previous accepted one.
func RateLimit(opts RateLimitOptions) tele.MiddlewareFunc {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	var (
		mu       sync.Mutex
		lastSeen = make(map[int64]time.Time)
	)
	allow := func(userID int64, at time.Time) bool {
		mu.Lock()
		defer mu.Unlock()
		if last, ok := lastSeen[userID]; ok && at.Sub(last) < opts.Interval {
			return false
		}
		lastSeen[userID] = at
		// forget users idle for a long time
		if len(lastSeen) > 10000 {
			for id, ts := range lastSeen {
				if at.Sub(ts) > opts.Interval {
					delete(lastSeen, id)
				}
			}
		}
		return true
	}

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			upd := c.Update()
			userID := senderOf(upd)
			if userID == 0 || opts.Interval <= 0 {
				return next(c)
			}
			kind := updateKind(upd)
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}
			if allow(userID, now()) {
				return next(c)
			}

			metrics.IncUpdate(kind, "rate_limited")
			logger.Warn(ContextOf(c), "tg", "tg.rate_limit",
				slog.String("status", "rate_limited"),
				slog.String("kind", kind),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
