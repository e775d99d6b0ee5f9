package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/calcbot/core/event"
	"github.com/m3rciful/calcbot/core/logger"
	"github.com/m3rciful/calcbot/core/metrics"

	tele "gopkg.in/telebot.v4"
)

// seenUpdates remembers recently logged update ids so a redelivered update is logged once.
type seenUpdates struct {
	mu      sync.Mutex
	ids     map[int]time.Time
	keepFor time.Duration
}

func (s *seenUpdates) first(updateID int, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ts := range s.ids {
		if now.Sub(ts) > s.keepFor {
			delete(s.ids, id)
		}
	}
	if _, ok := s.ids[updateID]; ok {
		return false
	}
	s.ids[updateID] = now
	return true
}

var recent = &seenUpdates{ids: make(map[int]time.Time), keepFor: 10 * time.Second}

// Logging stores the request context on c and writes one sampled receipt line per update.
func Logging(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		ctx := buildContext(upd)
		StoreContext(c, ctx)
		metrics.IncUpdate(updateKind(upd), "ok")

		if logger.DebugEnabled() && logger.ShouldSampleDebug() && recent.first(upd.ID, time.Now()) {
			attrs := []slog.Attr{slog.String("status", "ok")}
			if ev, ok := event.FromUpdate(upd); ok {
				attrs = append(attrs, slog.String("kind", string(ev.Kind())))
				switch e := ev.(type) {
				case event.TextMessage:
					attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(e.Text, 256)))
				case event.NonTextMessage:
					attrs = append(attrs, slog.String("payload", e.Content))
				case event.CallbackAction:
					attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(e.Data, 256)))
					if e.Unique != "" {
						attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(e.Unique, 128)))
					}
				}
			}
			logger.Debug(ctx, "tg", "update.received", attrs...)
		}
		return next(c)
	}
}
