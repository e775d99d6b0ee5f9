// Package middleware holds the global telebot middlewares: panic recovery,
// per-user rate limiting and update logging with context propagation.
package middleware

import (
	"context"

	"github.com/m3rciful/calcbot/core/event"
	"github.com/m3rciful/calcbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const contextKey = "calcbot.ctx"

// StoreContext attaches ctx to c for downstream handlers.
func StoreContext(c tele.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(contextKey, ctx)
}

// ContextOf returns the context stored by Logging, or builds one carrying the rid
// and update metadata of c.
func ContextOf(c tele.Context) context.Context {
	if ctx, ok := c.Get(contextKey).(context.Context); ok && ctx != nil {
		return ctx
	}
	ctx := buildContext(c.Update())
	StoreContext(c, ctx)
	return ctx
}

func buildContext(u tele.Update) context.Context {
	var meta event.Meta
	if ev, ok := event.FromUpdate(u); ok {
		meta = ev.Metadata()
	} else {
		meta.UpdateID = u.ID
	}
	ctx := logger.WithRID(context.Background(), logger.BuildRID(meta.UpdateID, meta.ChatID, meta.UserID))
	ctx = logger.WithUpdateMeta(ctx, meta.UpdateID, meta.UserID, meta.ChatID)
	return logger.WithLogger(ctx, logger.Component("tg"))
}

// updateKind names the update for rate limit exclusions and metrics.
func updateKind(u tele.Update) string {
	switch {
	case u.Callback != nil:
		return "callback"
	case u.Message != nil, u.EditedMessage != nil:
		return "message"
	}
	return "other"
}

// senderOf returns the user id that sent u, or zero.
func senderOf(u tele.Update) int64 {
	switch {
	case u.Callback != nil && u.Callback.Sender != nil:
		return u.Callback.Sender.ID
	case u.Message != nil && u.Message.Sender != nil:
		return u.Message.Sender.ID
	}
	return 0
}
