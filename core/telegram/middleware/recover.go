package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/m3rciful/calcbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Recover turns a handler panic into a logged error so the poller keeps running.
func Recover(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(ContextOf(c), "tg", "tg.panic",
					slog.String("status", "error"),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				err = fmt.Errorf("telegram: handler panicked: %v", r)
			}
		}()
		return next(c)
	}
}
