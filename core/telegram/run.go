// Package telegram wires telebot to the dispatcher: bot construction, global
// middlewares, update routes, the command menu and the run loop.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/calcbot/core/config"
	"github.com/m3rciful/calcbot/core/logger"
	"github.com/m3rciful/calcbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Route binds a telebot endpoint to a handler.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// Bot is the part of *tele.Bot the run loop needs.
type Bot interface {
	CommandSetter
	Use(middleware ...tele.MiddlewareFunc)
	Handle(endpoint interface{}, h tele.HandlerFunc, m ...tele.MiddlewareFunc)
	Start()
	Stop()
}

var _ Bot = (*tele.Bot)(nil)

// RunOptions controls RunTelegram.
type RunOptions struct {
	Middlewares []Middleware
	Routes      []Route
	Commands    []tele.Command

	OnStart func(ctx context.Context) error
	OnStop  func(ctx context.Context) error
}

// NewBot builds the telebot client with the configured poller and HTTP client.
// In long-poll mode a leftover webhook is removed so updates are not split.
func NewBot(ctx context.Context, cfg *coreconfig.Config) (*tele.Bot, error) {
	if cfg == nil {
		return nil, errors.New("telegram: nil config provided")
	}
	poller := BuildPoller(cfg)
	start := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: poller,
		Client: BuildHTTPClient(pollTimeout(cfg)),
		OnError: func(err error, c tele.Context) {
			lctx := context.Background()
			if c != nil {
				lctx = middleware.ContextOf(c)
			}
			logger.Error(lctx, "tg", "tg.error",
				slog.String("status", "error"),
				slog.String("error", logger.SanitizeLimit(err.Error(), 256)),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}

	switch p := poller.(type) {
	case *tele.Webhook:
		logger.Info(ctx, "tg", "mode",
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
			slog.Duration("took", logger.Took(start)),
		)
	default:
		logger.Info(ctx, "tg", "mode",
			slog.String("mode", coreconfig.RunModeLongpoll),
			slog.Duration("timeout", pollTimeout(cfg)),
			slog.Duration("took", logger.Took(start)),
		)
		if err := bot.RemoveWebhook(false); err != nil {
			logger.Warn(ctx, "tg", "delete_webhook",
				slog.String("status", "error"),
				slog.String("error", logger.SanitizeLimit(err.Error(), 256)),
			)
		}
	}
	return bot, nil
}

// RunTelegram registers middlewares, routes and commands on bot and runs it until ctx is done.
func RunTelegram(ctx context.Context, bot Bot, opts RunOptions) error {
	if bot == nil {
		return errors.New("telegram: nil bot provided")
	}
	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, route := range opts.Routes {
		if route.Endpoint != nil && route.Handler != nil {
			bot.Handle(route.Endpoint, route.Handler)
		}
	}
	logger.Info(ctx, "tg.wire", "complete",
		slog.Int("middlewares", len(opts.Middlewares)),
		slog.Int("routes", len(opts.Routes)),
		slog.Int("commands", len(opts.Commands)),
	)
	SetupCommands(ctx, bot, opts.Commands)

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx); err != nil {
			return err
		}
	}

	runDone := make(chan struct{})
	go func() {
		bot.Start()
		close(runDone)
	}()

	select {
	case <-ctx.Done():
		bot.Stop()
		<-runDone
	case <-runDone:
	}

	if opts.OnStop != nil {
		// ctx is already cancelled here; shutdown hooks get a fresh deadline
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return opts.OnStop(stopCtx)
	}
	return nil
}
