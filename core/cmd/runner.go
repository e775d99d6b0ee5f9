// Package cmd is the process entry shared by bot binaries: load config, bootstrap, run until signalled.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/m3rciful/calcbot/core/bootstrap"
	coreconfig "github.com/m3rciful/calcbot/core/config"
	"github.com/m3rciful/calcbot/core/dispatch"
	"github.com/m3rciful/calcbot/core/logger"
	coretelegram "github.com/m3rciful/calcbot/core/telegram"
	"github.com/m3rciful/calcbot/core/telegram/router"
)

// Options describe how to load configuration, bootstrap the app, and run the bot.
type Options struct {
	ConfigEnvVar      string
	DefaultConfigPath string

	// Table builds the dispatch table of the bot.
	Table func() (*dispatch.Table, error)

	LoadConfig     func(path string) (*coreconfig.Config, error)
	Bootstrap      func(ctx context.Context, opts bootstrap.Options) (*bootstrap.Result, error)
	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, bot coretelegram.Bot, opts coretelegram.RunOptions) error
}

// Run loads configuration, bootstraps the runtime and serves updates until SIGINT or SIGTERM.
func Run(opts Options) error {
	if opts.Table == nil {
		return errors.New("cmd: Table is required")
	}
	loadConfig := opts.LoadConfig
	if loadConfig == nil {
		loadConfig = coreconfig.Load
	}
	boot := opts.Bootstrap
	if boot == nil {
		boot = bootstrap.Run
	}
	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}

	env := opts.ConfigEnvVar
	if env == "" {
		env = "CONFIG_PATH"
	}
	cfgPath := os.Getenv(env)
	if cfgPath == "" {
		cfgPath = opts.DefaultConfigPath
	}
	if cfgPath == "" {
		return fmt.Errorf("cmd: config path not provided via %s or DefaultConfigPath", env)
	}

	log.Printf("loading config: %s", cfgPath)
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}
	table, err := opts.Table()
	if err != nil {
		return fmt.Errorf("cmd: invalid dispatch table: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	startedAt := time.Now()
	res, err := boot(ctx, bootstrap.Options{Config: cfg, Table: table})
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Warn(context.Background(), "app", "close", slog.String("status", "error"), slog.String("error", err.Error()))
		}
		if err := shutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	r := router.New(res.Dispatcher, res.Pool, router.Options{})
	runOpts := coretelegram.RunOptions{
		Middlewares: coretelegram.DefaultMiddlewares(cfg, nil),
		Routes:      r.Routes(),
		Commands:    coretelegram.MenuCommands(table),
		OnStart: func(ctx context.Context) error {
			logger.Info(ctx, "app", "ready",
				slog.String("status", "ok"),
				slog.Duration("startup_duration", logger.Took(startedAt)),
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info(ctx, "app", "shutdown", slog.String("status", "ok"))
			return nil
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	if res.Ops != nil {
		g.Go(func() error { return res.Ops.Run(gctx) })
	}
	g.Go(func() error {
		defer cancel()
		return run(gctx, res.Bot, runOpts)
	})
	return g.Wait()
}
