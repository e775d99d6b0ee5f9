// Package bootstrap builds the runtime from configuration: logger, conversation store,
// gateway, dispatcher, worker pool and the ops server.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/calcbot/core/config"
	"github.com/m3rciful/calcbot/core/conversation"
	"github.com/m3rciful/calcbot/core/dispatch"
	"github.com/m3rciful/calcbot/core/logger"
	"github.com/m3rciful/calcbot/core/metrics"
	"github.com/m3rciful/calcbot/core/storage/redisstore"
	"github.com/m3rciful/calcbot/core/storage/sqlstore"
	"github.com/m3rciful/calcbot/core/telegram"
	"github.com/m3rciful/calcbot/core/telegram/gateway"
	"github.com/m3rciful/calcbot/core/worker"

	tele "gopkg.in/telebot.v4"
)

// Options control the bootstrap pipeline. Nil hooks select the production implementations.
type Options struct {
	Config *coreconfig.Config
	Table  *dispatch.Table

	LoggerInit func(*coreconfig.Config) error
	NewBot     func(ctx context.Context, cfg *coreconfig.Config) (*tele.Bot, error)
	OpenStore  func(ctx context.Context, cfg coreconfig.StoreConfig) (*Storage, error)
}

// Storage is an opened conversation store with its optional companions.
type Storage struct {
	Driver string
	Store  conversation.Store
	// Locker replaces the in-process chat lock when set.
	Locker dispatch.Locker
	Ping   metrics.HealthFunc
	Close  func() error
}

// Result exposes the infrastructure initialized by Run.
type Result struct {
	Bot        *tele.Bot
	Storage    *Storage
	Gateway    gateway.Gateway
	Dispatcher *dispatch.Dispatcher
	Pool       *worker.Pool
	// Ops is nil when metrics.listen is empty.
	Ops *metrics.Server
	// Record holds intercepted replies when gateway.mode is intercept.
	Record *gateway.Record
}

// Run initializes every dependency in order. On failure whatever was opened is closed again.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config provided")
	}
	if opts.Table == nil {
		return nil, errors.New("bootstrap: nil dispatch table provided")
	}
	cfg := opts.Config

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}
	metrics.MustRegister()

	openStore := opts.OpenStore
	if openStore == nil {
		openStore = OpenStore
	}
	storage, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: store initialization failed: %w", err)
	}

	newBot := opts.NewBot
	if newBot == nil {
		newBot = telegram.NewBot
	}
	bot, err := newBot(ctx, cfg)
	if err != nil {
		_ = storage.close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	res := &Result{Bot: bot, Storage: storage}
	gwOpts := []gateway.Option{gateway.WithParseMode(tele.ParseMode(cfg.Telegram.ParseMode))}
	if cfg.Gateway.Mode == coreconfig.GatewayIntercept {
		res.Record = gateway.NewRecord()
		gwOpts = append(gwOpts, gateway.WithRecord(res.Record))
		logger.Warn(ctx, "app", "gateway.intercept", slog.String("reason", "replies are recorded, not sent"))
	}
	var gwBot gateway.Bot
	if bot != nil {
		gwBot = bot
	}
	res.Gateway, err = gateway.New(cfg.Gateway.Mode, gwBot, gwOpts...)
	if err != nil {
		_ = storage.close()
		return nil, fmt.Errorf("bootstrap: gateway: %w", err)
	}

	var dopts []dispatch.Option
	if storage.Locker != nil {
		dopts = append(dopts, dispatch.WithLocker(storage.Locker))
	}
	if bot != nil && bot.Me != nil {
		dopts = append(dopts, dispatch.WithBotUsername(bot.Me.Username))
	}
	res.Dispatcher = dispatch.New(opts.Table, storage.Store, res.Gateway, dopts...)

	res.Pool = worker.NewPool(worker.Options{
		Workers:      cfg.Worker.Workers,
		QueueSize:    cfg.Worker.QueueSize,
		MaxRetries:   cfg.Worker.MaxRetries,
		RetryBackoff: time.Duration(cfg.Worker.RetryBackoffMS) * time.Millisecond,
	})

	if cfg.Metrics.Listen != "" {
		checks := map[string]metrics.HealthFunc{}
		if storage.Ping != nil {
			checks["store"] = storage.Ping
		}
		res.Ops = metrics.NewServer(cfg.Metrics.Listen, checks)
	}

	logger.Info(ctx, "app", "bootstrap",
		slog.String("status", "ok"),
		slog.String("store", storage.Driver),
		slog.String("gateway", cfg.Gateway.Mode),
		slog.Bool("distributed_lock", storage.Locker != nil),
		slog.Int("routes", len(opts.Table.Routes())),
	)
	return res, nil
}

// Close drains the worker pool, then closes the store.
func (r *Result) Close() error {
	if r == nil {
		return nil
	}
	if r.Pool != nil {
		r.Pool.Close()
	}
	return r.Storage.close()
}

func (s *Storage) close() error {
	if s == nil || s.Close == nil {
		return nil
	}
	return s.Close()
}

// OpenStore opens the backend selected by the address scheme. Postgres schemas are migrated first.
func OpenStore(ctx context.Context, cfg coreconfig.StoreConfig) (*Storage, error) {
	driver, err := coreconfig.StoreDriver(cfg.Address)
	if err != nil {
		return nil, err
	}

	switch driver {
	case coreconfig.StoreRedis:
		client, err := redisstore.Open(ctx, cfg.Address)
		if err != nil {
			return nil, err
		}
		st := redisstore.New(client, cfg.TTL)
		s := &Storage{Driver: driver, Store: st, Ping: st.Ping, Close: st.Close}
		if cfg.DistributedLock {
			s.Locker = redisstore.NewLocker(client)
		}
		return s, nil

	case coreconfig.StorePostgres:
		if err := sqlstore.Migrate(ctx, cfg.Address); err != nil {
			return nil, err
		}
		db, err := sqlstore.Connect(ctx, cfg.Address, cfg.MaxConnections)
		if err != nil {
			return nil, err
		}
		if cfg.DistributedLock {
			logger.Warn(ctx, "store", "lock.unsupported", slog.String("driver", driver))
		}
		st := sqlstore.New(db)
		return &Storage{Driver: driver, Store: st, Ping: st.Ping, Close: st.Close}, nil

	default:
		if cfg.DistributedLock {
			logger.Warn(ctx, "store", "lock.unsupported", slog.String("driver", driver))
		}
		return &Storage{Driver: driver, Store: conversation.NewMemoryStore()}, nil
	}
}
