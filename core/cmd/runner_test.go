package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/m3rciful/calcbot/core/bootstrap"
	coreconfig "github.com/m3rciful/calcbot/core/config"
	"github.com/m3rciful/calcbot/core/conversation"
	"github.com/m3rciful/calcbot/core/dispatch"
	"github.com/m3rciful/calcbot/core/event"
	coretelegram "github.com/m3rciful/calcbot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

func table() (*dispatch.Table, error) {
	return dispatch.NewTable(dispatch.Route{
		Name: "start", State: conversation.KindStart, On: event.KindText, Command: "/start", Description: "Start",
		Handler: func(context.Context, dispatch.Input) (conversation.State, error) { return conversation.AwaitingIntent{}, nil },
	})
}

func loadConfig(string) (*coreconfig.Config, error) {
	cfg := &coreconfig.Config{}
	cfg.Telegram.Token = "1:x"
	cfg.Store.Address = "memory://"
	cfg.Gateway.Mode = coreconfig.GatewayIntercept
	return cfg, coreconfig.Normalize(cfg)
}

func bootWithoutBot(ctx context.Context, opts bootstrap.Options) (*bootstrap.Result, error) {
	opts.LoggerInit = func(*coreconfig.Config) error { return nil }
	opts.NewBot = func(context.Context, *coreconfig.Config) (*tele.Bot, error) { return nil, nil }
	return bootstrap.Run(ctx, opts)
}

func TestRunWiresTelegram(t *testing.T) {
	var got coretelegram.RunOptions
	err := Run(Options{
		DefaultConfigPath: "config.yaml",
		Table:             table,
		LoadConfig:        loadConfig,
		Bootstrap:         bootWithoutBot,
		ShutdownLogger:    func() error { return nil },
		RunTelegram: func(ctx context.Context, _ coretelegram.Bot, opts coretelegram.RunOptions) error {
			got = opts
			if err := opts.OnStart(ctx); err != nil {
				return err
			}
			return opts.OnStop(ctx)
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(got.Routes) == 0 || len(got.Middlewares) != 2 {
		t.Fatalf("routes = %d, middlewares = %d", len(got.Routes), len(got.Middlewares))
	}
	if len(got.Commands) != 1 || got.Commands[0].Text != "start" {
		t.Fatalf("commands = %+v", got.Commands)
	}
}

func TestRunErrors(t *testing.T) {
	boom := errors.New("boom")
	t.Setenv("CALCBOT_TEST_CONFIG", "")

	if err := Run(Options{LoadConfig: loadConfig}); err == nil {
		t.Fatal("missing table accepted")
	}
	if err := Run(Options{ConfigEnvVar: "CALCBOT_TEST_CONFIG", Table: table}); err == nil {
		t.Fatal("missing config path accepted")
	}
	err := Run(Options{
		DefaultConfigPath: "x.yaml",
		Table:             table,
		LoadConfig:        func(string) (*coreconfig.Config, error) { return nil, boom },
	})
	if !errors.Is(err, boom) {
		t.Fatalf("load error = %v", err)
	}
	err = Run(Options{
		DefaultConfigPath: "x.yaml",
		Table:             func() (*dispatch.Table, error) { return nil, boom },
		LoadConfig:        loadConfig,
	})
	if !errors.Is(err, boom) {
		t.Fatalf("table error = %v", err)
	}
	err = Run(Options{
		DefaultConfigPath: "x.yaml",
		Table:             table,
		LoadConfig:        loadConfig,
		Bootstrap:         func(context.Context, bootstrap.Options) (*bootstrap.Result, error) { return nil, boom },
	})
	if !errors.Is(err, boom) {
		t.Fatalf("bootstrap error = %v", err)
	}
	err = Run(Options{
		DefaultConfigPath: "x.yaml",
		Table:             table,
		LoadConfig:        loadConfig,
		Bootstrap:         bootWithoutBot,
		ShutdownLogger:    func() error { return nil },
		RunTelegram:       func(context.Context, coretelegram.Bot, coretelegram.RunOptions) error { return boom },
	})
	if !errors.Is(err, boom) {
		t.Fatalf("telegram error = %v", err)
	}
}
