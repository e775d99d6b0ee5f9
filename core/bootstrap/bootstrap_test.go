package bootstrap

import (
	"context"
	"errors"
	"testing"

	coreconfig "github.com/m3rciful/calcbot/core/config"
	"github.com/m3rciful/calcbot/core/conversation"
	"github.com/m3rciful/calcbot/core/dispatch"
	"github.com/m3rciful/calcbot/core/event"
	"github.com/m3rciful/calcbot/core/telegram/fixture"
	"github.com/m3rciful/calcbot/core/telegram/gateway"

	tele "gopkg.in/telebot.v4"
)

func testConfig(mode string) *coreconfig.Config {
	cfg := &coreconfig.Config{}
	cfg.Telegram.Token = fixture.TestBotToken
	cfg.Store.Address = "memory://"
	cfg.Gateway.Mode = mode
	if err := coreconfig.Normalize(cfg); err != nil {
		panic(err)
	}
	return cfg
}

func testTable() *dispatch.Table {
	return dispatch.MustTable(dispatch.Route{
		Name: "start", State: conversation.KindStart, On: event.KindText, Command: "/start",
		Handler: func(ctx context.Context, in dispatch.Input) (conversation.State, error) {
			if _, err := in.Out.Deliver(ctx, gateway.SendMessage{ChatID: in.ChatID, Text: "hi"}); err != nil {
				return nil, err
			}
			return conversation.AwaitingIntent{}, nil
		},
	})
}

func noLogger(*coreconfig.Config) error { return nil }

func noBot(context.Context, *coreconfig.Config) (*tele.Bot, error) { return nil, nil }

func TestRunInterceptMode(t *testing.T) {
	res, err := Run(context.Background(), Options{
		Config:     testConfig(coreconfig.GatewayIntercept),
		Table:      testTable(),
		LoggerInit: noLogger,
		NewBot:     noBot,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	defer res.Close()

	if res.Storage.Driver != coreconfig.StoreMemory || res.Storage.Locker != nil {
		t.Fatalf("storage = %+v", res.Storage)
	}
	if res.Record == nil || res.Ops != nil {
		t.Fatalf("record = %v, ops = %v", res.Record, res.Ops)
	}

	if _, err := res.Dispatcher.Dispatch(context.Background(), fixture.CommandEvent("/start")); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	ack, ok := res.Record.Last()
	if !ok || ack.Text != "hi" {
		t.Fatalf("last = %+v, %v", ack, ok)
	}
	st, _ := res.Storage.Store.Get(context.Background(), fixture.TestUserID)
	if st != (conversation.AwaitingIntent{}) {
		t.Fatalf("state = %v", st)
	}
}

func TestRunBuildsOpsServer(t *testing.T) {
	cfg := testConfig(coreconfig.GatewayIntercept)
	cfg.Metrics.Listen = "127.0.0.1:0"
	res, err := Run(context.Background(), Options{Config: cfg, Table: testTable(), LoggerInit: noLogger, NewBot: noBot})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	defer res.Close()
	if res.Ops == nil {
		t.Fatal("ops server not built")
	}
}

func TestRunLiveWithoutBotClosesStore(t *testing.T) {
	closed := false
	_, err := Run(context.Background(), Options{
		Config:     testConfig(coreconfig.GatewayLive),
		Table:      testTable(),
		LoggerInit: noLogger,
		NewBot:     noBot,
		OpenStore: func(context.Context, coreconfig.StoreConfig) (*Storage, error) {
			return &Storage{Driver: "fake", Store: conversation.NewMemoryStore(), Close: func() error { closed = true; return nil }}, nil
		},
	})
	if err == nil {
		t.Fatal("live gateway without a bot must fail")
	}
	if !closed {
		t.Fatal("store left open after failed bootstrap")
	}
}

func TestRunPropagatesErrors(t *testing.T) {
	cfg := testConfig(coreconfig.GatewayIntercept)
	boom := errors.New("boom")

	if _, err := Run(context.Background(), Options{Table: testTable()}); err == nil {
		t.Fatal("nil config accepted")
	}
	if _, err := Run(context.Background(), Options{Config: cfg}); err == nil {
		t.Fatal("nil table accepted")
	}
	_, err := Run(context.Background(), Options{Config: cfg, Table: testTable(), LoggerInit: func(*coreconfig.Config) error { return boom }})
	if !errors.Is(err, boom) {
		t.Fatalf("logger error = %v", err)
	}
	_, err = Run(context.Background(), Options{
		Config: cfg, Table: testTable(), LoggerInit: noLogger,
		OpenStore: func(context.Context, coreconfig.StoreConfig) (*Storage, error) { return nil, boom },
	})
	if !errors.Is(err, boom) {
		t.Fatalf("store error = %v", err)
	}
	_, err = Run(context.Background(), Options{
		Config: cfg, Table: testTable(), LoggerInit: noLogger,
		NewBot: func(context.Context, *coreconfig.Config) (*tele.Bot, error) { return nil, boom },
	})
	if !errors.Is(err, boom) {
		t.Fatalf("bot error = %v", err)
	}
}

func TestOpenStoreMemory(t *testing.T) {
	s, err := OpenStore(context.Background(), coreconfig.StoreConfig{Address: "memory://", DistributedLock: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if s.Driver != coreconfig.StoreMemory || s.Locker != nil || s.close() != nil {
		t.Fatalf("storage = %+v", s)
	}
	if _, err := OpenStore(context.Background(), coreconfig.StoreConfig{Address: "ftp://x"}); err == nil {
		t.Fatal("unsupported scheme accepted")
	}
}

func TestResultCloseNil(t *testing.T) {
	var r *Result
	if err := r.Close(); err != nil {
		t.Fatalf("close nil: %v", err)
	}
}
