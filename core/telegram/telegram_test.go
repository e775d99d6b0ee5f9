package telegram

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	coreconfig "github.com/m3rciful/calcbot/core/config"
	"github.com/m3rciful/calcbot/core/conversation"
	"github.com/m3rciful/calcbot/core/dispatch"
	"github.com/m3rciful/calcbot/core/event"

	tele "gopkg.in/telebot.v4"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestRetryTransportRetriesDialFailures(t *testing.T) {
	var calls int
	rt := &retryTransport{
		maxRetries: 2,
		backoff:    time.Millisecond,
		base: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			calls++
			if calls < 3 {
				return nil, &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}
			}
			body, _ := io.ReadAll(r.Body)
			return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(string(body)))}, nil
		}),
	}
	req, _ := http.NewRequest(http.MethodPost, "https://api.telegram.org/botX/getMe", strings.NewReader("payload"))
	resp, err := rt.RoundTrip(req)
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if calls != 3 || string(body) != "payload" {
		t.Fatalf("calls=%d body=%q", calls, body)
	}
}

func TestRetryTransportStopsOnPermanentError(t *testing.T) {
	var calls int
	rt := &retryTransport{maxRetries: 3, backoff: time.Millisecond, base: roundTripFunc(func(*http.Request) (*http.Response, error) {
		calls++
		return nil, errors.New("certificate is not trusted")
	})}
	req, _ := http.NewRequest(http.MethodGet, "https://api.telegram.org", nil)
	if _, err := rt.RoundTrip(req); err == nil || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestBuildPoller(t *testing.T) {
	cfg := &coreconfig.Config{}
	cfg.Telegram.RunMode = coreconfig.RunModeLongpoll
	cfg.Telegram.LongPollTimeoutSeconds = 25
	lp, ok := BuildPoller(cfg).(*tele.LongPoller)
	if !ok || lp.Timeout != 25*time.Second {
		t.Fatalf("poller = %#v", BuildPoller(cfg))
	}

	cfg.Telegram.RunMode = coreconfig.RunModeWebhook
	cfg.Webhook.Listen, cfg.Webhook.Port, cfg.Webhook.URL = "0.0.0.0", 8443, "https://bot.example/hook"
	wh, ok := BuildPoller(cfg).(*tele.Webhook)
	if !ok || wh.Listen != "0.0.0.0:8443" || wh.Endpoint.PublicURL != "https://bot.example/hook" {
		t.Fatalf("webhook = %#v", wh)
	}
}

func TestDefaultMiddlewares(t *testing.T) {
	cfg := &coreconfig.Config{}
	if got := DefaultMiddlewares(cfg, nil); len(got) != 2 {
		t.Fatalf("without rate limit: %d middlewares", len(got))
	}
	cfg.RateLimit.IntervalMS = 500
	got := DefaultMiddlewares(cfg, nil)
	if len(got) != 3 || got[2].Name != "rate_limit" {
		t.Fatalf("middlewares = %+v", got)
	}
}

func noop(_ context.Context, in dispatch.Input) (conversation.State, error) { return in.State, nil }

func TestMenuCommands(t *testing.T) {
	table := dispatch.MustTable(
		dispatch.Route{Name: "start", State: conversation.KindStart, On: event.KindText, Command: "/start", Description: "Start a calculation", Handler: noop},
		dispatch.Route{Name: "restart", State: conversation.KindAwaitingIntent, On: event.KindText, Command: "/start", Description: "Start a calculation", Handler: noop},
		dispatch.Route{Name: "hidden", State: conversation.KindStart, On: event.KindText, Command: "/debug", Handler: noop},
	)
	cmds := MenuCommands(table)
	if len(cmds) != 1 || cmds[0].Text != "start" || cmds[0].Description != "Start a calculation" {
		t.Fatalf("commands = %+v", cmds)
	}
}

type fakeBot struct {
	used     int
	handled  []any
	commands []interface{}
	started  chan struct{}
	stopped  chan struct{}
}

func (f *fakeBot) SetCommands(opts ...interface{}) error { f.commands = opts; return nil }
func (f *fakeBot) Use(m ...tele.MiddlewareFunc)           { f.used += len(m) }
func (f *fakeBot) Handle(e interface{}, _ tele.HandlerFunc, _ ...tele.MiddlewareFunc) {
	f.handled = append(f.handled, e)
}
func (f *fakeBot) Start() { close(f.started); <-f.stopped }
func (f *fakeBot) Stop()  { close(f.stopped) }

func TestRunTelegramLifecycle(t *testing.T) {
	bot := &fakeBot{started: make(chan struct{}), stopped: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	var startCalled, stopCalled bool
	errCh := make(chan error, 1)
	go func() {
		errCh <- RunTelegram(ctx, bot, RunOptions{
			Middlewares: DefaultMiddlewares(&coreconfig.Config{}, nil),
			Routes: []Route{
				{Endpoint: tele.OnText, Handler: func(tele.Context) error { return nil }},
				{Endpoint: nil, Handler: func(tele.Context) error { return nil }},
			},
			Commands: []tele.Command{{Text: "start", Description: "Start"}},
			OnStart:  func(context.Context) error { startCalled = true; return nil },
			OnStop: func(stopCtx context.Context) error {
				stopCalled = stopCtx.Err() == nil
				return nil
			},
		})
	}()
	<-bot.started
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("run: %v", err)
	}
	if !startCalled || !stopCalled {
		t.Fatalf("hooks: start=%v stop=%v", startCalled, stopCalled)
	}
	if bot.used != 2 || len(bot.handled) != 1 || len(bot.commands) != 1 {
		t.Fatalf("bot = %+v", bot)
	}
}

func TestRunTelegramOnStartError(t *testing.T) {
	bot := &fakeBot{started: make(chan struct{}), stopped: make(chan struct{})}
	sentinel := errors.New("not ready")
	err := RunTelegram(context.Background(), bot, RunOptions{OnStart: func(context.Context) error { return sentinel }})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v", err)
	}
}
