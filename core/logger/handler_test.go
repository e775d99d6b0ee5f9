package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type lineBuffer struct{ lines []string }

func (b *lineBuffer) Write(p []byte) error {
	b.lines = append(b.lines, strings.TrimSuffix(string(p), "\n"))
	return nil
}

func newTestLogger(format logFormat) (*slog.Logger, *lineBuffer) {
	buf := &lineBuffer{}
	h := newStructuredHandler(handlerConfig{level: slog.LevelDebug, writer: buf, format: format})
	return slog.New(h), buf
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	log, buf := newTestLogger(formatKV)
	ctx := WithRID(context.Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	LogEvent(ctx, log.With("component", "dispatch"), slog.LevelInfo, "dispatch.done",
		slog.String("status", "ok"),
		slog.String("route", "start"),
	)
	if len(buf.lines) != 1 {
		t.Fatalf("lines = %d", len(buf.lines))
	}
	tokens := strings.Split(buf.lines[0], " ")
	expected := []string{"ts=", "level=INFO", "component=dispatch", "event=dispatch.done", "status=ok", "rid=rid-123", "update_id=42", "user_id=7", "chat_id=9", "route=start"}
	if len(tokens) < len(expected) {
		t.Fatalf("unexpected token count: %d (%s)", len(tokens), buf.lines[0])
	}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestStructuredHandlerJSONOrderAndCompactRID(t *testing.T) {
	log, buf := newTestLogger(formatJSON)
	ctx := WithRID(context.Background(), BuildRID(12, 34, 56))

	LogEvent(ctx, log.With("component", "gateway"), slog.LevelError, "gateway.deliver",
		slog.String("status", "error"),
		slog.Any("error", errors.New("boom")),
		slog.Duration("took", 1500*time.Microsecond),
	)
	line := buf.lines[0]
	prefixes := []string{`{"ts":`, `"level":"ERROR"`, `"component":"gateway"`, `"event":"gateway.deliver"`, `"status":"error"`, `"rid":"c.y.1k"`, `"rid_full":"12:34:56"`, `"ts_unix_nano":`, `"took_ms":2`, `"error":"boom"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		if idx == -1 || idx < pos {
			t.Fatalf("prefix %s not found in order within %s", pref, line)
		}
		pos = idx
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
}

func TestStructuredHandlerKVOmitsRIDFull(t *testing.T) {
	log, buf := newTestLogger(formatKV)
	LogEvent(WithRID(context.Background(), "123:456:789"), log, slog.LevelInfo, "rid.test")

	line := buf.lines[0]
	if !strings.Contains(line, "rid="+CompactRID("123:456:789")) {
		t.Fatalf("expected compact rid, got %s", line)
	}
	if strings.Contains(line, "rid_full=") {
		t.Fatalf("rid_full should be omitted in KV output, got %s", line)
	}
	if !strings.Contains(line, "component=app") {
		t.Fatalf("component should default to app, got %s", line)
	}
}

func TestStructuredHandlerDropsUnknownOutcome(t *testing.T) {
	log, buf := newTestLogger(formatKV)
	log.Info("x", "outcome", "Unchanged")
	log.Info("y", "outcome", "exploded", "note", "two words")

	if !strings.Contains(buf.lines[0], "outcome=unchanged") {
		t.Fatalf("outcome not normalized: %s", buf.lines[0])
	}
	if strings.Contains(buf.lines[1], "outcome=") {
		t.Fatalf("unknown outcome kept: %s", buf.lines[1])
	}
	if !strings.Contains(buf.lines[1], `note="two words"`) {
		t.Fatalf("value not quoted: %s", buf.lines[1])
	}
}

func TestStructuredHandlerLevelAndGroups(t *testing.T) {
	buf := &lineBuffer{}
	log := slog.New(newStructuredHandler(handlerConfig{level: slog.LevelWarn, writer: buf, format: formatKV}))
	log.Info("skipped")
	log.WithGroup("store").Warn("slow", "op", "get")
	if len(buf.lines) != 1 {
		t.Fatalf("lines = %v", buf.lines)
	}
	if !strings.Contains(buf.lines[0], "store.op=get") || !strings.Contains(buf.lines[0], "event=slow") {
		t.Fatalf("line = %s", buf.lines[0])
	}
}

func TestAsyncWriterFlushOrdersAfterWrites(t *testing.T) {
	var out bytes.Buffer
	w := newAsyncWriter([]io.Writer{&out}, 16)
	for i := 0; i < 100; i++ {
		if err := w.Write([]byte("line\n")); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if got := strings.Count(out.String(), "line\n"); got != 100 {
		t.Fatalf("flushed %d lines", got)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := WithHandler(WithUpdateMeta(context.Background(), 3, 4, -5), "start")
	if UpdateIDFrom(ctx) != 3 || UserIDFrom(ctx) != 4 || ChatIDFrom(ctx) != -5 || HandlerFrom(ctx) != "start" {
		t.Fatal("context metadata lost")
	}
	if RIDFrom(nil) != "" || FromContext(nil) != L {
		t.Fatal("nil context should yield zero values")
	}
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	var allowed int
	for i := 0; i < 9; i++ {
		if s.Allow() {
			allowed++
		}
	}
	if allowed != 3 {
		t.Fatalf("allowed = %d, want 3", allowed)
	}
	s.Set(0, 0)
	if !s.Allow() {
		t.Fatal("zero ratio must pass everything")
	}
	for spec, want := range map[string][2]int{"2/5": {2, 5}, "10": {1, 10}, "x": {0, 0}, "0": {0, 0}} {
		if n, d := parseRatioSpec(spec); n != want[0] || d != want[1] {
			t.Fatalf("parseRatioSpec(%q) = %d/%d", spec, n, d)
		}
	}
}

func TestUtilHelpers(t *testing.T) {
	if Sanitize("a\x00b\u200bc\n") != "abc\n" {
		t.Fatalf("Sanitize = %q", Sanitize("a\x00b\u200bc\n"))
	}
	if SanitizeLimit("héllo", 2) != "hé" {
		t.Fatal("SanitizeLimit should count runes")
	}
	if CompactRID("not-a-rid") != "not-a-rid" {
		t.Fatal("CompactRID should pass through unknown formats")
	}
	if s, trunc := SummarizeStrings([]string{"a", "b", "c"}, 2); s != "a, b" || !trunc {
		t.Fatalf("SummarizeStrings = %q %v", s, trunc)
	}
	if Status(nil) != "ok" || Status(errors.New("x")) != "error" {
		t.Fatal("Status mapping")
	}
}

func TestHelpersAreNoopsBeforeInit(t *testing.T) {
	if L != nil {
		t.Skip("logger initialized by another test")
	}
	Info(context.Background(), "app", "noop")
	if Component("app") != nil {
		t.Fatal("Component should be nil before init")
	}
}
