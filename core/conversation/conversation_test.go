package conversation

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestCodecRoundTrip(t *testing.T) {
	states := []State{
		Start{},
		AwaitingIntent{},
		AwaitingFirstOperand{Operation: "add"},
		AwaitingSecondOperand{FirstOperand: 0, Operation: "subtract"},
		AwaitingSecondOperand{FirstOperand: math.MinInt32, Operation: "add"},
		AwaitingFirstOperand{Operation: "line\nbreak \"quoted\" \\ tab\t"},
	}
	for _, st := range states {
		raw, err := Encode(st)
		if err != nil {
			t.Fatalf("encode %v: %v", st, err)
		}
		got, err := Decode(raw)
		if err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
		if !Equal(got, st) {
			t.Fatalf("round trip %v -> %s -> %v", st, raw, got)
		}
	}
}

func TestEncodeIsVersioned(t *testing.T) {
	raw, err := Encode(AwaitingSecondOperand{FirstOperand: 1, Operation: "add"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"v":1,"kind":"awaiting_second_operand","operation":"add","first_operand":1}`
	if string(raw) != want {
		t.Fatalf("encoded = %s, want %s", raw, want)
	}
}

func TestDecodeRejectsUnknownRecords(t *testing.T) {
	cases := map[string]string{
		"version":       `{"v":2,"kind":"start"}`,
		"kind":          `{"v":1,"kind":"awaiting_third_operand"}`,
		"json":          `{"v":1,`,
		"first operand": `{"v":1,"kind":"awaiting_second_operand","operation":"add"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(raw))
			var ce *CodecError
			if !errors.As(err, &ce) {
				t.Fatalf("err = %v, want CodecError", err)
			}
		})
	}
}

func TestDecodeEmptyIsStart(t *testing.T) {
	st, err := Decode(nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st != (Start{}) {
		t.Fatalf("state = %v, want start", st)
	}
}

func TestEqualTreatsNilAsStart(t *testing.T) {
	if !Equal(nil, Start{}) {
		t.Fatal("nil should equal Start")
	}
	if Equal(AwaitingFirstOperand{Operation: "add"}, AwaitingFirstOperand{Operation: "subtract"}) {
		t.Fatal("states with different payloads compare equal")
	}
}

func TestMemoryStoreDefaultsToStart(t *testing.T) {
	store := NewMemoryStore()
	st, err := store.Get(context.Background(), 42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if st != (Start{}) {
		t.Fatalf("state = %v, want start", st)
	}
	if store.Len() != 0 {
		t.Fatalf("get must not create records, len = %d", store.Len())
	}
}

func TestMemoryStoreUpsert(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Set(ctx, 1, AwaitingIntent{}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, 1, AwaitingFirstOperand{Operation: "add"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	st, _ := store.Get(ctx, 1)
	if st != (AwaitingFirstOperand{Operation: "add"}) {
		t.Fatalf("state = %v", st)
	}
	if store.Len() != 1 {
		t.Fatalf("len = %d, want 1", store.Len())
	}
	store.Clear()
	if store.Len() != 0 {
		t.Fatalf("len after clear = %d", store.Len())
	}
}

func TestMemoryStoreCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewMemoryStore().Set(ctx, 7, Start{})
	var se *StoreError
	if !errors.As(err, &se) || se.Op != "set" || se.ChatID != 7 {
		t.Fatalf("err = %v, want StoreError{set, 7}", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want wrapped context.Canceled", err)
	}
}

func TestDialogue(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	d := NewDialogue(store, -100)
	if err := d.Update(ctx, AwaitingIntent{}); err != nil {
		t.Fatalf("update: %v", err)
	}
	other, _ := NewDialogue(store, 100).Get(ctx)
	if other != (Start{}) {
		t.Fatalf("other chat leaked state: %v", other)
	}
	if err := d.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	st, _ := d.Get(ctx)
	if st != (Start{}) {
		t.Fatalf("state after reset = %v", st)
	}
}
