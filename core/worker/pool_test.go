package worker

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPoolPreservesOrderPerKey(t *testing.T) {
	p := NewPool(Options{Workers: 3, QueueSize: 64})
	// 7 and 100 share a worker, -7 runs on another
	if p.slot(7) != p.slot(100) || p.slot(7) == p.slot(-7) {
		t.Fatalf("slots: 7=%d 100=%d -7=%d", p.slot(7), p.slot(100), p.slot(-7))
	}
	var mu sync.Mutex
	got := map[int64][]int{}
	for i := 0; i < 20; i++ {
		for _, key := range []int64{7, -7, 100} {
			i, key := i, key
			err := p.Submit(context.Background(), Job{Key: key, Action: "test", Run: func(context.Context) error {
				mu.Lock()
				got[key] = append(got[key], i)
				mu.Unlock()
				return nil
			}})
			if err != nil {
				t.Fatalf("submit: %v", err)
			}
		}
	}
	p.Close()
	if len(got) != 3 {
		t.Fatalf("ran keys %v, want 3", got)
	}
	for key, seq := range got {
		if len(seq) != 20 {
			t.Fatalf("key %d ran %d jobs, want 20", key, len(seq))
		}
		for i, v := range seq {
			if v != i {
				t.Fatalf("key %d out of order: %v", key, seq)
			}
		}
	}
}

func TestPoolSerializesOneKey(t *testing.T) {
	p := NewPool(Options{Workers: 4, QueueSize: 16})
	var inFlight, peak atomic.Int32
	for i := 0; i < 10; i++ {
		_ = p.Submit(context.Background(), Job{Key: 42, Run: func(context.Context) error {
			n := inFlight.Add(1)
			if n > peak.Load() {
				peak.Store(n)
			}
			time.Sleep(time.Millisecond)
			inFlight.Add(-1)
			return nil
		}})
	}
	p.Close()
	if peak.Load() != 1 {
		t.Fatalf("peak concurrency for one key = %d, want 1", peak.Load())
	}
}

func TestPoolQueueFull(t *testing.T) {
	p := NewPool(Options{Workers: 1, QueueSize: 1})
	release := make(chan struct{})
	started := make(chan struct{})
	block := func(context.Context) error {
		close(started)
		<-release
		return nil
	}
	if err := p.Submit(context.Background(), Job{Key: 1, Run: block}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	<-started
	noop := func(context.Context) error { return nil }
	if err := p.Submit(context.Background(), Job{Key: 1, Run: noop}); err != nil {
		t.Fatalf("second submit should queue: %v", err)
	}
	if err := p.Submit(context.Background(), Job{Key: 1, Run: noop}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
	close(release)
	p.Close()
	if err := p.Submit(context.Background(), Job{Key: 1, Run: noop}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
}

func TestPoolRetriesTransientErrors(t *testing.T) {
	p := NewPool(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	_ = p.Submit(context.Background(), Job{Key: 1, Run: func(context.Context) error {
		if calls.Add(1) < 3 {
			return &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}
		}
		return nil
	}})
	p.Close()
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
	if p.ErrorCount() != 0 {
		t.Fatalf("error count = %d, want 0", p.ErrorCount())
	}
}

func TestPoolDoesNotRetryPermanentErrors(t *testing.T) {
	p := NewPool(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	_ = p.Submit(context.Background(), Job{Key: 1, Run: func(context.Context) error {
		calls.Add(1)
		return errors.New("bad request")
	}})
	p.Close()
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
	if p.ErrorCount() != 1 {
		t.Fatalf("error count = %d, want 1", p.ErrorCount())
	}
}

func TestPoolRecoversPanics(t *testing.T) {
	p := NewPool(Options{Workers: 1})
	var after atomic.Bool
	_ = p.Submit(context.Background(), Job{Key: 1, Run: func(context.Context) error { panic("unknown operation") }})
	_ = p.Submit(context.Background(), Job{Key: 1, Run: func(context.Context) error { after.Store(true); return nil }})
	p.Close()
	if !after.Load() {
		t.Fatal("worker died after a panicking job")
	}
	if p.ErrorCount() != 1 {
		t.Fatalf("error count = %d, want 1", p.ErrorCount())
	}
}

func TestPoolSubmitNilRun(t *testing.T) {
	p := NewPool(Options{Workers: 1})
	defer p.Close()
	if err := p.Submit(context.Background(), Job{Key: 1}); err == nil {
		t.Fatal("expected error for nil run")
	}
}
