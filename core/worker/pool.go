// Package worker runs jobs on a fixed set of goroutines keyed by conversation.
//
// A job with key k always lands on worker k mod N, so jobs of one conversation run one at a
// time and in arrival order while different conversations proceed in parallel.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/calcbot/core/logger"
	"github.com/m3rciful/calcbot/core/metrics"
	"github.com/m3rciful/calcbot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned when a job is submitted after Close.
	ErrQueueClosed = errors.New("worker: queue closed")
	// ErrQueueFull indicates the worker queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("worker: queue full")
)

// Options controls the pool.
type Options struct {
	Workers int
	// QueueSize bounds each worker's queue.
	QueueSize    int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent on a single job, retries included.
	MaxDuration time.Duration
}

// Job is one unit of work. Run must be idempotent if retries are enabled.
type Job struct {
	Key    int64
	Action string
	Run    func(ctx context.Context) error
}

type queued struct {
	ctx context.Context
	job Job
}

// Pool executes jobs asynchronously.
type Pool struct {
	opts   Options
	queues []chan queued
	mu     sync.RWMutex
	closed bool
	once   sync.Once
	wg     sync.WaitGroup
	errs   atomic.Uint64
}

// NewPool starts a pool with defaults for zeroed options.
func NewPool(opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 500 * time.Millisecond
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 30 * time.Second
	}

	p := &Pool{opts: opts, queues: make([]chan queued, opts.Workers)}
	p.wg.Add(opts.Workers)
	for i := range p.queues {
		p.queues[i] = make(chan queued, opts.QueueSize)
		go p.worker(p.queues[i])
	}
	return p
}

func (p *Pool) slot(key int64) int {
	n := int64(len(p.queues))
	i := key % n
	if i < 0 {
		i += n
	}
	return int(i)
}

// Submit queues j without blocking.
func (p *Pool) Submit(ctx context.Context, j Job) error {
	if j.Run == nil {
		return errors.New("worker: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrQueueClosed
	}
	select {
	case p.queues[p.slot(j.Key)] <- queued{ctx: ctx, job: j}:
		return nil
	default:
		metrics.IncWorkerJob("rejected")
		return ErrQueueFull
	}
}

// ErrorCount returns the number of failed jobs.
func (p *Pool) ErrorCount() uint64 {
	return p.errs.Load()
}

// Close stops accepting jobs and waits for queued ones to finish.
func (p *Pool) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		for _, q := range p.queues {
			close(q)
		}
		p.mu.Unlock()
		p.wg.Wait()
	})
}

func (p *Pool) worker(q <-chan queued) {
	defer p.wg.Done()
	for item := range q {
		p.handle(item)
	}
}

func (p *Pool) handle(item queued) {
	ctx := item.ctx
	j := item.job
	deadlineCtx, cancel := context.WithTimeout(ctx, p.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := p.opts.MaxRetries + 1
	var lastErr error

attemptLoop:
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := deadlineCtx.Err(); err != nil {
			lastErr = err
			break
		}
		lastErr = p.run(deadlineCtx, j)
		if lastErr == nil {
			if attempt > 1 {
				logger.Info(ctx, "worker", "job.retry.success",
					slog.String("action", j.Action),
					slog.Int("attempt", attempt),
					slog.Duration("took", logger.Took(start)),
				)
			}
			metrics.IncWorkerJob("ok")
			return
		}
		if !netutil.ShouldRetry(lastErr) || attempt == attempts {
			break
		}

		delay := p.opts.RetryBackoff * time.Duration(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-deadlineCtx.Done():
			timer.Stop()
			lastErr = deadlineCtx.Err()
			break attemptLoop
		case <-timer.C:
		}
		logger.Debug(ctx, "worker", "job.retry.backoff",
			slog.String("action", j.Action),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
		)
	}

	p.errs.Add(1)
	metrics.IncWorkerJob("failed")
	logger.Debug(ctx, "worker", "job.fail",
		slog.String("status", "error"),
		slog.String("action", j.Action),
		slog.String("error", lastErr.Error()),
		slog.Int("attempts", attempts),
		slog.Duration("took", logger.Took(start)),
	)
}

// run shields the worker from a panicking job.
func (p *Pool) run(ctx context.Context, j Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
			logger.Error(ctx, "worker", "job.panic",
				slog.String("status", "error"),
				slog.String("action", j.Action),
				slog.Any("panic", r),
			)
		}
	}()
	return j.Run(ctx)
}

// PanicError wraps a value recovered from a panicking job.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return "worker: job panicked: " + slog.AnyValue(e.Value).String()
}
