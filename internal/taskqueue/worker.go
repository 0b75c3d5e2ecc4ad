package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"ddrc/internal/platform/metrics"
	"ddrc/pkg/platform/sentinel"
)

// Handler runs one task. The returned value is stored as the task result.
type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

// PostHook runs after a task succeeds or fails for the last time.
type PostHook func(ctx context.Context, outcome Outcome)

type Worker struct {
	store    Store
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	now      func() time.Time
	poll     time.Duration
	timeout  time.Duration
	attempts int
	backoff  time.Duration
	workers  int

	mu       sync.RWMutex
	handlers map[string]Handler
	hooks    map[string][]PostHook
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) { w.poll = d }
}

// WithTimeout bounds a single handler run.
func WithTimeout(d time.Duration) Option {
	return func(w *Worker) { w.timeout = d }
}

// WithRetry sets the attempt budget and the base delay between attempts.
// The delay grows linearly with the attempt number.
func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(w *Worker) {
		w.attempts = maxAttempts
		w.backoff = backoff
	}
}

func WithConcurrency(n int) Option {
	return func(w *Worker) { w.workers = n }
}

func NewWorker(store Store, opts ...Option) *Worker {
	w := &Worker{
		store:    store,
		logger:   slog.Default(),
		tracer:   otel.Tracer("ddrc/taskqueue"),
		now:      time.Now,
		poll:     time.Second,
		timeout:  2 * time.Minute,
		attempts: 3,
		backoff:  30 * time.Second,
		workers:  1,
		handlers: make(map[string]Handler),
		hooks:    make(map[string][]PostHook),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.workers < 1 {
		w.workers = 1
	}
	if w.attempts < 1 {
		w.attempts = 1
	}
	if w.poll <= 0 {
		w.poll = time.Second
	}
	if w.timeout <= 0 {
		w.timeout = 2 * time.Minute
	}
	return w
}

func (w *Worker) Register(group, name string, h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[Key(group, name)] = h
}

func (w *Worker) OnFinish(group, name string, hook PostHook) {
	w.mu.Lock()
	defer w.mu.Unlock()
	key := Key(group, name)
	w.hooks[key] = append(w.hooks[key], hook)
}

// Run polls until ctx is cancelled. A task in flight when ctx ends still has
// its outcome recorded.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := range w.workers {
		g.Go(func() error {
			return w.loop(ctx, i)
		})
	}
	return g.Wait()
}

func (w *Worker) loop(ctx context.Context, id int) error {
	w.logger.InfoContext(ctx, "task worker started", "worker", id)
	defer w.logger.InfoContext(ctx, "task worker stopped", "worker", id)

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
		processed, err := w.ProcessNext(ctx)
		if err != nil {
			w.logger.ErrorContext(ctx, "task worker iteration failed", "worker", id, "error", err)
		}
		if processed && err == nil {
			timer.Reset(0)
			continue
		}
		timer.Reset(w.poll)
	}
}

// ProcessNext claims and runs one task. It reports false when the queue had
// nothing available.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	task, err := w.store.Claim(ctx, w.now())
	if errors.Is(err, sentinel.ErrEmpty) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, w.process(ctx, task)
}

func (w *Worker) process(ctx context.Context, task *Task) error {
	key := task.Key()
	ctx, span := w.tracer.Start(ctx, "task "+key, trace.WithAttributes(
		attribute.Int64("task.id", task.ID),
		attribute.String("task.key", key),
		attribute.Int("task.attempt", task.Attempts),
	))
	defer span.End()

	logger := w.logger.With("task", key, "task_id", task.ID, "attempt", task.Attempts)
	start := time.Now()
	result, runErr := w.run(ctx, task)
	elapsed := time.Since(start)
	if w.metrics != nil {
		w.metrics.ObserveTask(key, runErr == nil, elapsed)
	}

	// bookkeeping survives shutdown of the polling context
	ctx = context.WithoutCancel(ctx)
	now := w.now()

	if runErr == nil {
		if err := w.store.Complete(ctx, task.ID, result, now); err != nil {
			span.RecordError(err)
			return fmt.Errorf("complete task %d: %w", task.ID, err)
		}
		logger.InfoContext(ctx, "task succeeded", "duration", elapsed)
		task.Status = StatusSucceeded
		task.Result = result
		w.finish(ctx, Outcome{Task: task, OK: true, Result: result})
		return nil
	}

	span.RecordError(runErr)
	span.SetStatus(codes.Error, runErr.Error())

	var retryAt *time.Time
	if task.Attempts < w.attempts && !errors.Is(runErr, errNoHandler) {
		at := now.Add(w.backoff * time.Duration(task.Attempts))
		retryAt = &at
	}
	if err := w.store.Fail(ctx, task.ID, runErr.Error(), retryAt, now); err != nil {
		return fmt.Errorf("fail task %d: %w", task.ID, err)
	}
	if retryAt != nil {
		logger.WarnContext(ctx, "task failed, will retry", "error", runErr, "retry_at", *retryAt)
		return nil
	}
	logger.ErrorContext(ctx, "task failed", "error", runErr)
	task.Status = StatusFailed
	task.LastError = runErr.Error()
	w.finish(ctx, Outcome{Task: task, Err: runErr})
	return nil
}

var errNoHandler = errors.New("no handler registered")

func (w *Worker) run(ctx context.Context, task *Task) (result json.RawMessage, err error) {
	w.mu.RLock()
	h, ok := w.handlers[task.Key()]
	w.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", task.Key(), errNoHandler)
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()

	value, err := h(ctx, task.Payload)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return raw, nil
}

func (w *Worker) finish(ctx context.Context, outcome Outcome) {
	w.mu.RLock()
	hooks := w.hooks[outcome.Task.Key()]
	w.mu.RUnlock()
	for _, hook := range hooks {
		hook(ctx, outcome)
	}
}
