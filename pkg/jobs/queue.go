package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrQueueClosed is returned when enqueueing onto a queue that is not running.
var ErrQueueClosed = errors.New("queue not running")

// Task is a unit of background work.
type Task struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a task. Returning an error wrapped with Permanent skips retries.
type Handler func(context.Context, Task) error

// GiveUpFunc is invoked once a task fails permanently or exhausts its retries.
type GiveUpFunc func(context.Context, Task, error)

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	OnGiveUp   GiveUpFunc
	Logger     *zap.Logger
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Queue is an in-memory task dispatcher backed by a fixed goroutine pool.
type Queue struct {
	name    string
	handler Handler

	workers    int
	maxRetries int
	retryDelay time.Duration
	onGiveUp   GiveUpFunc
	logger     *zap.Logger

	tasks   chan Task
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewQueue builds a queue; MaxRetries of zero means tasks run once.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:       name,
		handler:    handler,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		onGiveUp:   cfg.OnGiveUp,
		logger:     cfg.Logger.With(zap.String("queue", name)),
		tasks:      make(chan Task, cfg.BufferSize),
	}
}

// Start launches the worker pool. Subsequent calls are no-ops.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Info("queue started", zap.Int("workers", q.workers))
}

// Stop cancels workers and waits for in-flight tasks to return.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.started = false
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Info("queue stopped")
}

// Pending returns the number of buffered tasks awaiting a worker.
func (q *Queue) Pending() int {
	return len(q.tasks)
}

// Enqueue pushes a task, blocking until buffer space frees or ctx ends.
func (q *Queue) Enqueue(ctx context.Context, task Task) error {
	q.mu.Lock()
	qctx := q.ctx
	started := q.started
	q.mu.Unlock()

	if !started {
		return fmt.Errorf("%s: %w", q.name, ErrQueueClosed)
	}
	if task.Enqueued.IsZero() {
		task.Enqueued = time.Now().UTC()
	}

	select {
	case <-qctx.Done():
		return fmt.Errorf("%s: %w", q.name, ErrQueueClosed)
	case <-ctx.Done():
		return ctx.Err()
	case q.tasks <- task:
		return nil
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case task := <-q.tasks:
			if err := q.handler(q.ctx, task); err != nil {
				q.handleFailure(task, err)
			}
		}
	}
}

func (q *Queue) handleFailure(task Task, err error) {
	if IsPermanent(err) || task.Attempt >= q.maxRetries {
		q.logger.Error("task failed",
			zap.String("task_id", task.ID),
			zap.String("type", task.Type),
			zap.Int("attempt", task.Attempt),
			zap.Error(err))
		if q.onGiveUp != nil {
			q.onGiveUp(q.ctx, task, err)
		}
		return
	}

	task.Attempt++
	delay := q.retryDelay * time.Duration(1<<uint(task.Attempt-1))
	q.logger.Warn("task failed, retrying",
		zap.String("task_id", task.ID),
		zap.String("type", task.Type),
		zap.Int("attempt", task.Attempt),
		zap.Duration("delay", delay),
		zap.Error(err))

	go func(t Task) {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			return
		case <-timer.C:
			if err := q.Enqueue(q.ctx, t); err != nil {
				q.logger.Error("failed to requeue task", zap.String("task_id", t.ID), zap.Error(err))
			}
		}
	}(task)
}
