// Package queue serialises outbound gateway requests with a global cooldown.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Observer receives queue timings. Implementations must be safe for concurrent use.
type Observer interface {
	QueueWait(label string, wait time.Duration)
	QueueTask(label string, took time.Duration, err error)
}

// Config holds queue configuration.
type Config struct {
	// DefaultDelay is the cooldown after a task that sets no Delay of its own.
	DefaultDelay time.Duration
	Observer     Observer
}

// Options describe one submitted task.
type Options struct {
	Label string
	// Delay overrides the default cooldown that follows this task.
	Delay *time.Duration
}

type job struct {
	ctx      context.Context
	opts     Options
	task     func(context.Context) error
	done     chan error
	enqueued time.Time
	started  bool
}

// Queue runs submitted tasks one at a time in submission order. After each
// task, successful or not, no task starts before the cooldown has elapsed.
type Queue struct {
	cfg    Config
	logger zerolog.Logger

	mu              sync.Mutex
	pending         []*job
	processing      bool
	nextAvailableAt time.Time
}

// New creates a queue. The drain goroutine starts on first use and exits when
// the queue is empty.
func New(cfg Config, logger zerolog.Logger) *Queue {
	return &Queue{cfg: cfg, logger: logger}
}

// Do submits task and waits for its result. If ctx ends before the task has
// started, the task is dropped and ctx's error returned. Once started, Do
// waits for the task to return.
func (q *Queue) Do(ctx context.Context, opts Options, task func(context.Context) error) error {
	j := &job{
		ctx:      ctx,
		opts:     opts,
		task:     task,
		done:     make(chan error, 1),
		enqueued: time.Now(),
	}

	q.mu.Lock()
	q.pending = append(q.pending, j)
	if !q.processing {
		q.processing = true
		go q.drain()
	}
	q.mu.Unlock()

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
	}

	q.mu.Lock()
	if !j.started {
		q.remove(j)
		q.mu.Unlock()
		q.logger.Debug().Str("label", opts.Label).Msg("dropped before start")
		return ctx.Err()
	}
	q.mu.Unlock()
	return <-j.done
}

// Run is Do for tasks that produce a value.
func Run[T any](ctx context.Context, q *Queue, opts Options, task func(context.Context) (T, error)) (T, error) {
	var out T
	err := q.Do(ctx, opts, func(ctx context.Context) error {
		v, err := task(ctx)
		out = v
		return err
	})
	return out, err
}

// Len returns the number of tasks waiting to start.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// NextAvailableAt returns the earliest time the next task may start.
func (q *Queue) NextAvailableAt() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.nextAvailableAt
}

func (q *Queue) remove(j *job) {
	for i, p := range q.pending {
		if p == j {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}

func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.processing = false
			q.mu.Unlock()
			return
		}
		wait := time.Until(q.nextAvailableAt)
		q.mu.Unlock()

		if wait > 0 {
			timer := time.NewTimer(wait)
			<-timer.C
		}

		q.mu.Lock()
		if len(q.pending) == 0 {
			q.processing = false
			q.mu.Unlock()
			return
		}
		j := q.pending[0]
		q.pending = q.pending[1:]
		j.started = true
		q.mu.Unlock()

		if err := j.ctx.Err(); err != nil {
			j.done <- err
			continue
		}

		q.execute(j)
	}
}

func (q *Queue) execute(j *job) {
	started := time.Now()
	if q.cfg.Observer != nil {
		q.cfg.Observer.QueueWait(j.opts.Label, started.Sub(j.enqueued))
	}

	err := safeCall(j.ctx, j.task)
	took := time.Since(started)

	delay := q.cfg.DefaultDelay
	if j.opts.Delay != nil {
		delay = *j.opts.Delay
	}
	if delay < 0 {
		delay = 0
	}
	next := time.Now().Add(delay)

	q.mu.Lock()
	q.nextAvailableAt = next
	q.mu.Unlock()

	if q.cfg.Observer != nil {
		q.cfg.Observer.QueueTask(j.opts.Label, took, err)
	}

	event := q.logger.Info()
	if delay == 0 {
		event = q.logger.Debug()
	}
	event.Str("label", j.opts.Label).
		Dur("took", took).
		Time("next_allowed_at", next).
		Bool("failed", err != nil).
		Msg("completed")

	j.done <- err
}

func safeCall(ctx context.Context, task func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("queued task panicked: %v", r)
		}
	}()
	return task(ctx)
}
