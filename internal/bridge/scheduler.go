package bridge

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// ErrSchedulerClosed is returned by Submit after Shutdown has begun.
var ErrSchedulerClosed = errors.New("scheduler is closed")

// defaultQueueSize bounds the completion handoff between workers and the
// dispatch goroutine. Workers block, never drop, when the queue is full.
const defaultQueueSize = 64

// FatalHandler receives a panic value raised by a completion callback,
// together with the dispatch goroutine's stack. The task's resources are
// released whether or not the handler returns normally.
type FatalHandler func(v any, stack []byte)

// Config carries scheduler construction options.
type Config struct {
	// QueueSize caps the completion queue; zero or negative selects the
	// default.
	QueueSize int
	// Fatal handles callback panics; nil installs the logging re-panic
	// handler.
	Fatal FatalHandler
	// Logger may be nil for a silent scheduler.
	Logger *slog.Logger
}

// Scheduler runs tasks on worker goroutines and dispatches their callbacks
// serially on a single goroutine, the bridge's cooperative context.
type Scheduler struct {
	completions chan *Task
	fatal       FatalHandler
	logger      *slog.Logger

	mu     sync.Mutex
	closed bool
	tasks  sync.WaitGroup
	loop   sync.WaitGroup
}

// NewScheduler starts the dispatch goroutine and returns a ready scheduler.
func NewScheduler(cfg Config) *Scheduler {
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	s := &Scheduler{
		completions: make(chan *Task, size),
		fatal:       cfg.Fatal,
		logger:      cfg.Logger,
	}
	if s.fatal == nil {
		s.fatal = s.logAndPanic
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	s.loop.Go(s.run)
	return s
}

// Submit queues one task for execution. The task's handle stays retained
// until its callback has been dispatched. Workers are plain goroutines, so
// submission cannot fail for capacity reasons; the only refusal is a closed
// scheduler.
func (s *Scheduler) Submit(t *Task) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	if !t.transition(taskCreated, taskSubmitted) {
		s.mu.Unlock()
		return errors.New("task was already submitted")
	}
	t.handle.Retain()
	s.tasks.Add(1)
	s.mu.Unlock()

	go s.execute(t)
	return nil
}

// execute runs on a worker goroutine: one blocking engine call, then the
// completion handoff. Queries are never cancelled, so the context carries no
// deadline.
func (s *Scheduler) execute(t *Task) {
	t.transition(taskSubmitted, taskRunning)

	queriesInFlight.Inc()
	start := time.Now()
	t.reply, t.err = t.handle.Execute(context.Background(), t.req)
	queryDuration.WithLabelValues(t.req.Service).Observe(time.Since(start).Seconds())
	queriesInFlight.Dec()

	t.transition(taskRunning, taskCompleted)
	s.completions <- t
}

// run drains the completion queue. It is the only goroutine that invokes
// callbacks, so dispatches are serialized and never overlap.
func (s *Scheduler) run() {
	for t := range s.completions {
		s.dispatch(t)
	}
}

func (s *Scheduler) dispatch(t *Task) {
	if !t.transition(taskCompleted, taskDispatched) {
		return
	}
	defer s.finish(t)
	defer func() {
		if r := recover(); r != nil {
			callbackPanics.Inc()
			s.fatal(r, debug.Stack())
		}
	}()

	if t.err != nil {
		queriesTotal.WithLabelValues(t.req.Service, "error").Inc()
		t.cb(t.err, nil)
		return
	}
	queriesTotal.WithLabelValues(t.req.Service, "success").Inc()
	t.cb(nil, t.reply)
}

// finish releases everything the task held. It runs whether the callback
// returned or panicked.
func (s *Scheduler) finish(t *Task) {
	t.transition(taskDispatched, taskDestroyed)
	if err := t.handle.Release(); err != nil {
		s.logger.Error("engine close failed", "error", err)
	}
	t.cb = nil
	t.req = nil
	t.reply = nil
	s.tasks.Done()
}

// Shutdown stops intake, waits for every in-flight task to dispatch, then
// stops the dispatch goroutine. Subsequent calls return immediately.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.tasks.Wait()
	close(s.completions)
	s.loop.Wait()
}

// logAndPanic records the callback panic and re-raises it on the dispatch
// goroutine, which takes the process down unless somebody recovers it.
func (s *Scheduler) logAndPanic(v any, stack []byte) {
	s.logger.Error("completion callback panicked", "panic", v, "stack", string(stack))
	panic(v)
}
