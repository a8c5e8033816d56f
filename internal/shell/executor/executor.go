// Package executor runs registered commands asynchronously on a bounded work queue.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/workqueue"
)

var (
	ErrUnknownCommand = errors.New("no handler registered for command")
	ErrQueueFull      = errors.New("queue is full with existing incomplete un/deploy jobs")
	ErrStopped        = errors.New("executor is stopped")
	ErrUnknownMode    = errors.New("unknown executor mode")
)

// Execution modes.
const (
	// ModeAsync queues tasks for the worker pool.
	ModeAsync = "async"
	// ModeSync runs the handler inside Submit.
	ModeSync = "sync"
)

// Handler processes one submitted task.
type Handler func(ctx context.Context, task Task) error

// Task is a unit of work waiting on, or running in, the executor.
type Task struct {
	Handle      string
	Command     string
	Payload     any
	SubmittedAt time.Time
}

// Config configures the executor.
type Config struct {
	QueueSize int
	Workers   int
	Mode      string
}

// DefaultConfig returns default configuration.
// A single worker keeps (un)deploy operations strictly ordered.
func DefaultConfig() Config {
	return Config{
		QueueSize: 100,
		Workers:   1,
		Mode:      ModeAsync,
	}
}

// ParseMode validates an execution mode. Empty means ModeAsync.
func ParseMode(s string) (string, error) {
	switch s {
	case "", ModeAsync:
		return ModeAsync, nil
	case ModeSync:
		return ModeSync, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Executor dispatches submitted tasks to registered handlers on a pool of
// worker goroutines. The work queue carries task handles; the tasks
// themselves wait in a map until a worker picks their handle up.
type Executor struct {
	handlers map[string]Handler
	tasks    map[string]Task
	queue    *workqueue.Typed[string]
	config   Config
	logger   *slog.Logger
	mu       sync.RWMutex
	stopped  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a new executor. Call Start to begin processing.
func New(config Config, logger *slog.Logger) *Executor {
	if config.QueueSize <= 0 {
		config.QueueSize = 100
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.Mode == "" {
		config.Mode = ModeAsync
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		handlers: make(map[string]Handler),
		tasks:    make(map[string]Task),
		queue:    workqueue.NewTyped[string](),
		config:   config,
		logger:   logger.With("component", "executor"),
	}
}

// Register registers a handler for a command name.
func (e *Executor) Register(command string, handler Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[command] = handler
}

// Submit queues a command for asynchronous execution and returns its handle.
// It never blocks in async mode: a full queue fails with ErrQueueFull.
// In sync mode the handler has finished when Submit returns; its error is
// logged, not returned.
func (e *Executor) Submit(ctx context.Context, command string, payload any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return "", ErrStopped
	}
	handler, ok := e.handlers[command]
	if !ok {
		e.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}

	task := Task{
		Handle:      uuid.New().String(),
		Command:     command,
		Payload:     payload,
		SubmittedAt: time.Now(),
	}

	if e.config.Mode == ModeSync {
		e.mu.Unlock()
		e.execute(context.WithoutCancel(ctx), -1, handler, task)
		return task.Handle, nil
	}
	defer e.mu.Unlock()

	if e.queue.Len() >= e.config.QueueSize {
		e.logger.Warn("task rejected", "command", command, "queue_size", e.config.QueueSize)
		return "", ErrQueueFull
	}

	e.tasks[task.Handle] = task
	e.queue.Add(task.Handle)
	e.logger.Debug("task queued", "command", command, "handle", task.Handle, "pending", e.queue.Len())
	return task.Handle, nil
}

// Pending returns the number of queued tasks not yet picked up by a worker.
func (e *Executor) Pending() int {
	return e.queue.Len()
}

// Start launches the worker goroutines. It is a no-op in sync mode.
func (e *Executor) Start() {
	if e.config.Mode == ModeSync {
		e.logger.Info("executor running tasks inline", "mode", ModeSync)
		return
	}

	var ctx context.Context
	ctx, e.cancel = context.WithCancel(context.Background())
	for i := 0; i < e.config.Workers; i++ {
		worker := i
		workerCtx, stopWorker := context.WithCancel(ctx)
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			defer stopWorker()
			wait.UntilWithContext(workerCtx, func(ctx context.Context) {
				e.runWorker(ctx, worker)
				// The queue only stops handing out items once it is shut down and empty.
				if e.queue.ShuttingDown() {
					stopWorker()
				}
			}, time.Second)
		}()
	}
	e.logger.Info("executor started", "workers", e.config.Workers, "queue_size", e.config.QueueSize)
}

// Stop rejects new submissions and waits until the workers have run every
// queued task. Handlers keep a live context while the executor drains.
func (e *Executor) Stop() {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()

	e.queue.ShutDownWithDrain()
	e.wg.Wait()
	if e.cancel != nil {
		e.cancel()
	}

	if dropped := e.queue.Len(); dropped > 0 {
		e.logger.Warn("executor stopped with queued tasks", "dropped", dropped)
	}
	e.logger.Info("executor stopped")
}

// runWorker processes queue items until the queue shuts down.
func (e *Executor) runWorker(ctx context.Context, worker int) {
	// Tasks outlive Stop: only the fetch loop is tied to ctx.
	taskCtx := context.WithoutCancel(ctx)
	for e.processNextItem(taskCtx, worker) {
	}
}

func (e *Executor) processNextItem(ctx context.Context, worker int) bool {
	handle, shutdown := e.queue.Get()
	if shutdown {
		return false
	}
	defer e.queue.Done(handle)

	e.mu.Lock()
	task, ok := e.tasks[handle]
	delete(e.tasks, handle)
	handler := e.handlers[task.Command]
	e.mu.Unlock()

	if !ok {
		e.logger.Error("queued handle has no task", "handle", handle)
		return true
	}

	e.execute(ctx, worker, handler, task)
	return true
}

func (e *Executor) execute(ctx context.Context, worker int, handler Handler, task Task) {
	logger := e.logger.With("command", task.Command, "handle", task.Handle, "worker", worker)

	defer runtime.HandleCrash(func(r any) {
		logger.Error("command panicked", "panic", r)
	})

	logger.Debug("dispatching command", "waited", time.Since(task.SubmittedAt))
	if err := handler(ctx, task); err != nil {
		logger.Error("command failed", "error", err)
		return
	}
	logger.Debug("command completed")
}
