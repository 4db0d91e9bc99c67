package async

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/kelsos/genjobs/internal/delivery"
	"github.com/kelsos/genjobs/internal/logger"
	"github.com/kelsos/genjobs/internal/models"
	"github.com/kelsos/genjobs/internal/registry"
	"github.com/kelsos/genjobs/internal/storage"
)

var (
	ErrAlreadyTracked = errors.New("task already has an active worker")
	ErrTerminalTask   = errors.New("task is already terminal")
	ErrStopped        = errors.New("task manager stopped")
)

// Options tune the poll schedule.
type Options struct {
	PollInterval time.Duration
	// MaxPollAttempts caps the re-polls after the first status query.
	// Zero polls until the job is terminal or the manager stops.
	MaxPollAttempts int
}

// TaskManager owns one polling worker per accepted video task.
type TaskManager struct {
	source   StatusSource
	registry *registry.Registry
	store    *storage.ResultStore
	fetcher  Fetcher
	channel  delivery.Channel
	opts     Options

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	active  map[models.TaskID]struct{}
	stopped bool
	onEvent func(Event)

	wg sync.WaitGroup
}

func NewTaskManager(
	source StatusSource,
	reg *registry.Registry,
	store *storage.ResultStore,
	fetcher Fetcher,
	channel delivery.Channel,
	opts Options,
) *TaskManager {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TaskManager{
		source:   source,
		registry: reg,
		store:    store,
		fetcher:  fetcher,
		channel:  channel,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		active:   make(map[models.TaskID]struct{}),
	}
}

// OnEvent registers an observer. It is called synchronously from workers and
// must not block.
func (tm *TaskManager) OnEvent(fn func(Event)) {
	tm.mu.Lock()
	tm.onEvent = fn
	tm.mu.Unlock()
}

// Track starts the worker for task. A task id gets at most one live worker.
func (tm *TaskManager) Track(task models.Task) error {
	if task.Status.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrTerminalTask, task.ID, task.Status)
	}

	tm.mu.Lock()
	if tm.stopped {
		tm.mu.Unlock()
		return ErrStopped
	}
	if _, exists := tm.active[task.ID]; exists {
		tm.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyTracked, task.ID)
	}
	tm.active[task.ID] = struct{}{}
	tm.wg.Add(1)
	tm.mu.Unlock()

	logger.Debug("Registered task %s for monitoring", task.ID)
	go tm.run(tm.ctx, task)
	return nil
}

// Active returns the number of live workers.
func (tm *TaskManager) Active() int {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return len(tm.active)
}

// Stop cancels every worker between polls. Task statuses are left as they
// are. Further Track calls fail.
func (tm *TaskManager) Stop() {
	tm.mu.Lock()
	tm.stopped = true
	tm.mu.Unlock()
	tm.cancel()
}

// Wait blocks until all workers exited.
func (tm *TaskManager) Wait() {
	tm.wg.Wait()
}

// WaitTimeout waits at most d and reports whether all workers exited.
func (tm *TaskManager) WaitTimeout(d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		tm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}

func (tm *TaskManager) release(id models.TaskID) {
	tm.mu.Lock()
	delete(tm.active, id)
	tm.mu.Unlock()
	tm.wg.Done()
	logger.Debug("Task %s removed from monitoring", id)
}

func (tm *TaskManager) emit(ev Event) {
	tm.mu.RLock()
	fn := tm.onEvent
	tm.mu.RUnlock()
	if fn != nil {
		fn(ev)
	}
}

func (tm *TaskManager) schedule() backoff.BackOff {
	var b backoff.BackOff = backoff.NewConstantBackOff(tm.opts.PollInterval)
	if tm.opts.MaxPollAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(tm.opts.MaxPollAttempts))
	}
	b.Reset()
	return b
}
