// Package registry holds the in-memory table of tracked generation tasks.
//
// The registry is the single source of truth for task status. Polling
// workers write their own entries while status queries read all of them, so
// every method takes the lock and hands out copies, never pointers into the
// table.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kelsos/genjobs/internal/logger"
	"github.com/kelsos/genjobs/internal/models"
)

var (
	// ErrDuplicateTask is returned by Create when the id is already tracked.
	ErrDuplicateTask = errors.New("task already exists")

	// ErrUnknownTask is returned by SetStatus for ids that were never created.
	ErrUnknownTask = errors.New("unknown task")

	// ErrInvalidTransition is returned when a status would move backwards.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Registry is a concurrency-safe task table keyed by provider job id.
type Registry struct {
	mu    sync.RWMutex
	tasks map[models.TaskID]*models.Task
	order []models.TaskID // insertion order for stable listings
	now   func() time.Time
}

func New() *Registry {
	return &Registry{
		tasks: make(map[models.TaskID]*models.Task),
		now:   time.Now,
	}
}

// WithClock overrides the clock used for timestamps.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Create inserts a new task in PROCESSING state.
func (r *Registry) Create(id models.TaskID, ownerID string, isGroup bool, target models.DeliveryTarget, prompt string) (models.Task, error) {
	if id == "" {
		return models.Task{}, fmt.Errorf("%w: empty id", ErrUnknownTask)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[id]; exists {
		return models.Task{}, fmt.Errorf("%w: %s", ErrDuplicateTask, id)
	}

	now := r.now()
	task := &models.Task{
		ID:        id,
		OwnerID:   ownerID,
		IsGroup:   isGroup,
		Target:    target,
		Prompt:    prompt,
		Status:    models.TaskStatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.tasks[id] = task
	r.order = append(r.order, id)

	logger.Debug("Registered task %s for owner %s", id, ownerID)
	return *task, nil
}

// Get returns a copy of the task with the given id.
func (r *Registry) Get(id models.TaskID) (models.Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[id]
	if !ok {
		return models.Task{}, false
	}
	return *task, true
}

// ListByOwner returns the owner's tasks in creation order. An owner without
// tasks gets an empty, non-nil slice.
func (r *Registry) ListByOwner(ownerID string) []models.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]models.Task, 0)
	for _, id := range r.order {
		if task := r.tasks[id]; task.OwnerID == ownerID {
			result = append(result, *task)
		}
	}
	return result
}

// Snapshot returns every task in creation order.
func (r *Registry) Snapshot() []models.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]models.Task, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, *r.tasks[id])
	}
	return result
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// SetStatus moves a task forward. Once a task is terminal every further
// write is ignored, so retried completions are harmless. It reports whether
// the stored status changed.
func (r *Registry) SetStatus(id models.TaskID, status models.TaskStatus) (bool, error) {
	if !status.Valid() {
		return false, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}

	current := task.Status
	if current.IsTerminal() {
		if current != status {
			logger.Debug("Ignoring %s for task %s, already %s", status, id, current)
		}
		return false, nil
	}
	if status.Rank() < current.Rank() {
		return false, fmt.Errorf("%w: %s -> %s for task %s", ErrInvalidTransition, current, status, id)
	}
	if status == current {
		return false, nil
	}

	now := r.now()
	task.Status = status
	task.UpdatedAt = now
	if status.IsTerminal() {
		task.FinishedAt = now
	}

	logger.Info("Task %s: %s -> %s", id, current, status)
	return true, nil
}

// Prune drops terminal tasks that finished before the horizon and returns
// how many were removed. Tasks still in flight are never pruned.
func (r *Registry) Prune(before time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.order[:0]
	removed := 0
	for _, id := range r.order {
		task := r.tasks[id]
		if task.Status.IsTerminal() && task.FinishedAt.Before(before) {
			delete(r.tasks, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept

	if removed > 0 {
		logger.Info("Pruned %d finished tasks from the registry", removed)
	}
	return removed
}
