package async

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/kelsos/genjobs/internal/delivery"
	"github.com/kelsos/genjobs/internal/logger"
	"github.com/kelsos/genjobs/internal/models"
	"github.com/kelsos/genjobs/internal/storage"
)

func (tm *TaskManager) run(ctx context.Context, task models.Task) {
	defer tm.release(task.ID)
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: worker panic: %v", models.ErrQuery, r)
			logger.Error("Worker for task %s panicked: %v", task.ID, r)
			tm.queryFailed(ctx, task, 0, err)
		}
	}()

	tm.emit(Event{TaskID: task.ID, OwnerID: task.OwnerID, Kind: EventStarted})
	schedule := tm.schedule()

	for attempt := 1; ; attempt++ {
		result, err := tm.source.Query(ctx, task.ID)
		if err != nil {
			if ctx.Err() != nil {
				tm.stop(task, attempt)
				return
			}
			tm.queryFailed(ctx, task, attempt, err)
			return
		}

		tm.emit(Event{TaskID: task.ID, OwnerID: task.OwnerID, Kind: EventPolled, Attempt: attempt, Provider: result.TaskStatus})

		switch result.TaskStatus {
		case models.ProviderStatusSuccess:
			tm.complete(ctx, task, result)
			return
		case models.ProviderStatusFail:
			tm.fail(ctx, task)
			return
		}

		logger.Debug("Task %s still %s after poll %d", task.ID, result.TaskStatus, attempt)

		wait := schedule.NextBackOff()
		if wait == backoff.Stop {
			tm.queryFailed(ctx, task, attempt, fmt.Errorf("%w: no terminal status after %d polls", models.ErrQuery, attempt))
			return
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			tm.stop(task, attempt)
			return
		case <-timer.C:
		}
	}
}

// complete persists the artifact, marks the task SUCCESS and delivers. A
// persistence failure still marks SUCCESS since the provider finished.
func (tm *TaskManager) complete(ctx context.Context, task models.Task, result models.VideoResultResponse) {
	artifact, persistErr := tm.persist(ctx, result)

	changed, err := tm.registry.SetStatus(task.ID, models.TaskStatusSuccess)
	if err != nil {
		logger.Error("Failed to mark task %s as SUCCESS: %v", task.ID, err)
		return
	}
	if !changed {
		return
	}

	if persistErr != nil {
		logger.Error("Task %s succeeded but the video could not be stored: %v", task.ID, persistErr)
		tm.emit(Event{TaskID: task.ID, OwnerID: task.OwnerID, Kind: EventDeliveryFailed, Err: persistErr})
		tm.notify(ctx, task, delivery.Failure(task.OwnerID, task.IsGroup, delivery.MsgDeliveryFailed))
		return
	}

	logger.Info("Task %s completed, video stored at %s", task.ID, artifact.Path)
	tm.emit(Event{TaskID: task.ID, OwnerID: task.OwnerID, Kind: EventSucceeded, Path: artifact.Path})
	tm.notify(ctx, task, delivery.Artifact(models.KindVideo, task.OwnerID, task.IsGroup, artifact.Path))
}

func (tm *TaskManager) persist(ctx context.Context, result models.VideoResultResponse) (storage.StoredArtifact, error) {
	if len(result.VideoResult) == 0 || result.VideoResult[0].URL == "" {
		return storage.StoredArtifact{}, fmt.Errorf("%w: provider returned no video url", models.ErrDelivery)
	}
	url := result.VideoResult[0].URL

	artifact, err := tm.store.Save(models.KindVideo, func(w io.Writer) error {
		_, err := tm.fetcher.Fetch(ctx, url, w)
		return err
	})
	if err != nil {
		return storage.StoredArtifact{}, fmt.Errorf("%w: %w", models.ErrDelivery, err)
	}
	return artifact, nil
}

func (tm *TaskManager) fail(ctx context.Context, task models.Task) {
	changed, err := tm.registry.SetStatus(task.ID, models.TaskStatusFail)
	if err != nil {
		logger.Error("Failed to mark task %s as FAIL: %v", task.ID, err)
		return
	}
	if !changed {
		return
	}

	logger.Warn("Provider reported failure for task %s", task.ID)
	tm.emit(Event{TaskID: task.ID, OwnerID: task.OwnerID, Kind: EventFailed, Err: models.ErrGenerationFailed})
	tm.notify(ctx, task, delivery.Failure(task.OwnerID, task.IsGroup, delivery.MsgGenerationFailed))
}

func (tm *TaskManager) queryFailed(ctx context.Context, task models.Task, attempt int, err error) {
	logger.Error("Polling task %s failed on attempt %d: %v", task.ID, attempt, err)
	tm.emit(Event{TaskID: task.ID, OwnerID: task.OwnerID, Kind: EventQueryFailed, Attempt: attempt, Err: err})
	tm.notify(ctx, task, delivery.Failure(task.OwnerID, task.IsGroup, delivery.MsgQueryFailed))
}

func (tm *TaskManager) stop(task models.Task, attempt int) {
	logger.Info("Stopped polling task %s after %d polls", task.ID, attempt)
	tm.emit(Event{TaskID: task.ID, OwnerID: task.OwnerID, Kind: EventStopped, Attempt: attempt})
}

// notify ignores cancellation so a terminal outcome is still reported during
// shutdown.
func (tm *TaskManager) notify(ctx context.Context, task models.Task, payload delivery.Payload) {
	payload.TaskID = task.ID
	if err := tm.channel.Deliver(context.WithoutCancel(ctx), task.Target, payload); err != nil {
		logger.Error("Failed to notify owner %s about task %s: %v", task.OwnerID, task.ID, err)
	}
}
