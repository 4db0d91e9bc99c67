package async

import (
	"context"
	"io"

	"github.com/kelsos/genjobs/internal/models"
)

// StatusSource reports the provider's view of a submitted job.
type StatusSource interface {
	Query(ctx context.Context, id models.TaskID) (models.VideoResultResponse, error)
}

// Fetcher streams a finished artifact from its URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string, w io.Writer) (int64, error)
}

// EventKind names a step in a worker's life.
type EventKind string

const (
	EventStarted        EventKind = "started"
	EventPolled         EventKind = "polled"
	EventSucceeded      EventKind = "succeeded"
	EventFailed         EventKind = "failed"
	EventQueryFailed    EventKind = "query_failed"
	EventDeliveryFailed EventKind = "delivery_failed"
	EventStopped        EventKind = "stopped"
)

// Event is published to the observer registered with OnEvent.
type Event struct {
	TaskID   models.TaskID
	OwnerID  string
	Kind     EventKind
	Attempt  int
	Provider string
	Path     string
	Err      error
}
