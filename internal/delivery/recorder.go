package delivery

import (
	"context"
	"sync"

	"github.com/kelsos/genjobs/internal/models"
)

// Delivery is one recorded call to a Recorder.
type Delivery struct {
	Target  models.DeliveryTarget
	Payload Payload
}

// Recorder is an in-memory Channel. The CLI uses it to collect results of
// one-shot commands; tests use it to assert on notifications.
type Recorder struct {
	mu         sync.Mutex
	deliveries []Delivery
	notify     chan struct{}
	err        error
}

func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 64)}
}

// FailWith makes subsequent deliveries return err after recording them.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *Recorder) Deliver(_ context.Context, target models.DeliveryTarget, p Payload) error {
	r.mu.Lock()
	r.deliveries = append(r.deliveries, Delivery{Target: target, Payload: p})
	err := r.err
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
	return err
}

// Deliveries returns a copy of everything recorded so far.
func (r *Recorder) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Delivery, len(r.deliveries))
	copy(out, r.deliveries)
	return out
}

// OfKind returns the recorded payloads of one kind.
func (r *Recorder) OfKind(kind Kind) []Payload {
	var out []Payload
	for _, d := range r.Deliveries() {
		if d.Payload.Kind == kind {
			out = append(out, d.Payload)
		}
	}
	return out
}

// Notify signals (best effort) after every delivery.
func (r *Recorder) Notify() <-chan struct{} {
	return r.notify
}
