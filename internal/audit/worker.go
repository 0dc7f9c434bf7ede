package audit

import (
	"context"
	"errors"
	"log/slog"
)

// ErrBufferFull is returned when the worker's inbox cannot take another event.
var ErrBufferFull = errors.New("audit buffer full")

// Worker decouples event producers from a slow sink through a buffered inbox.
// Emit enqueues without blocking; Run drains to the sink until ctx ends.
type Worker struct {
	sink   Publisher
	inbox  chan Event
	logger *slog.Logger
}

func NewWorker(sink Publisher, bufferSize int, logger *slog.Logger) *Worker {
	return &Worker{
		sink:   sink,
		inbox:  make(chan Event, bufferSize),
		logger: logger,
	}
}

// Emit enqueues the event, dropping it when the buffer is full. Audit must
// never stall a reconciliation request.
func (w *Worker) Emit(_ context.Context, event Event) error {
	select {
	case w.inbox <- stamp(event):
		return nil
	default:
		return ErrBufferFull
	}
}

// Run drains the inbox to the sink. Sink failures are logged and the event is
// dropped; the worker keeps running until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.sink.Emit(ctx, event); err != nil {
				w.logger.WarnContext(ctx, "audit sink emit failed",
					"action", string(event.Action),
					"event_id", event.ID,
					"error", err,
				)
			}
		}
	}
}
