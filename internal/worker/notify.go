package worker

import (
	"context"
	"log/slog"

	"github.com/planforge/planforge-api/internal/events"
)

// QueueNotifyHandler wakes the worker when the service layer enqueues a
// generation job, so pickup does not wait out the poll interval. Events
// other than queue insertions are ignored.
type QueueNotifyHandler struct {
	worker *Worker
	logger *slog.Logger
}

// NewQueueNotifyHandler creates a handler that nudges the given worker.
func NewQueueNotifyHandler(w *Worker, logger *slog.Logger) *QueueNotifyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueNotifyHandler{
		worker: w,
		logger: logger.With(slog.String("component", "queue_notify_handler")),
	}
}

// HandleEvent implements events.EventHandler.
func (h *QueueNotifyHandler) HandleEvent(ctx context.Context, event *events.PlanEvent) error {
	switch event.Type {
	case events.TypeGenerationQueued, events.TypeRegenerationQueued:
		h.worker.Notify()
		h.logger.Debug("queue notification",
			"event_type", event.Type,
			"plan_id", event.PlanID)
	}
	return nil
}
