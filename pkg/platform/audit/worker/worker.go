package worker

import (
	"context"
	"log/slog"

	audit "ddrc/pkg/platform/audit"
)

// Worker consumes audit events from a channel and appends them to the store
// and any extra sinks. Sink failures are logged and never stop the loop.
type Worker struct {
	store  audit.Sink
	sinks  []audit.Sink
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func NewWorker(store audit.Sink, inbox <-chan audit.Event, logger *slog.Logger, sinks ...audit.Sink) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: store, sinks: sinks, inbox: inbox, logger: logger}
}

// Run returns when the inbox is closed and drained, or when ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			w.Deliver(ctx, event)
		}
	}
}

// Deliver writes one event everywhere and reports whether the primary store
// accepted it.
func (w *Worker) Deliver(ctx context.Context, event audit.Event) error {
	err := w.store.Append(ctx, event)
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to store audit event",
			"action", event.Action,
			"subject", event.Subject,
			"error", err,
		)
	}
	for _, sink := range w.sinks {
		if sinkErr := sink.Append(ctx, event); sinkErr != nil {
			w.logger.WarnContext(ctx, "failed to forward audit event",
				"action", event.Action,
				"error", sinkErr,
			)
		}
	}
	return err
}
