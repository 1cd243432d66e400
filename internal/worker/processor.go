package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nordtolk/booking-be/internal/booking/domain"
)

// processEvent runs the fan-out for one job event under the event timeout.
func (w *Worker) processEvent(ctx context.Context, msg *eventMessage) error {
	eventCtx, cancel := context.WithTimeout(ctx, w.eventTimeout)
	defer cancel()

	event := msg.Event

	w.logger.Info("Processing event",
		slog.String("type", event.Type),
		slog.String("job_id", event.JobID),
	)

	switch event.Type {
	case domain.EventJobCreated, domain.EventJobReopened:
		return w.announceJob(eventCtx, event)

	case domain.EventJobCanceled:
		// The assigned translator was pushed in the request path; the event
		// exists for the audit trail and external consumers.
		w.logger.Debug("Job cancellation recorded",
			slog.String("job_id", event.JobID),
		)
		return nil

	case domain.EventSessionEnded:
		if event.NotifyUserID == "" {
			w.logger.Debug("Session end carried no notification target",
				slog.String("job_id", event.JobID),
			)
			return nil
		}
		return w.engine.NotifySessionEnded(eventCtx, event.JobID, event.NotifyUserID)

	default:
		w.logger.Warn("Unknown event type, dropping",
			slog.String("type", event.Type),
			slog.String("job_id", event.JobID),
		)
		return nil
	}
}

// announceJob runs the candidate search and push/SMS fan-out for a job that
// just entered (or re-entered) the market. Jobs that moved on since the event
// was published are skipped.
func (w *Worker) announceJob(ctx context.Context, event domain.Event) error {
	job, err := w.engine.GetJob(ctx, event.JobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}

	if job.Status != domain.StatusPending {
		w.logger.Info("Job no longer pending, skipping announcement",
			slog.String("job_id", job.ID),
			slog.String("status", string(job.Status)),
		)
		return nil
	}

	return w.engine.NotifySuitableTranslators(ctx, job, event.ExcludeUserID)
}
