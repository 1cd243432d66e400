package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nordtolk/booking-be/internal/booking/domain"
	"github.com/nordtolk/booking-be/internal/booking/schedule"
)

// Reopen puts a closed booking back on the market. A job that is not
// timedout is reset to pending in place with a fresh expiry window; a
// timedout job is cloned into a new row whose admin comment references the
// original. Either way any still-open assignment on the original is closed, a
// placeholder assignment records who reopened it, and the replacement search
// starts for the surviving job id.
func (e *Engine) Reopen(ctx context.Context, jobID, actorID string) (*domain.Job, error) {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	reopened := job

	if job.Status != domain.StatusTimedout {
		job.Status = domain.StatusPending
		job.CreatedAt = now
		job.UpdatedAt = now
		job.WillExpireAt = schedule.WillExpireAt(job.Due, now)

		if err := e.store.UpdateJob(ctx, job); err != nil {
			return nil, fmt.Errorf("failed to reopen job: %w", err)
		}
	} else {
		clone := *job
		clone.ID = uuid.New().String()
		clone.Status = domain.StatusPending
		clone.AdminComments = fmt.Sprintf("This booking is a reopening of booking #%s", jobID)
		clone.CreatedAt = now
		clone.UpdatedAt = now
		clone.WillExpireAt = schedule.WillExpireAt(clone.Due, now)
		clone.WithdrawAt = nil
		clone.EndAt = nil
		clone.SessionTime = ""

		if err := e.store.CreateJob(ctx, &clone); err != nil {
			return nil, fmt.Errorf("failed to clone job: %w", err)
		}
		reopened = &clone
	}

	rel, err := e.store.ActiveAssignment(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up active assignment: %w", err)
	}
	if rel != nil {
		if err := e.store.CancelAssignment(ctx, rel.ID, now); err != nil {
			return nil, fmt.Errorf("failed to close assignment: %w", err)
		}
	}

	// Placeholder row recording who reopened the original booking.
	if err := e.store.CreateAssignment(ctx, &domain.Assignment{
		ID:        uuid.New().String(),
		JobID:     jobID,
		UserID:    actorID,
		CancelAt:  &now,
		CreatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("failed to create assignment: %w", err)
	}

	e.logger.Info("Job reopened",
		slog.String("job_id", jobID),
		slog.String("reopened_job_id", reopened.ID),
		slog.String("actor_id", actorID),
	)

	e.publish(ctx, domain.Event{Type: domain.EventJobReopened, JobID: reopened.ID})

	return reopened, nil
}
