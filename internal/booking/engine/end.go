package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nordtolk/booking-be/internal/booking/domain"
)

// SessionInterval renders the elapsed time between due and end in the
// session-time wire format: unpadded hours, zero-padded minutes and seconds.
func SessionInterval(due, end time.Time) string {
	d := end.Sub(due)
	if d < 0 {
		d = -d
	}

	h := int(d / time.Hour)
	m := int(d/time.Minute) % 60
	s := int(d/time.Second) % 60

	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

// sessionTimeHuman renders a stored session time for email bodies,
// e.g. "1 h 30 min".
func sessionTimeHuman(sessionTime string) string {
	parts := strings.Split(sessionTime, ":")
	if len(parts) < 2 {
		return sessionTime
	}
	return fmt.Sprintf("%s h %s min", parts[0], parts[1])
}

// EndJob completes a started job: stamps end_at and the elapsed session
// time, closes the open assignment, mails both parties and notifies the
// party that did not trigger the completion. Calling it on a job that is not
// started is a no-op success, which makes repeated completion calls safe.
func (e *Engine) EndJob(ctx context.Context, jobID, actorID string) (*domain.Job, error) {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status != domain.StatusStarted {
		return job, nil
	}

	now := e.clock.Now()
	job.EndAt = &now
	job.Status = domain.StatusCompleted
	job.SessionTime = SessionInterval(job.Due, now)
	job.UpdatedAt = now

	if err := e.store.UpdateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to complete job: %w", err)
	}

	e.logger.Info("Job completed",
		slog.String("job_id", job.ID),
		slog.String("session_time", job.SessionTime),
	)

	sessionHuman := sessionTimeHuman(job.SessionTime)
	subject := fmt.Sprintf("Information about your completed interpretation, booking #%s", job.ID)

	owner, err := e.store.GetUser(ctx, job.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve job owner: %w", err)
	}
	e.sendMail(ctx, contactEmail(job, owner), owner.Name, subject, "session-ended", map[string]any{
		"user":         owner,
		"job":          job,
		"session_time": sessionHuman,
		"for_text":     "invoice",
	})

	rel, err := e.store.ActiveAssignment(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up active assignment: %w", err)
	}
	if rel != nil {
		if tr, err := e.store.GetUser(ctx, rel.UserID); err == nil {
			e.sendMail(ctx, tr.Email, tr.Name, subject, "session-ended", map[string]any{
				"user":         tr,
				"job":          job,
				"session_time": sessionHuman,
				"for_text":     "salary",
			})
		}

		if err := e.store.CompleteAssignment(ctx, rel.ID, now, actorID); err != nil {
			return nil, fmt.Errorf("failed to close assignment: %w", err)
		}

		// Notify whichever party did not end the session.
		notifyUser := rel.UserID
		if actorID != job.UserID {
			notifyUser = job.UserID
		}
		e.publish(ctx, domain.Event{
			Type:         domain.EventSessionEnded,
			JobID:        job.ID,
			NotifyUserID: notifyUser,
		})
	}

	return job, nil
}

// CustomerNoShow closes a job the customer never turned up for, with its own
// terminal status distinct from normal completion. The open assignment is
// completed by its own translator.
func (e *Engine) CustomerNoShow(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	job.EndAt = &now
	job.Status = domain.StatusNotCarriedOutByCustomer
	job.SessionTime = SessionInterval(job.Due, now)
	job.UpdatedAt = now

	if err := e.store.UpdateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to close job: %w", err)
	}

	rel, err := e.store.ActiveAssignment(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up active assignment: %w", err)
	}
	if rel != nil {
		if err := e.store.CompleteAssignment(ctx, rel.ID, now, rel.UserID); err != nil {
			return nil, fmt.Errorf("failed to close assignment: %w", err)
		}
	}

	e.logger.Info("Job closed as customer no-show",
		slog.String("job_id", job.ID),
	)

	return job, nil
}
