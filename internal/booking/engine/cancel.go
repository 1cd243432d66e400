package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nordtolk/booking-be/internal/booking/domain"
	"github.com/nordtolk/booking-be/internal/booking/notify"
	"github.com/nordtolk/booking-be/internal/booking/schedule"
)

// Cancel withdraws a booking on behalf of the acting user. Customers can
// cancel any time; the resulting status records whether the withdrawal
// happened inside the 24-hour window before the session. Translators can
// only self-withdraw while more than 24 hours remain, which recycles the job
// back to pending and restarts the replacement search.
func (e *Engine) Cancel(ctx context.Context, jobID, actorID string) (*domain.Job, error) {
	actor, err := e.store.GetUser(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve acting user: %w", err)
	}

	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if actor.Type == domain.UserTypeCustomer {
		return e.cancelByCustomer(ctx, job)
	}
	return e.cancelByTranslator(ctx, job, actorID)
}

func (e *Engine) cancelByCustomer(ctx context.Context, job *domain.Job) (*domain.Job, error) {
	now := e.clock.Now()

	job.WithdrawAt = &now
	if schedule.IsWithin24Hours(job.Due, now) {
		job.Status = domain.StatusWithdrawAfter24
	} else {
		job.Status = domain.StatusWithdrawBefore24
	}
	job.UpdatedAt = now

	if err := e.store.UpdateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to withdraw job: %w", err)
	}

	e.logger.Info("Job withdrawn by customer",
		slog.String("job_id", job.ID),
		slog.String("status", string(job.Status)),
	)

	e.publish(ctx, domain.Event{Type: domain.EventJobCanceled, JobID: job.ID})

	// Tell the assigned translator, if any.
	rel, err := e.store.ActiveAssignment(ctx, job.ID)
	if err != nil {
		e.logger.Error("Failed to look up active assignment",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return job, nil
	}
	if rel != nil {
		if tr, err := e.store.GetTranslator(ctx, rel.UserID); err == nil {
			language := e.languageName(ctx, job.FromLanguageID)
			data := map[string]any{"notification_type": notify.TypeJobCancelled}
			message := notify.CancelledByCustomerMessage(language, job.Duration, job.Due)
			e.notifier.PushToRecipients(ctx, []notify.Recipient{notify.RecipientFromTranslator(tr)}, job.ID, data, message, job.Immediate)
		}
	}

	return job, nil
}

func (e *Engine) cancelByTranslator(ctx context.Context, job *domain.Job, translatorID string) (*domain.Job, error) {
	now := e.clock.Now()

	// Inside 24 hours the withdrawal is a phone-support matter, not an
	// automated transition.
	if job.Due.Sub(now) <= 24*time.Hour {
		return nil, domain.ErrCancellationTooLate
	}

	// Tell the customer a replacement search is starting.
	if owner, err := e.store.GetUser(ctx, job.UserID); err == nil {
		language := e.languageName(ctx, job.FromLanguageID)
		data := map[string]any{"notification_type": notify.TypeJobCancelled}
		message := notify.CancelledByTranslatorMessage(language, job.Duration, job.Due)
		e.notifier.PushToRecipients(ctx, []notify.Recipient{notify.RecipientFromUser(owner)}, job.ID, data, message, job.Immediate)
	}

	// Recycle the job: back to pending with a fresh expiry window.
	job.Status = domain.StatusPending
	job.CreatedAt = now
	job.UpdatedAt = now
	job.WillExpireAt = schedule.WillExpireAt(job.Due, now)

	if err := e.store.UpdateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to recycle job: %w", err)
	}

	rel, err := e.store.ActiveAssignment(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up active assignment: %w", err)
	}
	if rel != nil {
		if err := e.store.CancelAssignment(ctx, rel.ID, now); err != nil {
			return nil, fmt.Errorf("failed to close assignment: %w", err)
		}
	}

	e.logger.Info("Job recycled after translator withdrawal",
		slog.String("job_id", job.ID),
		slog.String("translator_id", translatorID),
	)

	e.publish(ctx, domain.Event{
		Type:          domain.EventJobReopened,
		JobID:         job.ID,
		ExcludeUserID: translatorID,
	})

	return job, nil
}
