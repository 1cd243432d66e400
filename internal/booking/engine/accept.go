package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nordtolk/booking-be/internal/booking/domain"
	"github.com/nordtolk/booking-be/internal/booking/notify"
)

// Accept lets a translator claim a pending job. The no-conflicting-booking
// check plus the assignment insert run as a single atomic store operation;
// losing the race yields ErrJobAlreadyTaken, an existing booking at the same
// due time yields ErrTranslatorBooked. On success the job owner gets a
// confirmation email.
func (e *Engine) Accept(ctx context.Context, jobID, translatorID string) (*domain.Job, error) {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if err := e.store.AcceptJob(ctx, jobID, translatorID, job.Due, e.clock.Now()); err != nil {
		return nil, err
	}

	job.Status = domain.StatusAssigned

	e.logger.Info("Job accepted",
		slog.String("job_id", jobID),
		slog.String("translator_id", translatorID),
	)

	owner, err := e.store.GetUser(ctx, job.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve job owner: %w", err)
	}

	subject := fmt.Sprintf("Confirmation - an interpreter has accepted your booking (booking #%s)", job.ID)
	e.sendMail(ctx, contactEmail(job, owner), owner.Name, subject, "job-accepted", map[string]any{
		"user": owner,
		"job":  job,
	})

	return job, nil
}

// AcceptWithID is the bulk-accept path: identical guards to Accept, and the
// customer additionally gets a push that their booking was accepted.
func (e *Engine) AcceptWithID(ctx context.Context, jobID, translatorID string) (*domain.Job, error) {
	job, err := e.Accept(ctx, jobID, translatorID)
	if err != nil {
		return nil, err
	}

	owner, err := e.store.GetUser(ctx, job.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve job owner: %w", err)
	}

	language := e.languageName(ctx, job.FromLanguageID)
	data := map[string]any{"notification_type": notify.TypeJobAccepted}
	message := notify.AcceptedMessage(language, job.Duration, job.Due)

	e.notifier.PushToRecipients(ctx, []notify.Recipient{notify.RecipientFromUser(owner)}, job.ID, data, message, false)

	return job, nil
}
