package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nordtolk/booking-be/internal/booking/domain"
	"github.com/nordtolk/booking-be/internal/booking/notify"
)

// NotifySuitableTranslators runs the candidate search for a pending job and
// fans the announcement out over push and SMS. excludeUserID drops one
// translator from the pool, used when a job is recycled after that
// translator's own withdrawal.
func (e *Engine) NotifySuitableTranslators(ctx context.Context, job *domain.Job, excludeUserID string) error {
	candidates, err := e.matcher.EligibleTranslators(ctx, job)
	if err != nil {
		return fmt.Errorf("failed to find eligible translators: %w", err)
	}

	translators := candidates[:0:0]
	for _, tr := range candidates {
		if tr.ID != excludeUserID {
			translators = append(translators, tr)
		}
	}

	language := e.languageName(ctx, job.FromLanguageID)

	profile, err := e.store.CustomerProfile(ctx, job.UserID)
	if err != nil {
		e.logger.Warn("Failed to load customer profile for notification payload",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}

	data := notify.JobPayload(job, profile)
	data["notification_type"] = notify.TypeSuitableJob
	message := notify.SuitableJobMessage(language, job.Duration, job.Due, job.Immediate)

	recipients := make([]notify.Recipient, 0, len(translators))
	for _, tr := range translators {
		recipients = append(recipients, notify.RecipientFromTranslator(&tr))
	}
	e.notifier.PushToRecipients(ctx, recipients, job.ID, data, message, job.Immediate)

	smsMessage := notify.SMSJobMessage(job, job.Town)
	targeted := e.notifier.SMSToTranslators(ctx, translators, job.ID, smsMessage)

	e.logger.Info("Suitable translators notified",
		slog.String("job_id", job.ID),
		slog.Int("push_recipients", len(recipients)),
		slog.Int("sms_targeted", targeted),
	)

	return nil
}

// NotifyExpired tells the job owner that no interpreter accepted before the
// expiry deadline.
func (e *Engine) NotifyExpired(ctx context.Context, jobID string) error {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	owner, err := e.store.GetUser(ctx, job.UserID)
	if err != nil {
		return fmt.Errorf("failed to resolve job owner: %w", err)
	}

	language := e.languageName(ctx, job.FromLanguageID)
	data := map[string]any{"notification_type": notify.TypeJobExpired}
	message := notify.ExpiredMessage(language, job.Duration, job.Due)

	e.notifier.PushToRecipients(ctx, []notify.Recipient{notify.RecipientFromUser(owner)}, job.ID, data, message, job.Immediate)
	return nil
}

// NotifySessionEnded pushes the session-completion notice to the party that
// did not end the session. Translators keep their opt-out preferences.
func (e *Engine) NotifySessionEnded(ctx context.Context, jobID, userID string) error {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to resolve notification target: %w", err)
	}

	recipient := notify.RecipientFromUser(user)
	if user.Type == domain.UserTypeTranslator {
		if tr, err := e.store.GetTranslator(ctx, userID); err == nil {
			recipient = notify.RecipientFromTranslator(tr)
		}
	}

	language := e.languageName(ctx, job.FromLanguageID)
	data := map[string]any{"notification_type": notify.TypeSessionEnded}
	message := notify.SessionEndedMessage(language, job.Duration, job.Due)

	e.notifier.PushToRecipients(ctx, []notify.Recipient{recipient}, job.ID, data, message, false)
	return nil
}

// SendSessionStartReminder pushes an upcoming-session reminder to one party.
func (e *Engine) SendSessionStartReminder(ctx context.Context, user *domain.User, job *domain.Job) {
	language := e.languageName(ctx, job.FromLanguageID)
	data := map[string]any{"notification_type": notify.TypeSessionStartRemind}
	message := notify.SessionStartRemindMessage(job, language)

	e.notifier.PushToRecipients(ctx, []notify.Recipient{notify.RecipientFromUser(user)}, job.ID, data, message, false)
}

// sendChangedDateNotification mails the customer and the assigned translator
// about a moved session.
func (e *Engine) sendChangedDateNotification(ctx context.Context, job *domain.Job, oldDue time.Time) {
	subject := fmt.Sprintf("Booking #%s has been updated", job.ID)
	data := map[string]any{
		"job":      job,
		"old_time": oldDue.Format(time.DateTime),
	}

	if owner, err := e.store.GetUser(ctx, job.UserID); err == nil {
		data["user"] = owner
		e.sendMail(ctx, contactEmail(job, owner), owner.Name, subject, "job-changed-date", data)
	}

	rel, err := e.store.ActiveAssignment(ctx, job.ID)
	if err != nil || rel == nil {
		return
	}
	if tr, err := e.store.GetUser(ctx, rel.UserID); err == nil {
		data["user"] = tr
		e.sendMail(ctx, tr.Email, tr.Name, subject, "job-changed-date", data)
	}
}

// sendChangedTranslatorNotification mails the customer and both translators
// about a reassignment.
func (e *Engine) sendChangedTranslatorNotification(ctx context.Context, job *domain.Job, old *domain.Assignment, newTranslator *domain.User) {
	subject := fmt.Sprintf("Booking #%s has been assigned a new interpreter", job.ID)

	if owner, err := e.store.GetUser(ctx, job.UserID); err == nil {
		e.sendMail(ctx, contactEmail(job, owner), owner.Name, subject, "job-changed-translator-customer", map[string]any{
			"user": owner,
			"job":  job,
		})
	}

	if old != nil {
		if tr, err := e.store.GetUser(ctx, old.UserID); err == nil {
			e.sendMail(ctx, tr.Email, tr.Name, subject, "job-changed-translator-old-translator", map[string]any{
				"user": tr,
				"job":  job,
			})
		}
	}

	if newTranslator != nil {
		e.sendMail(ctx, newTranslator.Email, newTranslator.Name, subject, "job-changed-translator-new-translator", map[string]any{
			"user": newTranslator,
			"job":  job,
		})
	}
}

// sendChangedLangNotification mails the customer and the assigned translator
// about a changed interpretation language.
func (e *Engine) sendChangedLangNotification(ctx context.Context, job *domain.Job, oldLanguageID int64) {
	subject := fmt.Sprintf("Booking #%s has been updated", job.ID)
	data := map[string]any{
		"job":      job,
		"old_lang": e.languageName(ctx, oldLanguageID),
	}

	if owner, err := e.store.GetUser(ctx, job.UserID); err == nil {
		data["user"] = owner
		e.sendMail(ctx, contactEmail(job, owner), owner.Name, subject, "job-changed-lang", data)
	}

	rel, err := e.store.ActiveAssignment(ctx, job.ID)
	if err != nil || rel == nil {
		return
	}
	if tr, err := e.store.GetUser(ctx, rel.UserID); err == nil {
		data["user"] = tr
		e.sendMail(ctx, tr.Email, tr.Name, subject, "job-changed-lang", data)
	}
}
