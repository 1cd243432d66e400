package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nordtolk/booking-be/internal/booking/domain"
)

// UpdateRequest carries an admin edit of an existing booking. Empty fields
// mean "leave unchanged", except AdminComments and Reference which are always
// written through.
type UpdateRequest struct {
	Due             string // mm/dd/yyyy HH:MM, empty to keep
	FromLanguageID  int64
	Status          string
	AdminComments   string
	SessionTime     string
	Reference       string
	TranslatorID    string
	TranslatorEmail string
}

// Update applies an admin edit: translator reassignment, due change, language
// change and a status transition, in that order, then persists once. Change
// notifications go out only while the job's due time is still in the future;
// edits to past jobs are saved silently.
func (e *Engine) Update(ctx context.Context, jobID, actorID string, req UpdateRequest) (*domain.Job, error) {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()

	current, err := e.currentAssignment(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	translatorChanged, newTranslator, err := e.changeTranslator(ctx, job, current, req, now)
	if err != nil {
		return nil, err
	}

	oldDue := job.Due
	dateChanged := false
	if req.Due != "" {
		due, err := time.ParseInLocation(dueInputLayout, req.Due, now.Location())
		if err != nil {
			return nil, domain.NewValidationError("due", "invalid due date or time")
		}
		if !due.Equal(job.Due) {
			job.Due = due
			dateChanged = true
		}
	}

	oldLanguage := job.FromLanguageID
	langChanged := false
	if req.FromLanguageID != 0 && req.FromLanguageID != job.FromLanguageID {
		job.FromLanguageID = req.FromLanguageID
		langChanged = true
	}

	statusChanged, statusLog, err := e.changeStatus(ctx, job, req, translatorChanged)
	if err != nil {
		return nil, err
	}

	job.AdminComments = req.AdminComments
	job.Reference = req.Reference
	job.UpdatedAt = now

	if err := e.store.UpdateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to update job: %w", err)
	}

	attrs := []any{
		slog.String("job_id", job.ID),
		slog.String("actor_id", actorID),
	}
	if statusChanged {
		attrs = append(attrs,
			slog.String("old_status", string(statusLog.OldStatus)),
			slog.String("new_status", string(statusLog.NewStatus)),
		)
	}
	if dateChanged {
		attrs = append(attrs,
			slog.Time("old_due", oldDue),
			slog.Time("new_due", job.Due),
		)
	}
	if langChanged {
		attrs = append(attrs,
			slog.Int64("old_lang", oldLanguage),
			slog.Int64("new_lang", job.FromLanguageID),
		)
	}
	e.logger.Info("Job updated by admin", attrs...)

	// Past jobs are corrected silently.
	if !job.Due.After(now) {
		return job, nil
	}

	if dateChanged {
		e.sendChangedDateNotification(ctx, job, oldDue)
	}
	if translatorChanged {
		e.sendChangedTranslatorNotification(ctx, job, current, newTranslator)
	}
	if langChanged {
		e.sendChangedLangNotification(ctx, job, oldLanguage)
	}

	return job, nil
}

// currentAssignment is the open assignment if one exists, else the most
// recently closed one.
func (e *Engine) currentAssignment(ctx context.Context, jobID string) (*domain.Assignment, error) {
	rel, err := e.store.ActiveAssignment(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up active assignment: %w", err)
	}
	if rel != nil {
		return rel, nil
	}
	rel, err = e.store.LatestClosedAssignment(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up closed assignment: %w", err)
	}
	return rel, nil
}

// changeTranslator swaps the assigned translator when the request names a
// different one, by id or by email. The old open assignment is closed and a
// new row created; the swap is logged by email identity.
func (e *Engine) changeTranslator(ctx context.Context, job *domain.Job, current *domain.Assignment, req UpdateRequest, now time.Time) (bool, *domain.User, error) {
	requestedID := req.TranslatorID
	if req.TranslatorEmail != "" {
		u, err := e.store.GetUserByEmail(ctx, req.TranslatorEmail)
		if err != nil {
			return false, nil, fmt.Errorf("failed to resolve translator by email: %w", err)
		}
		requestedID = u.ID
	}
	if requestedID == "" {
		return false, nil, nil
	}
	if current != nil && current.UserID == requestedID {
		return false, nil, nil
	}

	newTranslator, err := e.store.GetUser(ctx, requestedID)
	if err != nil {
		return false, nil, fmt.Errorf("failed to resolve new translator: %w", err)
	}

	if err := e.store.CreateAssignment(ctx, &domain.Assignment{
		ID:        uuid.New().String(),
		JobID:     job.ID,
		UserID:    requestedID,
		CreatedAt: now,
	}); err != nil {
		return false, nil, fmt.Errorf("failed to create assignment: %w", err)
	}

	oldEmail := ""
	if current != nil {
		if current.CancelAt == nil && current.CompletedAt == nil {
			if err := e.store.CancelAssignment(ctx, current.ID, now); err != nil {
				return false, nil, fmt.Errorf("failed to close assignment: %w", err)
			}
		}
		if old, err := e.store.GetUser(ctx, current.UserID); err == nil {
			oldEmail = old.Email
		}
	}

	e.logger.Info("Job translator changed",
		slog.String("job_id", job.ID),
		slog.String("old_translator", oldEmail),
		slog.String("new_translator", newTranslator.Email),
	)

	return true, newTranslator, nil
}
