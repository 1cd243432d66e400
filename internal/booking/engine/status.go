package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nordtolk/booking-be/internal/booking/domain"
	"github.com/nordtolk/booking-be/internal/booking/schedule"
)

// StatusChangeLog records an applied admin transition for the audit log.
type StatusChangeLog struct {
	OldStatus domain.Status `json:"old_status"`
	NewStatus domain.Status `json:"new_status"`
}

// changeStatus applies an admin-requested status transition. Dispatch is
// keyed by the job's current status; each handler validates the requested
// target and runs its own side effects. A request that no handler accepts is
// not an error, it just reports no change. The caller persists the job.
func (e *Engine) changeStatus(ctx context.Context, job *domain.Job, req UpdateRequest, changedTranslator bool) (bool, *StatusChangeLog, error) {
	oldStatus := job.Status
	target := domain.Status(req.Status)

	if target == "" || target == oldStatus {
		return false, nil, nil
	}

	var (
		changed bool
		err     error
	)
	switch oldStatus {
	case domain.StatusTimedout:
		changed, err = e.changeFromTimedOut(ctx, job, req, changedTranslator)
	case domain.StatusCompleted:
		changed = e.changeFromCompleted(job, req)
	case domain.StatusStarted:
		changed, err = e.changeFromStarted(ctx, job, req)
	case domain.StatusPending:
		changed, err = e.changeFromPending(ctx, job, req, changedTranslator)
	case domain.StatusWithdrawAfter24:
		changed = e.changeFromWithdrawAfter24(job, req)
	case domain.StatusAssigned:
		changed, err = e.changeFromAssigned(ctx, job, req)
	}
	if err != nil {
		return false, nil, err
	}
	if !changed {
		return false, nil, nil
	}

	e.logger.Info("Job status changed by admin",
		slog.String("job_id", job.ID),
		slog.String("old_status", string(oldStatus)),
		slog.String("new_status", string(job.Status)),
	)

	return true, &StatusChangeLog{OldStatus: oldStatus, NewStatus: job.Status}, nil
}

// changeFromTimedOut recovers an expired job. Target pending puts it back on
// the market with a fresh expiry window and re-runs the candidate search; any
// other target is accepted only when a translator reassignment happened in
// the same update.
func (e *Engine) changeFromTimedOut(ctx context.Context, job *domain.Job, req UpdateRequest, changedTranslator bool) (bool, error) {
	target := domain.Status(req.Status)

	if target == domain.StatusPending {
		now := e.clock.Now()
		job.Status = domain.StatusPending
		job.CreatedAt = now
		job.WillExpireAt = schedule.WillExpireAt(job.Due, now)

		owner, err := e.store.GetUser(ctx, job.UserID)
		if err != nil {
			return false, fmt.Errorf("failed to resolve job owner: %w", err)
		}
		subject := fmt.Sprintf("We have now reopened your booking #%s", job.ID)
		e.sendMail(ctx, contactEmail(job, owner), owner.Name, subject, "job-change-status-to-customer", map[string]any{
			"user": owner,
			"job":  job,
		})

		if err := e.NotifySuitableTranslators(ctx, job, ""); err != nil {
			e.logger.Error("Failed to notify suitable translators",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
		}
		return true, nil
	}

	if changedTranslator {
		job.Status = target

		owner, err := e.store.GetUser(ctx, job.UserID)
		if err != nil {
			return false, fmt.Errorf("failed to resolve job owner: %w", err)
		}
		subject := fmt.Sprintf("Confirmation - an interpreter has accepted your booking (booking #%s)", job.ID)
		e.sendMail(ctx, contactEmail(job, owner), owner.Name, subject, "job-accepted", map[string]any{
			"user": owner,
			"job":  job,
		})
		return true, nil
	}

	return false, nil
}

// changeFromCompleted reopens a completed job. Moving to timedout demands an
// admin comment; other targets are applied as-is.
func (e *Engine) changeFromCompleted(job *domain.Job, req UpdateRequest) bool {
	target := domain.Status(req.Status)

	if target == domain.StatusTimedout && req.AdminComments == "" {
		return false
	}

	job.Status = target
	job.AdminComments = req.AdminComments
	return true
}

// changeFromStarted adjusts an in-progress job. An admin comment is always
// required. When the target is completed the provided session time closes the
// job outright and both parties get the session-ended email.
func (e *Engine) changeFromStarted(ctx context.Context, job *domain.Job, req UpdateRequest) (bool, error) {
	if req.AdminComments == "" {
		return false, nil
	}

	target := domain.Status(req.Status)
	job.AdminComments = req.AdminComments

	if target == domain.StatusCompleted {
		if req.SessionTime == "" {
			return false, nil
		}

		now := e.clock.Now()
		job.EndAt = &now
		job.SessionTime = req.SessionTime

		sessionHuman := sessionTimeHuman(req.SessionTime)
		subject := fmt.Sprintf("Information about your completed interpretation, booking #%s", job.ID)

		owner, err := e.store.GetUser(ctx, job.UserID)
		if err != nil {
			return false, fmt.Errorf("failed to resolve job owner: %w", err)
		}
		e.sendMail(ctx, contactEmail(job, owner), owner.Name, subject, "session-ended", map[string]any{
			"user":         owner,
			"job":          job,
			"session_time": sessionHuman,
			"for_text":     "invoice",
		})

		rel, err := e.store.ActiveAssignment(ctx, job.ID)
		if err != nil {
			return false, fmt.Errorf("failed to look up active assignment: %w", err)
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
		}
	}

	job.Status = target
	return true, nil
}

// changeFromPending handles the reassignment-or-cancel fork. An admin comment
// is required for every target except assigned. Target assigned with a
// translator change sends acceptance mails plus session-start reminders to
// both parties; every other target mails the customer a cancellation notice.
func (e *Engine) changeFromPending(ctx context.Context, job *domain.Job, req UpdateRequest, changedTranslator bool) (bool, error) {
	target := domain.Status(req.Status)

	if req.AdminComments == "" && target != domain.StatusAssigned {
		return false, nil
	}
	job.AdminComments = req.AdminComments
	job.Status = target

	owner, err := e.store.GetUser(ctx, job.UserID)
	if err != nil {
		return false, fmt.Errorf("failed to resolve job owner: %w", err)
	}

	if target == domain.StatusAssigned && changedTranslator {
		subject := fmt.Sprintf("Confirmation - an interpreter has accepted your booking (booking #%s)", job.ID)
		e.sendMail(ctx, contactEmail(job, owner), owner.Name, subject, "job-accepted", map[string]any{
			"user": owner,
			"job":  job,
		})

		rel, err := e.store.ActiveAssignment(ctx, job.ID)
		if err != nil {
			return false, fmt.Errorf("failed to look up active assignment: %w", err)
		}
		if rel != nil {
			if tr, err := e.store.GetUser(ctx, rel.UserID); err == nil {
				trSubject := fmt.Sprintf("Booking confirmation for booking #%s", job.ID)
				e.sendMail(ctx, tr.Email, tr.Name, trSubject, "job-accepted-translator", map[string]any{
					"user": tr,
					"job":  job,
				})
				e.SendSessionStartReminder(ctx, tr, job)
			}
		}
		e.SendSessionStartReminder(ctx, owner, job)
		return true, nil
	}

	subject := fmt.Sprintf("Booking status for booking #%s has changed", job.ID)
	e.sendMail(ctx, contactEmail(job, owner), owner.Name, subject, "status-changed-from-pending-or-assigned-customer", map[string]any{
		"user": owner,
		"job":  job,
	})
	return true, nil
}

// changeFromWithdrawAfter24 only permits expiring the job, with a comment.
func (e *Engine) changeFromWithdrawAfter24(job *domain.Job, req UpdateRequest) bool {
	target := domain.Status(req.Status)

	if target != domain.StatusTimedout || req.AdminComments == "" {
		return false
	}

	job.Status = target
	job.AdminComments = req.AdminComments
	return true
}

// changeFromAssigned withdraws or expires an assigned job. Expiring requires
// an admin comment; withdrawals additionally mail the customer a cancellation
// notice and the assigned translator a cancellation mail.
func (e *Engine) changeFromAssigned(ctx context.Context, job *domain.Job, req UpdateRequest) (bool, error) {
	target := domain.Status(req.Status)

	switch target {
	case domain.StatusWithdrawBefore24, domain.StatusWithdrawAfter24, domain.StatusTimedout:
	default:
		return false, nil
	}
	if target == domain.StatusTimedout && req.AdminComments == "" {
		return false, nil
	}

	job.Status = target
	job.AdminComments = req.AdminComments

	if target == domain.StatusWithdrawBefore24 || target == domain.StatusWithdrawAfter24 {
		owner, err := e.store.GetUser(ctx, job.UserID)
		if err != nil {
			return false, fmt.Errorf("failed to resolve job owner: %w", err)
		}
		subject := fmt.Sprintf("Booking status for booking #%s has changed", job.ID)
		e.sendMail(ctx, contactEmail(job, owner), owner.Name, subject, "status-changed-from-pending-or-assigned-customer", map[string]any{
			"user": owner,
			"job":  job,
		})

		rel, err := e.store.ActiveAssignment(ctx, job.ID)
		if err != nil {
			return false, fmt.Errorf("failed to look up active assignment: %w", err)
		}
		if rel != nil {
			if tr, err := e.store.GetUser(ctx, rel.UserID); err == nil {
				trSubject := fmt.Sprintf("Information about cancelled booking #%s", job.ID)
				e.sendMail(ctx, tr.Email, tr.Name, trSubject, "job-cancel-translator", map[string]any{
					"user": tr,
					"job":  job,
				})
			}
		}
	}

	return true, nil
}
