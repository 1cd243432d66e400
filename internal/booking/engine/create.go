package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nordtolk/booking-be/internal/booking/domain"
	"github.com/nordtolk/booking-be/internal/booking/match"
	"github.com/nordtolk/booking-be/internal/booking/schedule"
)

// dueInputLayout is the admin form layout for scheduled bookings.
const dueInputLayout = "01/02/2006 15:04"

// CreateRequest carries the client input for a new booking.
type CreateRequest struct {
	FromLanguageID       int64
	Immediate            bool
	DueDate              string // mm/dd/yyyy, required for scheduled jobs
	DueTime              string // HH:MM, required for scheduled jobs
	Duration             int    // minutes
	CustomerPhoneType    bool
	CustomerPhysicalType bool
	Gender               string
	Certified            string
	ByAdmin              bool
}

// Create validates the request and creates a pending job for the customer.
// Immediate jobs are due a fixed lead time from now with phone contact forced
// on; scheduled jobs must have a strictly future due time. The job type is
// derived from the requester's consumer category and the expiry is always
// computed, never client-supplied.
func (e *Engine) Create(ctx context.Context, userID string, req CreateRequest) (*domain.Job, error) {
	owner, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve job owner: %w", err)
	}
	if owner.Type != domain.UserTypeCustomer {
		return nil, domain.NewValidationError("user_id", "only customers can create bookings")
	}

	if req.FromLanguageID == 0 {
		return nil, domain.NewValidationError("from_language_id", "language is required")
	}
	if req.Duration < 1 {
		return nil, domain.NewValidationError("duration", "duration must be at least one minute")
	}
	if !req.Immediate && !req.CustomerPhoneType && !req.CustomerPhysicalType {
		return nil, domain.NewValidationError("customer_phone_type", "a contact method is required")
	}

	now := e.clock.Now()

	var due time.Time
	phoneType := req.CustomerPhoneType
	if req.Immediate {
		due = now.Add(schedule.ImmediateLeadTime)
		phoneType = true
	} else {
		due, err = time.ParseInLocation(dueInputLayout, req.DueDate+" "+req.DueTime, now.Location())
		if err != nil {
			return nil, domain.NewValidationError("due_date", "invalid due date or time")
		}
		if !due.After(now) {
			return nil, domain.NewValidationError("due_date", "can't create booking in the past")
		}
	}

	profile, err := e.store.CustomerProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load customer profile: %w", err)
	}

	job := &domain.Job{
		ID:                   uuid.New().String(),
		UserID:               userID,
		FromLanguageID:       req.FromLanguageID,
		Status:               domain.StatusPending,
		Immediate:            req.Immediate,
		Due:                  due,
		Duration:             req.Duration,
		Gender:               req.Gender,
		Certified:            req.Certified,
		JobType:              match.JobTypeForConsumer(profile.ConsumerType),
		CustomerPhoneType:    phoneType,
		CustomerPhysicalType: req.CustomerPhysicalType,
		Town:                 profile.Town,
		ByAdmin:              req.ByAdmin,
		WillExpireAt:         schedule.WillExpireAt(due, now),
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := e.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	e.logger.Info("Job created",
		slog.String("job_id", job.ID),
		slog.String("user_id", userID),
		slog.String("job_type", job.JobType),
		slog.Bool("immediate", job.Immediate),
	)

	e.publish(ctx, domain.Event{Type: domain.EventJobCreated, JobID: job.ID})

	return job, nil
}

// ContactUpdate carries the post-creation contact details for a booking.
type ContactUpdate struct {
	UserEmail    string
	Reference    string
	Address      string
	Instructions string
	Town         string
}

// UpdateContact stores contact details on a fresh booking, falling back to
// the customer's profile for address, instructions and town, and mails a
// booking confirmation to the contact address.
func (e *Engine) UpdateContact(ctx context.Context, jobID string, upd ContactUpdate) (*domain.Job, error) {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	owner, err := e.store.GetUser(ctx, job.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve job owner: %w", err)
	}

	profile, err := e.store.CustomerProfile(ctx, job.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load customer profile: %w", err)
	}

	if upd.UserEmail != "" {
		job.UserEmail = upd.UserEmail
	}
	if upd.Reference != "" {
		job.Reference = upd.Reference
	}
	job.Address = fallback(upd.Address, profile.Address)
	job.Instructions = fallback(upd.Instructions, profile.Instructions)
	job.Town = fallback(upd.Town, profile.Town)
	job.UpdatedAt = e.clock.Now()

	if err := e.store.UpdateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to update job contact: %w", err)
	}

	subject := fmt.Sprintf("We have received your interpretation booking #%s", job.ID)
	e.sendMail(ctx, contactEmail(job, owner), owner.Name, subject, "job-created", map[string]any{
		"user": owner,
		"job":  job,
	})

	return job, nil
}

func fallback(value, def string) string {
	if value != "" {
		return value
	}
	return def
}
