// Package engine owns the job lifecycle: creation, acceptance, cancellation,
// completion, reopening and the admin status state machine. It consults the
// matcher for candidate translators, the schedule package for time-window
// rules, and fans side effects out through the mailer, the push/SMS
// dispatcher and the event publisher. State is always persisted before
// notifications fire, and notification failures never fail a transition.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/nordtolk/booking-be/internal/booking/domain"
	"github.com/nordtolk/booking-be/internal/booking/match"
	"github.com/nordtolk/booking-be/internal/booking/notify"
	"github.com/nordtolk/booking-be/internal/booking/schedule"
)

// Store is the persistence contract the engine drives. AcceptJob must be
// atomic: the pending check, the conflict check and the assignment insert
// happen as one conditional write so two translators cannot both win a job.
type Store interface {
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	CreateJob(ctx context.Context, job *domain.Job) error
	UpdateJob(ctx context.Context, job *domain.Job) error

	AcceptJob(ctx context.Context, jobID, translatorID string, due, now time.Time) error

	ActiveAssignment(ctx context.Context, jobID string) (*domain.Assignment, error)
	LatestClosedAssignment(ctx context.Context, jobID string) (*domain.Assignment, error)
	CreateAssignment(ctx context.Context, rel *domain.Assignment) error
	CancelAssignment(ctx context.Context, relID string, cancelAt time.Time) error
	CompleteAssignment(ctx context.Context, relID string, completedAt time.Time, completedBy string) error

	GetUser(ctx context.Context, userID string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetTranslator(ctx context.Context, userID string) (*domain.Translator, error)
	CustomerProfile(ctx context.Context, userID string) (*domain.CustomerProfile, error)
	HasActiveBookingAt(ctx context.Context, translatorID string, due time.Time) (bool, error)
	LanguageName(ctx context.Context, languageID int64) (string, error)
}

// Mailer sends a templated email. Calls are fire-and-forget: the engine logs
// failures and carries on.
type Mailer interface {
	Send(ctx context.Context, toAddress, toName, subject, templateKey string, data map[string]any) error
}

// Notifier is the push/SMS fan-out surface, implemented by notify.Dispatcher.
type Notifier interface {
	PushToRecipients(ctx context.Context, recipients []notify.Recipient, jobID string, data map[string]any, message string, immediate bool)
	SMSToTranslators(ctx context.Context, translators []domain.Translator, jobID, message string) int
}

// Publisher emits job events to the broker after a transition commits.
type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// Engine is the lifecycle engine. Construct once and share; all collaborators
// are injected.
type Engine struct {
	store    Store
	matcher  *match.Matcher
	notifier Notifier
	mailer   Mailer
	events   Publisher
	clock    schedule.Clock
	logger   *slog.Logger
}

// New creates an Engine.
func New(store Store, matcher *match.Matcher, notifier Notifier, mailer Mailer, events Publisher, clock schedule.Clock, logger *slog.Logger) *Engine {
	return &Engine{
		store:    store,
		matcher:  matcher,
		notifier: notifier,
		mailer:   mailer,
		events:   events,
		clock:    clock,
		logger:   logger,
	}
}

// GetJob returns one job by id.
func (e *Engine) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	return e.store.GetJob(ctx, jobID)
}

// contactEmail picks the override contact address on the job over the
// account email.
func contactEmail(job *domain.Job, owner *domain.User) string {
	if job.UserEmail != "" {
		return job.UserEmail
	}
	return owner.Email
}

// sendMail delivers an email and swallows transport failures.
func (e *Engine) sendMail(ctx context.Context, to, name, subject, template string, data map[string]any) {
	if err := e.mailer.Send(ctx, to, name, subject, template, data); err != nil {
		e.logger.Error("Failed to send email",
			slog.String("to", to),
			slog.String("template", template),
			slog.String("error", err.Error()),
		)
	}
}

// publish emits a job event and swallows broker failures; the state
// transition has already committed and stays successful.
func (e *Engine) publish(ctx context.Context, event domain.Event) {
	if err := e.events.Publish(ctx, event); err != nil {
		e.logger.Error("Failed to publish job event",
			slog.String("type", event.Type),
			slog.String("job_id", event.JobID),
			slog.String("error", err.Error()),
		)
	}
}

// languageName resolves a language id for message texts, falling back to the
// numeric id when the lookup fails.
func (e *Engine) languageName(ctx context.Context, languageID int64) string {
	name, err := e.store.LanguageName(ctx, languageID)
	if err != nil {
		e.logger.Warn("Failed to resolve language name",
			slog.Int64("language_id", languageID),
			slog.String("error", err.Error()),
		)
		return "unknown"
	}
	return name
}
