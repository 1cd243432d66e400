// Package match computes which translators are capable of and permitted to
// take a job: language, translator category, certification level, gender,
// blacklist, town gate for physical jobs and double-booking conflicts. The
// same filters answer both the system-initiated "who should be notified" and
// the translator-initiated "show me potential jobs".
package match

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nordtolk/booking-be/internal/booking/domain"
)

// Store is the slice of storage the matcher reads.
type Store interface {
	ActiveTranslatorsByLanguage(ctx context.Context, languageID int64) ([]domain.Translator, error)
	BlacklistedTranslators(ctx context.Context, ownerID string) ([]string, error)
	HasActiveBookingAt(ctx context.Context, translatorID string, due time.Time) (bool, error)
	CustomerProfile(ctx context.Context, userID string) (*domain.CustomerProfile, error)
	PendingJobsByLanguages(ctx context.Context, languageIDs []int64, jobType string) ([]domain.Job, error)
}

// Matcher filters candidate translators against a job's requirements.
type Matcher struct {
	store  Store
	logger *slog.Logger
}

// New creates a Matcher.
func New(store Store, logger *slog.Logger) *Matcher {
	return &Matcher{store: store, logger: logger}
}

// TranslatorTypeForJob maps a job type to the translator category allowed to
// serve it. The mapping is bijective with JobTypeForTranslator.
func TranslatorTypeForJob(jobType string) string {
	switch jobType {
	case domain.JobTypePaid:
		return domain.TranslatorProfessional
	case domain.JobTypeRWS:
		return domain.TranslatorRWS
	default:
		return domain.TranslatorVolunteer
	}
}

// JobTypeForTranslator maps a translator category to the job type it serves.
func JobTypeForTranslator(translatorType string) string {
	switch translatorType {
	case domain.TranslatorProfessional:
		return domain.JobTypePaid
	case domain.TranslatorRWS:
		return domain.JobTypeRWS
	default:
		return domain.JobTypeUnpaid
	}
}

// JobTypeForConsumer derives a job's billing category from the requester's
// consumer type.
func JobTypeForConsumer(consumerType string) string {
	switch consumerType {
	case domain.ConsumerRWS:
		return domain.JobTypeRWS
	case domain.ConsumerPaid:
		return domain.JobTypePaid
	default:
		return domain.JobTypeUnpaid
	}
}

// AcceptedLevels expands a job's certification preference into the set of
// translator levels that satisfy it. An empty preference accepts all levels.
func AcceptedLevels(certified string) map[string]bool {
	levels := make(map[string]bool)

	switch certified {
	case domain.CertifiedYes, domain.CertifiedBoth:
		levels[domain.LevelCertified] = true
		levels[domain.LevelCertifiedLaw] = true
		levels[domain.LevelCertifiedHealth] = true
	case domain.CertifiedLaw, domain.CertifiedNLaw:
		levels[domain.LevelCertifiedLaw] = true
	case domain.CertifiedHealth, domain.CertifiedNHealth:
		levels[domain.LevelCertifiedHealth] = true
	}

	if certified == domain.CertifiedNormal || certified == domain.CertifiedBoth {
		levels[domain.LevelLayman] = true
		levels[domain.LevelReadCourses] = true
	}

	if certified == "" {
		for _, l := range []string{
			domain.LevelCertified, domain.LevelCertifiedLaw, domain.LevelCertifiedHealth,
			domain.LevelLayman, domain.LevelReadCourses,
		} {
			levels[l] = true
		}
	}

	return levels
}

// EligibleTranslators returns the translators capable of and permitted to
// take the job. All conditions are conjunctive; order only affects cost.
func (m *Matcher) EligibleTranslators(ctx context.Context, job *domain.Job) ([]domain.Translator, error) {
	pool, err := m.store.ActiveTranslatorsByLanguage(ctx, job.FromLanguageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate pool: %w", err)
	}

	blacklisted, err := m.store.BlacklistedTranslators(ctx, job.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load blacklist: %w", err)
	}
	blocked := make(map[string]bool, len(blacklisted))
	for _, id := range blacklisted {
		blocked[id] = true
	}

	// The town gate only matters for physical-only jobs; phone jobs skip the
	// profile lookup entirely.
	var ownerTown string
	if job.PhysicalOnly() {
		ownerTown, err = m.ownerTown(ctx, job)
		if err != nil {
			return nil, err
		}
	}

	requiredType := TranslatorTypeForJob(job.JobType)
	levels := AcceptedLevels(job.Certified)

	var eligible []domain.Translator
	for _, tr := range pool {
		if tr.TranslatorType != requiredType {
			continue
		}
		if !levels[tr.TranslatorLevel] {
			continue
		}
		if job.Gender != "" && tr.TranslatorProfile.Gender != job.Gender {
			continue
		}
		if blocked[tr.User.ID] {
			continue
		}
		if job.PhysicalOnly() && tr.TranslatorProfile.Town != ownerTown {
			continue
		}

		booked, err := m.store.HasActiveBookingAt(ctx, tr.User.ID, job.Due)
		if err != nil {
			return nil, fmt.Errorf("failed to check booking conflict: %w", err)
		}
		if booked {
			continue
		}

		eligible = append(eligible, tr)
	}

	m.logger.Debug("Eligibility matching done",
		slog.String("job_id", job.ID),
		slog.Int("pool", len(pool)),
		slog.Int("eligible", len(eligible)),
	)

	return eligible, nil
}

// PotentialJobs returns the pending jobs a translator could take, applying
// the same conjunctive filters from the job side.
func (m *Matcher) PotentialJobs(ctx context.Context, tr *domain.Translator) ([]domain.Job, error) {
	jobType := JobTypeForTranslator(tr.TranslatorType)

	jobs, err := m.store.PendingJobsByLanguages(ctx, tr.Languages, jobType)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending jobs: %w", err)
	}

	var potential []domain.Job
	for _, job := range jobs {
		if !AcceptedLevels(job.Certified)[tr.TranslatorLevel] {
			continue
		}
		if job.Gender != "" && tr.TranslatorProfile.Gender != job.Gender {
			continue
		}

		blacklisted, err := m.store.BlacklistedTranslators(ctx, job.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to load blacklist: %w", err)
		}
		if containsID(blacklisted, tr.User.ID) {
			continue
		}

		if job.PhysicalOnly() {
			ownerTown, err := m.ownerTown(ctx, &job)
			if err != nil {
				return nil, err
			}
			if tr.TranslatorProfile.Town != ownerTown {
				continue
			}
		}

		booked, err := m.store.HasActiveBookingAt(ctx, tr.User.ID, job.Due)
		if err != nil {
			return nil, fmt.Errorf("failed to check booking conflict: %w", err)
		}
		if booked {
			continue
		}

		potential = append(potential, job)
	}

	return potential, nil
}

func (m *Matcher) ownerTown(ctx context.Context, job *domain.Job) (string, error) {
	profile, err := m.store.CustomerProfile(ctx, job.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to load customer profile: %w", err)
	}
	if profile.Town != "" {
		return profile.Town, nil
	}
	return job.Town, nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
