package match

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordtolk/booking-be/internal/booking/domain"
)

type fakeStore struct {
	translators []domain.Translator
	blacklist   map[string][]string
	bookedAt    map[string]time.Time
	profiles    map[string]*domain.CustomerProfile
	profileErr  error
	pending     []domain.Job
}

func (f *fakeStore) ActiveTranslatorsByLanguage(_ context.Context, _ int64) ([]domain.Translator, error) {
	return f.translators, nil
}

func (f *fakeStore) BlacklistedTranslators(_ context.Context, ownerID string) ([]string, error) {
	return f.blacklist[ownerID], nil
}

func (f *fakeStore) HasActiveBookingAt(_ context.Context, translatorID string, due time.Time) (bool, error) {
	at, ok := f.bookedAt[translatorID]
	return ok && at.Equal(due), nil
}

func (f *fakeStore) CustomerProfile(_ context.Context, userID string) (*domain.CustomerProfile, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	if p, ok := f.profiles[userID]; ok {
		return p, nil
	}
	return &domain.CustomerProfile{UserID: userID}, nil
}

func (f *fakeStore) PendingJobsByLanguages(_ context.Context, _ []int64, jobType string) ([]domain.Job, error) {
	var jobs []domain.Job
	for _, j := range f.pending {
		if j.JobType == jobType {
			jobs = append(jobs, j)
		}
	}
	return jobs, nil
}

func translator(id, trType, level, gender, town string) domain.Translator {
	return domain.Translator{
		User: domain.User{ID: id, Email: id + "@example.com", Type: domain.UserTypeTranslator, Active: true},
		TranslatorProfile: domain.TranslatorProfile{
			UserID:          id,
			TranslatorType:  trType,
			TranslatorLevel: level,
			Gender:          gender,
			Town:            town,
			Languages:       []int64{5},
		},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTypeMappingsAreBijective(t *testing.T) {
	for _, jobType := range []string{domain.JobTypePaid, domain.JobTypeRWS, domain.JobTypeUnpaid} {
		assert.Equal(t, jobType, JobTypeForTranslator(TranslatorTypeForJob(jobType)))
	}
}

func TestJobTypeForConsumer(t *testing.T) {
	tests := []struct {
		consumerType string
		want         string
	}{
		{domain.ConsumerPaid, domain.JobTypePaid},
		{domain.ConsumerRWS, domain.JobTypeRWS},
		{domain.ConsumerNGO, domain.JobTypeUnpaid},
		{"", domain.JobTypeUnpaid},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, JobTypeForConsumer(tt.consumerType), tt.consumerType)
	}
}

func TestAcceptedLevels(t *testing.T) {
	tests := []struct {
		certified string
		want      []string
	}{
		{domain.CertifiedYes, []string{domain.LevelCertified, domain.LevelCertifiedLaw, domain.LevelCertifiedHealth}},
		{domain.CertifiedLaw, []string{domain.LevelCertifiedLaw}},
		{domain.CertifiedNLaw, []string{domain.LevelCertifiedLaw}},
		{domain.CertifiedHealth, []string{domain.LevelCertifiedHealth}},
		{domain.CertifiedNHealth, []string{domain.LevelCertifiedHealth}},
		{domain.CertifiedNormal, []string{domain.LevelLayman, domain.LevelReadCourses}},
		{domain.CertifiedBoth, []string{
			domain.LevelCertified, domain.LevelCertifiedLaw, domain.LevelCertifiedHealth,
			domain.LevelLayman, domain.LevelReadCourses,
		}},
		{"", []string{
			domain.LevelCertified, domain.LevelCertifiedLaw, domain.LevelCertifiedHealth,
			domain.LevelLayman, domain.LevelReadCourses,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.certified, func(t *testing.T) {
			got := AcceptedLevels(tt.certified)
			assert.Len(t, got, len(tt.want))
			for _, level := range tt.want {
				assert.True(t, got[level], "missing level %q", level)
			}
		})
	}
}

func TestEligibleTranslators(t *testing.T) {
	due := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	baseJob := func() *domain.Job {
		return &domain.Job{
			ID:                "job-1",
			UserID:            "cust-1",
			FromLanguageID:    5,
			Status:            domain.StatusPending,
			Due:               due,
			JobType:           domain.JobTypePaid,
			CustomerPhoneType: true,
		}
	}

	t.Run("blacklisted translator is never eligible", func(t *testing.T) {
		store := &fakeStore{
			translators: []domain.Translator{
				translator("tr-1", domain.TranslatorProfessional, domain.LevelCertified, "", "Stockholm"),
				translator("tr-2", domain.TranslatorProfessional, domain.LevelCertified, "", "Stockholm"),
			},
			blacklist: map[string][]string{"cust-1": {"tr-2"}},
		}

		eligible, err := New(store, testLogger()).EligibleTranslators(context.Background(), baseJob())
		require.NoError(t, err)
		require.Len(t, eligible, 1)
		assert.Equal(t, "tr-1", eligible[0].User.ID)
	})

	t.Run("wrong translator category is excluded", func(t *testing.T) {
		store := &fakeStore{
			translators: []domain.Translator{
				translator("tr-1", domain.TranslatorVolunteer, domain.LevelCertified, "", ""),
			},
		}

		eligible, err := New(store, testLogger()).EligibleTranslators(context.Background(), baseJob())
		require.NoError(t, err)
		assert.Empty(t, eligible)
	})

	t.Run("certification preference filters by level", func(t *testing.T) {
		store := &fakeStore{
			translators: []domain.Translator{
				translator("tr-law", domain.TranslatorProfessional, domain.LevelCertifiedLaw, "", ""),
				translator("tr-layman", domain.TranslatorProfessional, domain.LevelLayman, "", ""),
			},
		}

		job := baseJob()
		job.Certified = domain.CertifiedLaw

		eligible, err := New(store, testLogger()).EligibleTranslators(context.Background(), job)
		require.NoError(t, err)
		require.Len(t, eligible, 1)
		assert.Equal(t, "tr-law", eligible[0].User.ID)
	})

	t.Run("gender preference filters", func(t *testing.T) {
		store := &fakeStore{
			translators: []domain.Translator{
				translator("tr-f", domain.TranslatorProfessional, domain.LevelCertified, domain.GenderFemale, ""),
				translator("tr-m", domain.TranslatorProfessional, domain.LevelCertified, domain.GenderMale, ""),
			},
		}

		job := baseJob()
		job.Gender = domain.GenderFemale

		eligible, err := New(store, testLogger()).EligibleTranslators(context.Background(), job)
		require.NoError(t, err)
		require.Len(t, eligible, 1)
		assert.Equal(t, "tr-f", eligible[0].User.ID)
	})

	t.Run("town gate applies only to physical-only jobs", func(t *testing.T) {
		store := &fakeStore{
			translators: []domain.Translator{
				translator("tr-near", domain.TranslatorProfessional, domain.LevelCertified, "", "Stockholm"),
				translator("tr-far", domain.TranslatorProfessional, domain.LevelCertified, "", "Uppsala"),
			},
			profiles: map[string]*domain.CustomerProfile{
				"cust-1": {UserID: "cust-1", Town: "Stockholm"},
			},
		}

		physical := baseJob()
		physical.CustomerPhoneType = false
		physical.CustomerPhysicalType = true

		eligible, err := New(store, testLogger()).EligibleTranslators(context.Background(), physical)
		require.NoError(t, err)
		require.Len(t, eligible, 1)
		assert.Equal(t, "tr-near", eligible[0].User.ID)

		// A phone job is never filtered by town.
		phone := baseJob()
		eligible, err = New(store, testLogger()).EligibleTranslators(context.Background(), phone)
		require.NoError(t, err)
		assert.Len(t, eligible, 2)
	})

	t.Run("phone job never loads the customer profile", func(t *testing.T) {
		store := &fakeStore{
			translators: []domain.Translator{
				translator("tr-1", domain.TranslatorProfessional, domain.LevelCertified, "", "Stockholm"),
			},
			profileErr: errors.New("profiles table unavailable"),
		}

		eligible, err := New(store, testLogger()).EligibleTranslators(context.Background(), baseJob())
		require.NoError(t, err)
		assert.Len(t, eligible, 1)

		physical := baseJob()
		physical.CustomerPhoneType = false
		physical.CustomerPhysicalType = true

		_, err = New(store, testLogger()).EligibleTranslators(context.Background(), physical)
		require.Error(t, err)
	})

	t.Run("conflicting booking at due time is excluded", func(t *testing.T) {
		store := &fakeStore{
			translators: []domain.Translator{
				translator("tr-busy", domain.TranslatorProfessional, domain.LevelCertified, "", ""),
				translator("tr-free", domain.TranslatorProfessional, domain.LevelCertified, "", ""),
			},
			bookedAt: map[string]time.Time{"tr-busy": due},
		}

		eligible, err := New(store, testLogger()).EligibleTranslators(context.Background(), baseJob())
		require.NoError(t, err)
		require.Len(t, eligible, 1)
		assert.Equal(t, "tr-free", eligible[0].User.ID)
	})
}

func TestPotentialJobs(t *testing.T) {
	due := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	store := &fakeStore{
		blacklist: map[string][]string{"cust-2": {"tr-1"}},
		profiles: map[string]*domain.CustomerProfile{
			"cust-3": {UserID: "cust-3", Town: "Uppsala"},
		},
		pending: []domain.Job{
			{ID: "job-phone", UserID: "cust-1", JobType: domain.JobTypePaid, Due: due, CustomerPhoneType: true},
			{ID: "job-blacklisted", UserID: "cust-2", JobType: domain.JobTypePaid, Due: due, CustomerPhoneType: true},
			{ID: "job-physical-far", UserID: "cust-3", JobType: domain.JobTypePaid, Due: due, CustomerPhysicalType: true},
			{ID: "job-unpaid", UserID: "cust-1", JobType: domain.JobTypeUnpaid, Due: due, CustomerPhoneType: true},
		},
	}

	tr := translator("tr-1", domain.TranslatorProfessional, domain.LevelCertified, "", "Stockholm")

	jobs, err := New(store, testLogger()).PotentialJobs(context.Background(), &tr)
	require.NoError(t, err)

	require.Len(t, jobs, 1)
	assert.Equal(t, "job-phone", jobs[0].ID)
}
