package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordtolk/booking-be/internal/booking/domain"
	"github.com/nordtolk/booking-be/internal/booking/match"
	"github.com/nordtolk/booking-be/internal/booking/notify"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fakeStore struct {
	jobs        map[string]*domain.Job
	users       map[string]*domain.User
	translators map[string]*domain.Translator
	profiles    map[string]*domain.CustomerProfile
	assignments []*domain.Assignment
	languages   map[int64]string
	acceptedAt  time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:        make(map[string]*domain.Job),
		users:       make(map[string]*domain.User),
		translators: make(map[string]*domain.Translator),
		profiles:    make(map[string]*domain.CustomerProfile),
		languages:   map[int64]string{5: "French"},
	}
}

func (s *fakeStore) GetJob(_ context.Context, id string) (*domain.Job, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *fakeStore) CreateJob(_ context.Context, job *domain.Job) error {
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *fakeStore) UpdateJob(_ context.Context, job *domain.Job) error {
	if _, ok := s.jobs[job.ID]; !ok {
		return domain.ErrJobNotFound
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *fakeStore) AcceptJob(_ context.Context, jobID, translatorID string, due, now time.Time) error {
	s.acceptedAt = now
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrJobNotFound
	}
	if job.Status != domain.StatusPending {
		return domain.ErrJobAlreadyTaken
	}
	for _, rel := range s.assignments {
		if rel.UserID == translatorID && rel.CancelAt == nil && rel.CompletedAt == nil {
			if other, ok := s.jobs[rel.JobID]; ok && other.Due.Equal(due) {
				return domain.ErrTranslatorBooked
			}
		}
	}
	job.Status = domain.StatusAssigned
	s.assignments = append(s.assignments, &domain.Assignment{
		ID:     fmt.Sprintf("rel-%d", len(s.assignments)+1),
		JobID:  jobID,
		UserID: translatorID,
	})
	return nil
}

func (s *fakeStore) ActiveAssignment(_ context.Context, jobID string) (*domain.Assignment, error) {
	for i := len(s.assignments) - 1; i >= 0; i-- {
		rel := s.assignments[i]
		if rel.JobID == jobID && rel.CancelAt == nil && rel.CompletedAt == nil {
			return rel, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) LatestClosedAssignment(_ context.Context, jobID string) (*domain.Assignment, error) {
	for i := len(s.assignments) - 1; i >= 0; i-- {
		rel := s.assignments[i]
		if rel.JobID == jobID && (rel.CancelAt != nil || rel.CompletedAt != nil) {
			return rel, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) CreateAssignment(_ context.Context, rel *domain.Assignment) error {
	cp := *rel
	s.assignments = append(s.assignments, &cp)
	return nil
}

func (s *fakeStore) CancelAssignment(_ context.Context, relID string, cancelAt time.Time) error {
	for _, rel := range s.assignments {
		if rel.ID == relID {
			rel.CancelAt = &cancelAt
			return nil
		}
	}
	return fmt.Errorf("assignment %s not found", relID)
}

func (s *fakeStore) CompleteAssignment(_ context.Context, relID string, completedAt time.Time, completedBy string) error {
	for _, rel := range s.assignments {
		if rel.ID == relID {
			rel.CompletedAt = &completedAt
			rel.CompletedBy = completedBy
			return nil
		}
	}
	return fmt.Errorf("assignment %s not found", relID)
}

func (s *fakeStore) GetUser(_ context.Context, id string) (*domain.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (s *fakeStore) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *fakeStore) GetTranslator(_ context.Context, id string) (*domain.Translator, error) {
	tr, ok := s.translators[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return tr, nil
}

func (s *fakeStore) CustomerProfile(_ context.Context, userID string) (*domain.CustomerProfile, error) {
	p, ok := s.profiles[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return p, nil
}

func (s *fakeStore) HasActiveBookingAt(_ context.Context, translatorID string, due time.Time) (bool, error) {
	for _, rel := range s.assignments {
		if rel.UserID == translatorID && rel.CancelAt == nil && rel.CompletedAt == nil {
			if job, ok := s.jobs[rel.JobID]; ok && job.Due.Equal(due) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *fakeStore) LanguageName(_ context.Context, id int64) (string, error) {
	name, ok := s.languages[id]
	if !ok {
		return "", fmt.Errorf("language %d not found", id)
	}
	return name, nil
}

// matchStore adapts fakeStore to the matcher's read interface.
type matchStore struct{ *fakeStore }

func (s matchStore) ActiveTranslatorsByLanguage(_ context.Context, languageID int64) ([]domain.Translator, error) {
	var out []domain.Translator
	for _, tr := range s.translators {
		for _, lang := range tr.Languages {
			if lang == languageID && tr.Active {
				out = append(out, *tr)
			}
		}
	}
	return out, nil
}

func (s matchStore) BlacklistedTranslators(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

func (s matchStore) PendingJobsByLanguages(_ context.Context, languageIDs []int64, jobType string) ([]domain.Job, error) {
	var out []domain.Job
	for _, job := range s.jobs {
		if job.Status != domain.StatusPending || job.JobType != jobType {
			continue
		}
		for _, lang := range languageIDs {
			if job.FromLanguageID == lang {
				out = append(out, *job)
			}
		}
	}
	return out, nil
}

type sentMail struct {
	To       string
	Subject  string
	Template string
}

type fakeMailer struct{ sent []sentMail }

func (m *fakeMailer) Send(_ context.Context, to, _, subject, template string, _ map[string]any) error {
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Template: template})
	return nil
}

func (m *fakeMailer) templates() []string {
	var out []string
	for _, s := range m.sent {
		out = append(out, s.Template)
	}
	return out
}

type sentPush struct {
	Recipients []notify.Recipient
	JobID      string
	Data       map[string]any
	Message    string
	Immediate  bool
}

type fakeNotifier struct {
	pushes []sentPush
	sms    []string
}

func (n *fakeNotifier) PushToRecipients(_ context.Context, recipients []notify.Recipient, jobID string, data map[string]any, message string, immediate bool) {
	n.pushes = append(n.pushes, sentPush{Recipients: recipients, JobID: jobID, Data: data, Message: message, Immediate: immediate})
}

func (n *fakeNotifier) SMSToTranslators(_ context.Context, translators []domain.Translator, _, message string) int {
	n.sms = append(n.sms, message)
	return len(translators)
}

type fakePublisher struct{ events []domain.Event }

func (p *fakePublisher) Publish(_ context.Context, event domain.Event) error {
	p.events = append(p.events, event)
	return nil
}

type harness struct {
	engine   *Engine
	store    *fakeStore
	mailer   *fakeMailer
	notifier *fakeNotifier
	events   *fakePublisher
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	mailer := &fakeMailer{}
	notifier := &fakeNotifier{}
	events := &fakePublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	matcher := match.New(matchStore{store}, logger)

	return &harness{
		engine:   New(store, matcher, notifier, mailer, events, fixedClock{now}, logger),
		store:    store,
		mailer:   mailer,
		notifier: notifier,
		events:   events,
		now:      now,
	}
}

func (h *harness) addCustomer(id, consumerType string) {
	h.store.users[id] = &domain.User{ID: id, Name: "Customer " + id, Email: id + "@example.com", Type: domain.UserTypeCustomer, Active: true}
	h.store.profiles[id] = &domain.CustomerProfile{UserID: id, ConsumerType: consumerType, Town: "Stockholm"}
}

func (h *harness) addTranslator(id, translatorType, level string, languages ...int64) {
	user := domain.User{ID: id, Name: "Translator " + id, Email: id + "@example.com", Type: domain.UserTypeTranslator, Active: true}
	h.store.users[id] = &user
	h.store.translators[id] = &domain.Translator{
		User: user,
		TranslatorProfile: domain.TranslatorProfile{
			UserID:          id,
			TranslatorType:  translatorType,
			TranslatorLevel: level,
			Languages:       languages,
		},
	}
}

func (h *harness) addJob(id string, status domain.Status, due time.Time) *domain.Job {
	job := &domain.Job{
		ID:                id,
		UserID:            "cust-1",
		FromLanguageID:    5,
		Status:            status,
		Due:               due,
		Duration:          30,
		JobType:           domain.JobTypePaid,
		CustomerPhoneType: true,
		CreatedAt:         h.now.Add(-time.Hour),
	}
	h.store.jobs[id] = job
	return job
}

func TestCreateImmediate(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("cust-1", domain.ConsumerPaid)

	job, err := h.engine.Create(context.Background(), "cust-1", CreateRequest{
		FromLanguageID: 5,
		Immediate:      true,
		Duration:       30,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, job.Status)
	assert.Equal(t, h.now.Add(5*time.Minute), job.Due)
	assert.True(t, job.CustomerPhoneType, "immediate jobs force phone contact on")
	assert.Equal(t, domain.JobTypePaid, job.JobType)
	assert.Equal(t, "Stockholm", job.Town)

	require.Len(t, h.events.events, 1)
	assert.Equal(t, domain.EventJobCreated, h.events.events[0].Type)
	assert.Equal(t, job.ID, h.events.events[0].JobID)
}

func TestCreateScheduledValidation(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("cust-1", domain.ConsumerNGO)

	tests := []struct {
		name  string
		req   CreateRequest
		field string
	}{
		{
			name:  "missing language",
			req:   CreateRequest{Duration: 30, CustomerPhoneType: true, DueDate: "03/20/2024", DueTime: "10:00"},
			field: "from_language_id",
		},
		{
			name:  "no contact method",
			req:   CreateRequest{FromLanguageID: 5, Duration: 30, DueDate: "03/20/2024", DueTime: "10:00"},
			field: "customer_phone_type",
		},
		{
			name:  "due in the past",
			req:   CreateRequest{FromLanguageID: 5, Duration: 30, CustomerPhoneType: true, DueDate: "03/14/2024", DueTime: "10:00"},
			field: "due_date",
		},
		{
			name:  "unparsable due",
			req:   CreateRequest{FromLanguageID: 5, Duration: 30, CustomerPhoneType: true, DueDate: "2024-03-20", DueTime: "10:00"},
			field: "due_date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.Create(context.Background(), "cust-1", tt.req)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Empty(t, h.store.jobs, "no job may be persisted on validation failure")
		})
	}
}

func TestCreateDerivesJobTypeFromConsumer(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		consumer string
		jobType  string
	}{
		{domain.ConsumerPaid, domain.JobTypePaid},
		{domain.ConsumerRWS, domain.JobTypeRWS},
		{domain.ConsumerNGO, domain.JobTypeUnpaid},
		{"", domain.JobTypeUnpaid},
	}

	for i, tt := range tests {
		id := fmt.Sprintf("cust-%d", i)
		h.addCustomer(id, tt.consumer)
		job, err := h.engine.Create(context.Background(), id, CreateRequest{
			FromLanguageID: 5,
			Immediate:      true,
			Duration:       30,
		})
		require.NoError(t, err)
		assert.Equal(t, tt.jobType, job.JobType, "consumer type %q", tt.consumer)
	}
}

func TestAcceptIsMutuallyExclusive(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("cust-1", domain.ConsumerPaid)
	h.addTranslator("tr-1", domain.TranslatorProfessional, domain.LevelCertified, 5)
	h.addTranslator("tr-2", domain.TranslatorProfessional, domain.LevelCertified, 5)
	h.addJob("job-1", domain.StatusPending, h.now.Add(48*time.Hour))

	job, err := h.engine.Accept(context.Background(), "job-1", "tr-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAssigned, job.Status)

	_, err = h.engine.Accept(context.Background(), "job-1", "tr-2")
	assert.ErrorIs(t, err, domain.ErrJobAlreadyTaken)

	open := 0
	for _, rel := range h.store.assignments {
		if rel.JobID == "job-1" && rel.CancelAt == nil && rel.CompletedAt == nil {
			open++
		}
	}
	assert.Equal(t, 1, open, "exactly one open assignment after the race")

	require.Len(t, h.mailer.sent, 1)
	assert.Equal(t, "job-accepted", h.mailer.sent[0].Template)
	assert.Equal(t, "cust-1@example.com", h.mailer.sent[0].To)
}

func TestAcceptRejectsConflictingBooking(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("cust-1", domain.ConsumerPaid)
	h.addTranslator("tr-1", domain.TranslatorProfessional, domain.LevelCertified, 5)
	due := h.now.Add(48 * time.Hour)
	h.addJob("job-1", domain.StatusPending, due)
	h.addJob("job-2", domain.StatusPending, due)

	_, err := h.engine.Accept(context.Background(), "job-1", "tr-1")
	require.NoError(t, err)

	_, err = h.engine.Accept(context.Background(), "job-2", "tr-1")
	assert.ErrorIs(t, err, domain.ErrTranslatorBooked)
}

func TestAcceptStampsInjectedClock(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("cust-1", domain.ConsumerPaid)
	h.addTranslator("tr-1", domain.TranslatorProfessional, domain.LevelCertified, 5)
	h.addJob("job-1", domain.StatusPending, h.now.Add(48*time.Hour))

	_, err := h.engine.Accept(context.Background(), "job-1", "tr-1")
	require.NoError(t, err)

	assert.True(t, h.store.acceptedAt.Equal(h.now), "claim timestamp comes from the engine clock")
}

func TestAcceptWithIDNotifiesCustomer(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("cust-1", domain.ConsumerPaid)
	h.addTranslator("tr-1", domain.TranslatorProfessional, domain.LevelCertified, 5)
	h.addJob("job-1", domain.StatusPending, h.now.Add(48*time.Hour))

	_, err := h.engine.AcceptWithID(context.Background(), "job-1", "tr-1")
	require.NoError(t, err)

	require.Len(t, h.notifier.pushes, 1)
	push := h.notifier.pushes[0]
	assert.Equal(t, notify.TypeJobAccepted, push.Data["notification_type"])
	require.Len(t, push.Recipients, 1)
	assert.Equal(t, "cust-1", push.Recipients[0].ID)
}

func TestCustomerCancelBoundary(t *testing.T) {
	tests := []struct {
		name   string
		lead   time.Duration
		status domain.Status
	}{
		{"exactly 24h before due", 24 * time.Hour, domain.StatusWithdrawBefore24},
		{"23h59m before due", 24*time.Hour - time.Minute, domain.StatusWithdrawAfter24},
		{"a week before due", 7 * 24 * time.Hour, domain.StatusWithdrawBefore24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.addCustomer("cust-1", domain.ConsumerPaid)
			h.addJob("job-1", domain.StatusPending, h.now.Add(tt.lead))

			job, err := h.engine.Cancel(context.Background(), "job-1", "cust-1")
			require.NoError(t, err)

			assert.Equal(t, tt.status, job.Status)
			require.NotNil(t, job.WithdrawAt)
			assert.Equal(t, h.now, *job.WithdrawAt)

			require.Len(t, h.events.events, 1)
			assert.Equal(t, domain.EventJobCanceled, h.events.events[0].Type)
		})
	}
}

func TestCustomerCancelNotifiesAssignedTranslator(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("cust-1", domain.ConsumerPaid)
	h.addTranslator("tr-1", domain.TranslatorProfessional, domain.LevelCertified, 5)
	h.addJob("job-1", domain.StatusPending, h.now.Add(48*time.Hour))

	_, err := h.engine.Accept(context.Background(), "job-1", "tr-1")
	require.NoError(t, err)

	_, err = h.engine.Cancel(context.Background(), "job-1", "cust-1")
	require.NoError(t, err)

	require.Len(t, h.notifier.pushes, 1)
	push := h.notifier.pushes[0]
	assert.Equal(t, notify.TypeJobCancelled, push.Data["notification_type"])
	require.Len(t, push.Recipients, 1)
	assert.Equal(t, "tr-1", push.Recipients[0].ID)
}

func TestTranslatorCancelRecyclesJob(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("cust-1", domain.ConsumerPaid)
	h.addTranslator("tr-1", domain.TranslatorProfessional, domain.LevelCertified, 5)
	h.addJob("job-1", domain.StatusPending, h.now.Add(48*time.Hour))

	_, err := h.engine.Accept(context.Background(), "job-1", "tr-1")
	require.NoError(t, err)

	job, err := h.engine.Cancel(context.Background(), "job-1", "tr-1")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, job.Status)
	assert.Equal(t, h.now, job.CreatedAt, "created_at is refreshed on recycle")

	rel, err := h.store.ActiveAssignment(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Nil(t, rel, "prior assignment must be closed")

	var reopened *domain.Event
	for i := range h.events.events {
		if h.events.events[i].Type == domain.EventJobReopened {
			reopened = &h.events.events[i]
		}
	}
	require.NotNil(t, reopened)
	assert.Equal(t, "tr-1", reopened.ExcludeUserID, "withdrawing translator is excluded from the re-run")
}

func TestTranslatorCancelRefusedInside24Hours(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("cust-1", domain.ConsumerPaid)
	h.addTranslator("tr-1", domain.TranslatorProfessional, domain.LevelCertified, 5)
	h.addJob("job-1", domain.StatusAssigned, h.now.Add(12*time.Hour))

	_, err := h.engine.Cancel(context.Background(), "job-1", "tr-1")
	assert.ErrorIs(t, err, domain.ErrCancellationTooLate)
	assert.Equal(t, domain.StatusAssigned, h.store.jobs["job-1"].Status)
}

func TestEndJob(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("cust-1", domain.ConsumerPaid)
	h.addTranslator("tr-1", domain.TranslatorProfessional, domain.LevelCertified, 5)

	due := h.now.Add(-90 * time.Minute)
	h.addJob("job-1", domain.StatusPending, due)
	h.store.jobs["job-1"].Due = due

	_, err := h.engine.Accept(context.Background(), "job-1", "tr-1")
	require.NoError(t, err)
	h.store.jobs["job-1"].Status = domain.StatusStarted

	job, err := h.engine.EndJob(context.Background(), "job-1", "tr-1")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCompleted, job.Status)
	assert.Equal(t, "1:30:00", job.SessionTime)
	require.NotNil(t, job.EndAt)
	assert.Equal(t, h.now, *job.EndAt)

	rel, err := h.store.LatestClosedAssignment(context.Background(), "job-1")
	require.NoError(t, err)
	require.NotNil(t, rel)
	assert.Equal(t, "tr-1", rel.CompletedBy)

	assert.Contains(t, h.mailer.templates(), "session-ended")

	var ended *domain.Event
	for i := range h.events.events {
		if h.events.events[i].Type == domain.EventSessionEnded {
			ended = &h.events.events[i]
		}
	}
	require.NotNil(t, ended)
	assert.Equal(t, "cust-1", ended.NotifyUserID, "the party that did not end the session is notified")
}

func TestNotifySessionEnded(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("cust-1", domain.ConsumerPaid)
	h.addTranslator("tr-1", domain.TranslatorProfessional, domain.LevelCertified, 5)
	h.addJob("job-1", domain.StatusCompleted, h.now.Add(-90*time.Minute))

	err := h.engine.NotifySessionEnded(context.Background(), "job-1", "cust-1")
	require.NoError(t, err)

	require.Len(t, h.notifier.pushes, 1)
	push := h.notifier.pushes[0]
	assert.Equal(t, notify.TypeSessionEnded, push.Data["notification_type"])
	require.Len(t, push.Recipients, 1)
	assert.Equal(t, "cust-1", push.Recipients[0].ID)
	assert.False(t, push.Immediate)

	// A translator target carries the opt-out preferences.
	h.store.translators["tr-1"].NotGetNotification = true
	err = h.engine.NotifySessionEnded(context.Background(), "job-1", "tr-1")
	require.NoError(t, err)

	require.Len(t, h.notifier.pushes, 2)
	assert.True(t, h.notifier.pushes[1].Recipients[0].NotGetNotification)
}

func TestEndJobIdempotent(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("cust-1", domain.ConsumerPaid)
	h.addJob("job-1", domain.StatusCompleted, h.now.Add(-time.Hour))

	job, err := h.engine.EndJob(context.Background(), "job-1", "cust-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, job.Status)
	assert.Empty(t, h.mailer.sent)
	assert.Empty(t, h.events.events)
}

func TestCustomerNoShow(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("cust-1", domain.ConsumerPaid)
	h.addTranslator("tr-1", domain.TranslatorProfessional, domain.LevelCertified, 5)
	h.addJob("job-1", domain.StatusPending, h.now.Add(-30*time.Minute))

	_, err := h.engine.Accept(context.Background(), "job-1", "tr-1")
	require.NoError(t, err)

	job, err := h.engine.CustomerNoShow(context.Background(), "job-1")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusNotCarriedOutByCustomer, job.Status)
	assert.Equal(t, "0:30:00", job.SessionTime)

	rel, err := h.store.LatestClosedAssignment(context.Background(), "job-1")
	require.NoError(t, err)
	require.NotNil(t, rel)
	assert.Equal(t, "tr-1", rel.CompletedBy, "the assignment is completed by its own translator")
}

func TestSessionInterval(t *testing.T) {
	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		elapsed time.Duration
		want    string
	}{
		{30 * time.Minute, "0:30:00"},
		{90 * time.Minute, "1:30:00"},
		{2*time.Hour + 5*time.Minute + 9*time.Second, "2:05:09"},
		{26 * time.Hour, "26:00:00"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SessionInterval(base, base.Add(tt.elapsed)))
	}
}

func TestAdminStatusChange(t *testing.T) {
	tests := []struct {
		name       string
		from       domain.Status
		req        UpdateRequest
		wantStatus domain.Status
		changed    bool
	}{
		{
			name:       "completed to timedout without comment is rejected",
			from:       domain.StatusCompleted,
			req:        UpdateRequest{Status: "timedout"},
			wantStatus: domain.StatusCompleted,
			changed:    false,
		},
		{
			name:       "completed to timedout with comment",
			from:       domain.StatusCompleted,
			req:        UpdateRequest{Status: "timedout", AdminComments: "never happened"},
			wantStatus: domain.StatusTimedout,
			changed:    true,
		},
		{
			name:       "withdrawafter24 only accepts timedout",
			from:       domain.StatusWithdrawAfter24,
			req:        UpdateRequest{Status: "pending", AdminComments: "x"},
			wantStatus: domain.StatusWithdrawAfter24,
			changed:    false,
		},
		{
			name:       "withdrawafter24 to timedout with comment",
			from:       domain.StatusWithdrawAfter24,
			req:        UpdateRequest{Status: "timedout", AdminComments: "expired instead"},
			wantStatus: domain.StatusTimedout,
			changed:    true,
		},
		{
			name:       "started without comment is rejected",
			from:       domain.StatusStarted,
			req:        UpdateRequest{Status: "timedout"},
			wantStatus: domain.StatusStarted,
			changed:    false,
		},
		{
			name:       "pending without comment to non-assigned is rejected",
			from:       domain.StatusPending,
			req:        UpdateRequest{Status: "withdrawbefore24"},
			wantStatus: domain.StatusPending,
			changed:    false,
		},
		{
			name:       "pending to withdrawbefore24 with comment",
			from:       domain.StatusPending,
			req:        UpdateRequest{Status: "withdrawbefore24", AdminComments: "customer called"},
			wantStatus: domain.StatusWithdrawBefore24,
			changed:    true,
		},
		{
			name:       "assigned to timedout without comment is rejected",
			from:       domain.StatusAssigned,
			req:        UpdateRequest{Status: "timedout"},
			wantStatus: domain.StatusAssigned,
			changed:    false,
		},
		{
			name:       "assigned to withdrawafter24",
			from:       domain.StatusAssigned,
			req:        UpdateRequest{Status: "withdrawafter24", AdminComments: "late withdrawal"},
			wantStatus: domain.StatusWithdrawAfter24,
			changed:    true,
		},
		{
			name:       "assigned to completed is not a legal admin target",
			from:       domain.StatusAssigned,
			req:        UpdateRequest{Status: "completed", AdminComments: "x"},
			wantStatus: domain.StatusAssigned,
			changed:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.addCustomer("cust-1", domain.ConsumerPaid)
			job := h.addJob("job-1", tt.from, h.now.Add(48*time.Hour))

			changed, logEntry, err := h.engine.changeStatus(context.Background(), job, tt.req, false)
			require.NoError(t, err)

			assert.Equal(t, tt.changed, changed)
			assert.Equal(t, tt.wantStatus, job.Status)
			if tt.changed {
				require.NotNil(t, logEntry)
				assert.Equal(t, tt.from, logEntry.OldStatus)
				assert.Equal(t, tt.wantStatus, logEntry.NewStatus)
			} else {
				assert.Nil(t, logEntry)
			}
		})
	}
}

func TestAdminStatusChangeStartedToCompletedStoresSessionTime(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("cust-1", domain.ConsumerPaid)
	h.addTranslator("tr-1", domain.TranslatorProfessional, domain.LevelCertified, 5)
	job := h.addJob("job-1", domain.StatusStarted, h.now.Add(-time.Hour))

	changed, _, err := h.engine.changeStatus(context.Background(), job, UpdateRequest{
		Status:        "completed",
		AdminComments: "closed by support",
		SessionTime:   "1:15:00",
	}, false)
	require.NoError(t, err)

	assert.True(t, changed)
	assert.Equal(t, domain.StatusCompleted, job.Status)
	assert.Equal(t, "1:15:00", job.SessionTime)
	require.NotNil(t, job.EndAt)
	assert.Contains(t, h.mailer.templates(), "session-ended")
}

func TestAdminStatusChangeTimedoutRecovery(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("cust-1", domain.ConsumerPaid)
	h.addTranslator("tr-1", domain.TranslatorProfessional, domain.LevelCertified, 5)
	job := h.addJob("job-1", domain.StatusTimedout, h.now.Add(48*time.Hour))

	changed, _, err := h.engine.changeStatus(context.Background(), job, UpdateRequest{Status: "pending"}, false)
	require.NoError(t, err)

	assert.True(t, changed)
	assert.Equal(t, domain.StatusPending, job.Status)
	assert.Equal(t, h.now, job.CreatedAt, "expiry window restarts on recovery")
	assert.Contains(t, h.mailer.templates(), "job-change-status-to-customer")

	require.NotEmpty(t, h.notifier.pushes, "suitable translators are re-notified")
	assert.Equal(t, notify.TypeSuitableJob, h.notifier.pushes[0].Data["notification_type"])
}

func TestUpdateChangesTranslator(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("cust-1", domain.ConsumerPaid)
	h.addTranslator("tr-1", domain.TranslatorProfessional, domain.LevelCertified, 5)
	h.addTranslator("tr-2", domain.TranslatorProfessional, domain.LevelCertified, 5)
	h.addJob("job-1", domain.StatusPending, h.now.Add(48*time.Hour))

	_, err := h.engine.Accept(context.Background(), "job-1", "tr-1")
	require.NoError(t, err)
	h.mailer.sent = nil

	_, err = h.engine.Update(context.Background(), "job-1", "admin-1", UpdateRequest{
		TranslatorEmail: "tr-2@example.com",
	})
	require.NoError(t, err)

	rel, err := h.store.ActiveAssignment(context.Background(), "job-1")
	require.NoError(t, err)
	require.NotNil(t, rel)
	assert.Equal(t, "tr-2", rel.UserID)

	templates := h.mailer.templates()
	assert.Contains(t, templates, "job-changed-translator-customer")
	assert.Contains(t, templates, "job-changed-translator-old-translator")
	assert.Contains(t, templates, "job-changed-translator-new-translator")
}

func TestUpdatePastJobIsSilent(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("cust-1", domain.ConsumerPaid)
	h.addJob("job-1", domain.StatusCompleted, h.now.Add(-48*time.Hour))

	_, err := h.engine.Update(context.Background(), "job-1", "admin-1", UpdateRequest{
		Due:            "03/10/2024 09:00",
		FromLanguageID: 5,
	})
	require.NoError(t, err)

	assert.Empty(t, h.mailer.sent, "edits to past jobs are persisted without notifications")
}

func TestUpdateChangedDateNotifies(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("cust-1", domain.ConsumerPaid)
	h.addJob("job-1", domain.StatusPending, h.now.Add(48*time.Hour))

	updated, err := h.engine.Update(context.Background(), "job-1", "admin-1", UpdateRequest{
		Due: "03/20/2024 10:30",
	})
	require.NoError(t, err)

	want := time.Date(2024, 3, 20, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, want, updated.Due)
	assert.Contains(t, h.mailer.templates(), "job-changed-date")
}

func TestReopen(t *testing.T) {
	t.Run("non-timedout resets in place", func(t *testing.T) {
		h := newHarness(t)
		h.addCustomer("cust-1", domain.ConsumerPaid)
		h.addJob("job-1", domain.StatusWithdrawBefore24, h.now.Add(48*time.Hour))

		job, err := h.engine.Reopen(context.Background(), "job-1", "admin-1")
		require.NoError(t, err)

		assert.Equal(t, "job-1", job.ID)
		assert.Equal(t, domain.StatusPending, job.Status)
		assert.Equal(t, h.now, job.CreatedAt)
	})

	t.Run("timedout clones a new job", func(t *testing.T) {
		h := newHarness(t)
		h.addCustomer("cust-1", domain.ConsumerPaid)
		h.addJob("job-1", domain.StatusTimedout, h.now.Add(48*time.Hour))

		job, err := h.engine.Reopen(context.Background(), "job-1", "admin-1")
		require.NoError(t, err)

		assert.NotEqual(t, "job-1", job.ID)
		assert.Equal(t, domain.StatusPending, job.Status)
		assert.Equal(t, "This booking is a reopening of booking #job-1", job.AdminComments)
		assert.Equal(t, domain.StatusTimedout, h.store.jobs["job-1"].Status, "original row keeps its status")

		require.Len(t, h.events.events, 1)
		assert.Equal(t, domain.EventJobReopened, h.events.events[0].Type)
		assert.Equal(t, job.ID, h.events.events[0].JobID, "replacement search targets the clone")
	})

	t.Run("closes the open assignment and records the actor", func(t *testing.T) {
		h := newHarness(t)
		h.addCustomer("cust-1", domain.ConsumerPaid)
		h.addTranslator("tr-1", domain.TranslatorProfessional, domain.LevelCertified, 5)
		h.addJob("job-1", domain.StatusPending, h.now.Add(48*time.Hour))

		_, err := h.engine.Accept(context.Background(), "job-1", "tr-1")
		require.NoError(t, err)

		_, err = h.engine.Reopen(context.Background(), "job-1", "admin-1")
		require.NoError(t, err)

		rel, err := h.store.ActiveAssignment(context.Background(), "job-1")
		require.NoError(t, err)
		assert.Nil(t, rel, "no assignment stays open after reopen")

		last := h.store.assignments[len(h.store.assignments)-1]
		assert.Equal(t, "admin-1", last.UserID)
		require.NotNil(t, last.CancelAt)
	})
}

func TestNotifySuitableTranslators(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("cust-1", domain.ConsumerPaid)
	h.addTranslator("tr-1", domain.TranslatorProfessional, domain.LevelCertified, 5)
	h.addTranslator("tr-2", domain.TranslatorProfessional, domain.LevelCertified, 5)
	h.addTranslator("tr-3", domain.TranslatorVolunteer, domain.LevelLayman, 5)
	job := h.addJob("job-1", domain.StatusPending, h.now.Add(48*time.Hour))

	err := h.engine.NotifySuitableTranslators(context.Background(), job, "tr-2")
	require.NoError(t, err)

	require.Len(t, h.notifier.pushes, 1)
	push := h.notifier.pushes[0]
	require.Len(t, push.Recipients, 1, "wrong category and excluded translators are filtered")
	assert.Equal(t, "tr-1", push.Recipients[0].ID)
	assert.Equal(t, notify.TypeSuitableJob, push.Data["notification_type"])
	assert.Equal(t, "job-1", push.Data["job_id"])

	require.Len(t, h.notifier.sms, 1)
}

func TestPotentialJobs(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("cust-1", domain.ConsumerPaid)
	h.addTranslator("tr-1", domain.TranslatorProfessional, domain.LevelCertified, 5)
	h.addJob("job-1", domain.StatusPending, h.now.Add(48*time.Hour))
	h.addJob("job-2", domain.StatusAssigned, h.now.Add(48*time.Hour))

	jobs, err := h.engine.PotentialJobs(context.Background(), "tr-1")
	require.NoError(t, err)

	require.Len(t, jobs, 1)
	assert.Equal(t, "job-1", jobs[0].ID)
}

// Full walk of the happy path: immediate create, candidate search, accept,
// session end.
func TestImmediateBookingLifecycle(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("cust-1", domain.ConsumerPaid)
	h.addTranslator("tr-1", domain.TranslatorProfessional, domain.LevelCertified, 5)

	job, err := h.engine.Create(context.Background(), "cust-1", CreateRequest{
		FromLanguageID: 5,
		Immediate:      true,
		Duration:       30,
	})
	require.NoError(t, err)
	assert.Equal(t, h.now.Add(5*time.Minute), job.Due)
	assert.True(t, job.CustomerPhoneType)

	candidates, err := h.engine.matcher.EligibleTranslators(context.Background(), job)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "tr-1", candidates[0].ID)

	job, err = h.engine.Accept(context.Background(), job.ID, "tr-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAssigned, job.Status)

	h.store.jobs[job.ID].Status = domain.StatusStarted

	job, err = h.engine.EndJob(context.Background(), job.ID, "tr-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, job.Status)

	rel, err := h.store.LatestClosedAssignment(context.Background(), job.ID)
	require.NoError(t, err)
	require.NotNil(t, rel)
	assert.Equal(t, "tr-1", rel.CompletedBy)
}
