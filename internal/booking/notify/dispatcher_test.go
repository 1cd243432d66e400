package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordtolk/booking-be/internal/booking/domain"
)

type fakePush struct {
	payloads [][]byte
	err      error
}

func (f *fakePush) Deliver(_ context.Context, payload []byte) ([]byte, error) {
	f.payloads = append(f.payloads, payload)
	if f.err != nil {
		return nil, f.err
	}
	return []byte(`{"id":"push-1"}`), nil
}

type fakeSMS struct {
	sent []string
	err  error
}

func (f *fakeSMS) Send(_ context.Context, _, to, _ string) (string, error) {
	f.sent = append(f.sent, to)
	if f.err != nil {
		return "", f.err
	}
	return "queued", nil
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func newTestDispatcher(push PushTransport, sms SMSTransport, at time.Time) *Dispatcher {
	return New(push, sms, fixedClock{at: at}, slog.New(slog.NewTextHandler(io.Discard, nil)), "app-1", "NordTolk", "+46700000000")
}

var (
	daytime = time.Date(2026, 4, 1, 14, 0, 0, 0, time.UTC)
	night   = time.Date(2026, 4, 1, 23, 0, 0, 0, time.UTC)
)

func TestUserTags(t *testing.T) {
	tags, err := UserTags([]Recipient{
		{Email: "First@Example.com"},
		{Email: "second@example.com"},
	})
	require.NoError(t, err)

	want := `[{"key":"email","relation":"=","value":"first@example.com"},{"operator":"OR"},{"key":"email","relation":"=","value":"second@example.com"}]`
	assert.JSONEq(t, want, string(tags))

	// The expression must stay a valid JSON array.
	var parsed []map[string]string
	require.NoError(t, json.Unmarshal(tags, &parsed))
	assert.Len(t, parsed, 3)
	assert.Equal(t, "OR", parsed[1]["operator"])
}

func TestSelectSounds(t *testing.T) {
	android, ios := selectSounds(map[string]any{"notification_type": TypeSuitableJob, "immediate": true})
	assert.Equal(t, "emergency_booking", android)
	assert.Equal(t, "emergency_booking.mp3", ios)

	android, ios = selectSounds(map[string]any{"notification_type": TypeSuitableJob, "immediate": false})
	assert.Equal(t, "normal_booking", android)
	assert.Equal(t, "normal_booking.mp3", ios)

	android, ios = selectSounds(map[string]any{"notification_type": TypeJobAccepted})
	assert.Equal(t, "default", android)
	assert.Equal(t, "default", ios)
}

func TestPushToRecipientsSuppression(t *testing.T) {
	push := &fakePush{}
	d := newTestDispatcher(push, &fakeSMS{}, daytime)

	recipients := []Recipient{
		{ID: "u1", Email: "u1@example.com"},
		{ID: "u2", Email: "u2@example.com", NotGetNotification: true},
		{ID: "u3", Email: "u3@example.com", NotGetEmergency: true},
	}

	data := map[string]any{"notification_type": TypeSuitableJob, "immediate": true}
	d.PushToRecipients(context.Background(), recipients, "job-1", data, "msg", true)

	require.Len(t, push.payloads, 1)

	var fields struct {
		Tags []map[string]string `json:"tags"`
	}
	require.NoError(t, json.Unmarshal(push.payloads[0], &fields))
	require.Len(t, fields.Tags, 1)
	assert.Equal(t, "u1@example.com", fields.Tags[0]["value"])
}

func TestPushToRecipientsNightDelay(t *testing.T) {
	push := &fakePush{}
	d := newTestDispatcher(push, &fakeSMS{}, night)

	recipients := []Recipient{
		{ID: "u1", Email: "u1@example.com"},
		{ID: "u2", Email: "u2@example.com", NotGetNighttime: true},
	}

	data := map[string]any{"notification_type": TypeSuitableJob, "immediate": false}
	d.PushToRecipients(context.Background(), recipients, "job-1", data, "msg", false)

	// Two disjoint batches: one immediate, one scheduled for business hours.
	require.Len(t, push.payloads, 2)

	var direct, delayed struct {
		Tags      []map[string]string `json:"tags"`
		SendAfter string              `json:"send_after"`
	}
	require.NoError(t, json.Unmarshal(push.payloads[0], &direct))
	require.NoError(t, json.Unmarshal(push.payloads[1], &delayed))

	assert.Empty(t, direct.SendAfter)
	assert.Equal(t, "u1@example.com", direct.Tags[0]["value"])

	assert.Equal(t, "u2@example.com", delayed.Tags[0]["value"])
	sendAfter, err := time.Parse(time.RFC3339, delayed.SendAfter)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC), sendAfter)
}

func TestPushToRecipientsDaytimeIgnoresNightOptOut(t *testing.T) {
	push := &fakePush{}
	d := newTestDispatcher(push, &fakeSMS{}, daytime)

	recipients := []Recipient{{ID: "u1", Email: "u1@example.com", NotGetNighttime: true}}
	d.PushToRecipients(context.Background(), recipients, "job-1", map[string]any{"notification_type": TypeJobAccepted}, "msg", false)

	require.Len(t, push.payloads, 1)
	var fields struct {
		SendAfter string `json:"send_after"`
	}
	require.NoError(t, json.Unmarshal(push.payloads[0], &fields))
	assert.Empty(t, fields.SendAfter)
}

func TestPushDeliveryFailureDoesNotPropagate(t *testing.T) {
	push := &fakePush{err: errors.New("transport down")}
	d := newTestDispatcher(push, &fakeSMS{}, daytime)

	recipients := []Recipient{{ID: "u1", Email: "u1@example.com"}}
	// Must not panic or surface the error.
	d.PushToRecipients(context.Background(), recipients, "job-1", map[string]any{"notification_type": TypeJobAccepted}, "msg", false)

	assert.Len(t, push.payloads, 1)
}

func TestSMSToTranslatorsChunksAndCounts(t *testing.T) {
	sms := &fakeSMS{}
	d := newTestDispatcher(&fakePush{}, sms, daytime)

	translators := make([]domain.Translator, 120)
	for i := range translators {
		translators[i] = domain.Translator{
			User: domain.User{
				ID:     fmt.Sprintf("tr-%d", i),
				Email:  fmt.Sprintf("tr-%d@example.com", i),
				Mobile: fmt.Sprintf("+4670%07d", i),
			},
		}
	}

	count := d.SMSToTranslators(context.Background(), translators, "job-1", "New booking")
	assert.Equal(t, 120, count)
	assert.Len(t, sms.sent, 120)
}

func TestSMSToTranslatorsCountsTargetedNotDelivered(t *testing.T) {
	sms := &fakeSMS{err: errors.New("gateway error")}
	d := newTestDispatcher(&fakePush{}, sms, daytime)

	translators := []domain.Translator{
		{User: domain.User{ID: "tr-1", Mobile: "+46701", Email: "a@example.com"}},
		{User: domain.User{ID: "tr-2", Mobile: "+46702", Email: "b@example.com"}},
	}

	count := d.SMSToTranslators(context.Background(), translators, "job-1", "New booking")
	assert.Equal(t, 2, count)
}

func TestHoursMins(t *testing.T) {
	assert.Equal(t, "30min", HoursMins(30))
	assert.Equal(t, "1h", HoursMins(60))
	assert.Equal(t, "02h 30min", HoursMins(150))
}

func TestJobPayload(t *testing.T) {
	due := time.Date(2026, 4, 1, 10, 30, 0, 0, time.UTC)
	job := &domain.Job{
		ID:                "job-1",
		FromLanguageID:    5,
		Status:            domain.StatusPending,
		Due:               due,
		Duration:          30,
		Gender:            domain.GenderFemale,
		Certified:         domain.CertifiedYes,
		JobType:           domain.JobTypePaid,
		CustomerPhoneType: true,
		Town:              "Stockholm",
	}

	data := JobPayload(job, &domain.CustomerProfile{CustomerType: "paid", Town: "Solna"})

	assert.Equal(t, "job-1", data["job_id"])
	assert.Equal(t, "pending", data["status"])
	assert.Equal(t, "2026-04-01", data["due_date"])
	assert.Equal(t, "10:30:00", data["due_time"])
	assert.Equal(t, "Solna", data["customer_town"])
	assert.Equal(t, []string{"Woman", "Certified interpreter"}, data["job_for"])
}
