// Package notify fans push and SMS notifications out to sets of recipients.
// It owns the per-recipient suppression and night-time delay policy, sound
// selection and the tag-expression addressing format of the push provider.
// Individual delivery failures are logged and never abort a batch.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nordtolk/booking-be/internal/booking/domain"
	"github.com/nordtolk/booking-be/internal/booking/schedule"
)

// Notification types carried in push payloads.
const (
	TypeSuitableJob        = "suitable_job"
	TypeJobAccepted        = "job_accepted"
	TypeJobCancelled       = "job_cancelled"
	TypeJobExpired         = "job_expired"
	TypeSessionStartRemind = "session_start_remind"
	TypeSessionEnded       = "session_ended"
)

// Sound assets picked per notification type.
const (
	soundNormalBooking    = "normal_booking"
	soundEmergencyBooking = "emergency_booking"
	soundDefault          = "default"
)

// PushTransport delivers one prepared push payload. Errors are logged by the
// dispatcher, never retried.
type PushTransport interface {
	Deliver(ctx context.Context, payload []byte) ([]byte, error)
}

// SMSTransport sends one text message and returns the provider status.
type SMSTransport interface {
	Send(ctx context.Context, from, to, body string) (string, error)
}

// Recipient is one push target with its delivery preferences.
type Recipient struct {
	ID                 string
	Email              string
	NotGetNotification bool
	NotGetEmergency    bool
	NotGetNighttime    bool
}

// RecipientFromUser builds a Recipient with default preferences (customers
// have no translator opt-outs).
func RecipientFromUser(u *domain.User) Recipient {
	return Recipient{ID: u.ID, Email: u.Email}
}

// RecipientFromTranslator builds a Recipient carrying the translator's
// opt-out preferences.
func RecipientFromTranslator(tr *domain.Translator) Recipient {
	return Recipient{
		ID:                 tr.User.ID,
		Email:              tr.User.Email,
		NotGetNotification: tr.NotGetNotification,
		NotGetEmergency:    tr.NotGetEmergency,
		NotGetNighttime:    tr.NotGetNighttime,
	}
}

// Dispatcher fans notifications out over the injected transports.
type Dispatcher struct {
	push    PushTransport
	sms     SMSTransport
	clock   schedule.Clock
	logger  *slog.Logger
	appID   string
	title   string
	smsFrom string
}

// smsChunkSize bounds the number of recipients per SMS batch.
const smsChunkSize = 50

// New creates a Dispatcher.
func New(push PushTransport, sms SMSTransport, clock schedule.Clock, logger *slog.Logger, appID, title, smsFrom string) *Dispatcher {
	return &Dispatcher{
		push:    push,
		sms:     sms,
		clock:   clock,
		logger:  logger,
		appID:   appID,
		title:   title,
		smsFrom: smsFrom,
	}
}

// pushFields is the provider payload. Field names and shape are part of the
// external delivery contract.
type pushFields struct {
	AppID         string            `json:"app_id"`
	Tags          json.RawMessage   `json:"tags"`
	Data          map[string]any    `json:"data"`
	Title         map[string]string `json:"title"`
	Contents      map[string]string `json:"contents"`
	IOSBadgeType  string            `json:"ios_badgeType"`
	IOSBadgeCount int               `json:"ios_badgeCount"`
	AndroidSound  string            `json:"android_sound"`
	IOSSound      string            `json:"ios_sound"`
	SendAfter     string            `json:"send_after,omitempty"`
}

// UserTags builds the OR-of-equality tag expression addressing the given
// recipients by lowercased email: a JSON array of {key,relation,value}
// objects joined by {"operator":"OR"} elements.
func UserTags(recipients []Recipient) (json.RawMessage, error) {
	tags := make([]any, 0, 2*len(recipients))
	for i, r := range recipients {
		if i > 0 {
			tags = append(tags, map[string]string{"operator": "OR"})
		}
		tags = append(tags, map[string]string{
			"key":      "email",
			"relation": "=",
			"value":    strings.ToLower(r.Email),
		})
	}

	raw, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal user tags: %w", err)
	}
	return raw, nil
}

// selectSounds picks the android/ios sound pair for a payload. Suitable-job
// notifications distinguish urgent (immediate) from normal bookings; every
// other type uses the default sound.
func selectSounds(data map[string]any) (string, string) {
	if data["notification_type"] == TypeSuitableJob {
		if data["immediate"] == true {
			return soundEmergencyBooking, soundEmergencyBooking + ".mp3"
		}
		return soundNormalBooking, soundNormalBooking + ".mp3"
	}
	return soundDefault, soundDefault
}

// PushToRecipients delivers a push to the recipients, applying suppression
// and delay policy. Recipients who opted into night-time deferral are sent as
// a separate delayed batch with send_after set to the next business time.
// Delivery failures do not propagate.
func (d *Dispatcher) PushToRecipients(ctx context.Context, recipients []Recipient, jobID string, data map[string]any, message string, immediate bool) {
	now := d.clock.Now()
	night := schedule.IsNightTime(now)

	var direct, delayed []Recipient
	for _, r := range recipients {
		if r.NotGetNotification {
			continue
		}
		if immediate && r.NotGetEmergency {
			continue
		}
		if night && r.NotGetNighttime {
			delayed = append(delayed, r)
			continue
		}
		direct = append(direct, r)
	}

	d.logger.Info("Push fan-out",
		slog.String("job_id", jobID),
		slog.Int("direct", len(direct)),
		slog.Int("delayed", len(delayed)),
	)

	d.deliver(ctx, direct, jobID, data, message, time.Time{})
	d.deliver(ctx, delayed, jobID, data, message, schedule.NextBusinessTime(now))
}

// deliver sends one batch. A zero sendAfter means immediate delivery.
func (d *Dispatcher) deliver(ctx context.Context, recipients []Recipient, jobID string, data map[string]any, message string, sendAfter time.Time) {
	if len(recipients) == 0 {
		return
	}

	tags, err := UserTags(recipients)
	if err != nil {
		d.logger.Error("Failed to build push tags",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return
	}

	payload := map[string]any{"job_id": jobID}
	for k, v := range data {
		payload[k] = v
	}

	androidSound, iosSound := selectSounds(data)

	fields := pushFields{
		AppID:         d.appID,
		Tags:          tags,
		Data:          payload,
		Title:         map[string]string{"en": d.title},
		Contents:      map[string]string{"en": message},
		IOSBadgeType:  "Increase",
		IOSBadgeCount: 1,
		AndroidSound:  androidSound,
		IOSSound:      iosSound,
	}
	if !sendAfter.IsZero() {
		fields.SendAfter = sendAfter.Format(time.RFC3339)
	}

	body, err := json.Marshal(fields)
	if err != nil {
		d.logger.Error("Failed to marshal push payload",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return
	}

	resp, err := d.push.Deliver(ctx, body)
	if err != nil {
		d.logger.Error("Push delivery failed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return
	}

	d.logger.Info("Push sent",
		slog.String("job_id", jobID),
		slog.Int("recipients", len(recipients)),
		slog.String("response", string(resp)),
	)
}

// SMSToTranslators sends the message to every translator in chunks, logging
// each delivery status individually. The return value is the number of
// translators targeted, not the number successfully delivered.
func (d *Dispatcher) SMSToTranslators(ctx context.Context, translators []domain.Translator, jobID, message string) int {
	for start := 0; start < len(translators); start += smsChunkSize {
		end := start + smsChunkSize
		if end > len(translators) {
			end = len(translators)
		}

		for _, tr := range translators[start:end] {
			status, err := d.sms.Send(ctx, d.smsFrom, tr.Mobile, message)
			if err != nil {
				d.logger.Error("SMS delivery failed",
					slog.String("job_id", jobID),
					slog.String("email", tr.Email),
					slog.String("mobile", tr.Mobile),
					slog.String("error", err.Error()),
				)
				continue
			}
			d.logger.Info("SMS sent",
				slog.String("job_id", jobID),
				slog.String("email", tr.Email),
				slog.String("mobile", tr.Mobile),
				slog.String("status", status),
			)
		}
	}

	return len(translators)
}
