// Package schedule holds the pure time-window rules of the booking lifecycle:
// expiry derivation, the 24-hour cancellation boundary and the night-time push
// delay window.
package schedule

import "time"

// ImmediateLeadTime is the fixed lead time applied to immediate jobs: an
// immediate booking is due this far from now.
const ImmediateLeadTime = 5 * time.Minute

// Night-time window and the business-hours reopening used for delayed pushes.
const (
	nightStartHour    = 22
	nightEndHour      = 7
	businessStartHour = 9
)

// Clock abstracts time.Now so the window rules are deterministic under test.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// WillExpireAt derives when an unaccepted job expires, from the distance
// between its creation and its due time:
//
//	<= 90 minutes  -> the due time itself
//	<= 24 hours    -> created + 90 minutes
//	<= 72 hours    -> created + 16 hours
//	otherwise      -> due - 48 hours
func WillExpireAt(due, createdAt time.Time) time.Time {
	diff := due.Sub(createdAt)

	switch {
	case diff <= 90*time.Minute:
		return due
	case diff <= 24*time.Hour:
		return createdAt.Add(90 * time.Minute)
	case diff <= 72*time.Hour:
		return createdAt.Add(16 * time.Hour)
	default:
		return due.Add(-48 * time.Hour)
	}
}

// IsWithin24Hours reports whether now is inside the 24-hour window before
// due. A customer cancelling at exactly 24h0m is still outside the window.
func IsWithin24Hours(due, now time.Time) bool {
	return due.Sub(now) < 24*time.Hour
}

// IsNightTime reports whether t falls in the night window during which pushes
// to opted-out translators are deferred.
func IsNightTime(t time.Time) bool {
	h := t.Hour()
	return h >= nightStartHour || h < nightEndHour
}

// NextBusinessTime returns the next business-hours instant at or after t,
// used as the send_after timestamp for delayed pushes.
func NextBusinessTime(t time.Time) time.Time {
	next := time.Date(t.Year(), t.Month(), t.Day(), businessStartHour, 0, 0, 0, t.Location())
	if !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
