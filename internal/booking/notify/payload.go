package notify

import (
	"fmt"
	"time"

	"github.com/nordtolk/booking-be/internal/booking/domain"
)

const dueTimeLayout = "2006-01-02 15:04:05"

// JobPayload flattens a job into the structured push payload sent alongside
// every notification about it.
func JobPayload(job *domain.Job, customer *domain.CustomerProfile) map[string]any {
	due := job.Due.Format(dueTimeLayout)

	data := map[string]any{
		"job_id":                 job.ID,
		"from_language_id":       job.FromLanguageID,
		"immediate":              job.Immediate,
		"duration":               job.Duration,
		"status":                 string(job.Status),
		"gender":                 job.Gender,
		"certified":              job.Certified,
		"due":                    due,
		"job_type":               job.JobType,
		"customer_phone_type":    job.CustomerPhoneType,
		"customer_physical_type": job.CustomerPhysicalType,
		"customer_town":          job.Town,
		"due_date":               job.Due.Format("2006-01-02"),
		"due_time":               job.Due.Format("15:04:05"),
		"job_for":                jobForLabels(job),
	}

	if customer != nil {
		data["customer_type"] = customer.CustomerType
		if customer.Town != "" {
			data["customer_town"] = customer.Town
		}
	}

	return data
}

// jobForLabels renders the gender and certification preferences as the
// audience labels shown in translator apps.
func jobForLabels(job *domain.Job) []string {
	var labels []string

	switch job.Gender {
	case domain.GenderMale:
		labels = append(labels, "Man")
	case domain.GenderFemale:
		labels = append(labels, "Woman")
	}

	switch job.Certified {
	case domain.CertifiedBoth:
		labels = append(labels, "Approved interpreter", "Certified interpreter")
	case domain.CertifiedYes:
		labels = append(labels, "Certified interpreter")
	case domain.CertifiedLaw, domain.CertifiedNLaw:
		labels = append(labels, "Law interpreter")
	case domain.CertifiedHealth, domain.CertifiedNHealth:
		labels = append(labels, "Health care interpreter")
	case "":
	default:
		labels = append(labels, job.Certified)
	}

	return labels
}

// SuitableJobMessage is the push text for a new matching booking. Immediate
// jobs use the emergency variant without the due timestamp.
func SuitableJobMessage(language string, duration int, due time.Time, immediate bool) string {
	if immediate {
		return fmt.Sprintf("New emergency booking for %s interpreter, %dmin", language, duration)
	}
	return fmt.Sprintf("New booking for %s interpreter, %dmin, %s", language, duration, due.Format(dueTimeLayout))
}

// AcceptedMessage is the push text telling a customer their booking was
// accepted by an interpreter.
func AcceptedMessage(language string, duration int, due time.Time) string {
	return fmt.Sprintf("Your booking for a %s interpreter, %dmin, %s has been accepted. Open the app for details.",
		language, duration, due.Format(dueTimeLayout))
}

// CancelledByCustomerMessage is the push text sent to the assigned translator
// when the customer withdraws.
func CancelledByCustomerMessage(language string, duration int, due time.Time) string {
	return fmt.Sprintf("The customer has cancelled the booking for a %s interpreter, %dmin, %s. Check your bookings for details.",
		language, duration, due.Format(dueTimeLayout))
}

// CancelledByTranslatorMessage is the push text sent to the customer when
// their translator withdraws and a replacement search starts.
func CancelledByTranslatorMessage(language string, duration int, due time.Time) string {
	return fmt.Sprintf("Your %s interpreter, %dmin, %s has cancelled. We are looking for a replacement.",
		language, duration, due.Format(dueTimeLayout))
}

// ExpiredMessage is the push text telling a customer no interpreter accepted
// their booking before it expired.
func ExpiredMessage(language string, duration int, due time.Time) string {
	return fmt.Sprintf("Unfortunately no interpreter accepted your booking (%s, %dmin, %s). Please try booking a new time.",
		language, duration, due.Format(dueTimeLayout))
}

// SessionEndedMessage tells the party that did not end the session that it
// has been completed.
func SessionEndedMessage(language string, duration int, due time.Time) string {
	return fmt.Sprintf("Your %s interpretation session, %dmin, %s has ended. Open the app for details.",
		language, duration, due.Format(dueTimeLayout))
}

// SessionStartRemindMessage reminds either party about an upcoming session.
// Physical sessions mention the town.
func SessionStartRemindMessage(job *domain.Job, language string) string {
	if job.CustomerPhysicalType {
		return fmt.Sprintf("Reminder: you have a %s interpretation (on site in %s) at %s on %s lasting %dmin.",
			language, job.Town, job.Due.Format("15:04"), job.Due.Format("2006-01-02"), job.Duration)
	}
	return fmt.Sprintf("Reminder: you have a %s interpretation (phone) at %s on %s lasting %dmin.",
		language, job.Due.Format("15:04"), job.Due.Format("2006-01-02"), job.Duration)
}

// SMSJobMessage is the text-message variant of the new-booking announcement.
// Physical-only jobs get the on-site template with the town.
func SMSJobMessage(job *domain.Job, town string) string {
	date := job.Due.Format("02.01.2006")
	clock := job.Due.Format("15:04")
	duration := HoursMins(job.Duration)

	if job.PhysicalOnly() {
		return fmt.Sprintf("New on-site interpretation %s at %s in %s, %s. Booking ref %s.",
			date, clock, town, duration, job.ID)
	}
	return fmt.Sprintf("New phone interpretation %s at %s, %s. Booking ref %s.",
		date, clock, duration, job.ID)
}

// HoursMins renders a duration in minutes the way bookings display it:
// "30min", "1h", "02h 30min".
func HoursMins(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dmin", minutes)
	}
	if minutes == 60 {
		return "1h"
	}
	return fmt.Sprintf("%02dh %02dmin", minutes/60, minutes%60)
}
