package dto

import (
	"time"

	"github.com/nordtolk/booking-be/internal/booking/domain"
)

type CreateBookingRequest struct {
	UserID               string `json:"user_id" binding:"required"`
	FromLanguageID       int64  `json:"from_language_id"`
	Immediate            bool   `json:"immediate"`
	DueDate              string `json:"due_date"`
	DueTime              string `json:"due_time"`
	Duration             int    `json:"duration"`
	CustomerPhoneType    bool   `json:"customer_phone_type"`
	CustomerPhysicalType bool   `json:"customer_physical_type"`
	Gender               string `json:"gender"`
	Certified            string `json:"certified"`
	ByAdmin              bool   `json:"by_admin"`
}

type ContactRequest struct {
	UserEmail    string `json:"user_email"`
	Reference    string `json:"reference"`
	Address      string `json:"address"`
	Instructions string `json:"instructions"`
	Town         string `json:"town"`
}

type AcceptRequest struct {
	TranslatorID string `json:"translator_id" binding:"required"`
}

type ActorRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type UpdateBookingRequest struct {
	Due             string `json:"due"`
	FromLanguageID  int64  `json:"from_language_id"`
	Status          string `json:"status"`
	AdminComments   string `json:"admin_comments"`
	SessionTime     string `json:"session_time"`
	Reference       string `json:"reference"`
	TranslatorID    string `json:"translator_id"`
	TranslatorEmail string `json:"translator_email"`
}

type BookingDTO struct {
	JobID                string `json:"job_id"`
	UserID               string `json:"user_id"`
	FromLanguageID       int64  `json:"from_language_id"`
	Status               string `json:"status"`
	Immediate            bool   `json:"immediate"`
	Due                  string `json:"due"`
	Duration             int    `json:"duration"`
	Gender               string `json:"gender,omitempty"`
	Certified            string `json:"certified,omitempty"`
	JobType              string `json:"job_type"`
	CustomerPhoneType    bool   `json:"customer_phone_type"`
	CustomerPhysicalType bool   `json:"customer_physical_type"`
	Town                 string `json:"town,omitempty"`
	Address              string `json:"address,omitempty"`
	Instructions         string `json:"instructions,omitempty"`
	UserEmail            string `json:"user_email,omitempty"`
	Reference            string `json:"reference,omitempty"`
	AdminComments        string `json:"admin_comments,omitempty"`
	WillExpireAt         string `json:"will_expire_at"`
	WithdrawAt           string `json:"withdraw_at,omitempty"`
	EndAt                string `json:"end_at,omitempty"`
	SessionTime          string `json:"session_time,omitempty"`
	CreatedAt            string `json:"created_at"`
	UpdatedAt            string `json:"updated_at"`
}

const dueLayout = "2006-01-02 15:04:05"

// FromJob flattens a job for API responses. Due keeps the external
// date-time format; audit timestamps are RFC3339.
func FromJob(job *domain.Job) BookingDTO {
	d := BookingDTO{
		JobID:                job.ID,
		UserID:               job.UserID,
		FromLanguageID:       job.FromLanguageID,
		Status:               string(job.Status),
		Immediate:            job.Immediate,
		Due:                  job.Due.Format(dueLayout),
		Duration:             job.Duration,
		Gender:               job.Gender,
		Certified:            job.Certified,
		JobType:              job.JobType,
		CustomerPhoneType:    job.CustomerPhoneType,
		CustomerPhysicalType: job.CustomerPhysicalType,
		Town:                 job.Town,
		Address:              job.Address,
		Instructions:         job.Instructions,
		UserEmail:            job.UserEmail,
		Reference:            job.Reference,
		AdminComments:        job.AdminComments,
		WillExpireAt:         job.WillExpireAt.Format(dueLayout),
		SessionTime:          job.SessionTime,
		CreatedAt:            job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            job.UpdatedAt.Format(time.RFC3339),
	}

	if job.WithdrawAt != nil {
		d.WithdrawAt = job.WithdrawAt.Format(time.RFC3339)
	}
	if job.EndAt != nil {
		d.EndAt = job.EndAt.Format(time.RFC3339)
	}

	return d
}

type BookingListResponse struct {
	Bookings []BookingDTO `json:"bookings"`
}
