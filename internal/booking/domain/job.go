package domain

import "time"

// Status is the lifecycle state of a job. The string values are part of the
// external contract (stored rows, API responses) and must not change.
type Status string

const (
	StatusPending              Status = "pending"
	StatusAssigned             Status = "assigned"
	StatusStarted              Status = "started"
	StatusCompleted            Status = "completed"
	StatusWithdrawBefore24     Status = "withdrawbefore24"
	StatusWithdrawAfter24      Status = "withdrawafter24"
	StatusTimedout             Status = "timedout"
	StatusNotCarriedOutByCustomer Status = "not_carried_out_customer"
)

// Job type values, derived from the requester's consumer type.
const (
	JobTypePaid   = "paid"
	JobTypeRWS    = "rws"
	JobTypeUnpaid = "unpaid"
)

// Gender preference values.
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// Certification preference values on a job. The n_law/n_health variants come
// from the admin form and map to the same level sets as law/health.
const (
	CertifiedNormal  = "normal"
	CertifiedYes     = "yes"
	CertifiedLaw     = "law"
	CertifiedNLaw    = "n_law"
	CertifiedHealth  = "health"
	CertifiedNHealth = "n_health"
	CertifiedBoth    = "both"
)

// Job is a single interpretation request. will_expire_at is always derived
// from (due, created_at); it is never accepted from a client.
type Job struct {
	ID                   string     `db:"job_id"`
	UserID               string     `db:"user_id"`
	FromLanguageID       int64      `db:"from_language_id"`
	Status               Status     `db:"status"`
	Immediate            bool       `db:"immediate"`
	Due                  time.Time  `db:"due"`
	Duration             int        `db:"duration"`
	Gender               string     `db:"gender"`
	Certified            string     `db:"certified"`
	JobType              string     `db:"job_type"`
	CustomerPhoneType    bool       `db:"customer_phone_type"`
	CustomerPhysicalType bool       `db:"customer_physical_type"`
	Town                 string     `db:"town"`
	Address              string     `db:"address"`
	Instructions         string     `db:"instructions"`
	UserEmail            string     `db:"user_email"`
	Reference            string     `db:"reference"`
	AdminComments        string     `db:"admin_comments"`
	Flagged              bool       `db:"flagged"`
	ManuallyHandled      bool       `db:"manually_handled"`
	ByAdmin              bool       `db:"by_admin"`
	WillExpireAt         time.Time  `db:"will_expire_at"`
	WithdrawAt           *time.Time `db:"withdraw_at"`
	EndAt                *time.Time `db:"end_at"`
	SessionTime          string     `db:"session_time"`
	CreatedAt            time.Time  `db:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at"`
}

// PhysicalOnly reports whether the job requires physical presence with no
// phone fallback; only these jobs are subject to the town-matching gate.
func (j *Job) PhysicalOnly() bool {
	return j.CustomerPhysicalType && !j.CustomerPhoneType
}

// Terminal reports whether the status is an end state of the lifecycle.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusWithdrawBefore24, StatusWithdrawAfter24,
		StatusTimedout, StatusNotCarriedOutByCustomer:
		return true
	}
	return false
}

// Assignment links a job to the translator currently or previously
// responsible for it. Rows are append-only: once cancel_at or completed_at is
// stamped the row is never updated again; any further change creates a new row.
type Assignment struct {
	ID          string     `db:"rel_id"`
	JobID       string     `db:"job_id"`
	UserID      string     `db:"user_id"`
	CancelAt    *time.Time `db:"cancel_at"`
	CompletedAt *time.Time `db:"completed_at"`
	CompletedBy string     `db:"completed_by"`
	CreatedAt   time.Time  `db:"created_at"`
}
