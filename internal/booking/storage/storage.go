// Package storage is the PostgreSQL persistence layer behind the lifecycle
// engine and the matcher. Assignment rows are append-only; job claiming is a
// conditional update so concurrent accepts resolve inside the database.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/nordtolk/booking-be/internal/booking/domain"
	"github.com/nordtolk/booking-be/shared/postgresql"
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

const jobColumns = `
	job_id, user_id, from_language_id, status, immediate, due, duration,
	gender, certified, job_type, customer_phone_type, customer_physical_type,
	town, address, instructions, user_email, reference, admin_comments,
	flagged, manually_handled, by_admin, will_expire_at, withdraw_at, end_at,
	session_time, created_at, updated_at
`

func (s *Storage) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	var job domain.Job
	query := `SELECT` + jobColumns + `FROM jobs WHERE job_id = $1`

	err := s.db.GetContext(ctx, &job, query, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

func (s *Storage) CreateJob(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES (
			:job_id, :user_id, :from_language_id, :status, :immediate, :due, :duration,
			:gender, :certified, :job_type, :customer_phone_type, :customer_physical_type,
			:town, :address, :instructions, :user_email, :reference, :admin_comments,
			:flagged, :manually_handled, :by_admin, :will_expire_at, :withdraw_at, :end_at,
			:session_time, :created_at, :updated_at
		)
	`

	if _, err := s.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

func (s *Storage) UpdateJob(ctx context.Context, job *domain.Job) error {
	query := `
		UPDATE jobs SET
			from_language_id = :from_language_id,
			status = :status,
			due = :due,
			duration = :duration,
			gender = :gender,
			certified = :certified,
			customer_phone_type = :customer_phone_type,
			customer_physical_type = :customer_physical_type,
			town = :town,
			address = :address,
			instructions = :instructions,
			user_email = :user_email,
			reference = :reference,
			admin_comments = :admin_comments,
			flagged = :flagged,
			manually_handled = :manually_handled,
			will_expire_at = :will_expire_at,
			withdraw_at = :withdraw_at,
			end_at = :end_at,
			session_time = :session_time,
			created_at = :created_at,
			updated_at = :updated_at
		WHERE job_id = :job_id
	`

	res, err := s.db.NamedExecContext(ctx, query, job)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return domain.ErrJobNotFound
	}

	return nil
}

// AcceptJob claims a pending job for a translator. The pending check, the
// conflicting-booking check and the assignment insert run in one transaction;
// the conditional UPDATE is what arbitrates concurrent accepts.
func (s *Storage) AcceptJob(ctx context.Context, jobID, translatorID string, due, now time.Time) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var booked bool
	conflictQuery := `
		SELECT EXISTS (
			SELECT 1
			FROM job_translator rel
			JOIN jobs j ON j.job_id = rel.job_id
			WHERE rel.user_id = $1
			  AND rel.cancel_at IS NULL
			  AND rel.completed_at IS NULL
			  AND j.due = $2
		)
	`
	if err := tx.GetContext(ctx, &booked, conflictQuery, translatorID, due); err != nil {
		return fmt.Errorf("failed to check booking conflict: %w", err)
	}
	if booked {
		return domain.ErrTranslatorBooked
	}

	claimQuery := `
		UPDATE jobs
		SET status = $1, updated_at = $2
		WHERE job_id = $3 AND status = $4
	`
	res, err := tx.ExecContext(ctx, claimQuery, domain.StatusAssigned, now, jobID, domain.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to claim job: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return domain.ErrJobAlreadyTaken
	}

	insertQuery := `
		INSERT INTO job_translator (rel_id, job_id, user_id, created_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := tx.ExecContext(ctx, insertQuery, uuid.New().String(), jobID, translatorID, now); err != nil {
		return fmt.Errorf("failed to create assignment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

const assignmentColumns = `
	rel_id, job_id, user_id, cancel_at, completed_at,
	COALESCE(completed_by, '') AS completed_by, created_at
`

func (s *Storage) ActiveAssignment(ctx context.Context, jobID string) (*domain.Assignment, error) {
	var rel domain.Assignment
	query := `
		SELECT` + assignmentColumns + `
		FROM job_translator
		WHERE job_id = $1 AND cancel_at IS NULL AND completed_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`

	err := s.db.GetContext(ctx, &rel, query, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active assignment: %w", err)
	}

	return &rel, nil
}

func (s *Storage) LatestClosedAssignment(ctx context.Context, jobID string) (*domain.Assignment, error) {
	var rel domain.Assignment
	query := `
		SELECT` + assignmentColumns + `
		FROM job_translator
		WHERE job_id = $1 AND (cancel_at IS NOT NULL OR completed_at IS NOT NULL)
		ORDER BY created_at DESC
		LIMIT 1
	`

	err := s.db.GetContext(ctx, &rel, query, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get closed assignment: %w", err)
	}

	return &rel, nil
}

func (s *Storage) CreateAssignment(ctx context.Context, rel *domain.Assignment) error {
	query := `
		INSERT INTO job_translator (rel_id, job_id, user_id, cancel_at, completed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.ExecContext(ctx, query,
		rel.ID, rel.JobID, rel.UserID, rel.CancelAt, rel.CompletedAt, rel.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create assignment: %w", err)
	}

	return nil
}

func (s *Storage) CancelAssignment(ctx context.Context, relID string, cancelAt time.Time) error {
	query := `
		UPDATE job_translator
		SET cancel_at = $1
		WHERE rel_id = $2 AND cancel_at IS NULL AND completed_at IS NULL
	`

	if _, err := s.db.ExecContext(ctx, query, cancelAt, relID); err != nil {
		return fmt.Errorf("failed to cancel assignment: %w", err)
	}

	return nil
}

func (s *Storage) CompleteAssignment(ctx context.Context, relID string, completedAt time.Time, completedBy string) error {
	query := `
		UPDATE job_translator
		SET completed_at = $1, completed_by = $2
		WHERE rel_id = $3 AND completed_at IS NULL
	`

	if _, err := s.db.ExecContext(ctx, query, completedAt, completedBy, relID); err != nil {
		return fmt.Errorf("failed to complete assignment: %w", err)
	}

	return nil
}

func (s *Storage) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	var user domain.User
	query := `
		SELECT user_id, name, email, mobile, user_type, active
		FROM users
		WHERE user_id = $1
	`

	err := s.db.GetContext(ctx, &user, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	query := `
		SELECT user_id, name, email, mobile, user_type, active
		FROM users
		WHERE LOWER(email) = LOWER($1)
	`

	err := s.db.GetContext(ctx, &user, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return &user, nil
}

// translatorRow is the join row for a translator with their spoken languages
// aggregated into an array.
type translatorRow struct {
	domain.User
	TranslatorType     string        `db:"translator_type"`
	TranslatorLevel    string        `db:"translator_level"`
	ProfileGender      string        `db:"profile_gender"`
	ProfileTown        string        `db:"profile_town"`
	NotGetNotification bool          `db:"not_get_notification"`
	NotGetEmergency    bool          `db:"not_get_emergency"`
	NotGetNighttime    bool          `db:"not_get_nighttime"`
	Languages          pq.Int64Array `db:"languages"`
}

func (r *translatorRow) translator() domain.Translator {
	return domain.Translator{
		User: r.User,
		TranslatorProfile: domain.TranslatorProfile{
			UserID:             r.User.ID,
			TranslatorType:     r.TranslatorType,
			TranslatorLevel:    r.TranslatorLevel,
			Gender:             r.ProfileGender,
			Town:               r.ProfileTown,
			Languages:          r.Languages,
			NotGetNotification: r.NotGetNotification,
			NotGetEmergency:    r.NotGetEmergency,
			NotGetNighttime:    r.NotGetNighttime,
		},
	}
}

const translatorQuery = `
	SELECT
		u.user_id, u.name, u.email, u.mobile, u.user_type, u.active,
		p.translator_type, p.translator_level,
		p.gender AS profile_gender, p.town AS profile_town,
		p.not_get_notification, p.not_get_emergency, p.not_get_nighttime,
		COALESCE(
			(SELECT array_agg(tl.language_id)
			 FROM translator_languages tl
			 WHERE tl.user_id = u.user_id),
			'{}'
		) AS languages
	FROM users u
	JOIN translator_profiles p ON p.user_id = u.user_id
`

func (s *Storage) GetTranslator(ctx context.Context, userID string) (*domain.Translator, error) {
	var row translatorRow
	query := translatorQuery + ` WHERE u.user_id = $1`

	err := s.db.GetContext(ctx, &row, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get translator: %w", err)
	}

	tr := row.translator()
	return &tr, nil
}

func (s *Storage) ActiveTranslatorsByLanguage(ctx context.Context, languageID int64) ([]domain.Translator, error) {
	var rows []translatorRow
	query := translatorQuery + `
		WHERE u.active
		  AND EXISTS (
			SELECT 1 FROM translator_languages tl
			WHERE tl.user_id = u.user_id AND tl.language_id = $1
		  )
	`

	if err := s.db.SelectContext(ctx, &rows, query, languageID); err != nil {
		return nil, fmt.Errorf("failed to list translators by language: %w", err)
	}

	translators := make([]domain.Translator, 0, len(rows))
	for i := range rows {
		translators = append(translators, rows[i].translator())
	}

	return translators, nil
}

func (s *Storage) BlacklistedTranslators(ctx context.Context, ownerID string) ([]string, error) {
	var ids []string
	query := `SELECT translator_id FROM users_blacklist WHERE user_id = $1`

	if err := s.db.SelectContext(ctx, &ids, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list blacklisted translators: %w", err)
	}

	return ids, nil
}

func (s *Storage) CustomerProfile(ctx context.Context, userID string) (*domain.CustomerProfile, error) {
	var profile domain.CustomerProfile
	query := `
		SELECT user_id, consumer_type, customer_type, town, address, instructions
		FROM customer_profiles
		WHERE user_id = $1
	`

	err := s.db.GetContext(ctx, &profile, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer profile: %w", err)
	}

	return &profile, nil
}

func (s *Storage) HasActiveBookingAt(ctx context.Context, translatorID string, due time.Time) (bool, error) {
	var booked bool
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM job_translator rel
			JOIN jobs j ON j.job_id = rel.job_id
			WHERE rel.user_id = $1
			  AND rel.cancel_at IS NULL
			  AND rel.completed_at IS NULL
			  AND j.due = $2
		)
	`

	if err := s.db.GetContext(ctx, &booked, query, translatorID, due); err != nil {
		return false, fmt.Errorf("failed to check booking conflict: %w", err)
	}

	return booked, nil
}

func (s *Storage) PendingJobsByLanguages(ctx context.Context, languageIDs []int64, jobType string) ([]domain.Job, error) {
	var jobs []domain.Job
	query := `
		SELECT` + jobColumns + `
		FROM jobs
		WHERE status = $1
		  AND job_type = $2
		  AND from_language_id = ANY($3)
		ORDER BY due ASC
	`

	err := s.db.SelectContext(ctx, &jobs, query, domain.StatusPending, jobType, pq.Array(languageIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending jobs: %w", err)
	}

	return jobs, nil
}

func (s *Storage) LanguageName(ctx context.Context, languageID int64) (string, error) {
	var name string
	query := `SELECT name FROM languages WHERE language_id = $1`

	err := s.db.GetContext(ctx, &name, query, languageID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("language %d not found", languageID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get language: %w", err)
	}

	return name, nil
}

// ExpiredPendingJobs lists pending jobs whose expiry deadline has passed, for
// the timeout sweep.
func (s *Storage) ExpiredPendingJobs(ctx context.Context, now time.Time) ([]domain.Job, error) {
	var jobs []domain.Job
	query := `
		SELECT` + jobColumns + `
		FROM jobs
		WHERE status = $1 AND will_expire_at <= $2
		ORDER BY will_expire_at ASC
	`

	if err := s.db.SelectContext(ctx, &jobs, query, domain.StatusPending, now); err != nil {
		return nil, fmt.Errorf("failed to list expired jobs: %w", err)
	}

	return jobs, nil
}

// MarkTimedOut expires a pending job; the conditional status guard keeps the
// sweep from clobbering a concurrent accept.
func (s *Storage) MarkTimedOut(ctx context.Context, jobID string, now time.Time) (bool, error) {
	query := `
		UPDATE jobs
		SET status = $1, updated_at = $2
		WHERE job_id = $3 AND status = $4
	`

	res, err := s.db.ExecContext(ctx, query, domain.StatusTimedout, now, jobID, domain.StatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to expire job: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return rows > 0, nil
}
