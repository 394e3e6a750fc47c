package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go-helpapply-automation/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	//ErrConflict means a record already exists for the same (job_url, email) pair
	ErrConflict = errors.New("application already exists")
	//ErrNotFound means no record matches the given id
	ErrNotFound = errors.New("application not found")
)

const applicationColumns = `id, job_url, job_title, company_name, job_id,
	name, surname, email, sex, birth_date, municipality, address, postal_code,
	phone, education, occupation, competence_area, cover_letter, cv_reference,
	accept_privacy, accept_marketing, accept_third_party, accept_data_bank,
	status, error_message, screenshot_path, created_at, started_at, completed_at,
	attempts, max_attempts`

type Repository struct {
	db *pgxpool.Pool
}

func ConnectDB(ctx context.Context, connString string) (*Repository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database url: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour

	// IMPORTANT: Supabase connection pooler (PgBouncer in Transaction mode)
	// does not support prepared statements easily. We MUST disable the statement cache.
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	// Ping to ensure connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	return &Repository{db: pool}, nil
}

func (r *Repository) Close() {
	if r.db != nil {
		r.db.Close()
	}
}

// EnsureSchema creates the applications and application_runs tables if missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS applications (
		id BIGSERIAL PRIMARY KEY,
		job_url TEXT NOT NULL,
		job_title TEXT,
		company_name TEXT,
		job_id BIGINT,
		name TEXT NOT NULL,
		surname TEXT NOT NULL,
		email TEXT NOT NULL,
		sex TEXT NOT NULL,
		birth_date TEXT NOT NULL,
		municipality TEXT NOT NULL,
		address TEXT,
		postal_code TEXT NOT NULL,
		phone TEXT NOT NULL,
		education TEXT NOT NULL,
		occupation TEXT NOT NULL,
		competence_area TEXT NOT NULL,
		cover_letter TEXT,
		cv_reference TEXT NOT NULL,
		accept_privacy BOOLEAN NOT NULL DEFAULT TRUE,
		accept_marketing BOOLEAN NOT NULL DEFAULT FALSE,
		accept_third_party BOOLEAN NOT NULL DEFAULT FALSE,
		accept_data_bank BOOLEAN NOT NULL DEFAULT FALSE,
		status TEXT NOT NULL DEFAULT 'pending',
		error_message TEXT,
		screenshot_path TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		started_at TIMESTAMPTZ,
		completed_at TIMESTAMPTZ,
		attempts INT NOT NULL DEFAULT 0,
		max_attempts INT NOT NULL DEFAULT 3,
		UNIQUE (job_url, email)
	);
	CREATE INDEX IF NOT EXISTS idx_applications_status ON applications (status);
	CREATE TABLE IF NOT EXISTS application_runs (
		id BIGSERIAL PRIMARY KEY,
		started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		finished_at TIMESTAMPTZ,
		total_processed INT NOT NULL DEFAULT 0,
		successful INT NOT NULL DEFAULT 0,
		failed INT NOT NULL DEFAULT 0,
		skipped INT NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'running'
	);`

	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// ---------------- APPLICATION OPERATIONS ----------------

// CreateApplication inserts a new pending application. A record already
// existing for the same (job_url, email) pair is a conflict, terminal or not:
// the pair must never be submitted twice.
func (r *Repository) CreateApplication(ctx context.Context, app *models.Application) (*models.Application, error) {
	existing, err := r.GetByJobAndEmail(ctx, app.JobURL, app.Email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w for %s with email %s", ErrConflict, app.JobURL, app.Email)
	}

	if app.MaxAttempts == 0 {
		app.MaxAttempts = models.DefaultMaxAttempts
	}

	query := `
		INSERT INTO applications (job_url, job_title, company_name, job_id,
			name, surname, email, sex, birth_date, municipality, address, postal_code,
			phone, education, occupation, competence_area, cover_letter, cv_reference,
			accept_privacy, accept_marketing, accept_third_party, accept_data_bank,
			status, max_attempts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24)
		RETURNING ` + applicationColumns

	row := r.db.QueryRow(ctx, query,
		app.JobURL, app.JobTitle, app.CompanyName, app.JobID,
		app.Name, app.Surname, app.Email, app.Sex, app.BirthDate,
		app.Municipality, app.Address, app.PostalCode, app.Phone,
		app.Education, app.Occupation, app.CompetenceArea, app.CoverLetter,
		app.CVReference, app.AcceptPrivacy, app.AcceptMarketing,
		app.AcceptThirdParty, app.AcceptDataBank, models.StatusPending,
		app.MaxAttempts)

	created, err := scanApplication(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}
	return created, nil
}

// GetByID retrieves an application by id
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`
	app, err := scanApplication(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get application by id: %w", err)
	}
	return app, nil
}

// GetByJobAndEmail retrieves an application by job URL and candidate email
func (r *Repository) GetByJobAndEmail(ctx context.Context, jobURL, email string) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE job_url = $1 AND email = $2`
	app, err := scanApplication(r.db.QueryRow(ctx, query, jobURL, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get application by job and email: %w", err)
	}
	return app, nil
}

// GetPending returns pending applications with attempts left, oldest first
func (r *Repository) GetPending(ctx context.Context, limit int) ([]*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications
		WHERE status = $1 AND attempts < max_attempts
		ORDER BY created_at ASC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, models.StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending applications: %w", err)
	}
	defer rows.Close()

	return collectApplications(rows)
}

// ListFilter narrows GetAll results.
type ListFilter struct {
	Status   models.ApplicationStatus
	Email    string
	Page     int
	PageSize int
}

// GetAll returns a filtered, paginated page of applications plus the total count
func (r *Repository) GetAll(ctx context.Context, f ListFilter) ([]*models.Application, int, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 20
	}

	where := make([]string, 0, 2)
	args := make([]interface{}, 0, 4)
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Email != "" {
		args = append(args, f.Email)
		where = append(where, fmt.Sprintf("email = $%d", len(args)))
	}

	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM applications"+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count applications: %w", err)
	}

	args = append(args, f.PageSize, (f.Page-1)*f.PageSize)
	query := fmt.Sprintf("SELECT %s FROM applications%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		applicationColumns, cond, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	apps, err := collectApplications(rows)
	if err != nil {
		return nil, 0, err
	}
	return apps, total, nil
}

// MarkProcessing flips the record to processing and burns one attempt.
// Persisted immediately so a crash mid-pipeline leaves an accurate count.
func (r *Repository) MarkProcessing(ctx context.Context, app *models.Application) error {
	query := `UPDATE applications
		SET status = $1, started_at = now(), attempts = attempts + 1
		WHERE id = $2
		RETURNING started_at, attempts`

	var startedAt time.Time
	if err := r.db.QueryRow(ctx, query, models.StatusProcessing, app.ID).Scan(&startedAt, &app.Attempts); err != nil {
		return fmt.Errorf("failed to mark application processing: %w", err)
	}
	app.Status = models.StatusProcessing
	app.StartedAt = &startedAt
	return nil
}

// Save persists the full mutable state of an application
func (r *Repository) Save(ctx context.Context, app *models.Application) error {
	query := `UPDATE applications
		SET job_title = $1, company_name = $2, status = $3, error_message = $4,
			screenshot_path = $5, started_at = $6, completed_at = $7, attempts = $8
		WHERE id = $9`

	_, err := r.db.Exec(ctx, query,
		app.JobTitle, app.CompanyName, app.Status, app.ErrorMessage,
		app.ScreenshotPath, app.StartedAt, app.CompletedAt, app.Attempts, app.ID)
	if err != nil {
		return fmt.Errorf("failed to save application: %w", err)
	}
	return nil
}

// MarkJobApplied flags the job as applied in the scraper jobs table, when the
// two services share a database. Best-effort: the table may not exist at all,
// so every failure is logged and swallowed.
func (r *Repository) MarkJobApplied(ctx context.Context, app *models.Application) {
	if app.JobID != nil {
		_, err := r.db.Exec(ctx, "UPDATE jobs SET applied = TRUE, applied_at = now() WHERE id = $1", *app.JobID)
		if err != nil {
			log.Printf("⚠️ Could not update jobs table (non-critical): %v", err)
			return
		}
		log.Printf("📌 Updated jobs.applied for job_id=%d", *app.JobID)
		return
	}

	if app.JobURL != "" {
		baseURL := strings.SplitN(app.JobURL, "?", 2)[0]
		_, err := r.db.Exec(ctx, "UPDATE jobs SET applied = TRUE, applied_at = now() WHERE url LIKE $1", "%"+baseURL+"%")
		if err != nil {
			log.Printf("⚠️ Could not update jobs table (non-critical): %v", err)
			return
		}
		log.Printf("📌 Updated jobs.applied by URL match: %s", baseURL)
	}
}

// ---------------- RUN OPERATIONS ----------------

// CreateRun opens a new batch run in running state
func (r *Repository) CreateRun(ctx context.Context) (*models.ApplicationRun, error) {
	run := &models.ApplicationRun{}
	query := `INSERT INTO application_runs (status) VALUES ('running')
		RETURNING id, started_at, status`
	if err := r.db.QueryRow(ctx, query).Scan(&run.ID, &run.StartedAt, &run.Status); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// FinishRun finalizes a run with aggregate counts. Called exactly once per run.
func (r *Repository) FinishRun(ctx context.Context, run *models.ApplicationRun, successful, failed, skipped int, status string) error {
	run.Successful = successful
	run.Failed = failed
	run.Skipped = skipped
	run.TotalProcessed = successful + failed + skipped
	run.Status = status

	query := `UPDATE application_runs
		SET finished_at = now(), total_processed = $1, successful = $2,
			failed = $3, skipped = $4, status = $5
		WHERE id = $6
		RETURNING finished_at`

	var finishedAt time.Time
	if err := r.db.QueryRow(ctx, query, run.TotalProcessed, successful, failed, skipped, status, run.ID).Scan(&finishedAt); err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	run.FinishedAt = &finishedAt
	return nil
}

// GetRuns returns the most recent runs
func (r *Repository) GetRuns(ctx context.Context, limit int) ([]*models.ApplicationRun, error) {
	query := `SELECT id, started_at, finished_at, total_processed, successful, failed, skipped, status
		FROM application_runs ORDER BY started_at DESC LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.ApplicationRun
	for rows.Next() {
		run := &models.ApplicationRun{}
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.FinishedAt,
			&run.TotalProcessed, &run.Successful, &run.Failed, &run.Skipped, &run.Status); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ---------------- STATS ----------------

type Stats struct {
	Total           int `json:"total"`
	Pending         int `json:"pending"`
	Processing      int `json:"processing"`
	Successful      int `json:"successful"`
	Failed          int `json:"failed"`
	Skipped         int `json:"skipped"`
	TodaySuccessful int `json:"today_successful"`
	WeekSuccessful  int `json:"week_successful"`
}

// GetStats returns counts by status plus success counts for today and the
// trailing 7 days, both windows measured against completed_at.
func (r *Repository) GetStats(ctx context.Context) (*Stats, error) {
	query := `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE status = 'pending'),
		COUNT(*) FILTER (WHERE status = 'processing'),
		COUNT(*) FILTER (WHERE status = 'success'),
		COUNT(*) FILTER (WHERE status = 'failed'),
		COUNT(*) FILTER (WHERE status = 'skipped'),
		COUNT(*) FILTER (WHERE status = 'success' AND completed_at >= date_trunc('day', now())),
		COUNT(*) FILTER (WHERE status = 'success' AND completed_at >= now() - INTERVAL '7 days')
		FROM applications`

	stats := &Stats{}
	err := r.db.QueryRow(ctx, query).Scan(
		&stats.Total, &stats.Pending, &stats.Processing, &stats.Successful,
		&stats.Failed, &stats.Skipped, &stats.TodaySuccessful, &stats.WeekSuccessful)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	return stats, nil
}

// ---------------- SCAN HELPERS ----------------

func scanApplication(row pgx.Row) (*models.Application, error) {
	app := &models.Application{}
	err := row.Scan(
		&app.ID, &app.JobURL, &app.JobTitle, &app.CompanyName, &app.JobID,
		&app.Name, &app.Surname, &app.Email, &app.Sex, &app.BirthDate,
		&app.Municipality, &app.Address, &app.PostalCode, &app.Phone,
		&app.Education, &app.Occupation, &app.CompetenceArea, &app.CoverLetter,
		&app.CVReference, &app.AcceptPrivacy, &app.AcceptMarketing,
		&app.AcceptThirdParty, &app.AcceptDataBank, &app.Status,
		&app.ErrorMessage, &app.ScreenshotPath, &app.CreatedAt,
		&app.StartedAt, &app.CompletedAt, &app.Attempts, &app.MaxAttempts)
	if err != nil {
		return nil, err
	}
	return app, nil
}

func collectApplications(rows pgx.Rows) ([]*models.Application, error) {
	var apps []*models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}
