// Package repository persists import job records: one row per uploaded
// statement, tracking its lifecycle from upload to completion.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Job statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// File types accepted by the importer.
const (
	FileTypePDF  = "pdf"
	FileTypeCSV  = "csv"
	FileTypeXLSX = "xlsx"
)

// ImportJob is one statement upload and what became of it.
type ImportJob struct {
	ID                   uuid.UUID  `json:"id"`
	Filename             string     `json:"filename"`
	FileType             string     `json:"file_type"`
	Status               string     `json:"status"`
	PagesProcessed       int        `json:"pages_processed"`
	RowsParsed           int        `json:"rows_parsed"`
	TransactionsImported int        `json:"transactions_imported"`
	DuplicatesSkipped    int        `json:"duplicates_skipped"`
	FallbackUsed         bool       `json:"fallback_used"`
	Error                *string    `json:"error,omitempty"`
	FileID               *uuid.UUID `json:"file_id,omitempty"`
	CreatedBy            *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
}

// JobStats is everything Complete records about a finished run.
type JobStats struct {
	PagesProcessed       int
	RowsParsed           int
	TransactionsImported int
	DuplicatesSkipped    int
	FallbackUsed         bool
}

// Querier is the subset of pgxpool.Pool the repository uses. pgxmock
// implements it, so repository tests run against a mock pool.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository handles database operations for import jobs.
type Repository struct {
	db Querier
}

// NewRepository creates a new import job repository.
func NewRepository(db Querier) *Repository {
	return &Repository{db: db}
}

const jobColumns = `id, filename, file_type, status, pages_processed, rows_parsed, transactions_imported, duplicates_skipped, fallback_used, error, file_id, created_by, created_at, completed_at`

// CreateJob records a new upload in the pending state.
func (r *Repository) CreateJob(ctx context.Context, filename, fileType string, createdBy *uuid.UUID) (*ImportJob, error) {
	job := &ImportJob{
		Filename:  filename,
		FileType:  fileType,
		Status:    StatusPending,
		CreatedBy: createdBy,
	}

	query := `
		INSERT INTO import_jobs (filename, file_type, created_by)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query, filename, fileType, createdBy).
		Scan(&job.ID, &job.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create import job: %w", err)
	}

	return job, nil
}

// AttachFile links the stored upload to its job so the original statement
// can be downloaded later.
func (r *Repository) AttachFile(ctx context.Context, jobID, fileID uuid.UUID) error {
	query := `UPDATE import_jobs SET file_id = $2 WHERE id = $1`

	if _, err := r.db.Exec(ctx, query, jobID, fileID); err != nil {
		return fmt.Errorf("attach file to job %s: %w", jobID, err)
	}
	return nil
}

// MarkProcessing moves a job from pending to processing.
func (r *Repository) MarkProcessing(ctx context.Context, jobID uuid.UUID) error {
	query := `UPDATE import_jobs SET status = $2 WHERE id = $1`

	if _, err := r.db.Exec(ctx, query, jobID, StatusProcessing); err != nil {
		return fmt.Errorf("mark job %s processing: %w", jobID, err)
	}
	return nil
}

// Complete records a successful run and its counts.
func (r *Repository) Complete(ctx context.Context, jobID uuid.UUID, stats JobStats) error {
	query := `
		UPDATE import_jobs
		SET status = $2,
		    pages_processed = $3,
		    rows_parsed = $4,
		    transactions_imported = $5,
		    duplicates_skipped = $6,
		    fallback_used = $7,
		    completed_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.Exec(ctx, query, jobID, StatusCompleted,
		stats.PagesProcessed, stats.RowsParsed,
		stats.TransactionsImported, stats.DuplicatesSkipped, stats.FallbackUsed)
	if err != nil {
		return fmt.Errorf("complete job %s: %w", jobID, err)
	}
	return nil
}

// Fail records a failed run and the reason.
func (r *Repository) Fail(ctx context.Context, jobID uuid.UUID, reason string) error {
	query := `
		UPDATE import_jobs
		SET status = $2, error = $3, completed_at = NOW()
		WHERE id = $1
	`

	if _, err := r.db.Exec(ctx, query, jobID, StatusFailed, reason); err != nil {
		return fmt.Errorf("fail job %s: %w", jobID, err)
	}
	return nil
}

// GetJob fetches one job by id. Unknown ids surface pgx.ErrNoRows so
// handlers can map them to a 404.
func (r *Repository) GetJob(ctx context.Context, id uuid.UUID) (*ImportJob, error) {
	query := `SELECT ` + jobColumns + ` FROM import_jobs WHERE id = $1`

	job := &ImportJob{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&job.ID,
		&job.Filename,
		&job.FileType,
		&job.Status,
		&job.PagesProcessed,
		&job.RowsParsed,
		&job.TransactionsImported,
		&job.DuplicatesSkipped,
		&job.FallbackUsed,
		&job.Error,
		&job.FileID,
		&job.CreatedBy,
		&job.CreatedAt,
		&job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	return job, nil
}

// ListJobs returns recent jobs, newest first.
func (r *Repository) ListJobs(ctx context.Context, limit int) ([]*ImportJob, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `SELECT ` + jobColumns + ` FROM import_jobs ORDER BY created_at DESC LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list import jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*ImportJob, 0, limit)
	for rows.Next() {
		job := &ImportJob{}
		if err := rows.Scan(
			&job.ID,
			&job.Filename,
			&job.FileType,
			&job.Status,
			&job.PagesProcessed,
			&job.RowsParsed,
			&job.TransactionsImported,
			&job.DuplicatesSkipped,
			&job.FallbackUsed,
			&job.Error,
			&job.FileID,
			&job.CreatedBy,
			&job.CreatedAt,
			&job.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan import job: %w", err)
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}
