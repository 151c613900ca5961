package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bobarin/clipcaptions/internal/models"
)

func (db *DB) CreateCaptionJob(ctx context.Context, job *models.CaptionJob) error {
	query := `
		INSERT INTO caption_jobs (
			id, status, attempts, request
		) VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		job.ID, job.Status, job.Attempts, job.Request,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
}

func (db *DB) GetCaptionJob(ctx context.Context, id uuid.UUID) (*models.CaptionJob, error) {
	query := `
		SELECT
			id, status, attempts, request, storage_path, event_count, warnings,
			hook_suggested, error_message, started_at, finished_at, created_at, updated_at
		FROM caption_jobs
		WHERE id = $1
	`

	job := &models.CaptionJob{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&job.ID, &job.Status, &job.Attempts, &job.Request, &job.StoragePath,
		&job.EventCount, &job.Warnings, &job.HookSuggested, &job.ErrorMessage,
		&job.StartedAt, &job.FinishedAt, &job.CreatedAt, &job.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("caption job %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get caption job: %w", err)
	}

	return job, nil
}

// GetCaptionDocument returns the rendered document of a succeeded job.
func (db *DB) GetCaptionDocument(ctx context.Context, id uuid.UUID) (string, error) {
	var document sql.NullString
	err := db.QueryRowContext(ctx, `SELECT document FROM caption_jobs WHERE id = $1`, id).Scan(&document)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("caption job %w", ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get caption document: %w", err)
	}
	if !document.Valid {
		return "", fmt.Errorf("caption document %w", ErrNotFound)
	}
	return document.String, nil
}

func (db *DB) UpdateCaptionJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus) error {
	now := time.Now()
	query := `UPDATE caption_jobs SET status = $1, started_at = $2, attempts = attempts + 1, updated_at = $2 WHERE id = $3`

	switch {
	case status.Terminal():
		query = `UPDATE caption_jobs SET status = $1, finished_at = $2, updated_at = $2 WHERE id = $3`
	case status == models.JobStatusQueued:
		// Back to the queue: the interrupted run does not count as an attempt.
		query = `UPDATE caption_jobs SET status = $1, started_at = NULL, attempts = GREATEST(attempts - 1, 0), updated_at = $2 WHERE id = $3`
	}

	_, err := db.ExecContext(ctx, query, status, now, id)
	return err
}

// CompleteCaptionJob stores the rendered document and marks the job succeeded.
func (db *DB) CompleteCaptionJob(ctx context.Context, id uuid.UUID, storagePath, document string, eventCount int, warnings models.Warnings, hookSuggested *string) error {
	query := `
		UPDATE caption_jobs
		SET status = $1, storage_path = $2, document = $3, event_count = $4, warnings = $5,
			hook_suggested = $6, error_message = NULL, finished_at = $7, updated_at = $7
		WHERE id = $8
	`
	_, err := db.ExecContext(ctx, query,
		models.JobStatusSucceeded, storagePath, document, eventCount, warnings,
		hookSuggested, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete caption job: %w", err)
	}
	return nil
}

func (db *DB) UpdateCaptionJobError(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE caption_jobs
		SET status = $1, error_message = $2, finished_at = $3, updated_at = $3
		WHERE id = $4
	`
	_, err := db.ExecContext(ctx, query, models.JobStatusFailed, errorMessage, time.Now(), id)
	return err
}
