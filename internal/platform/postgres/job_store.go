// Package postgres provides PostgreSQL implementations of the store
// interfaces.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mochilabs/mochi-analytics/internal/domain"
	"github.com/mochilabs/mochi-analytics/internal/platform/logger"
	"github.com/mochilabs/mochi-analytics/internal/store"
)

// defaultListLimit bounds unpaged list queries.
const defaultListLimit = 50

// JobStore implements the store.JobStore interface using PostgreSQL.
// Every transition is a single guarded UPDATE whose WHERE clause names the
// expected source state, so concurrent writers cannot double-apply a
// transition.
type JobStore struct {
	db store.DBTX
}

// NewJobStore creates a new JobStore.
func NewJobStore(db store.DBTX) *JobStore {
	return &JobStore{db: db}
}

// CreateJob persists a newly submitted job.
func (s *JobStore) CreateJob(ctx context.Context, job *domain.Job) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO jobs (id, task_type, payload, state, attempt, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.TaskType,
		[]byte(job.Payload),
		job.State,
		job.Attempt,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to save job",
			"job_id", job.ID,
			"task_type", job.TaskType,
			"error", err)
		return fmt.Errorf("failed to save job: %w", err)
	}

	return nil
}

// GetJob retrieves a job by ID.
func (s *JobStore) GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `
		SELECT id, task_type, payload, state, result, error, attempt, created_at, updated_at
		FROM jobs
		WHERE id = $1
	`

	row := s.db.QueryRowContext(ctx, query, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

// MarkProcessing transitions queued -> processing.
func (s *JobStore) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE jobs
		SET state = $1, updated_at = $2
		WHERE id = $3 AND state = $4
	`

	return s.guardedUpdate(ctx, id, query,
		domain.JobStateProcessing, time.Now().UTC(), id, domain.JobStateQueued)
}

// MarkCompleted transitions processing -> completed and stores the result.
func (s *JobStore) MarkCompleted(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	query := `
		UPDATE jobs
		SET state = $1, result = $2, error = NULL, updated_at = $3
		WHERE id = $4 AND state = $5
	`

	return s.guardedUpdate(ctx, id, query,
		domain.JobStateCompleted, []byte(result), time.Now().UTC(), id, domain.JobStateProcessing)
}

// MarkFailed transitions processing -> failed and stores the structured error.
func (s *JobStore) MarkFailed(ctx context.Context, id uuid.UUID, jobErr domain.JobError) error {
	errJSON, err := json.Marshal(jobErr)
	if err != nil {
		return fmt.Errorf("failed to encode job error: %w", err)
	}

	query := `
		UPDATE jobs
		SET state = $1, result = NULL, error = $2, updated_at = $3
		WHERE id = $4 AND state = $5
	`

	return s.guardedUpdate(ctx, id, query,
		domain.JobStateFailed, errJSON, time.Now().UTC(), id, domain.JobStateProcessing)
}

// ResetForRetry transitions failed -> queued, incrementing attempt and
// clearing the error, and returns the updated job.
func (s *JobStore) ResetForRetry(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET state = $1, error = NULL, attempt = attempt + 1, updated_at = $2
		WHERE id = $3 AND state = $4
		RETURNING id, task_type, payload, state, result, error, attempt, created_at, updated_at
	`

	row := s.db.QueryRowContext(ctx, query,
		domain.JobStateQueued, time.Now().UTC(), id, domain.JobStateFailed)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Distinguish a missing job from one in the wrong state.
			if _, getErr := s.GetJob(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, fmt.Errorf("%w: job is not failed", store.ErrInvalidTransition)
		}
		return nil, fmt.Errorf("failed to retry job: %w", err)
	}

	return job, nil
}

// ListJobs returns a page of jobs matching the filter, newest first, plus
// the total matching count.
func (s *JobStore) ListJobs(ctx context.Context, filter store.JobFilter) ([]*domain.Job, int, error) {
	where := " WHERE 1=1"
	args := []any{}

	if filter.State != "" {
		args = append(args, filter.State)
		where += fmt.Sprintf(" AND state = $%d", len(args))
	}
	if filter.TaskType != "" {
		args = append(args, filter.TaskType)
		where += fmt.Sprintf(" AND task_type = $%d", len(args))
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM jobs" + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)
	limitClause := fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	limitClause += fmt.Sprintf(" OFFSET $%d", len(args))

	query := `
		SELECT id, task_type, payload, state, result, error, attempt, created_at, updated_at
		FROM jobs` + where + limitClause

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating job rows: %w", err)
	}

	return jobs, total, nil
}

// guardedUpdate executes a state-transition UPDATE and maps "no row matched"
// to either not-found or invalid-transition.
func (s *JobStore) guardedUpdate(ctx context.Context, id uuid.UUID, query string, args ...any) error {
	log := logger.FromContext(ctx)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to update job state", "job_id", id, "error", err)
		return fmt.Errorf("failed to update job state: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if _, getErr := s.GetJob(ctx, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: job %s", store.ErrInvalidTransition, id)
	}

	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanJob scans one job row into a domain.Job.
func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job     domain.Job
		payload []byte
		result  []byte
		errJSON []byte
	)

	if err := row.Scan(
		&job.ID,
		&job.TaskType,
		&payload,
		&job.State,
		&result,
		&errJSON,
		&job.Attempt,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}

	job.Payload = payload
	if result != nil {
		job.Result = result
	}
	if errJSON != nil {
		var jobErr domain.JobError
		if err := json.Unmarshal(errJSON, &jobErr); err != nil {
			return nil, fmt.Errorf("failed to decode job error: %w", err)
		}
		job.Error = &jobErr
	}

	return &job, nil
}
