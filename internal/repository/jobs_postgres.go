package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/memoza/flashcards-back/internal/domain"
)

const jobColumns = `id, owner_id, mode, status, phase, lease_holder, lease_updated_at,
	ocr_done, ocr_total, write_done, write_total, payload, error_message, created_at, updated_at`

func (s *PostgresStore) PutJob(ctx context.Context, job *domain.Job) error {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("encode job payload: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO jobs (
			id, owner_id, mode, status, phase, lease_holder, lease_updated_at,
			ocr_done, ocr_total, write_done, write_total, payload, error_message,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			mode = EXCLUDED.mode,
			status = EXCLUDED.status,
			phase = EXCLUDED.phase,
			lease_holder = EXCLUDED.lease_holder,
			lease_updated_at = EXCLUDED.lease_updated_at,
			ocr_done = EXCLUDED.ocr_done,
			ocr_total = EXCLUDED.ocr_total,
			write_done = EXCLUDED.write_done,
			write_total = EXCLUDED.write_total,
			payload = EXCLUDED.payload,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at
	`,
		job.ID,
		job.OwnerID,
		string(job.Mode),
		string(job.Status),
		job.Phase,
		job.LeaseHolder,
		job.LeaseUpdatedAt,
		job.OCR.Done,
		job.OCR.Total,
		job.Write.Done,
		job.Write.Total,
		payload,
		job.ErrorMessage,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put job: %w", classifyPgError(err))
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID)
	job, err := scanJob(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) UpdateJob(ctx context.Context, job *domain.Job) error {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("encode job payload: %w", err)
	}

	command, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = $2,
			phase = $3,
			lease_holder = $4,
			lease_updated_at = $5,
			ocr_done = $6,
			ocr_total = $7,
			write_done = $8,
			write_total = $9,
			payload = $10,
			error_message = $11,
			updated_at = $12
		WHERE id = $1
	`,
		job.ID,
		string(job.Status),
		job.Phase,
		job.LeaseHolder,
		job.LeaseUpdatedAt,
		job.OCR.Done,
		job.OCR.Total,
		job.Write.Done,
		job.Write.Total,
		payload,
		job.ErrorMessage,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", classifyPgError(err))
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MutateJob locks the job row, applies fn to the decoded record and writes
// the result back inside one transaction. This is the per-document atomic
// read-modify-write everything else (lease acquisition included) builds on.
func (s *PostgresStore) MutateJob(
	ctx context.Context,
	jobID string,
	fn func(*domain.Job) error,
) (*domain.Job, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin mutate job: %w", classifyPgError(err))
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, jobID)
	job, err := scanJob(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock job: %w", classifyPgError(err))
	}

	if err := fn(job); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode job payload: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE jobs
		SET status = $2,
			phase = $3,
			lease_holder = $4,
			lease_updated_at = $5,
			ocr_done = $6,
			ocr_total = $7,
			write_done = $8,
			write_total = $9,
			payload = $10,
			error_message = $11,
			updated_at = $12
		WHERE id = $1
	`,
		job.ID,
		string(job.Status),
		job.Phase,
		job.LeaseHolder,
		job.LeaseUpdatedAt,
		job.OCR.Done,
		job.OCR.Total,
		job.Write.Done,
		job.Write.Total,
		payload,
		job.ErrorMessage,
		job.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("write mutated job: %w", classifyPgError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit mutate job: %w", classifyPgError(err))
	}
	return job, nil
}

func (s *PostgresStore) ListEligibleJobs(
	ctx context.Context,
	now time.Time,
	ttl time.Duration,
	limit int,
) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	staleBefore := now.Add(-ttl)

	rows, err := s.pool.Query(ctx, `
		SELECT id FROM jobs
		WHERE status = 'queued'
		   OR (status = 'running' AND lease_updated_at < $1)
		ORDER BY created_at ASC
		LIMIT $2
	`, staleBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list eligible jobs: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan eligible job id: %w", err)
		}
		ids = append(ids, id)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate eligible jobs: %w", rows.Err())
	}
	return ids, nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job     domain.Job
		mode    string
		status  string
		payload []byte
	)
	err := row.Scan(
		&job.ID,
		&job.OwnerID,
		&mode,
		&status,
		&job.Phase,
		&job.LeaseHolder,
		&job.LeaseUpdatedAt,
		&job.OCR.Done,
		&job.OCR.Total,
		&job.Write.Done,
		&job.Write.Total,
		&payload,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Mode = domain.JobMode(mode)
	job.Status = domain.JobStatus(status)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &job.Payload); err != nil {
			return nil, fmt.Errorf("decode job payload: %w", err)
		}
	}
	return &job, nil
}
