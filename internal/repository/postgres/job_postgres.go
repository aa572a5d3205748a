package postgres

import (
	"context"
	"database/sql"

	"pdfunlocker/internal/model"
	"pdfunlocker/internal/repository"
)

// JobPostgres is a PostgreSQL implementation of repository.JobRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type JobPostgres struct {
	db *sql.DB
}

// NewJobPostgres creates a new JobPostgres repository.
func NewJobPostgres(db *sql.DB) *JobPostgres {
	return &JobPostgres{db: db}
}

var _ repository.JobRepository = (*JobPostgres)(nil)

const jobColumns = "id, filename, operation, status, protected, size, storage_key, error_code, created_at"

// Create inserts a new job row and returns the stored record.
func (r *JobPostgres) Create(ctx context.Context, job *model.Job) (*model.Job, error) {
	const q = `
		INSERT INTO jobs (id, filename, operation, status, protected, size, storage_key, error_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + jobColumns
	row := r.db.QueryRowContext(ctx, q,
		job.ID,
		job.Filename,
		job.Operation,
		job.Status,
		job.Protected,
		job.Size,
		job.StorageKey,
		job.ErrorCode,
		job.CreatedAt,
	)
	return scanJob(row)
}

// FindByID fetches a single job by its ID.
func (r *JobPostgres) FindByID(ctx context.Context, id string) (*model.Job, error) {
	const q = `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	return scanJob(r.db.QueryRowContext(ctx, q, id))
}

// List returns jobs using LIMIT/OFFSET pagination and a total count.
func (r *JobPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Job], error) {
	const qCount = `SELECT COUNT(*) FROM jobs`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT ` + jobColumns + `
		FROM jobs
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Job, 0)
	for rows.Next() {
		var j model.Job
		if err := rows.Scan(
			&j.ID,
			&j.Filename,
			&j.Operation,
			&j.Status,
			&j.Protected,
			&j.Size,
			&j.StorageKey,
			&j.ErrorCode,
			&j.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Job]{
		Items: items,
		Total: total,
	}, nil
}

// Delete removes a job by ID. It does not return an error if the row does not exist.
func (r *JobPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM jobs WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	_, _ = res.RowsAffected()
	return nil
}

func scanJob(row *sql.Row) (*model.Job, error) {
	var j model.Job
	if err := row.Scan(
		&j.ID,
		&j.Filename,
		&j.Operation,
		&j.Status,
		&j.Protected,
		&j.Size,
		&j.StorageKey,
		&j.ErrorCode,
		&j.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &j, nil
}
