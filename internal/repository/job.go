package repository

import (
	"context"

	"pdfunlocker/internal/model"
)

// JobRepository defines data access for processing jobs using SQL queries only.
// No business logic here — strictly persistence operations.
type JobRepository interface {
	// Create inserts a new job record and returns the stored row
	// (may include values set by the database).
	Create(ctx context.Context, job *model.Job) (*model.Job, error)

	// FindByID returns a job by its ID.
	FindByID(ctx context.Context, id string) (*model.Job, error)

	// List returns a paginated list of jobs and total rows count.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Job], error)

	// Delete removes a job by ID. It returns nil if the row was deleted or did not exist.
	Delete(ctx context.Context, id string) error
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
