package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/dispatch-api/internal/models"
)

const workerColumns = `id, name, active, skills, work_areas, daily_capacity, completed_jobs, rating, created_at, updated_at`

// WorkerRepository provides read access to the technician roster.
type WorkerRepository struct {
	db *sqlx.DB
}

// NewWorkerRepository creates a new instance of WorkerRepository.
func NewWorkerRepository(db *sqlx.DB) *WorkerRepository {
	return &WorkerRepository{db: db}
}

// ListActive returns all active workers ordered by id.
func (r *WorkerRepository) ListActive(ctx context.Context) ([]models.Worker, error) {
	query := fmt.Sprintf(`SELECT %s FROM workers WHERE active = TRUE ORDER BY id`, workerColumns)
	var workers []models.Worker
	if err := r.db.SelectContext(ctx, &workers, query); err != nil {
		return nil, fmt.Errorf("list active workers: %w", err)
	}
	return workers, nil
}

// FindByID returns a worker by identifier.
func (r *WorkerRepository) FindByID(ctx context.Context, id string) (*models.Worker, error) {
	query := fmt.Sprintf(`SELECT %s FROM workers WHERE id = $1 LIMIT 1`, workerColumns)
	var worker models.Worker
	if err := r.db.GetContext(ctx, &worker, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find worker by id: %w", err)
	}
	return &worker, nil
}

// LockByID reads a worker row with FOR UPDATE inside the caller's transaction.
// Concurrent commits for the same worker serialise on this lock.
func (r *WorkerRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Worker, error) {
	if exec == nil {
		exec = r.db
	}
	query := fmt.Sprintf(`SELECT %s FROM workers WHERE id = $1 FOR UPDATE`, workerColumns)
	var worker models.Worker
	if err := sqlx.GetContext(ctx, exec, &worker, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock worker: %w", err)
	}
	return &worker, nil
}
