package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/dispatch-api/internal/models"
)

const (
	jobColumns = `id, scheduled_date, start_time, end_time, work_type, address, latitude, longitude, required_skills, status, assigned_worker_id, created_at, updated_at`

	defaultJobPageSize = 50
	// MaxJobPageSize caps a single listing page.
	MaxJobPageSize = 500
)

// JobRepository provides database access for dispatchable jobs.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a new instance of JobRepository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID returns a job by identifier.
func (r *JobRepository) FindByID(ctx context.Context, id string) (*models.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM jobs WHERE id = $1 LIMIT 1`, jobColumns)
	var job models.Job
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find job by id: %w", err)
	}
	return &job, nil
}

// ListByIDs returns the jobs matching ids ordered by schedule.
func (r *JobRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Job, error) {
	if len(ids) == 0 {
		return []models.Job{}, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM jobs WHERE id = ANY($1) ORDER BY scheduled_date, start_time, id`, jobColumns)
	var jobs []models.Job
	if err := r.db.SelectContext(ctx, &jobs, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list jobs by ids: %w", err)
	}
	return jobs, nil
}

// ListUnassigned returns open jobs without a worker plus the total match count.
func (r *JobRepository) ListUnassigned(ctx context.Context, filter models.JobFilter) ([]models.Job, int, error) {
	baseQuery := `FROM jobs WHERE assigned_worker_id IS NULL AND status NOT IN ('CANCELLED', 'COMPLETED')`
	var conditions []string
	var args []interface{}

	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("scheduled_date >= $%d", len(args)+1))
		args = append(args, filter.DateFrom.Format(models.DateLayout))
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("scheduled_date <= $%d", len(args)+1))
		args = append(args, filter.DateTo.Format(models.DateLayout))
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = defaultJobPageSize
	}
	if pageSize > MaxJobPageSize {
		pageSize = MaxJobPageSize
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY scheduled_date, start_time, id LIMIT %d OFFSET %d", jobColumns, baseQuery, pageSize, offset)
	var jobs []models.Job
	if err := r.db.SelectContext(ctx, &jobs, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list unassigned jobs: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count unassigned jobs: %w", err)
	}

	return jobs, total, nil
}

// ListByWorkerAndDate returns the worker's non-cancelled bookings on the calendar date of day.
func (r *JobRepository) ListByWorkerAndDate(ctx context.Context, exec sqlx.ExtContext, workerID string, day time.Time) ([]models.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM jobs WHERE assigned_worker_id = $1 AND scheduled_date = $2 AND status <> 'CANCELLED' ORDER BY start_time, id`, jobColumns)
	var jobs []models.Job
	if err := sqlx.SelectContext(ctx, r.exec(exec), &jobs, query, workerID, day.Format(models.DateLayout)); err != nil {
		return nil, fmt.Errorf("list jobs by worker and date: %w", err)
	}
	return jobs, nil
}

// LockByID reads a job row with FOR UPDATE inside the caller's transaction.
func (r *JobRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM jobs WHERE id = $1 FOR UPDATE`, jobColumns)
	var job models.Job
	if err := sqlx.GetContext(ctx, r.exec(exec), &job, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock job: %w", err)
	}
	return &job, nil
}

// AssignWorker sets the assigned worker and promotes pending jobs to scheduled.
func (r *JobRepository) AssignWorker(ctx context.Context, exec sqlx.ExtContext, jobID, workerID string) error {
	const query = `UPDATE jobs SET assigned_worker_id = $2, status = CASE WHEN status = 'PENDING' THEN 'SCHEDULED' ELSE status END, updated_at = $3 WHERE id = $1`
	res, err := r.exec(exec).ExecContext(ctx, query, jobID, workerID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("assign worker: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("assign worker rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
