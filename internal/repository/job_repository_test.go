package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dispatch-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var jobColumnNames = []string{"id", "scheduled_date", "start_time", "end_time", "work_type", "address", "latitude", "longitude", "required_skills", "status", "assigned_worker_id", "created_at", "updated_at"}

func jobRow(rows *sqlmock.Rows, id string, day time.Time, start, end string, workerID interface{}) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(id, day, start, end, "air-conditioner install", "Shibuya", 35.664, 139.6982, "{\"AC install\",piping}", "SCHEDULED", workerID, now, now)
}

func TestJobRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewJobRepository(db)

	day := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	rows := jobRow(sqlmock.NewRows(jobColumnNames), "job-1", day, "09:00", "10:00", nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + jobColumns + " FROM jobs WHERE id = $1 LIMIT 1")).
		WithArgs("job-1").
		WillReturnRows(rows)

	job, err := repo.FindByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, "2024-07-01", job.DateKey())
	assert.Equal(t, []string{"AC install", "piping"}, []string(job.RequiredSkills))
	require.NotNil(t, job.Latitude)
	assert.Nil(t, job.AssignedWorkerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewJobRepository(db)

	mock.ExpectQuery("FROM jobs WHERE id").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestJobRepositoryListUnassigned(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewJobRepository(db)

	from := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 7, 7, 0, 0, 0, 0, time.UTC)
	base := "FROM jobs WHERE assigned_worker_id IS NULL AND status NOT IN ('CANCELLED', 'COMPLETED') AND scheduled_date >= $1 AND scheduled_date <= $2"

	rows := jobRow(sqlmock.NewRows(jobColumnNames), "job-1", from, "09:00", "10:00", nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + jobColumns + " " + base + " ORDER BY scheduled_date, start_time, id LIMIT 50 OFFSET 0")).
		WithArgs("2024-07-01", "2024-07-07").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) " + base)).
		WithArgs("2024-07-01", "2024-07-07").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	jobs, total, err := repo.ListUnassigned(context.Background(), models.JobFilter{DateFrom: &from, DateTo: &to})
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryListUnassignedCapsPageSize(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewJobRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("LIMIT 500 OFFSET 1000")).WillReturnRows(sqlmock.NewRows(jobColumnNames))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, _, err := repo.ListUnassigned(context.Background(), models.JobFilter{Page: 3, PageSize: 10000})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryListByIDsEmpty(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewJobRepository(db)

	jobs, err := repo.ListByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryListByIDs(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewJobRepository(db)

	day := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(jobColumnNames)
	jobRow(rows, "job-1", day, "09:00", "10:00", nil)
	jobRow(rows, "job-2", day, "11:00", "12:00", "w1")
	mock.ExpectQuery(regexp.QuoteMeta("FROM jobs WHERE id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	jobs, err := repo.ListByIDs(context.Background(), []string{"job-1", "job-2"})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.True(t, jobs[1].AssignedTo("w1"))
}

func TestJobRepositoryListByWorkerAndDateUsesTx(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewJobRepository(db)

	day := time.Date(2024, 7, 1, 15, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	rows := jobRow(sqlmock.NewRows(jobColumnNames), "job-9", day, "13:00", "14:00", "w1")
	mock.ExpectQuery(regexp.QuoteMeta("FROM jobs WHERE assigned_worker_id = $1 AND scheduled_date = $2 AND status <> 'CANCELLED'")).
		WithArgs("w1", "2024-07-01").
		WillReturnRows(rows)
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	jobs, err := repo.ListByWorkerAndDate(context.Background(), tx, "w1", day)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Len(t, jobs, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryLockByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewJobRepository(db)

	day := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	rows := jobRow(sqlmock.NewRows(jobColumnNames), "job-1", day, "09:00", "10:00", nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM jobs WHERE id = $1 FOR UPDATE")).
		WithArgs("job-1").
		WillReturnRows(rows)

	job, err := repo.LockByID(context.Background(), nil, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
}

func TestJobRepositoryAssignWorker(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewJobRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE jobs SET assigned_worker_id = $2")).
		WithArgs("job-1", "w1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.AssignWorker(context.Background(), nil, "job-1", "w1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryAssignWorkerMissingRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewJobRepository(db)

	mock.ExpectExec("UPDATE jobs").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.AssignWorker(context.Background(), nil, "job-1", "w1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
