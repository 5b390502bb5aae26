package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var workerColumnNames = []string{"id", "name", "active", "skills", "work_areas", "daily_capacity", "completed_jobs", "rating", "created_at", "updated_at"}

func TestWorkerRepositoryListActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewWorkerRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(workerColumnNames).
		AddRow("w1", "Sato", true, "{\"AC install\",\"electrical work\"}", "{Shibuya}", 3, 80, 4.5, now, now).
		AddRow("w2", "Suzuki", true, "{}", "{}", 0, 0, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + workerColumns + " FROM workers WHERE active = TRUE ORDER BY id")).
		WillReturnRows(rows)

	workers, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, workers, 2)
	assert.Equal(t, []string{"AC install", "electrical work"}, []string(workers[0].Skills))
	require.NotNil(t, workers[0].Rating)
	assert.Equal(t, 4.5, *workers[0].Rating)
	assert.Nil(t, workers[1].Rating)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkerRepositoryListActiveError(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewWorkerRepository(db)

	mock.ExpectQuery("FROM workers").WillReturnError(errors.New("connection reset"))

	_, err := repo.ListActive(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list active workers")
}

func TestWorkerRepositoryLockByIDWithinTx(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewWorkerRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM workers WHERE id = $1 FOR UPDATE")).
		WithArgs("w1").
		WillReturnRows(sqlmock.NewRows(workerColumnNames).AddRow("w1", "Sato", true, "{}", "{}", 3, 1, nil, now, now))
	mock.ExpectRollback()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	worker, err := repo.LockByID(context.Background(), tx, "w1")
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	assert.Equal(t, "w1", worker.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
