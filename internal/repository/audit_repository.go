package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/dispatch-api/internal/models"
)

// AuditRepository appends audit trail records.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new instance of AuditRepository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create stores an audit log entry using exec, or the pool when exec is nil.
func (r *AuditRepository) Create(ctx context.Context, exec sqlx.ExtContext, log *models.AuditLog) error {
	if log == nil {
		return fmt.Errorf("audit log payload is nil")
	}
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	if exec == nil {
		exec = r.db
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at) VALUES (:id, :user_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// Record stores an audit log entry outside any transaction.
func (r *AuditRepository) Record(ctx context.Context, log *models.AuditLog) error {
	return r.Create(ctx, nil, log)
}
