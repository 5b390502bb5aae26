package models

import (
	"encoding/json"
	"time"
)

// Audit actions and resources written by the planner.
const (
	AuditActionAssignmentCommit   = "ASSIGNMENT_COMMIT"
	AuditActionAssignmentAuto     = "ASSIGNMENT_AUTO_COMMIT"
	AuditActionBatchRunSubmit     = "ASSIGNMENT_BATCH_RUN"
	AuditResourceJob              = "job"
	AuditResourceAssignmentEngine = "assignment_engine"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// NewAuditLog attributes an action on resource to actor. Empty ids stay NULL.
func NewAuditLog(actor Actor, action, resource, resourceID string) *AuditLog {
	entry := &AuditLog{
		Action:    action,
		Resource:  resource,
		IPAddress: actor.IPAddress,
		UserAgent: actor.UserAgent,
	}
	if actor.UserID != "" {
		userID := actor.UserID
		entry.UserID = &userID
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	return entry
}

// SetValues encodes the before and after snapshots. Nil snapshots are left empty.
func (a *AuditLog) SetValues(oldValues, newValues interface{}) error {
	if oldValues != nil {
		raw, err := json.Marshal(oldValues)
		if err != nil {
			return err
		}
		a.OldValues = raw
	}
	if newValues != nil {
		raw, err := json.Marshal(newValues)
		if err != nil {
			return err
		}
		a.NewValues = raw
	}
	return nil
}
