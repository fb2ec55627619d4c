package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/grocery_backend/utils"
	"gorm.io/gorm"
)

// AuditLog is append-only. Entries are never mutated or deleted.
type AuditLog struct {
	ID            int       `gorm:"primary_key" json:"id"`
	Action        string    `gorm:"size:100;not null" json:"action"`
	EntityType    string    `gorm:"size:100;index" json:"entity_type"`
	EntityId      int       `gorm:"index" json:"entity_id"`
	Metadata      string    `gorm:"type:text" json:"metadata"`
	UserId        int       `gorm:"index" json:"user_id"`
	UserName      string    `gorm:"size:100" json:"user_name"`
	CorrelationId string    `gorm:"size:100;index" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (obj AuditLog) GetId() int {
	return obj.ID
}

// GormAuditLog appends audit entries to the audit_logs table.
type GormAuditLog struct {
	DB *gorm.DB
}

func (a *GormAuditLog) Append(ctx context.Context, action string, entityType string, entityId int, metadata map[string]any) error {
	var entry AuditLog

	b, _ := json.Marshal(metadata)

	entry.Action = action
	entry.EntityType = entityType
	entry.EntityId = entityId
	entry.Metadata = string(b)
	if userId, ok := utils.GetUserIdFromContext(ctx); ok {
		entry.UserId = userId
	}
	if userName, ok := utils.GetUserNameFromContext(ctx); ok {
		entry.UserName = userName
	}
	if correlationId, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		entry.CorrelationId = correlationId
	}

	return a.DB.WithContext(ctx).Create(&entry).Error
}

// AuditEntriesForEntity returns the audit trail for one entity, oldest first.
func AuditEntriesForEntity(ctx context.Context, db *gorm.DB, entityType string, entityId int) ([]*AuditLog, error) {
	var results []*AuditLog
	err := db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityId).
		Order("id ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
