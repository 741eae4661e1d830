package models

import (
	"time"

	"github.com/minhtran/veloshop-backend/pkg/enums"
)

// Notification stores in-app notification payloads scoped to users.
type Notification struct {
	ID        int64                  `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    int64                  `gorm:"column:user_id;not null;index"`
	Type      enums.NotificationType `gorm:"column:type;not null"`
	Message   string                 `gorm:"column:message;not null"`
	RelatedID *int64                 `gorm:"column:related_id"`
	ReadAt    *time.Time             `gorm:"column:read_at"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
}
