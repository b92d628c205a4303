package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AuditLog records who changed tax-relevant data in a shop.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	ShopID     snowflake.ID      `gorm:"column:shop_id;not null;index" json:"shop_id"`
	ActorID    *string           `gorm:"column:actor_id" json:"actor_id,omitempty"`
	ActorRole  string            `gorm:"column:actor_role;not null" json:"actor_role"`
	Action     string            `gorm:"column:action;not null" json:"action"`
	TargetType string            `gorm:"column:target_type;not null" json:"target_type"`
	TargetID   *string           `gorm:"column:target_id" json:"target_id,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"not null" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type ListFilter struct {
	Action     string
	TargetType string
	TargetID   string
}
