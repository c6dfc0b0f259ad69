package models

import (
	"time"

	"gorm.io/gorm"
)

type NotificationChannel string

const (
	ChannelInApp NotificationChannel = "in_app"
	ChannelEmail NotificationChannel = "email"
)

// AlertNotification is a fired instance of a rule against one entity.
// At most one is created per (rule, entity) within the cooldown window;
// rows are immutable after creation.
type AlertNotification struct {
	gorm.Model
	RuleID      uint      `json:"rule_id" gorm:"not null;index:idx_notif_dedup"`
	RuleName    string    `json:"rule_name"`
	EntityType  string    `json:"entity_type" gorm:"index:idx_notif_dedup"`
	EntityID    string    `json:"entity_id" gorm:"index:idx_notif_dedup"`
	EntityName  string    `json:"entity_name"`
	AccountID   string    `json:"account_id"`
	AccountName string    `json:"account_name"`
	MetricValue float64   `json:"metric_value"`
	Threshold   float64   `json:"threshold"`
	Message     string    `json:"message"`
	Channels    string    `json:"channels"` // comma-separated NotificationChannel values
	IsRead      bool      `json:"is_read" gorm:"default:false"`
	TriggeredAt time.Time `json:"triggered_at" gorm:"not null;index:idx_notif_dedup"`
}
