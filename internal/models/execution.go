package models

import (
	"time"

	"gorm.io/gorm"
)

type ExecutionStatus string

const (
	ExecutionStatusSuccess ExecutionStatus = "success"
	ExecutionStatusPartial ExecutionStatus = "partial"
	ExecutionStatusFailed  ExecutionStatus = "failed"
)

// ExecutionLogEntry records one execution attempt of a schedule. Entries are
// written once and never mutated; retention is handled outside the engine.
type ExecutionLogEntry struct {
	gorm.Model
	ScheduleID    uint            `json:"schedule_id" gorm:"not null;index"`
	RanAt         time.Time       `json:"ran_at" gorm:"not null"`
	Status        ExecutionStatus `json:"status" gorm:"not null"`
	RecordCount   int             `json:"record_count"`
	ArtifactBytes int             `json:"artifact_bytes"`
	ErrorDetail   string          `json:"error_detail,omitempty"`
}

// AlertRuleExecution is the aggregate record written after one evaluation
// pass of a rule: how many alerts fired and whether the pass itself failed.
type AlertRuleExecution struct {
	gorm.Model
	RuleID          uint            `json:"rule_id" gorm:"not null;index"`
	RanAt           time.Time       `json:"ran_at" gorm:"not null"`
	AlertsTriggered int             `json:"alerts_triggered"`
	Status          ExecutionStatus `json:"status" gorm:"not null"`
	ErrorDetail     string          `json:"error_detail,omitempty"`
}
