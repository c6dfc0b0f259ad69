package models

import (
	"time"

	"gorm.io/gorm"
)

type Frequency string

const (
	FrequencyOnce    Frequency = "once"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

type JobType string

const (
	JobTypeReport JobType = "report"
	JobTypeExport JobType = "export"
)

type ScheduleStatus string

const (
	ScheduleStatusIdle    ScheduleStatus = "idle"
	ScheduleStatusRunning ScheduleStatus = "running"
)

// ScheduleDefinition is a recurring obligation to produce and deliver a
// report or export. NextRun is the earliest future instant the definition
// must fire; nil means "do not reschedule" (one-time jobs after completion).
// All instants are UTC.
type ScheduleDefinition struct {
	gorm.Model
	Name       string         `json:"name" gorm:"not null"`
	ReportID   uint           `json:"report_id"`
	JobType    JobType        `json:"job_type" gorm:"not null;default:report"`
	Frequency  Frequency      `json:"frequency" gorm:"not null"`
	Hour       int            `json:"hour" gorm:"not null"`
	Minute     int            `json:"minute" gorm:"not null"`
	DayOfWeek  int            `json:"day_of_week"`  // ISO 1=Monday..7=Sunday, weekly only
	DayOfMonth int            `json:"day_of_month"` // 1-31, monthly only
	Recipients []string       `json:"recipients" gorm:"serializer:json"`
	IsActive   bool           `json:"is_active"`
	Status     ScheduleStatus `json:"status" gorm:"not null;default:idle"`
	LastRun    *time.Time     `json:"last_run"`
	NextRun    *time.Time     `json:"next_run"`
}
