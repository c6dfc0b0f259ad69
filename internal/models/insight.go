package models

import (
	"time"

	"gorm.io/gorm"
)

// AdInsight is one day of measured performance for one ad entity, as synced
// from the ads platform. The metric source aggregates these rows into
// MetricSnapshots; derived ratios (cpa, roas, ctr, cpc, cpm) are computed
// at read time from the raw columns.
type AdInsight struct {
	gorm.Model
	AccountID   string    `json:"account_id" gorm:"index;not null"`
	AccountName string    `json:"account_name"`
	EntityType  string    `json:"entity_type" gorm:"index;not null"` // campaign, adset, ad
	EntityID    string    `json:"entity_id" gorm:"index;not null"`
	EntityName  string    `json:"entity_name"`
	Platform    string    `json:"platform"`
	Country     string    `json:"country"`
	Objective   string    `json:"objective"`
	Date        time.Time `json:"date" gorm:"index;not null"`
	Spend       float64   `json:"spend"`
	Impressions int64     `json:"impressions"`
	Clicks      int64     `json:"clicks"`
	Conversions int64     `json:"conversions"`
	Revenue     float64   `json:"revenue"`
}
