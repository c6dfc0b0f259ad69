package models

import (
	"gorm.io/gorm"
)

type Comparison string

const (
	ComparisonGT  Comparison = "gt"
	ComparisonLT  Comparison = "lt"
	ComparisonEQ  Comparison = "eq"
	ComparisonNE  Comparison = "ne"
	ComparisonGTE Comparison = "gte"
	ComparisonLTE Comparison = "lte"
)

type Metric string

const (
	MetricCPA         Metric = "cpa"
	MetricROAS        Metric = "roas"
	MetricCTR         Metric = "ctr"
	MetricCPC         Metric = "cpc"
	MetricCPM         Metric = "cpm"
	MetricSpend       Metric = "spend"
	MetricImpressions Metric = "impressions"
	MetricClicks      Metric = "clicks"
)

// RuleScope narrows which entities a rule is evaluated against. The engine
// does not interpret these fields; they are passed through to the metric
// source. Empty fields match everything.
type RuleScope struct {
	Platform  string `json:"platform"`
	Country   string `json:"country"`
	Objective string `json:"objective"`
}

// AlertRule is a standing condition an admin wants monitored: one metric,
// one comparison, one threshold. Threshold units follow the metric
// (currency for spend/cpa/cpc/cpm, ratio for roas, percentage for ctr,
// raw count for impressions/clicks).
type AlertRule struct {
	gorm.Model
	UserID       uint       `json:"user_id" gorm:"not null"`
	Name         string     `json:"name" gorm:"not null"`
	Platform     string     `json:"platform"`
	Country      string     `json:"country"`
	Objective    string     `json:"objective"`
	Metric       Metric     `json:"metric" gorm:"not null"`
	Comparison   Comparison `json:"comparison" gorm:"not null"`
	Threshold    float64    `json:"threshold" gorm:"not null"`
	// No column defaults on the flags: gorm's Create omits zero-valued
	// fields that carry a default tag, which would silently flip an
	// explicit false back to true. Writers set these explicitly.
	IsActive     bool `json:"is_active"`
	EmailEnabled bool `json:"email_enabled"`
	InAppEnabled bool `json:"in_app_enabled"`
}

func (r *AlertRule) Scope() RuleScope {
	return RuleScope{Platform: r.Platform, Country: r.Country, Objective: r.Objective}
}
