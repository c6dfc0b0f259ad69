// Package insights turns synced ad-performance rows into the metric
// snapshots the alert runner evaluates.
package insights

import (
	"context"
	"fmt"
	"time"

	"github.com/adwatch/internal/models"
	"gorm.io/gorm"
)

// Source aggregates ad_insights rows into per-entity MetricSnapshots over a
// trailing window. Derived ratios are computed at read time; a ratio whose
// denominator is zero is reported as unavailable (nil), never as zero.
type Source struct {
	db           *gorm.DB
	lookbackDays int
}

func NewSource(db *gorm.DB, lookbackDays int) *Source {
	if lookbackDays <= 0 {
		lookbackDays = 7
	}
	return &Source{db: db, lookbackDays: lookbackDays}
}

type aggregateRow struct {
	EntityType  string
	EntityID    string
	EntityName  string
	AccountID   string
	AccountName string
	Spend       float64
	Impressions int64
	Clicks      int64
	Conversions int64
	Revenue     float64
}

// FetchSnapshots returns one snapshot per entity matching the scope.
func (s *Source) FetchSnapshots(ctx context.Context, scope models.RuleScope) ([]models.MetricSnapshot, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.lookbackDays)

	q := s.db.WithContext(ctx).Model(&models.AdInsight{}).
		Select("entity_type, entity_id, entity_name, account_id, account_name, " +
			"SUM(spend) AS spend, SUM(impressions) AS impressions, SUM(clicks) AS clicks, " +
			"SUM(conversions) AS conversions, SUM(revenue) AS revenue").
		Where("date >= ?", cutoff).
		Group("entity_type, entity_id, entity_name, account_id, account_name")

	if scope.Platform != "" {
		q = q.Where("platform = ?", scope.Platform)
	}
	if scope.Country != "" {
		q = q.Where("country = ?", scope.Country)
	}
	if scope.Objective != "" {
		q = q.Where("objective = ?", scope.Objective)
	}

	var rows []aggregateRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("fetch insight aggregates: %w", err)
	}

	snapshots := make([]models.MetricSnapshot, 0, len(rows))
	for _, row := range rows {
		snapshots = append(snapshots, row.toSnapshot())
	}
	return snapshots, nil
}

func (r aggregateRow) toSnapshot() models.MetricSnapshot {
	snap := models.MetricSnapshot{
		EntityType:  r.EntityType,
		EntityID:    r.EntityID,
		EntityName:  r.EntityName,
		AccountID:   r.AccountID,
		AccountName: r.AccountName,
	}

	spend := r.Spend
	impressions := float64(r.Impressions)
	clicks := float64(r.Clicks)
	snap.Spend = &spend
	snap.Impressions = &impressions
	snap.Clicks = &clicks

	if r.Conversions > 0 {
		cpa := r.Spend / float64(r.Conversions)
		snap.CPA = &cpa
	}
	if r.Spend > 0 {
		roas := r.Revenue / r.Spend
		snap.ROAS = &roas
	}
	if r.Impressions > 0 {
		ctr := clicks / impressions * 100
		snap.CTR = &ctr
		cpm := r.Spend / impressions * 1000
		snap.CPM = &cpm
	}
	if r.Clicks > 0 {
		cpc := r.Spend / clicks
		snap.CPC = &cpc
	}
	return snap
}
