// Package report builds the CSV artifacts attached to scheduled report and
// export deliveries.
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adwatch/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Builder produces a CSV of recent ad performance for a schedule. The data
// window follows the schedule's frequency: daily schedules cover the last
// day, weekly the last week, monthly the last month.
type Builder struct {
	db *gorm.DB
}

func NewBuilder(db *gorm.DB) *Builder {
	return &Builder{db: db}
}

func (b *Builder) Build(ctx context.Context, def models.ScheduleDefinition) (*models.Artifact, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -windowDays(def.Frequency))

	var rows []models.AdInsight
	err := b.db.WithContext(ctx).
		Where("date >= ?", cutoff).
		Order("date asc, account_id asc, entity_id asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load insights: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"date", "account_id", "account_name", "entity_type", "entity_id",
		"entity_name", "spend", "impressions", "clicks", "conversions", "revenue"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.Date.Format("2006-01-02"),
			row.AccountID,
			row.AccountName,
			row.EntityType,
			row.EntityID,
			row.EntityName,
			strconv.FormatFloat(row.Spend, 'f', 2, 64),
			strconv.FormatInt(row.Impressions, 10),
			strconv.FormatInt(row.Clicks, 10),
			strconv.FormatInt(row.Conversions, 10),
			strconv.FormatFloat(row.Revenue, 'f', 2, 64),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}

	name := fmt.Sprintf("%s_%s_%s.csv", def.JobType, slug(def.Name), uuid.NewString()[:8])
	return &models.Artifact{
		Name:        name,
		ContentType: "text/csv",
		Bytes:       buf.Bytes(),
		RecordCount: len(rows),
	}, nil
}

func windowDays(freq models.Frequency) int {
	switch freq {
	case models.FrequencyDaily:
		return 1
	case models.FrequencyWeekly:
		return 7
	case models.FrequencyMonthly:
		return 31
	default:
		return 7
	}
}

func slug(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			sb.WriteRune('_')
		}
	}
	if sb.Len() == 0 {
		return "report"
	}
	return sb.String()
}
