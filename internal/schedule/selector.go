package schedule

import (
	"fmt"
	"time"

	"github.com/adwatch/internal/models"
	"gorm.io/gorm"
)

// Selector reads due schedule definitions. It never writes; claiming a job
// is the pipeline's business.
type Selector struct {
	db *gorm.DB
}

func NewSelector(db *gorm.DB) *Selector {
	return &Selector{db: db}
}

// DueReports returns active report schedules whose next_run is at or before
// now, soonest first. Definitions with a null next_run are terminal one-time
// jobs and are not due.
func (s *Selector) DueReports(now time.Time) ([]models.ScheduleDefinition, error) {
	var defs []models.ScheduleDefinition
	err := s.db.
		Where("is_active = ? AND job_type = ? AND next_run IS NOT NULL AND next_run <= ?",
			true, models.JobTypeReport, now.UTC()).
		Order("next_run asc").
		Find(&defs).Error
	if err != nil {
		return nil, fmt.Errorf("%w: select due reports: %v", models.ErrStoreUnavailable, err)
	}
	return defs, nil
}

// DueExports returns active export schedules that are due. Unlike reports, a
// null next_run counts as immediately due and sorts first (sqlite orders
// nulls first on ascending sort).
func (s *Selector) DueExports(now time.Time) ([]models.ScheduleDefinition, error) {
	var defs []models.ScheduleDefinition
	err := s.db.
		Where("is_active = ? AND job_type = ? AND (next_run IS NULL OR next_run <= ?)",
			true, models.JobTypeExport, now.UTC()).
		Order("next_run asc").
		Find(&defs).Error
	if err != nil {
		return nil, fmt.Errorf("%w: select due exports: %v", models.ErrStoreUnavailable, err)
	}
	return defs, nil
}
