package alert

import (
	"fmt"
	"time"

	"github.com/adwatch/internal/models"
	"gorm.io/gorm"
)

// CooldownWindow is the fixed span during which a repeated true condition
// for the same (rule, entity) is suppressed from re-firing.
const CooldownWindow = time.Hour

// Deduplicator gates notification creation on the cooldown window.
type Deduplicator struct {
	db *gorm.DB
}

func NewDeduplicator(db *gorm.DB) *Deduplicator {
	return &Deduplicator{db: db}
}

// HasRecentAlert reports whether a notification for the exact
// (rule, entityType, entityID) triple was created within the cooldown
// window before now. Callers must fail closed on error: treat the alert as
// recent and suppress, since a duplicate storm is worse than one missed
// notification.
func (d *Deduplicator) HasRecentAlert(ruleID uint, entityType, entityID string, now time.Time) (bool, error) {
	var count int64
	err := d.db.Model(&models.AlertNotification{}).
		Where("rule_id = ? AND entity_type = ? AND entity_id = ? AND triggered_at > ?",
			ruleID, entityType, entityID, now.UTC().Add(-CooldownWindow)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%w: dedup check: %v", models.ErrStoreUnavailable, err)
	}
	return count > 0, nil
}
