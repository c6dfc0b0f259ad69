package alert

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adwatch/internal/models"
	"github.com/adwatch/internal/obs"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// MetricSource supplies the current metric snapshot set for a rule's scope.
type MetricSource interface {
	FetchSnapshots(ctx context.Context, scope models.RuleScope) ([]models.MetricSnapshot, error)
}

// Mailer dispatches a rendered alert to the rule owner's inbox.
type Mailer interface {
	Send(ctx context.Context, to []string, subject, htmlBody string) error
}

// Messenger mirrors fired alerts to a chat channel. Optional; delivery is
// best effort and never affects the rule's execution record.
type Messenger interface {
	Post(ctx context.Context, n *models.AlertNotification) error
}

// Runner evaluates every active alert rule against fresh metric snapshots:
// evaluate the condition, gate on the cooldown window, persist the
// notification, dispatch email, and write one aggregate execution record
// per rule. One rule's failure never stops the remaining rules.
type Runner struct {
	db        *gorm.DB
	source    MetricSource
	mailer    Mailer
	messenger Messenger
	dedup     *Deduplicator
	metrics   obs.Sink
	timeout   time.Duration
	log       zerolog.Logger
}

func NewRunner(db *gorm.DB, source MetricSource, mailer Mailer, messenger Messenger, metrics obs.Sink, timeout time.Duration, log zerolog.Logger) *Runner {
	return &Runner{
		db:        db,
		source:    source,
		mailer:    mailer,
		messenger: messenger,
		dedup:     NewDeduplicator(db),
		metrics:   metrics,
		timeout:   timeout,
		log:       log.With().Str("component", "alert_runner").Logger(),
	}
}

// RunActiveRules evaluates every active rule at now. Only a store-level
// failure listing the rules aborts the batch.
func (r *Runner) RunActiveRules(ctx context.Context, now time.Time) error {
	now = now.UTC()

	var rules []models.AlertRule
	if err := r.db.Where("is_active = ?", true).Find(&rules).Error; err != nil {
		r.metrics.BatchAborted()
		return fmt.Errorf("%w: list active rules: %v", models.ErrStoreUnavailable, err)
	}

	r.log.Info().Int("rules", len(rules)).Time("now", now).Msg("evaluating alert rules")

	for i := range rules {
		r.runRule(ctx, &rules[i], now)
	}
	return nil
}

func (r *Runner) runRule(ctx context.Context, rule *models.AlertRule, now time.Time) {
	log := r.log.With().Uint("rule_id", rule.ID).Str("name", rule.Name).Logger()

	exec := models.AlertRuleExecution{
		RuleID: rule.ID,
		RanAt:  now,
		Status: models.ExecutionStatusSuccess,
	}
	var problems []string
	fail := func(detail string) {
		exec.Status = models.ExecutionStatusFailed
		problems = append(problems, detail)
	}

	defer func() {
		if rec := recover(); rec != nil {
			fail(fmt.Sprintf("panic: %v", rec))
		}
		exec.ErrorDetail = strings.Join(problems, "; ")
		if err := r.db.Create(&exec).Error; err != nil {
			log.Error().Err(err).Msg("failed to write rule execution record")
		}
		r.metrics.RuleExecution(exec.Status)
	}()

	fctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	snapshots, err := r.source.FetchSnapshots(fctx, rule.Scope())
	if err != nil {
		log.Error().Err(err).Msg("metric fetch failed")
		fail(fmt.Sprintf("fetch snapshots: %v", err))
		return
	}

	var ownerEmail string
	if rule.EmailEnabled {
		var owner models.User
		if err := r.db.First(&owner, rule.UserID).Error; err != nil {
			log.Error().Err(err).Msg("failed to load rule owner")
			fail(fmt.Sprintf("load owner: %v", err))
		} else {
			ownerEmail = owner.Email
		}
	}

	for i := range snapshots {
		snap := &snapshots[i]

		value := snap.Value(rule.Metric)
		if value == nil {
			// Metric unavailable for this entity: not a failing condition,
			// not an error.
			continue
		}
		if !Evaluate(*value, rule.Comparison, rule.Threshold) {
			continue
		}

		recent, err := r.dedup.HasRecentAlert(rule.ID, snap.EntityType, snap.EntityID, now)
		if err != nil {
			// Fail closed: suppressing one notification beats a storm of
			// duplicates if the store flaps across ticks.
			log.Warn().Err(err).Str("entity_id", snap.EntityID).Msg("dedup check failed, suppressing alert")
			continue
		}
		if recent {
			continue
		}

		if n := r.fire(ctx, rule, snap, *value, ownerEmail, now, log, fail); n != nil {
			exec.AlertsTriggered++
		}
	}

	if exec.AlertsTriggered > 0 {
		log.Info().Int("alerts", exec.AlertsTriggered).Msg("rule fired")
	}
}

// fire persists the notification and dispatches the enabled channels.
// Returns nil when the notification could not be persisted.
func (r *Runner) fire(ctx context.Context, rule *models.AlertRule, snap *models.MetricSnapshot, value float64, ownerEmail string, now time.Time, log zerolog.Logger, fail func(string)) *models.AlertNotification {
	var channels []string
	if rule.InAppEnabled {
		channels = append(channels, string(models.ChannelInApp))
	}
	if rule.EmailEnabled && ownerEmail != "" {
		channels = append(channels, string(models.ChannelEmail))
	}

	n := &models.AlertNotification{
		RuleID:      rule.ID,
		RuleName:    rule.Name,
		EntityType:  snap.EntityType,
		EntityID:    snap.EntityID,
		EntityName:  snap.EntityName,
		AccountID:   snap.AccountID,
		AccountName: snap.AccountName,
		MetricValue: value,
		Threshold:   rule.Threshold,
		Message:     FormatMessage(rule, snap, value),
		Channels:    strings.Join(channels, ","),
		TriggeredAt: now,
	}

	if err := r.db.Create(n).Error; err != nil {
		log.Error().Err(err).Str("entity_id", snap.EntityID).Msg("failed to persist notification")
		fail(fmt.Sprintf("persist notification for %s: %v", snap.EntityID, err))
		return nil
	}
	r.metrics.AlertFired()

	if rule.EmailEnabled && ownerEmail != "" {
		subject := fmt.Sprintf("Adwatch alert: %s", rule.Name)
		body, err := RenderAlertEmail(n)
		if err != nil {
			log.Error().Err(err).Str("entity_id", snap.EntityID).Msg("alert email render failed")
			fail(fmt.Sprintf("render email for %s: %v", snap.EntityID, err))
		} else {
			mctx, cancel := context.WithTimeout(ctx, r.timeout)
			if err := r.mailer.Send(mctx, []string{ownerEmail}, subject, body); err != nil {
				log.Error().Err(err).Str("entity_id", snap.EntityID).Msg("alert email failed")
				fail(fmt.Sprintf("email for %s: %v", snap.EntityID, err))
			}
			cancel()
		}
	}

	if r.messenger != nil {
		mctx, cancel := context.WithTimeout(ctx, r.timeout)
		if err := r.messenger.Post(mctx, n); err != nil {
			log.Warn().Err(err).Msg("chat mirror failed")
		}
		cancel()
	}

	return n
}
