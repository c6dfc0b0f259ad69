package schedule

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/adwatch/internal/models"
	"github.com/adwatch/internal/obs"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Builder produces the report/export artifact for one schedule definition.
type Builder interface {
	Build(ctx context.Context, def models.ScheduleDefinition) (*models.Artifact, error)
}

// DeliveryResult reports the outcome for a single recipient.
type DeliveryResult struct {
	Recipient string
	Err       error
}

// Notifier delivers an artifact to each recipient. Per-recipient failures
// are reported individually so the pipeline can distinguish a partial
// success from a total one.
type Notifier interface {
	Deliver(ctx context.Context, recipients []string, subject, htmlBody string, attachment *models.Artifact) []DeliveryResult
}

// Schedule names come from users; the template escapes them.
var deliveryBodyTmpl = template.Must(template.New("delivery_email").Parse(
	"<p>Your scheduled {{.JobType}} <b>{{.Name}}</b> is attached ({{.Records}} records).</p>"))

// Pipeline executes due schedules: claim, build, deliver, log the outcome,
// then recompute next_run or deactivate. Execution is at-least-once:
// last_run is recorded at claim time so a crash mid-run leaves the job
// retryable on the next tick.
type Pipeline struct {
	db       *gorm.DB
	selector *Selector
	builder  Builder
	notifier Notifier
	metrics  obs.Sink
	timeout  time.Duration
	log      zerolog.Logger
}

func NewPipeline(db *gorm.DB, builder Builder, notifier Notifier, metrics obs.Sink, timeout time.Duration, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		db:       db,
		selector: NewSelector(db),
		builder:  builder,
		notifier: notifier,
		metrics:  metrics,
		timeout:  timeout,
		log:      log.With().Str("component", "schedule_pipeline").Logger(),
	}
}

// RunDueSchedules processes every schedule due at now, reports first, then
// exports, each batch in ascending next_run order. One job's failure never
// stops the batch; only a store-level failure does.
func (p *Pipeline) RunDueSchedules(ctx context.Context, now time.Time) error {
	now = now.UTC()

	reports, err := p.selector.DueReports(now)
	if err != nil {
		p.metrics.BatchAborted()
		return err
	}
	exports, err := p.selector.DueExports(now)
	if err != nil {
		p.metrics.BatchAborted()
		return err
	}

	due := append(reports, exports...)
	p.log.Info().Int("due", len(due)).Time("now", now).Msg("processing due schedules")

	for i := range due {
		p.runOne(ctx, &due[i], now)
	}
	return nil
}

func (p *Pipeline) runOne(ctx context.Context, def *models.ScheduleDefinition, now time.Time) {
	log := p.log.With().Uint("schedule_id", def.ID).Str("name", def.Name).Logger()

	claimed, err := p.claim(def, now)
	if err != nil {
		log.Error().Err(err).Msg("failed to claim schedule")
		return
	}
	if !claimed {
		log.Debug().Msg("schedule already running, skipping")
		return
	}
	defer p.releaseClaim(def)

	// Validate the recurrence before doing any work. A malformed definition
	// is a failed run that leaves next_run untouched: the job retries once
	// the definition is corrected, never on a silently wrong instant.
	next, err := NextRunFor(def, now)
	if err != nil {
		log.Error().Err(err).Msg("invalid recurrence spec")
		p.writeEntry(def, now, models.ExecutionStatusFailed, 0, 0, err.Error())
		return
	}

	status, recordCount, artifactBytes, errDetail := p.execute(ctx, def)
	if errDetail != "" {
		log.Error().Str("status", string(status)).Str("error", errDetail).Msg("schedule execution finished with errors")
	} else {
		log.Info().Str("status", string(status)).Int("records", recordCount).Msg("schedule execution finished")
	}

	p.writeEntry(def, now, status, recordCount, artifactBytes, errDetail)
	p.reschedule(def, next, log)
}

// execute builds the artifact and attempts delivery. A panicking
// collaborator is contained here and reported as a failed execution.
func (p *Pipeline) execute(ctx context.Context, def *models.ScheduleDefinition) (status models.ExecutionStatus, recordCount, artifactBytes int, errDetail string) {
	defer func() {
		if r := recover(); r != nil {
			status = models.ExecutionStatusFailed
			errDetail = fmt.Sprintf("collaborator panic: %v", r)
		}
	}()

	bctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	artifact, err := p.builder.Build(bctx, *def)
	if err != nil {
		return models.ExecutionStatusFailed, 0, 0, fmt.Sprintf("build: %v", err)
	}
	recordCount = artifact.RecordCount
	artifactBytes = len(artifact.Bytes)

	if len(def.Recipients) == 0 {
		return models.ExecutionStatusSuccess, recordCount, artifactBytes, ""
	}

	dctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	subject := fmt.Sprintf("Adwatch %s: %s", def.JobType, def.Name)
	var body bytes.Buffer
	err = deliveryBodyTmpl.Execute(&body, map[string]interface{}{
		"JobType": def.JobType,
		"Name":    def.Name,
		"Records": recordCount,
	})
	if err != nil {
		return models.ExecutionStatusFailed, recordCount, artifactBytes, fmt.Sprintf("render email body: %v", err)
	}

	results := p.notifier.Deliver(dctx, def.Recipients, subject, body.String(), artifact)
	var failed []string
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", r.Recipient, r.Err))
		}
	}

	switch {
	case len(failed) == 0:
		return models.ExecutionStatusSuccess, recordCount, artifactBytes, ""
	case len(failed) < len(results):
		return models.ExecutionStatusPartial, recordCount, artifactBytes,
			fmt.Sprintf("delivery failed for %d of %d recipients: %v", len(failed), len(results), failed)
	default:
		return models.ExecutionStatusFailed, recordCount, artifactBytes,
			fmt.Sprintf("delivery failed for all %d recipients: %v", len(results), failed)
	}
}

// claim atomically moves the definition into running state and records
// last_run. Zero rows affected means another invocation holds the job.
func (p *Pipeline) claim(def *models.ScheduleDefinition, now time.Time) (bool, error) {
	res := p.db.Model(&models.ScheduleDefinition{}).
		Where("id = ? AND status <> ?", def.ID, models.ScheduleStatusRunning).
		Updates(map[string]interface{}{
			"status":   models.ScheduleStatusRunning,
			"last_run": now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("%w: claim schedule %d: %v", models.ErrStoreUnavailable, def.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	def.Status = models.ScheduleStatusRunning
	def.LastRun = &now
	return true, nil
}

func (p *Pipeline) releaseClaim(def *models.ScheduleDefinition) {
	err := p.db.Model(&models.ScheduleDefinition{}).
		Where("id = ?", def.ID).
		Update("status", models.ScheduleStatusIdle).Error
	if err != nil {
		p.log.Error().Err(err).Uint("schedule_id", def.ID).Msg("failed to release schedule claim")
	}
}

func (p *Pipeline) writeEntry(def *models.ScheduleDefinition, now time.Time, status models.ExecutionStatus, recordCount, artifactBytes int, errDetail string) {
	entry := models.ExecutionLogEntry{
		ScheduleID:    def.ID,
		RanAt:         now,
		Status:        status,
		RecordCount:   recordCount,
		ArtifactBytes: artifactBytes,
		ErrorDetail:   errDetail,
	}
	if err := p.db.Create(&entry).Error; err != nil {
		p.log.Error().Err(err).Uint("schedule_id", def.ID).Msg("failed to write execution log entry")
	}
	p.metrics.ScheduleExecution(status)
}

// reschedule persists the precomputed next run. One-time schedules are
// deactivated instead of rescheduled; the row is kept for the dashboard.
func (p *Pipeline) reschedule(def *models.ScheduleDefinition, next *time.Time, log zerolog.Logger) {
	updates := map[string]interface{}{}
	if def.Frequency == models.FrequencyOnce || next == nil {
		updates["is_active"] = false
		updates["next_run"] = nil
	} else {
		updates["next_run"] = *next
	}

	err := p.db.Model(&models.ScheduleDefinition{}).Where("id = ?", def.ID).Updates(updates).Error
	if err != nil {
		log.Error().Err(err).Msg("failed to persist next run")
		return
	}
	if next != nil {
		log.Debug().Time("next_run", *next).Msg("schedule rescheduled")
	} else {
		log.Debug().Msg("one-time schedule deactivated")
	}
}

// IsStoreUnavailable reports whether err is a store-level failure that
// aborted a batch.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, models.ErrStoreUnavailable)
}
