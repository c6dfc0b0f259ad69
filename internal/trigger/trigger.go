// Package trigger drives the engine on a cron cadence. The engine itself
// never owns a timer; it processes a snapshot of "what is due now" per
// invocation and terminates.
package trigger

import (
	"context"
	"sync"
	"time"

	"github.com/adwatch/internal/alert"
	"github.com/adwatch/internal/schedule"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type Config struct {
	ScheduleCadence string
	AlertCadence    string
}

// Trigger fires the schedule pipeline and the alert runner on their
// configured cadences. Each entry point is single-flight: an overlapping
// fire (a slow batch, or a manual run during a cron tick) is skipped rather
// than queued, so two invocations never process the same definitions
// concurrently within this process.
type Trigger struct {
	cron     *cron.Cron
	pipeline *schedule.Pipeline
	runner   *alert.Runner
	log      zerolog.Logger

	scheduleMu sync.Mutex
	alertMu    sync.Mutex
}

func New(cfg Config, pipeline *schedule.Pipeline, runner *alert.Runner, log zerolog.Logger) (*Trigger, error) {
	t := &Trigger{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		pipeline: pipeline,
		runner:   runner,
		log:      log.With().Str("component", "trigger").Logger(),
	}

	if _, err := t.cron.AddFunc(cfg.ScheduleCadence, func() { t.RunSchedulesNow(context.Background()) }); err != nil {
		return nil, err
	}
	if _, err := t.cron.AddFunc(cfg.AlertCadence, func() { t.RunAlertsNow(context.Background()) }); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Trigger) Start() {
	t.cron.Start()
	t.log.Info().Msg("trigger started")
}

// Stop halts the cadence and waits for any in-flight batch to finish.
func (t *Trigger) Stop() {
	<-t.cron.Stop().Done()
	t.scheduleMu.Lock()
	t.scheduleMu.Unlock()
	t.alertMu.Lock()
	t.alertMu.Unlock()
	t.log.Info().Msg("trigger stopped")
}

// RunSchedulesNow invokes the schedule pipeline once. Returns false if a
// run was already in progress.
func (t *Trigger) RunSchedulesNow(ctx context.Context) bool {
	if !t.scheduleMu.TryLock() {
		t.log.Warn().Msg("schedule run already in progress, skipping")
		return false
	}
	defer t.scheduleMu.Unlock()

	if err := t.pipeline.RunDueSchedules(ctx, time.Now()); err != nil {
		t.log.Error().Err(err).Bool("store_unavailable", schedule.IsStoreUnavailable(err)).Msg("schedule batch aborted")
	}
	return true
}

// RunAlertsNow invokes the alert runner once. Returns false if a run was
// already in progress.
func (t *Trigger) RunAlertsNow(ctx context.Context) bool {
	if !t.alertMu.TryLock() {
		t.log.Warn().Msg("alert run already in progress, skipping")
		return false
	}
	defer t.alertMu.Unlock()

	if err := t.runner.RunActiveRules(ctx, time.Now()); err != nil {
		t.log.Error().Err(err).Msg("alert batch aborted")
	}
	return true
}
