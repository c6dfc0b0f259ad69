package trigger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/adwatch/internal/alert"
	"github.com/adwatch/internal/database"
	"github.com/adwatch/internal/models"
	"github.com/adwatch/internal/obs"
	"github.com/adwatch/internal/schedule"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type blockingBuilder struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingBuilder) Build(ctx context.Context, def models.ScheduleDefinition) (*models.Artifact, error) {
	close(b.started)
	<-b.release
	return &models.Artifact{Name: "x.csv", RecordCount: 0}, nil
}

type noopNotifier struct{}

func (noopNotifier) Deliver(ctx context.Context, recipients []string, subject, htmlBody string, attachment *models.Artifact) []schedule.DeliveryResult {
	return nil
}

type emptySource struct{}

func (emptySource) FetchSnapshots(ctx context.Context, scope models.RuleScope) ([]models.MetricSnapshot, error) {
	return nil, nil
}

type noopMailer struct{}

func (noopMailer) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	return nil
}

func TestRunSchedulesNowIsSingleFlight(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	due := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, db.Create(&models.ScheduleDefinition{
		Name:      "slow report",
		JobType:   models.JobTypeReport,
		Frequency: models.FrequencyDaily,
		Hour:      9,
		IsActive:  true,
		Status:    models.ScheduleStatusIdle,
		NextRun:   &due,
	}).Error)

	builder := &blockingBuilder{started: make(chan struct{}), release: make(chan struct{})}
	pipeline := schedule.NewPipeline(db, builder, noopNotifier{}, obs.NopSink{}, time.Minute, zerolog.Nop())
	runner := alert.NewRunner(db, emptySource{}, noopMailer{}, nil, obs.NopSink{}, time.Minute, zerolog.Nop())

	trig, err := New(Config{ScheduleCadence: "@every 1h", AlertCadence: "@every 1h"},
		pipeline, runner, zerolog.Nop())
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	var first bool
	go func() {
		defer wg.Done()
		first = trig.RunSchedulesNow(context.Background())
	}()

	<-builder.started
	assert.False(t, trig.RunSchedulesNow(context.Background()),
		"overlapping fire is skipped, not queued")
	assert.True(t, trig.RunAlertsNow(context.Background()),
		"the alert entry point has its own guard")

	close(builder.release)
	wg.Wait()
	assert.True(t, first)
}
