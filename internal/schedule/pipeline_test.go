package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adwatch/internal/models"
	"github.com/adwatch/internal/obs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubBuilder struct {
	artifact *models.Artifact
	err      error
	panicFor map[string]bool // def names that make Build panic
	calls    int
}

func (b *stubBuilder) Build(ctx context.Context, def models.ScheduleDefinition) (*models.Artifact, error) {
	b.calls++
	if b.panicFor[def.Name] {
		panic("builder exploded")
	}
	if b.err != nil {
		return nil, b.err
	}
	if b.artifact != nil {
		return b.artifact, nil
	}
	return &models.Artifact{Name: "report.csv", Bytes: []byte("a,b\n1,2\n"), RecordCount: 1}, nil
}

type stubNotifier struct {
	failFor   map[string]error
	delivered [][]string
	bodies    []string
}

func (n *stubNotifier) Deliver(ctx context.Context, recipients []string, subject, htmlBody string, attachment *models.Artifact) []DeliveryResult {
	n.delivered = append(n.delivered, recipients)
	n.bodies = append(n.bodies, htmlBody)
	results := make([]DeliveryResult, 0, len(recipients))
	for _, r := range recipients {
		results = append(results, DeliveryResult{Recipient: r, Err: n.failFor[r]})
	}
	return results
}

func newTestPipeline(db *gorm.DB, builder Builder, notifier Notifier) *Pipeline {
	return NewPipeline(db, builder, notifier, obs.NopSink{}, time.Second, zerolog.Nop())
}

func seedDueDaily(t *testing.T, db *gorm.DB, name string, recipients []string) models.ScheduleDefinition {
	t.Helper()
	due := time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC)
	def := models.ScheduleDefinition{
		Name:       name,
		JobType:    models.JobTypeReport,
		Frequency:  models.FrequencyDaily,
		Hour:       9,
		Recipients: recipients,
		IsActive:   true,
		Status:     models.ScheduleStatusIdle,
		NextRun:    &due,
	}
	require.NoError(t, db.Create(&def).Error)
	return def
}

func reload(t *testing.T, db *gorm.DB, id uint) models.ScheduleDefinition {
	t.Helper()
	var def models.ScheduleDefinition
	require.NoError(t, db.First(&def, id).Error)
	return def
}

func entriesFor(t *testing.T, db *gorm.DB, id uint) []models.ExecutionLogEntry {
	t.Helper()
	var entries []models.ExecutionLogEntry
	require.NoError(t, db.Where("schedule_id = ?", id).Find(&entries).Error)
	return entries
}

var testNow = time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)

func TestPipelineSuccessfulRun(t *testing.T) {
	db := newTestDB(t)
	def := seedDueDaily(t, db, "daily report", []string{"a@example.com", "b@example.com"})
	notifier := &stubNotifier{}

	p := newTestPipeline(db, &stubBuilder{}, notifier)
	require.NoError(t, p.RunDueSchedules(context.Background(), testNow))

	entries := entriesFor(t, db, def.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ExecutionStatusSuccess, entries[0].Status)
	assert.Equal(t, 1, entries[0].RecordCount)
	assert.Equal(t, 8, entries[0].ArtifactBytes)
	assert.Empty(t, entries[0].ErrorDetail)

	require.Len(t, notifier.delivered, 1)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, notifier.delivered[0])

	got := reload(t, db, def.ID)
	assert.Equal(t, models.ScheduleStatusIdle, got.Status)
	require.NotNil(t, got.LastRun)
	assert.True(t, got.LastRun.Equal(testNow))
	require.NotNil(t, got.NextRun)
	assert.True(t, got.NextRun.Equal(time.Date(2024, 1, 4, 9, 0, 0, 0, time.UTC)),
		"next run recomputed from the execution instant")
	assert.True(t, got.IsActive)
}

func TestPipelineBuildFailureStillReschedules(t *testing.T) {
	db := newTestDB(t)
	def := seedDueDaily(t, db, "daily report", []string{"a@example.com"})
	notifier := &stubNotifier{}

	p := newTestPipeline(db, &stubBuilder{err: errors.New("insights query failed")}, notifier)
	require.NoError(t, p.RunDueSchedules(context.Background(), testNow))

	entries := entriesFor(t, db, def.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ExecutionStatusFailed, entries[0].Status)
	assert.Contains(t, entries[0].ErrorDetail, "insights query failed")
	assert.Empty(t, notifier.delivered, "no delivery without an artifact")

	got := reload(t, db, def.ID)
	require.NotNil(t, got.NextRun)
	assert.True(t, got.NextRun.Equal(time.Date(2024, 1, 4, 9, 0, 0, 0, time.UTC)),
		"scheduling cadence survives a bad run")
	assert.Equal(t, models.ScheduleStatusIdle, got.Status)
}

func TestPipelinePartialDelivery(t *testing.T) {
	db := newTestDB(t)
	def := seedDueDaily(t, db, "daily report", []string{"ok@example.com", "bad@example.com"})
	notifier := &stubNotifier{failFor: map[string]error{"bad@example.com": errors.New("mailbox full")}}

	p := newTestPipeline(db, &stubBuilder{}, notifier)
	require.NoError(t, p.RunDueSchedules(context.Background(), testNow))

	entries := entriesFor(t, db, def.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ExecutionStatusPartial, entries[0].Status)
	assert.Contains(t, entries[0].ErrorDetail, "bad@example.com")
	assert.Contains(t, entries[0].ErrorDetail, "1 of 2")
}

func TestPipelineTotalDeliveryFailure(t *testing.T) {
	db := newTestDB(t)
	def := seedDueDaily(t, db, "daily report", []string{"x@example.com", "y@example.com"})
	notifier := &stubNotifier{failFor: map[string]error{
		"x@example.com": errors.New("bounced"),
		"y@example.com": errors.New("bounced"),
	}}

	p := newTestPipeline(db, &stubBuilder{}, notifier)
	require.NoError(t, p.RunDueSchedules(context.Background(), testNow))

	entries := entriesFor(t, db, def.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ExecutionStatusFailed, entries[0].Status)
}

func TestPipelineEscapesMarkupInDeliveryBody(t *testing.T) {
	db := newTestDB(t)
	seedDueDaily(t, db, `<script>alert("x")</script>`, []string{"a@example.com"})
	notifier := &stubNotifier{}

	p := newTestPipeline(db, &stubBuilder{}, notifier)
	require.NoError(t, p.RunDueSchedules(context.Background(), testNow))

	require.Len(t, notifier.bodies, 1)
	assert.Contains(t, notifier.bodies[0], "&lt;script&gt;")
	assert.NotContains(t, notifier.bodies[0], "<script>")
}

func TestPipelineDeactivatesOneTimeSchedule(t *testing.T) {
	db := newTestDB(t)
	due := testNow.Add(-time.Minute)
	def := models.ScheduleDefinition{
		Name:      "one-off export",
		JobType:   models.JobTypeExport,
		Frequency: models.FrequencyOnce,
		Hour:      9,
		IsActive:  true,
		Status:    models.ScheduleStatusIdle,
		NextRun:   &due,
	}
	require.NoError(t, db.Create(&def).Error)

	p := newTestPipeline(db, &stubBuilder{}, &stubNotifier{})
	require.NoError(t, p.RunDueSchedules(context.Background(), testNow))

	entries := entriesFor(t, db, def.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ExecutionStatusSuccess, entries[0].Status)

	got := reload(t, db, def.ID)
	assert.False(t, got.IsActive, "one-time job reaches its terminal state")
	assert.Nil(t, got.NextRun)
}

func TestPipelineInvalidRecurrenceLeavesNextRunUnchanged(t *testing.T) {
	db := newTestDB(t)
	due := testNow.Add(-time.Hour)
	def := models.ScheduleDefinition{
		Name:      "broken weekly",
		JobType:   models.JobTypeReport,
		Frequency: models.FrequencyWeekly,
		DayOfWeek: 9,
		Hour:      9,
		IsActive:  true,
		Status:    models.ScheduleStatusIdle,
		NextRun:   &due,
	}
	require.NoError(t, db.Create(&def).Error)

	builder := &stubBuilder{}
	p := newTestPipeline(db, builder, &stubNotifier{})
	require.NoError(t, p.RunDueSchedules(context.Background(), testNow))

	assert.Zero(t, builder.calls, "no work attempted on a malformed definition")

	entries := entriesFor(t, db, def.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ExecutionStatusFailed, entries[0].Status)
	assert.Contains(t, entries[0].ErrorDetail, "invalid recurrence")

	got := reload(t, db, def.ID)
	require.NotNil(t, got.NextRun)
	assert.True(t, got.NextRun.Equal(due), "next_run untouched until the definition is corrected")
	assert.Equal(t, models.ScheduleStatusIdle, got.Status, "claim released")
}

func TestPipelineSkipsClaimedSchedule(t *testing.T) {
	db := newTestDB(t)
	def := seedDueDaily(t, db, "daily report", nil)
	require.NoError(t, db.Model(&def).Update("status", models.ScheduleStatusRunning).Error)

	builder := &stubBuilder{}
	p := newTestPipeline(db, builder, &stubNotifier{})
	require.NoError(t, p.RunDueSchedules(context.Background(), testNow))

	assert.Zero(t, builder.calls, "a schedule held by another invocation is skipped")
	assert.Empty(t, entriesFor(t, db, def.ID))
}

func TestPipelinePanicDoesNotAbortBatch(t *testing.T) {
	db := newTestDB(t)
	first := seedDueDaily(t, db, "exploding", nil)
	second := seedDueDaily(t, db, "healthy", nil)

	builder := &stubBuilder{panicFor: map[string]bool{"exploding": true}}
	p := newTestPipeline(db, builder, &stubNotifier{})
	require.NoError(t, p.RunDueSchedules(context.Background(), testNow))

	failed := entriesFor(t, db, first.ID)
	require.Len(t, failed, 1)
	assert.Equal(t, models.ExecutionStatusFailed, failed[0].Status)
	assert.Contains(t, failed[0].ErrorDetail, "panic")

	ok := entriesFor(t, db, second.ID)
	require.Len(t, ok, 1)
	assert.Equal(t, models.ExecutionStatusSuccess, ok[0].Status)

	got := reload(t, db, first.ID)
	require.NotNil(t, got.NextRun)
	assert.True(t, got.NextRun.After(testNow), "cadence preserved after a panic")
	assert.Equal(t, models.ScheduleStatusIdle, got.Status)
}
