package insights

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/adwatch/internal/database"
	"github.com/adwatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func seedInsight(t *testing.T, db *gorm.DB, entityID, platform string, daysAgo int, spend float64, impressions, clicks, conversions int64, revenue float64) {
	t.Helper()
	require.NoError(t, db.Create(&models.AdInsight{
		AccountID:   "act_1",
		AccountName: "Acme Ads",
		EntityType:  "campaign",
		EntityID:    entityID,
		EntityName:  entityID,
		Platform:    platform,
		Date:        time.Now().UTC().AddDate(0, 0, -daysAgo),
		Spend:       spend,
		Impressions: impressions,
		Clicks:      clicks,
		Conversions: conversions,
		Revenue:     revenue,
	}).Error)
}

func TestFetchSnapshotsAggregatesAndDerives(t *testing.T) {
	db := newTestDB(t)
	seedInsight(t, db, "camp_1", "facebook", 1, 100, 10000, 100, 4, 80)
	seedInsight(t, db, "camp_1", "facebook", 2, 50, 5000, 50, 1, 70)

	snaps, err := NewSource(db, 7).FetchSnapshots(context.Background(), models.RuleScope{})
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	snap := snaps[0]
	require.NotNil(t, snap.Spend)
	assert.Equal(t, 150.0, *snap.Spend)
	require.NotNil(t, snap.CTR)
	assert.InDelta(t, 1.0, *snap.CTR, 1e-9) // 150 clicks / 15000 impressions
	require.NotNil(t, snap.CPC)
	assert.InDelta(t, 1.0, *snap.CPC, 1e-9)
	require.NotNil(t, snap.CPM)
	assert.InDelta(t, 10.0, *snap.CPM, 1e-9)
	require.NotNil(t, snap.CPA)
	assert.InDelta(t, 30.0, *snap.CPA, 1e-9)
	require.NotNil(t, snap.ROAS)
	assert.InDelta(t, 1.0, *snap.ROAS, 1e-9)
}

func TestFetchSnapshotsZeroDenominatorsAreUnavailable(t *testing.T) {
	db := newTestDB(t)
	seedInsight(t, db, "camp_1", "facebook", 1, 0, 0, 0, 0, 0)

	snaps, err := NewSource(db, 7).FetchSnapshots(context.Background(), models.RuleScope{})
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	snap := snaps[0]
	assert.Nil(t, snap.CTR, "no impressions, ctr unavailable rather than zero")
	assert.Nil(t, snap.CPC)
	assert.Nil(t, snap.CPM)
	assert.Nil(t, snap.CPA)
	assert.Nil(t, snap.ROAS)
	require.NotNil(t, snap.Spend)
	assert.Zero(t, *snap.Spend)
}

func TestFetchSnapshotsScopeAndWindowFilter(t *testing.T) {
	db := newTestDB(t)
	seedInsight(t, db, "camp_fb", "facebook", 1, 100, 1000, 10, 1, 50)
	seedInsight(t, db, "camp_ig", "instagram", 1, 100, 1000, 10, 1, 50)
	seedInsight(t, db, "camp_stale", "facebook", 30, 100, 1000, 10, 1, 50)

	snaps, err := NewSource(db, 7).FetchSnapshots(context.Background(), models.RuleScope{Platform: "facebook"})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "camp_fb", snaps[0].EntityID)
}
