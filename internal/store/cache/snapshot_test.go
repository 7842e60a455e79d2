package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"proof-engine/internal/common/logger"
	"proof-engine/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLoader struct {
	calls int
	snap  *models.Snapshot
	err   error
}

func (l *countingLoader) LoadSnapshot(ctx context.Context, widgetID string) (*models.Snapshot, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	snap := *l.snap
	snap.Widget.ID = widgetID
	return &snap, nil
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func sampleSnapshot() *models.Snapshot {
	return &models.Snapshot{
		Widget:    models.WidgetConfig{WebsiteID: "site-1", Version: 2},
		Campaigns: []models.Campaign{{ID: "c-1", Status: models.CampaignStatusActive, Priority: 80}},
		Events: []models.NotificationEvent{
			{ID: "e-1", Origin: models.OriginNatural, Status: models.EventStatusApproved, QualityScore: 90},
		},
		FetchedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestLoadSnapshot_CacheAside(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)
	loader := &countingLoader{snap: sampleSnapshot()}
	cache := NewSnapshotCache(client, loader, "", time.Minute, logger.NewTestLogger(t))

	first, err := cache.LoadSnapshot(ctx, "w-1")
	require.NoError(t, err)
	second, err := cache.LoadSnapshot(ctx, "w-1")
	require.NoError(t, err)

	assert.Equal(t, 1, loader.calls)
	assert.Equal(t, first, second)
	assert.True(t, mr.Exists("snapshot:widget:w-1"))
	assert.Equal(t, time.Minute, mr.TTL("snapshot:widget:w-1"))

	mr.FastForward(2 * time.Minute)
	_, err = cache.LoadSnapshot(ctx, "w-1")
	require.NoError(t, err)
	assert.Equal(t, 2, loader.calls)
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)
	loader := &countingLoader{snap: sampleSnapshot()}
	cache := NewSnapshotCache(client, loader, "snap", time.Minute, logger.NewNoOpLogger())

	_, err := cache.LoadSnapshot(ctx, "w-1")
	require.NoError(t, err)
	require.True(t, mr.Exists("snap:w-1"))

	require.NoError(t, cache.Invalidate(ctx, "w-1"))
	assert.False(t, mr.Exists("snap:w-1"))

	_, err = cache.LoadSnapshot(ctx, "w-1")
	require.NoError(t, err)
	assert.Equal(t, 2, loader.calls)
}

func TestLoadSnapshot_CorruptEntryIsReloaded(t *testing.T) {
	mr, client := setupRedis(t)
	require.NoError(t, mr.Set("snapshot:widget:w-1", "{not json"))

	loader := &countingLoader{snap: sampleSnapshot()}
	cache := NewSnapshotCache(client, loader, "", time.Minute, logger.NewNoOpLogger())

	snap, err := cache.LoadSnapshot(context.Background(), "w-1")
	require.NoError(t, err)
	assert.Equal(t, "w-1", snap.Widget.ID)
	assert.Equal(t, 1, loader.calls)
}

func TestLoadSnapshot_RedisDownFallsThrough(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.ExpectGet("snapshot:widget:w-1").SetErr(errors.New("i/o timeout"))
	mock.Regexp().ExpectSet("snapshot:widget:w-1", `.*`, time.Minute).SetErr(errors.New("i/o timeout"))

	loader := &countingLoader{snap: sampleSnapshot()}
	cache := NewSnapshotCache(client, loader, "", time.Minute, logger.NewNoOpLogger())

	snap, err := cache.LoadSnapshot(context.Background(), "w-1")
	require.NoError(t, err)
	assert.Equal(t, "w-1", snap.Widget.ID)
	assert.Equal(t, 1, loader.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadSnapshot_LoaderError(t *testing.T) {
	_, client := setupRedis(t)
	loader := &countingLoader{err: errors.New("pg down")}
	cache := NewSnapshotCache(client, loader, "", time.Minute, logger.NewNoOpLogger())

	_, err := cache.LoadSnapshot(context.Background(), "w-1")
	assert.EqualError(t, err, "pg down")
}
