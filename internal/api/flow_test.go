package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"proof-engine/internal/api"
	"proof-engine/internal/common/config"
	"proof-engine/internal/common/logger"
	"proof-engine/internal/engine/admission"
	"proof-engine/internal/engine/playlist"
	"proof-engine/internal/engine/throttle"
	"proof-engine/internal/models"
	"proof-engine/internal/store/cache"
	"proof-engine/internal/store/postgres"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	widgetCols = []string{"id", "website_id", "business_type", "allowed_event_sources", "target_ratio", "graduated", "graduated_at", "version", "updated_at"}
	eventCols  = []string{"id", "widget_id", "campaign_id", "origin", "status", "quality_score", "view_count", "click_count", "payload", "created_at", "expires_at"}
)

// TestAdmissionFlow drives admit, display, admit again and click through the
// HTTP layer, the snapshot cache on miniredis and the postgres store.
func TestAdmissionFlow(t *testing.T) {
	log := logger.NewTestLogger(t)
	created := time.Now().UTC().Add(-time.Hour)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery(`FROM widgets`).
		WithArgs("w-1").
		WillReturnRows(sqlmock.NewRows(widgetCols).
			AddRow("w-1", "site-1", "saas", "{}", 1.0, false, nil, int64(3), created))
	mock.ExpectQuery(`FROM campaigns`).
		WithArgs("w-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "widget_id", "status", "priority", "display_rules", "created_at"}).
			AddRow("c-1", "w-1", "active", 10, nil, created))
	mock.ExpectQuery(`FROM playlists`).
		WithArgs("site-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "website_id", "campaign_order", "rules"}))
	mock.ExpectQuery(`FROM notification_events`).
		WithArgs("w-1", sqlmock.AnyArg(), postgres.DefaultEventLimit).
		WillReturnRows(sqlmock.NewRows(eventCols).
			AddRow("e-1", "w-1", nil, "natural", "approved", 80, int64(4), int64(0), []byte(`{"message":"Someone in Porto just subscribed"}`), created, nil))
	mock.ExpectQuery(`SET view_count = view_count \+ 1`).
		WithArgs("e-1").
		WillReturnRows(sqlmock.NewRows(eventCols).
			AddRow("e-1", "w-1", nil, "natural", "approved", 80, int64(5), int64(0), nil, created, nil))
	mock.ExpectQuery(`SET click_count = click_count \+ 1`).
		WithArgs("e-1").
		WillReturnRows(sqlmock.NewRows(eventCols).
			AddRow("e-1", "w-1", nil, "natural", "approved", 80, int64(5), int64(1), nil, created, nil))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store := postgres.NewStore(db, log)
	snapshots := cache.NewSnapshotCache(rdb, store, "snapshot:widget", time.Minute, log)
	svc := admission.NewService(admission.Config{NaturalFloor: 1}, snapshots, store, admission.NewRand(5), log)

	srv := httptest.NewServer(api.NewServer(config.APIConfig{AllowedOrigins: []string{"*"}}, svc, nil, nil, log).Routes())
	t.Cleanup(srv.Close)

	post := func(path string, body interface{}, out interface{}) int {
		t.Helper()
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
		resp, err := http.Post(srv.URL+path, "application/json", &buf)
		require.NoError(t, err)
		defer resp.Body.Close()
		if out != nil {
			require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
		}
		return resp.StatusCode
	}

	page := map[string]interface{}{"url": "https://shop.example/pricing", "geoCode": "PT"}

	var first admission.Selection
	require.Equal(t, http.StatusOK, post("/v1/widgets/w-1/admissions", map[string]interface{}{
		"session":    map[string]interface{}{"sessionId": "s-1"},
		"pageViewId": "pv-1",
		"page":       page,
	}, &first))
	require.True(t, first.Shown)
	assert.Equal(t, "e-1", first.Event.ID)
	assert.Equal(t, "c-1", first.CampaignID)
	assert.Equal(t, "natural", first.Pool)
	assert.Equal(t, 1.0, first.TargetRatio)
	assert.True(t, mr.Exists("snapshot:widget:w-1"))

	var display struct {
		Session *models.SessionState `json:"session"`
	}
	require.Equal(t, http.StatusOK, post("/v1/widgets/w-1/displays", map[string]interface{}{
		"session":    first.Session,
		"pageViewId": "pv-1",
		"eventId":    first.Event.ID,
		"campaignId": first.CampaignID,
	}, &display))
	assert.Equal(t, 1, display.Session.ShownInSessionCount)
	assert.Equal(t, []string{"e-1"}, display.Session.RecentEventIDs)

	var second admission.Selection
	require.Equal(t, http.StatusOK, post("/v1/widgets/w-1/admissions", map[string]interface{}{
		"session":    display.Session,
		"pageViewId": "pv-1",
		"page":       page,
	}, &second))
	assert.False(t, second.Shown)
	assert.Equal(t, playlist.ReasonAllFiltered, second.Reason)
	assert.Equal(t, throttle.ReasonInterval, second.Rejections["c-1"])

	resp, err := http.Post(srv.URL+"/v1/events/e-1/clicks", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.NoError(t, mock.ExpectationsWereMet())
}
