package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"proof-engine/internal/common/config"
	apperrors "proof-engine/internal/common/errors"
	"proof-engine/internal/common/logger"
	"proof-engine/internal/engine/admission"
	"proof-engine/internal/engine/graduation"
	"proof-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdmitter struct {
	lastAdmit   admission.Request
	lastConfirm admission.ConfirmRequest
	clicked     []string
	err         error
}

func (f *fakeAdmitter) Admit(ctx context.Context, req admission.Request) (*admission.Selection, error) {
	f.lastAdmit = req
	if f.err != nil {
		return nil, f.err
	}
	return &admission.Selection{
		CycleID:    "c-1",
		Shown:      true,
		Event:      &models.NotificationEvent{ID: "e-1"},
		CampaignID: "A",
		Pool:       "natural",
		Session:    &models.SessionState{SessionID: req.SessionID, WidgetID: req.WidgetID},
	}, nil
}

func (f *fakeAdmitter) Confirm(ctx context.Context, req admission.ConfirmRequest) (*models.SessionState, error) {
	f.lastConfirm = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.SessionState{SessionID: req.SessionID, ShownInSessionCount: 1}, nil
}

func (f *fakeAdmitter) RecordClick(ctx context.Context, eventID string) error {
	if f.err != nil {
		return f.err
	}
	f.clicked = append(f.clicked, eventID)
	return nil
}

type fakeGraduator struct {
	status *models.GraduationStatus
	err    error
}

func (f *fakeGraduator) Status(ctx context.Context, widgetID string) (*models.GraduationStatus, error) {
	return f.status, f.err
}

func (f *fakeGraduator) AutoGraduate(ctx context.Context, widgetID string) (*graduation.Outcome, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &graduation.Outcome{WidgetID: widgetID, Changed: true, Graduated: true, TargetRatio: 0.8}, nil
}

func newTestServer(t *testing.T, a Admitter, g Graduator, checks map[string]Check) http.Handler {
	t.Helper()
	cfg := config.APIConfig{Port: 0, AllowedOrigins: []string{"*"}}
	return NewServer(cfg, a, g, checks, logger.NewTestLogger(t)).Routes()
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAdmissions(t *testing.T) {
	a := &fakeAdmitter{}
	h := newTestServer(t, a, &fakeGraduator{}, nil)

	rec := do(t, h, http.MethodPost, "/v1/widgets/w-1/admissions", map[string]interface{}{
		"session":    map[string]interface{}{"sessionId": "s-1", "shownInSessionCount": 2},
		"pageViewId": "pv-9",
		"page":       map[string]interface{}{"url": "https://shop.example/", "geoCode": "US"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var sel admission.Selection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sel))
	assert.True(t, sel.Shown)
	assert.Equal(t, "e-1", sel.Event.ID)

	assert.Equal(t, "w-1", a.lastAdmit.WidgetID)
	assert.Equal(t, "s-1", a.lastAdmit.SessionID)
	assert.Equal(t, "pv-9", a.lastAdmit.PageViewID)
	assert.Equal(t, 2, a.lastAdmit.Session.ShownInSessionCount)
	assert.Equal(t, "US", a.lastAdmit.Page.GeoCode)
}

func TestAdmissions_Invalid(t *testing.T) {
	h := newTestServer(t, &fakeAdmitter{}, &fakeGraduator{}, nil)

	tests := []struct {
		name string
		body interface{}
	}{
		{name: "malformed", body: `{"session":`},
		{name: "missing page", body: map[string]interface{}{"session": map[string]interface{}{"sessionId": "s-1"}}},
		{name: "missing session id", body: map[string]interface{}{
			"session": map[string]interface{}{},
			"page":    map[string]interface{}{"url": "https://x.example"},
		}},
		{name: "scroll out of range", body: map[string]interface{}{
			"session": map[string]interface{}{"sessionId": "s-1"},
			"page":    map[string]interface{}{"url": "https://x.example", "scrollDepthPct": 140},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/v1/widgets/w-1/admissions", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "INVALID_INPUT")
		})
	}
}

func TestDisplays(t *testing.T) {
	a := &fakeAdmitter{}
	h := newTestServer(t, a, &fakeGraduator{}, nil)

	rec := do(t, h, http.MethodPost, "/v1/widgets/w-1/displays", map[string]interface{}{
		"session":    map[string]interface{}{"sessionId": "s-1"},
		"eventId":    "e-1",
		"campaignId": "A",
		"playlistId": "p-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp displayResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Session.ShownInSessionCount)
	assert.Equal(t, "p-1", a.lastConfirm.PlaylistID)
	assert.Equal(t, "A", a.lastConfirm.CampaignID)
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperrors.NewInvalidInputError("bad"), http.StatusBadRequest},
		{apperrors.NewEventNotFoundError("e-1"), http.StatusNotFound},
		{apperrors.NewPoolFetchFailedError("w-1", errors.New("down")), http.StatusServiceUnavailable},
		{errors.New("unexpected"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		h := newTestServer(t, &fakeAdmitter{err: tt.err}, &fakeGraduator{}, nil)
		rec := do(t, h, http.MethodPost, "/v1/events/e-1/clicks", nil)
		assert.Equal(t, tt.want, rec.Code, tt.err.Error())
	}
}

func TestClicks(t *testing.T) {
	a := &fakeAdmitter{}
	h := newTestServer(t, a, &fakeGraduator{}, nil)

	rec := do(t, h, http.MethodPost, "/v1/events/e-7/clicks", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"e-7"}, a.clicked)
}

func TestGraduation(t *testing.T) {
	g := &fakeGraduator{status: &models.GraduationStatus{WidgetID: "w-1", GraduationProgress: 6, TargetRatio: 0.2}}
	h := newTestServer(t, &fakeAdmitter{}, g, nil)

	rec := do(t, h, http.MethodGet, "/v1/widgets/w-1/graduation", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status models.GraduationStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 6.0, status.GraduationProgress)

	rec = do(t, h, http.MethodPost, "/v1/widgets/w-1/graduation", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var outcome graduation.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.True(t, outcome.Changed)
	assert.Equal(t, 0.8, outcome.TargetRatio)

	g.err = apperrors.NewLockNotAcquiredError("graduation:w-1")
	rec = do(t, h, http.MethodPost, "/v1/widgets/w-1/graduation", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	g.err = apperrors.NewWidgetNotFoundError("w-404")
	rec = do(t, h, http.MethodGet, "/v1/widgets/w-404/graduation", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndReady(t *testing.T) {
	checks := map[string]Check{
		"postgres": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
	}
	h := newTestServer(t, &fakeAdmitter{}, &fakeGraduator{}, checks)

	rec := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var results map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	assert.Equal(t, "ok", results["postgres"])
	assert.Equal(t, "connection refused", results["redis"])

	rec = do(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, &fakeAdmitter{}, &fakeGraduator{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/v1/widgets/w-1/admissions", nil)
	req.Header.Set("Origin", "https://shop.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
