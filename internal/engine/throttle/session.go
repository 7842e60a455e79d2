package throttle

import (
	"time"

	"proof-engine/internal/models"
)

// Begin returns the state to use for this request. A nil, expired, or
// foreign state is replaced by a fresh session; a live one is copied with its
// expiry slid forward by ttl. The input is never modified.
func Begin(state *models.SessionState, sessionID, widgetID string, now time.Time, ttl time.Duration) *models.SessionState {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if state == nil || state.Expired(now) || state.SessionID != sessionID || state.WidgetID != widgetID {
		return &models.SessionState{
			SessionID: sessionID,
			WidgetID:  widgetID,
			StartedAt: now,
			ExpiresAt: now.Add(ttl),
		}
	}
	next := state.Clone()
	next.ExpiresAt = now.Add(ttl)
	return next
}

// EnterPage resets the per-page counter when the visitor navigated to a new
// page view. It mutates state and is meant for a state returned by Begin.
func EnterPage(state *models.SessionState, pageViewID string) {
	if pageViewID == "" || pageViewID == state.PageViewID {
		return
	}
	state.PageViewID = pageViewID
	state.ShownOnPageCount = 0
}
