package models

import "time"

// SessionState is the per-visitor-session, per-widget throttle state.
// It is owned by the client runtime and passed into the engine on every
// admission cycle; the engine never stores it.
type SessionState struct {
	SessionID             string               `json:"sessionId"`
	WidgetID              string               `json:"widgetId"`
	PageViewID            string               `json:"pageViewId,omitempty"`
	ShownOnPageCount      int                  `json:"shownOnPageCount"`
	ShownInSessionCount   int                  `json:"shownInSessionCount"`
	LastShownAt           map[string]time.Time `json:"lastShownAt,omitempty"`
	PlaylistCooldownUntil map[string]time.Time `json:"playlistCooldownUntil,omitempty"`
	PlaylistShown         map[string]int       `json:"playlistShown,omitempty"`
	SequenceCursor        map[string]int       `json:"sequenceCursor,omitempty"`
	RecentEventIDs        []string             `json:"recentEventIds,omitempty"`
	StartedAt             time.Time            `json:"startedAt"`
	ExpiresAt             time.Time            `json:"expiresAt"`
}

func (s *SessionState) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Clone returns a deep copy so dry-run evaluation can never leak mutations
// back into the caller's state.
func (s *SessionState) Clone() *SessionState {
	if s == nil {
		return nil
	}
	out := *s
	out.LastShownAt = copyTimes(s.LastShownAt)
	out.PlaylistCooldownUntil = copyTimes(s.PlaylistCooldownUntil)
	out.PlaylistShown = copyInts(s.PlaylistShown)
	out.SequenceCursor = copyInts(s.SequenceCursor)
	if s.RecentEventIDs != nil {
		out.RecentEventIDs = append([]string(nil), s.RecentEventIDs...)
	}
	return &out
}

func copyTimes(in map[string]time.Time) map[string]time.Time {
	if in == nil {
		return nil
	}
	out := make(map[string]time.Time, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyInts(in map[string]int) map[string]int {
	if in == nil {
		return nil
	}
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// PageContext describes the page view an admission cycle runs for.
type PageContext struct {
	URL               string `json:"url"`
	Referrer          string `json:"referrer"`
	GeoCode           string `json:"geoCode"`
	IsVerifiedVisitor bool   `json:"isVerifiedVisitor"`
	TimeOnPageMs      int    `json:"timeOnPageMs"`
	ScrollDepthPct    int    `json:"scrollDepthPct"`
	ExitIntent        bool   `json:"exitIntent"`
}
