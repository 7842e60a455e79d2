// Package throttle gatekeeps notification frequency for one visitor session.
//
// Every check is a read-only dry run. RecordShow and RecordPlaylistShow are
// the only functions that mutate a SessionState, and callers invoke them
// only after the notification was actually rendered.
package throttle

import (
	"time"

	"proof-engine/internal/engine/rules"
	"proof-engine/internal/models"
)

const (
	ReasonPageCap      = "page_cap"
	ReasonSessionCap   = "session_cap"
	ReasonInterval     = "campaign_interval"
	ReasonPlaylistCool = "playlist_cooldown"
	ReasonPlaylistCap  = "playlist_session_cap"

	DefaultRecentWindow = 5
	DefaultSessionTTL   = 30 * time.Minute
)

// CanShow reports whether campaignID may be shown in this session at now.
func CanShow(state *models.SessionState, campaignID string, r models.DisplayRules, now time.Time) bool {
	return Check(state, campaignID, r, now) == ""
}

// Check is CanShow with the blocking reason; "" means allowed.
func Check(state *models.SessionState, campaignID string, r models.DisplayRules, now time.Time) string {
	if state == nil {
		return ""
	}
	r = rules.Normalize(r)

	if state.ShownOnPageCount >= r.MaxPerPage {
		return ReasonPageCap
	}
	if state.ShownInSessionCount >= r.MaxPerSession {
		return ReasonSessionCap
	}
	if last, ok := state.LastShownAt[campaignID]; ok {
		if now.Sub(last) < time.Duration(r.IntervalMs)*time.Millisecond {
			return ReasonInterval
		}
	}
	return ""
}

// RecordShow increments both counters and stamps the campaign's last show.
func RecordShow(state *models.SessionState, campaignID string, now time.Time) {
	state.ShownOnPageCount++
	state.ShownInSessionCount++
	if state.LastShownAt == nil {
		state.LastShownAt = make(map[string]time.Time)
	}
	state.LastShownAt[campaignID] = now
}

// CanShowPlaylist applies the playlist-wide cooldown and session budget.
func CanShowPlaylist(state *models.SessionState, p *models.Playlist, now time.Time) bool {
	return CheckPlaylist(state, p, now) == ""
}

func CheckPlaylist(state *models.SessionState, p *models.Playlist, now time.Time) string {
	if state == nil || p == nil {
		return ""
	}
	pr := rules.NormalizePlaylist(p.Rules)

	if until, ok := state.PlaylistCooldownUntil[p.ID]; ok && now.Before(until) {
		return ReasonPlaylistCool
	}
	if state.PlaylistShown[p.ID] >= pr.MaxPerSession {
		return ReasonPlaylistCap
	}
	return ""
}

// RecordPlaylistShow charges the playlist budget and starts its cooldown.
func RecordPlaylistShow(state *models.SessionState, p *models.Playlist, now time.Time) {
	pr := rules.NormalizePlaylist(p.Rules)
	if state.PlaylistShown == nil {
		state.PlaylistShown = make(map[string]int)
	}
	state.PlaylistShown[p.ID]++

	if state.PlaylistCooldownUntil == nil {
		state.PlaylistCooldownUntil = make(map[string]time.Time)
	}
	state.PlaylistCooldownUntil[p.ID] = now.Add(time.Duration(pr.CooldownSeconds) * time.Second)
}

// RememberEvent appends eventID to the anti-repetition window, keeping at
// most window entries.
func RememberEvent(state *models.SessionState, eventID string, window int) {
	if window <= 0 {
		window = DefaultRecentWindow
	}
	state.RecentEventIDs = append(state.RecentEventIDs, eventID)
	if n := len(state.RecentEventIDs); n > window {
		state.RecentEventIDs = append([]string(nil), state.RecentEventIDs[n-window:]...)
	}
}
