package rules

import "proof-engine/internal/models"

const (
	DefaultShowDurationMs = 6000
	DefaultIntervalMs     = 12000
	DefaultMaxPerPage     = 5
	DefaultMaxPerSession  = 20

	maxScrollDepthPct = 100
)

// DefaultDisplayRules is used when a campaign carries no usable rules.
func DefaultDisplayRules() models.DisplayRules {
	return models.DisplayRules{
		ShowDurationMs: DefaultShowDurationMs,
		IntervalMs:     DefaultIntervalMs,
		MaxPerPage:     DefaultMaxPerPage,
		MaxPerSession:  DefaultMaxPerSession,
	}
}

// Normalize replaces missing or out-of-range values with bounded defaults.
// Caps are never left unlimited.
func Normalize(r models.DisplayRules) models.DisplayRules {
	if r.ShowDurationMs <= 0 {
		r.ShowDurationMs = DefaultShowDurationMs
	}
	if r.IntervalMs < 0 {
		r.IntervalMs = DefaultIntervalMs
	}
	if r.MaxPerPage <= 0 {
		r.MaxPerPage = DefaultMaxPerPage
	}
	if r.MaxPerSession <= 0 {
		r.MaxPerSession = DefaultMaxPerSession
	}
	if r.Triggers.MinTimeOnPageMs < 0 {
		r.Triggers.MinTimeOnPageMs = 0
	}
	if r.Triggers.ScrollDepthPct < 0 {
		r.Triggers.ScrollDepthPct = 0
	}
	if r.Triggers.ScrollDepthPct > maxScrollDepthPct {
		r.Triggers.ScrollDepthPct = maxScrollDepthPct
	}
	return r
}

const (
	DefaultPlaylistMaxPerSession = 20
)

// NormalizePlaylist fills playlist rule defaults.
func NormalizePlaylist(r models.PlaylistRules) models.PlaylistRules {
	switch r.SequenceMode {
	case models.SequenceModePriority, models.SequenceModeSequential, models.SequenceModeRandom:
	default:
		r.SequenceMode = models.SequenceModePriority
	}
	switch r.ConflictResolution {
	case models.ConflictPriority, models.ConflictNewest, models.ConflictOldest:
	default:
		r.ConflictResolution = models.ConflictPriority
	}
	if r.MaxPerSession <= 0 {
		r.MaxPerSession = DefaultPlaylistMaxPerSession
	}
	if r.CooldownSeconds < 0 {
		r.CooldownSeconds = 0
	}
	return r
}
