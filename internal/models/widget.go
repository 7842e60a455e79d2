package models

import "time"

// WidgetConfig is the versioned per-widget blending record. It is only
// rewritten through a compare-and-set on Version.
type WidgetConfig struct {
	ID                  string     `json:"id"`
	WebsiteID           string     `json:"websiteId"`
	BusinessType        string     `json:"businessType"`
	AllowedEventSources []Origin   `json:"allowedEventSources,omitempty"`
	TargetRatio         *float64   `json:"targetRatio,omitempty"`
	Graduated           bool       `json:"graduated"`
	GraduatedAt         *time.Time `json:"graduatedAt,omitempty"`
	Version             int64      `json:"version"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// AllowsOrigin reports whether events of origin o may be shown.
// An empty allow list admits every origin.
func (w *WidgetConfig) AllowsOrigin(o Origin) bool {
	if len(w.AllowedEventSources) == 0 {
		return true
	}
	for _, a := range w.AllowedEventSources {
		if a == o {
			return true
		}
	}
	return false
}

// Snapshot is everything the hot admission path needs for one widget,
// fetched once and cached.
type Snapshot struct {
	Widget    WidgetConfig        `json:"widget"`
	Campaigns []Campaign          `json:"campaigns"`
	Playlists []Playlist          `json:"playlists"`
	Events    []NotificationEvent `json:"events"`
	FetchedAt time.Time           `json:"fetchedAt"`
}
