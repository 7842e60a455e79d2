package models

import "time"

type CampaignStatus string

const (
	CampaignStatusDraft  CampaignStatus = "draft"
	CampaignStatusActive CampaignStatus = "active"
	CampaignStatusPaused CampaignStatus = "paused"
)

// Campaign groups display rules and a priority for one widget.
type Campaign struct {
	ID           string         `json:"id"`
	WidgetID     string         `json:"widgetId"`
	Status       CampaignStatus `json:"status"`
	Priority     int            `json:"priority"`
	CreatedAt    time.Time      `json:"createdAt"`
	DisplayRules DisplayRules   `json:"displayRules"`
}

func (c *Campaign) IsActive() bool {
	return c.Status == CampaignStatusActive
}

// DisplayRules is the per-campaign targeting and frequency configuration.
// MaxPerPage and MaxPerSession are independent caps; both must pass.
type DisplayRules struct {
	ShowDurationMs      int      `json:"showDurationMs"`
	IntervalMs          int      `json:"intervalMs"`
	MaxPerPage          int      `json:"maxPerPage"`
	MaxPerSession       int      `json:"maxPerSession"`
	URLAllow            []string `json:"urlAllow,omitempty"`
	URLDeny             []string `json:"urlDeny,omitempty"`
	ReferrerAllow       []string `json:"referrerAllow,omitempty"`
	ReferrerDeny        []string `json:"referrerDeny,omitempty"`
	Triggers            Triggers `json:"triggers"`
	EnforceVerifiedOnly bool     `json:"enforceVerifiedOnly"`
	GeoAllow            []string `json:"geoAllow,omitempty"`
	GeoDeny             []string `json:"geoDeny,omitempty"`
}

// Triggers are OR'd; an empty set is satisfied immediately.
type Triggers struct {
	MinTimeOnPageMs int  `json:"minTimeOnPageMs"`
	ScrollDepthPct  int  `json:"scrollDepthPct"`
	ExitIntent      bool `json:"exitIntent"`
}

func (t Triggers) Configured() bool {
	return t.MinTimeOnPageMs > 0 || t.ScrollDepthPct > 0 || t.ExitIntent
}
