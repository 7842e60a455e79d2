package models

import "time"

type OriginAnalytics struct {
	Count  int64   `json:"count"`
	Views  int64   `json:"views"`
	Clicks int64   `json:"clicks"`
	CTR    float64 `json:"ctr"`
}

type HealthFactors struct {
	NaturalEventGrowth float64 `json:"naturalEventGrowth"`
	QuickWinBalance    float64 `json:"quickWinBalance"`
	FlaggedEventRatio  float64 `json:"flaggedEventRatio"`
	GraduationProgress float64 `json:"graduationProgress"`
}

type Health struct {
	Score           float64       `json:"score"`
	Factors         HealthFactors `json:"factors"`
	Recommendations []string      `json:"recommendations"`
}

// GraduationStatus is derived from events and analytics on demand; it is
// never the source of truth for the widget's ratio.
type GraduationStatus struct {
	WidgetID           string                     `json:"widgetId"`
	Ready              bool                       `json:"ready"`
	NaturalCount       int64                      `json:"naturalCount"`
	QuickWinCount      int64                      `json:"quickWinCount"`
	Analytics          map[Origin]OriginAnalytics `json:"analytics"`
	GraduationProgress float64                    `json:"graduationProgress"`
	Health             Health                     `json:"health"`
	Graduated          bool                       `json:"graduated"`
	TargetRatio        float64                    `json:"targetRatio"`
	Partial            bool                       `json:"partial,omitempty"`
	ComputedAt         time.Time                  `json:"computedAt"`
}

// WindowStats is what an analytics source reports for one widget over a
// trailing window.
type WindowStats struct {
	ByOrigin             map[Origin]OriginAnalytics
	TotalEvents          int64
	FlaggedEvents        int64
	PreviousNaturalCount int64
	// Partial marks stats from a source that only sees displayed events;
	// counts and flagged totals are then lower bounds.
	Partial bool
}
