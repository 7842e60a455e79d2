package graduation

import (
	"fmt"
	"time"

	"proof-engine/internal/models"
)

const (
	factorWeight = 0.25

	lowBalanceScore = 50
	lowFlaggedScore = 80
	lowGrowthScore  = 50
)

// Compute derives a GraduationStatus from a widget record and its window
// stats. It is a pure function of its inputs.
func Compute(widget *models.WidgetConfig, stats *models.WindowStats, cfg Config, now time.Time) *models.GraduationStatus {
	cfg = cfg.withDefaults()
	if stats == nil {
		stats = &models.WindowStats{}
	}

	analytics := make(map[models.Origin]models.OriginAnalytics, len(stats.ByOrigin))
	for origin, a := range stats.ByOrigin {
		a.CTR = round2(ctr(a.Clicks, a.Views))
		analytics[origin] = a
	}
	natural := analytics[models.OriginNatural]
	quickWin := analytics[models.OriginQuickWin]

	threshold := cfg.threshold(widget.BusinessType)
	progress := float64(natural.Count) / float64(threshold) * 100
	if progress > 100 {
		progress = 100
	}

	// Readiness uses exact ratios; rounded values are for display only.
	ready := !stats.Partial && natural.Count >= int64(threshold) &&
		ctr(natural.Clicks, natural.Views) >= ctr(quickWin.Clicks, quickWin.Views)*cfg.CTRFactor
	progress = round2(progress)

	factors := models.HealthFactors{
		NaturalEventGrowth: growthScore(natural.Count, stats.PreviousNaturalCount),
		QuickWinBalance:    balanceScore(natural.Count, quickWin.Count),
		FlaggedEventRatio:  flaggedScore(stats.FlaggedEvents, stats.TotalEvents),
		GraduationProgress: progress,
	}
	score := factorWeight * (factors.NaturalEventGrowth + factors.QuickWinBalance + factors.FlaggedEventRatio + factors.GraduationProgress)

	status := &models.GraduationStatus{
		WidgetID:           widget.ID,
		Ready:              ready,
		NaturalCount:       natural.Count,
		QuickWinCount:      quickWin.Count,
		Analytics:          analytics,
		GraduationProgress: progress,
		Graduated:          widget.Graduated,
		TargetRatio:        EffectiveRatio(widget, cfg.pre, cfg.post),
		Partial:            stats.Partial,
		ComputedAt:         now,
		Health: models.Health{
			Score:   round2(score),
			Factors: factors,
		},
	}
	status.Health.Recommendations = recommend(status, threshold)
	return status
}

// ctr is clicks per hundred views; zero when nothing was viewed.
func ctr(clicks, views int64) float64 {
	if views <= 0 {
		return 0
	}
	return float64(clicks) / float64(views) * 100
}

// growthScore maps window-over-window change onto 0..100 with flat at 50
// and doubling at 100.
func growthScore(current, previous int64) float64 {
	if current == 0 && previous == 0 {
		return 0
	}
	if previous == 0 {
		return 100
	}
	change := float64(current-previous) / float64(previous)
	return round2(clamp(50 + change*50))
}

func balanceScore(natural, quickWin int64) float64 {
	total := natural + quickWin
	if total == 0 {
		return 0
	}
	return round2(float64(natural) / float64(total) * 100)
}

func flaggedScore(flagged, total int64) float64 {
	if total <= 0 {
		return 100
	}
	return round2(clamp((1 - float64(flagged)/float64(total)) * 100))
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

func recommend(s *models.GraduationStatus, threshold int) []string {
	recs := []string{}
	f := s.Health.Factors

	if s.Partial {
		recs = append(recs, "Event store unavailable; figures cover displayed events only and graduation is deferred")
	}
	if s.GraduationProgress < 100 {
		missing := int64(threshold) - s.NaturalCount
		recs = append(recs, fmt.Sprintf("Collect %d more natural events to reach the graduation threshold of %d", missing, threshold))
	} else if !s.Ready && !s.Graduated && !s.Partial {
		recs = append(recs, "Natural events are plentiful but convert below quick-win content; review natural event messaging")
	}
	if s.Ready && !s.Graduated {
		recs = append(recs, "Widget is ready to graduate to a natural-first blend")
	}
	if f.QuickWinBalance < lowBalanceScore && s.QuickWinCount > 0 {
		recs = append(recs, "Quick-win content dominates the pool; connect more natural event sources")
	}
	if f.FlaggedEventRatio < lowFlaggedScore {
		recs = append(recs, "A high share of events is flagged; review moderation settings")
	}
	if f.NaturalEventGrowth < lowGrowthScore && s.NaturalCount > 0 {
		recs = append(recs, "Natural event volume is declining compared with the previous window")
	}
	return recs
}
