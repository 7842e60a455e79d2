package blending

import (
	"time"

	"proof-engine/internal/models"
)

// Pool is the admissible event supply for one selection, split into the
// natural pool and the quick-win filler pool. Manual and demo events are
// authored content and ride in the filler pool.
type Pool struct {
	Natural  []models.NotificationEvent
	QuickWin []models.NotificationEvent
}

func (p Pool) Empty() bool {
	return len(p.Natural) == 0 && len(p.QuickWin) == 0
}

func (p Pool) Size() int {
	return len(p.Natural) + len(p.QuickWin)
}

// Partition builds the pool for campaignID from a widget's event list.
// Events bound to another campaign are skipped; widget-wide events (no
// campaign) are shared by every campaign. An empty campaignID admits all.
func Partition(events []models.NotificationEvent, widget *models.WidgetConfig, campaignID string, now time.Time) Pool {
	var pool Pool
	for _, e := range events {
		if !e.IsEligible(now) {
			continue
		}
		if widget != nil && !widget.AllowsOrigin(e.Origin) {
			continue
		}
		if campaignID != "" && e.CampaignID != nil && *e.CampaignID != campaignID {
			continue
		}
		switch e.Origin {
		case models.OriginNatural:
			pool.Natural = append(pool.Natural, e)
		case models.OriginQuickWin, models.OriginManual, models.OriginDemo:
			pool.QuickWin = append(pool.QuickWin, e)
		}
	}
	return pool
}
