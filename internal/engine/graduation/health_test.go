package graduation

import (
	"testing"

	"proof-engine/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestHealthFactors(t *testing.T) {
	tests := []struct {
		name     string
		stats    *models.WindowStats
		growth   float64
		balance  float64
		flagged  float64
		progress float64
	}{
		{
			name:     "empty widget",
			stats:    &models.WindowStats{},
			growth:   0,
			balance:  0,
			flagged:  100,
			progress: 0,
		},
		{
			name: "flat natural supply, even split",
			stats: &models.WindowStats{
				ByOrigin: map[models.Origin]models.OriginAnalytics{
					models.OriginNatural:  {Count: 25},
					models.OriginQuickWin: {Count: 25},
				},
				TotalEvents:          50,
				FlaggedEvents:        5,
				PreviousNaturalCount: 25,
			},
			growth:   50,
			balance:  50,
			flagged:  90,
			progress: 50,
		},
		{
			name: "doubling growth saturates",
			stats: &models.WindowStats{
				ByOrigin: map[models.Origin]models.OriginAnalytics{
					models.OriginNatural: {Count: 80},
				},
				TotalEvents:          80,
				PreviousNaturalCount: 20,
			},
			growth:   100,
			balance:  100,
			flagged:  100,
			progress: 100,
		},
		{
			name: "first natural events",
			stats: &models.WindowStats{
				ByOrigin: map[models.Origin]models.OriginAnalytics{
					models.OriginNatural: {Count: 5},
				},
				TotalEvents: 5,
			},
			growth:   100,
			balance:  100,
			flagged:  100,
			progress: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Compute(&models.WidgetConfig{ID: "w"}, tt.stats, testConfig(), now)
			f := s.Health.Factors
			assert.InDelta(t, tt.growth, f.NaturalEventGrowth, 0.01)
			assert.InDelta(t, tt.balance, f.QuickWinBalance, 0.01)
			assert.InDelta(t, tt.flagged, f.FlaggedEventRatio, 0.01)
			assert.InDelta(t, tt.progress, f.GraduationProgress, 0.01)

			want := (tt.growth + tt.balance + tt.flagged + tt.progress) / 4
			assert.InDelta(t, want, s.Health.Score, 0.01)
		})
	}
}

func TestCompute_ZeroViewsHasZeroCTR(t *testing.T) {
	s := Compute(&models.WidgetConfig{ID: "w"}, &models.WindowStats{
		ByOrigin: map[models.Origin]models.OriginAnalytics{
			models.OriginNatural: {Count: 70, Clicks: 3},
		},
	}, testConfig(), now)

	assert.Equal(t, 0.0, s.Analytics[models.OriginNatural].CTR)
	assert.True(t, s.Ready)
}

func TestCompute_ReadinessUsesExactCTR(t *testing.T) {
	s := Compute(&models.WidgetConfig{ID: "w"}, &models.WindowStats{
		ByOrigin: map[models.Origin]models.OriginAnalytics{
			models.OriginNatural:  {Count: 60, Views: 100000, Clicks: 3996},
			models.OriginQuickWin: {Count: 20, Views: 100000, Clicks: 3999},
		},
	}, testConfig(), now)

	assert.Equal(t, 4.0, s.Analytics[models.OriginNatural].CTR)
	assert.Equal(t, 4.0, s.Analytics[models.OriginQuickWin].CTR)
	assert.False(t, s.Ready, "natural content below the quick-win CTR is not ready")
}

func TestCompute_ProgressJustBelowThresholdIsNotReady(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultThreshold = 100001
	s := Compute(&models.WidgetConfig{ID: "w"}, &models.WindowStats{
		ByOrigin: map[models.Origin]models.OriginAnalytics{
			models.OriginNatural: {Count: 100000, Views: 10, Clicks: 5},
		},
	}, cfg, now)

	assert.Equal(t, 100.0, s.GraduationProgress)
	assert.False(t, s.Ready)
}

func TestCompute_PartialStatsNeverReady(t *testing.T) {
	s := Compute(&models.WidgetConfig{ID: "w"}, &models.WindowStats{
		ByOrigin: map[models.Origin]models.OriginAnalytics{
			models.OriginNatural:  {Count: 80, Views: 1000, Clicks: 50},
			models.OriginQuickWin: {Count: 20, Views: 1000, Clicks: 40},
		},
		Partial: true,
	}, testConfig(), now)

	assert.Equal(t, 100.0, s.GraduationProgress)
	assert.False(t, s.Ready)
	assert.True(t, s.Partial)
	assert.Contains(t, s.Health.Recommendations[0], "graduation is deferred")
}

func TestRecommendations(t *testing.T) {
	s := Compute(&models.WidgetConfig{ID: "w"}, &models.WindowStats{
		ByOrigin: map[models.Origin]models.OriginAnalytics{
			models.OriginNatural:  {Count: 10},
			models.OriginQuickWin: {Count: 90},
		},
		TotalEvents:          100,
		FlaggedEvents:        40,
		PreviousNaturalCount: 30,
	}, testConfig(), now)

	recs := s.Health.Recommendations
	assert.Len(t, recs, 4)
	assert.Contains(t, recs[0], "40 more natural events")
	assert.Contains(t, recs[1], "Quick-win content dominates")
	assert.Contains(t, recs[2], "flagged")
	assert.Contains(t, recs[3], "declining")
}
