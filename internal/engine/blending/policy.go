// Package blending chooses one event from a widget's pool honoring the
// widget's natural/quick-win target ratio.
package blending

import (
	"math"
	"sort"

	"proof-engine/internal/models"
)

const (
	// DefaultPreGraduationRatio and DefaultPostGraduationRatio are used when
	// neither the widget nor configuration supplies a ratio.
	DefaultPreGraduationRatio  = 0.2
	DefaultPostGraduationRatio = 0.8

	PoolNatural  = "natural"
	PoolQuickWin = "quickWin"
)

// Rand is the random source used for every draw. *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// Choice is a selection with the pool it came from.
type Choice struct {
	Event    *models.NotificationEvent
	Pool     string
	FellBack bool
}

type Policy struct {
	// NaturalFloor is the minimum natural pool size for the natural pool to
	// be drawn from by ratio. Below it natural supply counts as thin and the
	// quick-win filler is used, unless the filler is empty too.
	NaturalFloor int
	rng          Rand
}

func NewPolicy(naturalFloor int, rng Rand) *Policy {
	if naturalFloor < 1 {
		naturalFloor = 1
	}
	return &Policy{NaturalFloor: naturalFloor, rng: rng}
}

// RatioOr returns the clamped value of r, or def when r is unset.
func RatioOr(r *float64, def float64) float64 {
	if r == nil {
		return ClampRatio(def)
	}
	return ClampRatio(*r)
}

// ClampRatio forces ratio into [0,1].
func ClampRatio(ratio float64) float64 {
	switch {
	case math.IsNaN(ratio):
		return DefaultPreGraduationRatio
	case ratio < 0:
		return 0
	case ratio > 1:
		return 1
	}
	return ratio
}

// SelectEvent returns one event or nil when both pools are empty.
func (p *Policy) SelectEvent(pool Pool, targetRatio float64, recentIDs []string) *models.NotificationEvent {
	return p.Select(pool, targetRatio, recentIDs).Event
}

func (p *Policy) Select(pool Pool, targetRatio float64, recentIDs []string) Choice {
	if pool.Empty() {
		return Choice{}
	}
	ratio := ClampRatio(targetRatio)

	preferNatural := p.rng.Float64() < ratio

	if !preferNatural {
		if len(pool.QuickWin) > 0 {
			return Choice{Event: p.pick(pool.QuickWin, recentIDs), Pool: PoolQuickWin}
		}
		return Choice{Event: p.pick(pool.Natural, recentIDs), Pool: PoolNatural, FellBack: true}
	}

	if len(pool.Natural) >= p.NaturalFloor {
		return Choice{Event: p.pick(pool.Natural, recentIDs), Pool: PoolNatural}
	}
	if len(pool.QuickWin) > 0 {
		return Choice{Event: p.pick(pool.QuickWin, recentIDs), Pool: PoolQuickWin, FellBack: true}
	}
	// Thin natural supply with no filler left is still served.
	return Choice{Event: p.pick(pool.Natural, recentIDs), Pool: PoolNatural}
}

// pick excludes recently shown events unless that leaves nothing, then draws
// with a quality-rank bias.
func (p *Policy) pick(events []models.NotificationEvent, recentIDs []string) *models.NotificationEvent {
	candidates := withoutRecent(events, recentIDs)
	if len(candidates) == 0 {
		candidates = append([]models.NotificationEvent(nil), events...)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.QualityScore != b.QualityScore {
			return a.QualityScore > b.QualityScore
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	weights := rankWeights(candidates)
	total := 0.0
	for _, w := range weights {
		total += w
	}

	target := p.rng.Float64() * total
	for i, w := range weights {
		target -= w
		if target < 0 {
			chosen := candidates[i]
			return &chosen
		}
	}
	chosen := candidates[len(candidates)-1]
	return &chosen
}

// rankWeights gives every event a base weight scaled by its quality score
// and doubles the weight of the top quartile by rank.
func rankWeights(sorted []models.NotificationEvent) []float64 {
	n := len(sorted)
	topQuartile := (n + 3) / 4
	out := make([]float64, n)
	for i, e := range sorted {
		q := e.QualityScore
		if q < 0 {
			q = 0
		}
		if q > 100 {
			q = 100
		}
		w := 1 + float64(q)/100
		if i < topQuartile && n > 1 {
			w *= 2
		}
		out[i] = w
	}
	return out
}

func withoutRecent(events []models.NotificationEvent, recentIDs []string) []models.NotificationEvent {
	if len(recentIDs) == 0 {
		return append([]models.NotificationEvent(nil), events...)
	}
	recent := make(map[string]struct{}, len(recentIDs))
	for _, id := range recentIDs {
		recent[id] = struct{}{}
	}
	out := make([]models.NotificationEvent, 0, len(events))
	for _, e := range events {
		if _, seen := recent[e.ID]; !seen {
			out = append(out, e)
		}
	}
	return out
}
