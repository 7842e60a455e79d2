package playlist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"proof-engine/internal/models"
)

func contender(id string, priority int, created time.Time, p *models.Playlist) Contender {
	c := campaign(id, priority)
	c.CreatedAt = created
	return Contender{Campaign: &c, Playlist: p}
}

func TestResolve(t *testing.T) {
	day := 24 * time.Hour
	contenders := []Contender{
		contender("c-mid", 50, t0.Add(-2*day), nil),
		contender("c-old", 10, t0.Add(-9*day), nil),
		contender("c-new", 50, t0.Add(-1*day), nil),
		contender("b-tie", 50, t0.Add(-1*day), nil),
	}

	tests := []struct {
		strategy models.ConflictResolution
		expected []string
	}{
		{models.ConflictPriority, []string{"b-tie", "c-mid", "c-new", "c-old"}},
		{models.ConflictNewest, []string{"b-tie", "c-new", "c-mid", "c-old"}},
		{models.ConflictOldest, []string{"c-old", "c-mid", "b-tie", "c-new"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			got := Resolve(contenders, tt.strategy)
			ids := make([]string, 0, len(got))
			for _, c := range got {
				ids = append(ids, c.Campaign.ID)
			}
			assert.Equal(t, tt.expected, ids)
		})
	}
	assert.Equal(t, "c-mid", contenders[0].Campaign.ID, "input order is preserved")
}

func TestStrategy(t *testing.T) {
	plB := &models.Playlist{ID: "pl-b", Rules: models.PlaylistRules{ConflictResolution: models.ConflictOldest}}
	plA := &models.Playlist{ID: "pl-a", Rules: models.PlaylistRules{ConflictResolution: models.ConflictNewest}}

	assert.Equal(t, models.ConflictPriority, Strategy([]Contender{contender("x", 1, t0, nil)}))
	assert.Equal(t, models.ConflictNewest, Strategy([]Contender{
		contender("x", 1, t0, plB),
		contender("y", 1, t0, plA),
		contender("z", 1, t0, nil),
	}))
	assert.Equal(t, models.ConflictPriority, Strategy([]Contender{
		contender("x", 1, t0, &models.Playlist{ID: "pl-c"}),
	}))
}
