package playlist

import (
	"sort"

	"proof-engine/internal/engine/rules"
	"proof-engine/internal/models"
)

// Contender is a campaign competing for the widget slot, either the pick of
// a playlist cycle or an ungrouped campaign.
type Contender struct {
	Campaign *models.Campaign
	Playlist *models.Playlist
}

// Strategy picks the conflict resolution in force: the rule of the
// lowest-id contending playlist, or priority when only ungrouped campaigns
// compete.
func Strategy(contenders []Contender) models.ConflictResolution {
	var owner *models.Playlist
	for _, c := range contenders {
		if c.Playlist == nil {
			continue
		}
		if owner == nil || c.Playlist.ID < owner.ID {
			owner = c.Playlist
		}
	}
	if owner == nil {
		return models.ConflictPriority
	}
	return rules.NormalizePlaylist(owner.Rules).ConflictResolution
}

// Resolve orders contenders best-first under a deterministic total order;
// ties fall back to campaign id.
func Resolve(contenders []Contender, strategy models.ConflictResolution) []Contender {
	out := append([]Contender(nil), contenders...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Campaign, out[j].Campaign
		switch strategy {
		case models.ConflictNewest:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		case models.ConflictOldest:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		default:
			if a.Priority != b.Priority {
				return a.Priority > b.Priority
			}
		}
		return a.ID < b.ID
	})
	return out
}
