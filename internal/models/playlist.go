package models

type SequenceMode string

const (
	SequenceModePriority   SequenceMode = "priority"
	SequenceModeSequential SequenceMode = "sequential"
	SequenceModeRandom     SequenceMode = "random"
)

type ConflictResolution string

const (
	ConflictPriority ConflictResolution = "priority"
	ConflictNewest   ConflictResolution = "newest"
	ConflictOldest   ConflictResolution = "oldest"
)

// Playlist is an ordered, rule-governed grouping of campaigns that share
// session budgets and a cooldown. Removing a campaign from CampaignOrder
// never deletes the campaign itself.
type Playlist struct {
	ID            string        `json:"id"`
	WebsiteID     string        `json:"websiteId"`
	CampaignOrder []string      `json:"campaignOrder"`
	Rules         PlaylistRules `json:"rules"`
}

type PlaylistRules struct {
	SequenceMode       SequenceMode       `json:"sequenceMode"`
	MaxPerSession      int                `json:"maxPerSession"`
	CooldownSeconds    int                `json:"cooldownSeconds"`
	ConflictResolution ConflictResolution `json:"conflictResolution"`
}

// Position returns the index of campaignID in CampaignOrder, or -1.
func (p *Playlist) Position(campaignID string) int {
	for i, id := range p.CampaignOrder {
		if id == campaignID {
			return i
		}
	}
	return -1
}
