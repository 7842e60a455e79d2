// Package playlist selects the next campaign for a widget slot when several
// campaigns compete, either grouped in playlists or standing alone.
package playlist

import (
	"sort"
	"time"

	"proof-engine/internal/engine/rules"
	"proof-engine/internal/engine/throttle"
	"proof-engine/internal/models"
)

type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseCollectCandidates Phase = "collect_candidates"
	PhaseFilterEligible    Phase = "filter_eligible"
	PhaseSelectOne         Phase = "select_one"
	PhaseShown             Phase = "shown"
	PhaseNoneAvailable     Phase = "none_available"
)

const (
	ReasonNoCandidates = "no_candidates"
	ReasonAllFiltered  = "all_filtered"
	ReasonNoEvent      = "no_event"
)

// Rand is the random source for random sequence mode.
type Rand interface {
	Shuffle(n int, swap func(i, j int))
}

// Cycle records one evaluation pass over a playlist.
type Cycle struct {
	PlaylistID string
	Phase      Phase
	Trace      []Phase
	Campaign   *models.Campaign
	Reason     string
	Rejections map[string]string
}

func (c *Cycle) enter(p Phase) {
	c.Phase = p
	c.Trace = append(c.Trace, p)
}

// Finish moves a cycle that reached SelectOne into its terminal state once
// the caller knows whether an event was produced.
func (c *Cycle) Finish(shown bool) {
	if c.Phase != PhaseSelectOne {
		return
	}
	if shown {
		c.enter(PhaseShown)
		return
	}
	c.Reason = ReasonNoEvent
	c.enter(PhaseNoneAvailable)
}

// Catalog is a snapshot's campaigns indexed by id, with each campaign's
// display rules normalized and compiled once.
type Catalog struct {
	byID     map[string]*models.Campaign
	compiled map[string]*rules.Compiled
}

// Index builds the catalog for one snapshot. The campaigns slice must not be
// modified afterwards.
func Index(campaigns []models.Campaign) *Catalog {
	cat := &Catalog{
		byID:     make(map[string]*models.Campaign, len(campaigns)),
		compiled: make(map[string]*rules.Compiled, len(campaigns)),
	}
	for i := range campaigns {
		c := &campaigns[i]
		cat.byID[c.ID] = c
		cat.compiled[c.ID] = rules.CompileRules(rules.Normalize(c.DisplayRules))
	}
	return cat
}

func (cat *Catalog) Len() int { return len(cat.byID) }

func (cat *Catalog) Get(id string) *models.Campaign { return cat.byID[id] }

func (cat *Catalog) rulesFor(c *models.Campaign) *rules.Compiled {
	if r, ok := cat.compiled[c.ID]; ok && cat.byID[c.ID] == c {
		return r
	}
	return rules.CompileRules(rules.Normalize(c.DisplayRules))
}

// Candidates returns the playlist's active campaigns in the order the
// sequence mode dictates.
func Candidates(p *models.Playlist, campaigns *Catalog, state *models.SessionState, rng Rand) []*models.Campaign {
	n := len(p.CampaignOrder)
	if n == 0 {
		return nil
	}

	mode := rules.NormalizePlaylist(p.Rules).SequenceMode
	start := 0
	if mode == models.SequenceModeSequential && state != nil {
		start = state.SequenceCursor[p.ID] % n
		if start < 0 {
			start = 0
		}
	}

	out := make([]*models.Campaign, 0, n)
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		id := p.CampaignOrder[(start+i)%n]
		c := campaigns.Get(id)
		if c == nil || seen[id] || !c.IsActive() {
			continue
		}
		seen[id] = true
		out = append(out, c)
	}

	switch mode {
	case models.SequenceModePriority:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Priority > out[j].Priority
		})
	case models.SequenceModeRandom:
		if rng != nil {
			rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		}
	}
	return out
}

// Admissible returns "" when c passes the rule evaluator and the session
// throttle, otherwise the blocking reason. It never mutates state.
func (cat *Catalog) Admissible(c *models.Campaign, state *models.SessionState, page models.PageContext, now time.Time) string {
	compiled := cat.rulesFor(c)
	if res := compiled.Evaluate(page); !res.Passes() {
		return res.Reason
	}
	return throttle.Check(state, c.ID, compiled.Rules(), now)
}

// Select runs one cycle: the playlist gate, then candidates in order until
// the first one passes.
func Select(p *models.Playlist, campaigns *Catalog, state *models.SessionState, page models.PageContext, now time.Time, rng Rand) *Cycle {
	cycle := &Cycle{PlaylistID: p.ID, Rejections: map[string]string{}}
	cycle.enter(PhaseIdle)
	cycle.enter(PhaseCollectCandidates)

	if reason := throttle.CheckPlaylist(state, p, now); reason != "" {
		cycle.Reason = reason
		cycle.enter(PhaseNoneAvailable)
		return cycle
	}

	candidates := Candidates(p, campaigns, state, rng)
	if len(candidates) == 0 {
		cycle.Reason = ReasonNoCandidates
		cycle.enter(PhaseNoneAvailable)
		return cycle
	}

	cycle.enter(PhaseFilterEligible)
	for _, c := range candidates {
		if reason := campaigns.Admissible(c, state, page, now); reason != "" {
			cycle.Rejections[c.ID] = reason
			continue
		}
		cycle.Campaign = c
		cycle.enter(PhaseSelectOne)
		return cycle
	}

	cycle.Reason = ReasonAllFiltered
	cycle.enter(PhaseNoneAvailable)
	return cycle
}

// Commit charges a rendered display to the session: campaign counters, the
// playlist cooldown and budget, and the sequential cursor. p may be nil for
// an ungrouped campaign.
func Commit(state *models.SessionState, p *models.Playlist, campaignID string, now time.Time) {
	throttle.RecordShow(state, campaignID, now)
	if p == nil {
		return
	}
	throttle.RecordPlaylistShow(state, p, now)

	if rules.NormalizePlaylist(p.Rules).SequenceMode != models.SequenceModeSequential {
		return
	}
	if pos := p.Position(campaignID); pos >= 0 {
		if state.SequenceCursor == nil {
			state.SequenceCursor = make(map[string]int)
		}
		state.SequenceCursor[p.ID] = (pos + 1) % len(p.CampaignOrder)
	}
}
