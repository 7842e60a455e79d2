// Package admission runs the per-page-view admission cycle: which campaign
// may show, and which event it shows, for one widget slot.
package admission

import (
	"context"
	"time"

	apperrors "proof-engine/internal/common/errors"
	"proof-engine/internal/common/logger"
	"proof-engine/internal/common/metrics"
	"proof-engine/internal/common/observability"
	"proof-engine/internal/engine/blending"
	"proof-engine/internal/engine/graduation"
	"proof-engine/internal/engine/playlist"
	"proof-engine/internal/engine/throttle"
	"proof-engine/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const (
	ReasonPoolUnavailable = "pool_unavailable"
	ReasonNoCampaigns     = "no_campaigns"
)

type SnapshotSource interface {
	LoadSnapshot(ctx context.Context, widgetID string) (*models.Snapshot, error)
}

// Counters applies atomic view and click increments and returns the
// updated event.
type Counters interface {
	IncrementViews(ctx context.Context, eventID string) (*models.NotificationEvent, error)
	IncrementClicks(ctx context.Context, eventID string) (*models.NotificationEvent, error)
}

// EventSink receives updated events after a counter change.
type EventSink interface {
	Record(ctx context.Context, e *models.NotificationEvent) error
}

type Config struct {
	NaturalFloor int
	RecentWindow int
	SessionTTL   time.Duration
	PreRatio     *float64 // nil means blending.DefaultPreGraduationRatio
	PostRatio    *float64
}

// Request is one admission cycle for a widget slot.
type Request struct {
	WidgetID   string
	SessionID  string
	PageViewID string
	Session    *models.SessionState
	Page       models.PageContext
}

// Selection is the outcome of Admit. Session is the state the caller
// should keep; it does not yet include the display, which is charged by
// Confirm after the notification actually renders.
type Selection struct {
	CycleID        string                    `json:"cycleId"`
	Shown          bool                      `json:"shown"`
	Reason         string                    `json:"reason,omitempty"`
	Event          *models.NotificationEvent `json:"event,omitempty"`
	CampaignID     string                    `json:"campaignId,omitempty"`
	PlaylistID     string                    `json:"playlistId,omitempty"`
	Pool           string                    `json:"pool,omitempty"`
	FellBack       bool                      `json:"fellBack,omitempty"`
	TargetRatio    float64                   `json:"targetRatio"`
	ShowDurationMs int                       `json:"showDurationMs,omitempty"`
	Cycles         []*playlist.Cycle         `json:"-"`
	Rejections     map[string]string         `json:"rejections,omitempty"`
	Session        *models.SessionState      `json:"session"`
}

type ConfirmRequest struct {
	WidgetID   string
	SessionID  string
	PageViewID string
	Session    *models.SessionState
	EventID    string
	CampaignID string
	PlaylistID string
}

type Service struct {
	cfg       Config
	snapshots SnapshotSource
	counters  Counters
	sink      EventSink
	policy    *blending.Policy
	rng       Rand
	obs       *observability.Observability

	logger    logger.Logger
	now       func() time.Time

	preRatio, postRatio float64
}

type Option func(*Service)

func WithEventSink(sink EventSink) Option {
	return func(s *Service) { s.sink = sink }
}

func WithObservability(o *observability.Observability) Option {
	return func(s *Service) { s.obs = o }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(cfg Config, snapshots SnapshotSource, counters Counters, rng Rand, log logger.Logger, opts ...Option) *Service {
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = throttle.DefaultRecentWindow
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = throttle.DefaultSessionTTL
	}
	if rng == nil {
		rng = NewRand(0)
	}
	s := &Service{
		cfg:       cfg,
		snapshots: snapshots,
		counters:  counters,
		policy:    blending.NewPolicy(cfg.NaturalFloor, rng),
		rng:       rng,
		logger:    log,
		now:       time.Now,
		preRatio:  blending.RatioOr(cfg.PreRatio, blending.DefaultPreGraduationRatio),
		postRatio: blending.RatioOr(cfg.PostRatio, blending.DefaultPostGraduationRatio),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Admit decides what, if anything, to show. It is a dry run with respect
// to session state: nothing is charged until Confirm.
func (s *Service) Admit(ctx context.Context, req Request) (*Selection, error) {
	if req.WidgetID == "" || req.SessionID == "" {
		return nil, apperrors.NewInvalidInputError("widgetId and sessionId are required")
	}

	start := time.Now()
	ctx, span := s.obs.StartSpan(ctx, "admission.admit", attribute.String("widget.id", req.WidgetID))
	defer span.End()

	now := s.now().UTC()
	state := throttle.Begin(req.Session, req.SessionID, req.WidgetID, now, s.cfg.SessionTTL)
	throttle.EnterPage(state, req.PageViewID)

	sel := &Selection{CycleID: uuid.NewString(), Session: state}

	snap, err := s.snapshots.LoadSnapshot(ctx, req.WidgetID)
	if err != nil {
		s.logger.Warn("Event pool unavailable", map[string]interface{}{
			"widgetId": req.WidgetID,
			"cycleId":  sel.CycleID,
			"error":    err.Error(),
		})
		span.RecordError(err)
		sel.Reason = ReasonPoolUnavailable
		s.finish(ctx, sel, start)
		return sel, nil
	}

	sel.TargetRatio = graduation.EffectiveRatio(&snap.Widget, s.preRatio, s.postRatio)
	s.admit(snap, state, req.Page, now, sel)
	s.finish(ctx, sel, start)
	return sel, nil
}

func (s *Service) admit(snap *models.Snapshot, state *models.SessionState, page models.PageContext, now time.Time, sel *Selection) {
	campaigns := playlist.Index(snap.Campaigns)
	if campaigns.Len() == 0 {
		sel.Reason = ReasonNoCampaigns
		return
	}

	sel.Rejections = map[string]string{}
	var contenders []playlist.Contender
	cycles := map[string]*playlist.Cycle{}
	grouped := map[string]bool{}

	for i := range snap.Playlists {
		p := &snap.Playlists[i]
		for _, id := range p.CampaignOrder {
			grouped[id] = true
		}
		cycle := playlist.Select(p, campaigns, state, page, now, s.rng)
		sel.Cycles = append(sel.Cycles, cycle)
		for id, reason := range cycle.Rejections {
			sel.Rejections[id] = reason
		}
		if cycle.Campaign == nil {
			if cycle.Reason != playlist.ReasonNoCandidates {
				sel.Rejections["playlist:"+p.ID] = cycle.Reason
			}
			continue
		}
		cycles[p.ID] = cycle
		contenders = append(contenders, playlist.Contender{Campaign: cycle.Campaign, Playlist: p})
	}

	for i := range snap.Campaigns {
		c := &snap.Campaigns[i]
		if grouped[c.ID] || !c.IsActive() {
			continue
		}
		if reason := campaigns.Admissible(c, state, page, now); reason != "" {
			sel.Rejections[c.ID] = reason
			continue
		}
		contenders = append(contenders, playlist.Contender{Campaign: c})
	}

	if len(contenders) == 0 {
		sel.Reason = playlist.ReasonAllFiltered
		return
	}

	ordered := playlist.Resolve(contenders, playlist.Strategy(contenders))
	for _, ct := range ordered {
		pool := blending.Partition(snap.Events, &snap.Widget, ct.Campaign.ID, now)
		choice := s.policy.Select(pool, sel.TargetRatio, state.RecentEventIDs)

		var cycle *playlist.Cycle
		if ct.Playlist != nil {
			cycle = cycles[ct.Playlist.ID]
		}
		if choice.Event == nil {
			sel.Rejections[ct.Campaign.ID] = playlist.ReasonNoEvent
			if cycle != nil {
				cycle.Finish(false)
			}
			continue
		}
		if cycle != nil {
			cycle.Finish(true)
			sel.PlaylistID = ct.Playlist.ID
		}

		sel.Shown = true
		sel.Reason = ""
		sel.Event = choice.Event
		sel.CampaignID = ct.Campaign.ID
		sel.Pool = choice.Pool
		sel.FellBack = choice.FellBack
		sel.ShowDurationMs = ct.Campaign.DisplayRules.ShowDurationMs
		metrics.BlendSelections.WithLabelValues(choice.Pool, boolLabel(choice.FellBack)).Inc()
		return
	}
	sel.Reason = playlist.ReasonNoEvent
}

func (s *Service) finish(ctx context.Context, sel *Selection, start time.Time) {
	outcome := "none_available"
	if sel.Shown {
		outcome = "shown"
	}
	elapsed := time.Since(start)
	metrics.AdmissionCycles.WithLabelValues(outcome, sel.Reason).Inc()
	metrics.AdmissionDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	s.obs.RecordCycle(ctx, "admission", outcome, elapsed)
}

// Confirm charges a rendered display to the session and bumps the event's
// view count. The returned state must replace the caller's copy. A failed
// view increment does not undo the session charge; it is logged.
func (s *Service) Confirm(ctx context.Context, req ConfirmRequest) (*models.SessionState, error) {
	if req.WidgetID == "" || req.SessionID == "" || req.EventID == "" || req.CampaignID == "" {
		return nil, apperrors.NewInvalidInputError("widgetId, sessionId, eventId and campaignId are required")
	}

	ctx, span := s.obs.StartSpan(ctx, "admission.confirm", attribute.String("widget.id", req.WidgetID))
	defer span.End()

	snap, err := s.snapshots.LoadSnapshot(ctx, req.WidgetID)
	if err != nil {
		return nil, apperrors.NewPoolFetchFailedError(req.WidgetID, err)
	}

	var campaignFound bool
	for i := range snap.Campaigns {
		if snap.Campaigns[i].ID == req.CampaignID {
			campaignFound = true
			break
		}
	}
	if !campaignFound {
		return nil, apperrors.NewInvalidInputError("unknown campaignId " + req.CampaignID)
	}

	var pl *models.Playlist
	if req.PlaylistID != "" {
		for i := range snap.Playlists {
			if snap.Playlists[i].ID == req.PlaylistID {
				pl = &snap.Playlists[i]
				break
			}
		}
		if pl == nil {
			return nil, apperrors.NewInvalidInputError("unknown playlistId " + req.PlaylistID)
		}
	}

	now := s.now().UTC()
	state := throttle.Begin(req.Session, req.SessionID, req.WidgetID, now, s.cfg.SessionTTL)
	throttle.EnterPage(state, req.PageViewID)
	playlist.Commit(state, pl, req.CampaignID, now)
	throttle.RememberEvent(state, req.EventID, s.cfg.RecentWindow)

	updated, err := s.counters.IncrementViews(ctx, req.EventID)
	if err != nil {
		span.RecordError(err)
		s.logger.Warn("Failed to record view", map[string]interface{}{
			"widgetId":  req.WidgetID,
			"eventId":   req.EventID,
			"errorCode": string(apperrors.CodeOf(err)),
			"error":     err.Error(),
		})
		return state, nil
	}
	metrics.EventInteractions.WithLabelValues("view").Inc()
	s.record(ctx, updated)
	return state, nil
}

// RecordClick bumps the event's click count.
func (s *Service) RecordClick(ctx context.Context, eventID string) error {
	if eventID == "" {
		return apperrors.NewInvalidInputError("eventId is required")
	}
	updated, err := s.counters.IncrementClicks(ctx, eventID)
	if err != nil {
		return err
	}
	metrics.EventInteractions.WithLabelValues("click").Inc()
	s.record(ctx, updated)
	return nil
}

func (s *Service) record(ctx context.Context, e *models.NotificationEvent) {
	if s.sink == nil || e == nil {
		return
	}
	if err := s.sink.Record(ctx, e); err != nil {
		s.logger.Warn("Failed to mirror event counters", map[string]interface{}{
			"eventId": e.ID,
			"error":   err.Error(),
		})
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
