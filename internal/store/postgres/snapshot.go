package postgres

import (
	"context"
	"time"

	"proof-engine/internal/models"

	"golang.org/x/sync/errgroup"
)

// LoadSnapshot reads everything one admission cycle needs for a widget.
// Campaigns, playlists and events are fetched concurrently once the widget
// row is known.
func (s *Store) LoadSnapshot(ctx context.Context, widgetID string) (*models.Snapshot, error) {
	widget, err := s.GetWidget(ctx, widgetID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	snap := &models.Snapshot{Widget: *widget, FetchedAt: now}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		campaigns, err := s.ListActiveCampaigns(gctx, widgetID)
		snap.Campaigns = campaigns
		return err
	})
	g.Go(func() error {
		playlists, err := s.ListPlaylists(gctx, widget.WebsiteID)
		snap.Playlists = playlists
		return err
	})
	g.Go(func() error {
		events, err := s.ListEligibleEvents(gctx, widgetID, now)
		snap.Events = events
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}
