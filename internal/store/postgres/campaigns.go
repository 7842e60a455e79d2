package postgres

import (
	"context"
	"encoding/json"

	apperrors "proof-engine/internal/common/errors"
	"proof-engine/internal/common/validation"
	"proof-engine/internal/engine/rules"
	"proof-engine/internal/models"

	"github.com/lib/pq"
)

const selectCampaigns = `
	SELECT id, widget_id, status, priority, display_rules, created_at
	FROM campaigns
	WHERE widget_id = $1 AND status = 'active'
	ORDER BY priority DESC, id`

func (s *Store) ListActiveCampaigns(ctx context.Context, widgetID string) ([]models.Campaign, error) {
	rows, err := s.db.QueryContext(ctx, selectCampaigns, widgetID)
	if err != nil {
		return nil, apperrors.NewStorageReadFailedError("list_campaigns", err)
	}
	defer rows.Close()

	var out []models.Campaign
	for rows.Next() {
		var (
			c   models.Campaign
			raw []byte
		)
		if err := rows.Scan(&c.ID, &c.WidgetID, &c.Status, &c.Priority, &raw, &c.CreatedAt); err != nil {
			return nil, apperrors.NewStorageReadFailedError("list_campaigns", err)
		}
		c.DisplayRules = s.decodeDisplayRules(c.ID, raw)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageReadFailedError("list_campaigns", err)
	}
	return out, nil
}

// decodeDisplayRules never fails: missing or malformed rules fall back to
// the bounded defaults and the problem is logged.
func (s *Store) decodeDisplayRules(campaignID string, raw []byte) models.DisplayRules {
	if len(raw) == 0 || string(raw) == "null" {
		return rules.DefaultDisplayRules()
	}

	if res := validation.DisplayRules().ValidateBytes(raw); !res.Valid {
		s.logger.Warn("Invalid display rules, using defaults", map[string]interface{}{
			"campaignId": campaignID,
			"errors":     res.GetErrorMessages(),
		})
		return rules.DefaultDisplayRules()
	}

	r := rules.DefaultDisplayRules()
	if err := json.Unmarshal(raw, &r); err != nil {
		s.logger.Warn("Undecodable display rules, using defaults", map[string]interface{}{
			"campaignId": campaignID,
			"error":      err.Error(),
		})
		return rules.DefaultDisplayRules()
	}
	return rules.Normalize(r)
}

const selectPlaylists = `
	SELECT id, website_id, campaign_order, rules
	FROM playlists
	WHERE website_id = $1
	ORDER BY id`

func (s *Store) ListPlaylists(ctx context.Context, websiteID string) ([]models.Playlist, error) {
	rows, err := s.db.QueryContext(ctx, selectPlaylists, websiteID)
	if err != nil {
		return nil, apperrors.NewStorageReadFailedError("list_playlists", err)
	}
	defer rows.Close()

	var out []models.Playlist
	for rows.Next() {
		var (
			p     models.Playlist
			order pq.StringArray
			raw   []byte
		)
		if err := rows.Scan(&p.ID, &p.WebsiteID, &order, &raw); err != nil {
			return nil, apperrors.NewStorageReadFailedError("list_playlists", err)
		}
		p.CampaignOrder = []string(order)
		p.Rules = s.decodePlaylistRules(p.ID, raw)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageReadFailedError("list_playlists", err)
	}
	return out, nil
}

func (s *Store) decodePlaylistRules(playlistID string, raw []byte) models.PlaylistRules {
	var r models.PlaylistRules
	if len(raw) == 0 || string(raw) == "null" {
		return rules.NormalizePlaylist(r)
	}
	if res := validation.PlaylistRules().ValidateBytes(raw); !res.Valid {
		s.logger.Warn("Invalid playlist rules, using defaults", map[string]interface{}{
			"playlistId": playlistID,
			"errors":     res.GetErrorMessages(),
		})
		return rules.NormalizePlaylist(models.PlaylistRules{})
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return rules.NormalizePlaylist(models.PlaylistRules{})
	}
	return rules.NormalizePlaylist(r)
}
