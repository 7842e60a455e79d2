package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	apperrors "proof-engine/internal/common/errors"
	"proof-engine/internal/models"
)

const eventColumns = `id, widget_id, campaign_id, origin, status, quality_score,
	       view_count, click_count, payload, created_at, expires_at`

// Events are ranked within each origin and campaign so a deep quick-win
// backlog cannot crowd natural or campaign-scoped events out of a snapshot.
const selectEligibleEvents = `
	SELECT ` + eventColumns + `
	FROM (
		SELECT ` + eventColumns + `,
		       ROW_NUMBER() OVER (
		           PARTITION BY origin, campaign_id
		           ORDER BY quality_score DESC, created_at DESC
		       ) AS pool_rank
		FROM notification_events
		WHERE widget_id = $1
		  AND status = 'approved'
		  AND (expires_at IS NULL OR expires_at > $2)
	) ranked
	WHERE pool_rank <= $3
	ORDER BY quality_score DESC, created_at DESC`

// ListEligibleEvents returns approved, unexpired events for a widget, best
// quality first, at most eventLimit per origin and campaign.
func (s *Store) ListEligibleEvents(ctx context.Context, widgetID string, now time.Time) ([]models.NotificationEvent, error) {
	rows, err := s.db.QueryContext(ctx, selectEligibleEvents, widgetID, now, s.eventLimit)
	if err != nil {
		return nil, apperrors.NewStorageReadFailedError("list_events", err)
	}
	defer rows.Close()

	var out []models.NotificationEvent
	for rows.Next() {
		e, err := s.scanEvent(rows)
		if err != nil {
			return nil, apperrors.NewStorageReadFailedError("list_events", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageReadFailedError("list_events", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scanEvent(row scanner) (*models.NotificationEvent, error) {
	var (
		e          models.NotificationEvent
		campaignID sql.NullString
		payload    []byte
		expiresAt  sql.NullTime
	)
	if err := row.Scan(
		&e.ID, &e.WidgetID, &campaignID, &e.Origin, &e.Status, &e.QualityScore,
		&e.ViewCount, &e.ClickCount, &payload, &e.CreatedAt, &expiresAt,
	); err != nil {
		return nil, err
	}
	if campaignID.Valid {
		id := campaignID.String
		e.CampaignID = &id
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		e.ExpiresAt = &t
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			s.logger.Warn("Undecodable event payload, serving without it", map[string]interface{}{
				"eventId": e.ID,
				"error":   err.Error(),
			})
			e.Payload = models.EventPayload{}
		}
	}
	return &e, nil
}

const incrementViews = `
	UPDATE notification_events SET view_count = view_count + 1
	WHERE id = $1
	RETURNING ` + eventColumns

const incrementClicks = `
	UPDATE notification_events SET click_count = click_count + 1
	WHERE id = $1
	RETURNING ` + eventColumns

// IncrementViews atomically bumps the view counter and returns the updated event.
func (s *Store) IncrementViews(ctx context.Context, eventID string) (*models.NotificationEvent, error) {
	return s.increment(ctx, incrementViews, "increment_views", eventID)
}

// IncrementClicks atomically bumps the click counter and returns the updated event.
func (s *Store) IncrementClicks(ctx context.Context, eventID string) (*models.NotificationEvent, error) {
	return s.increment(ctx, incrementClicks, "increment_clicks", eventID)
}

func (s *Store) increment(ctx context.Context, query, op, eventID string) (*models.NotificationEvent, error) {
	e, err := s.scanEvent(s.db.QueryRowContext(ctx, query, eventID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewEventNotFoundError(eventID)
	}
	if err != nil {
		return nil, apperrors.NewStorageWriteFailedError(op, err)
	}
	return e, nil
}
