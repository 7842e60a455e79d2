// Package analytics reports per-origin event counts, views and clicks for a
// widget over a time window. Postgres is the system of record and the
// primary source; the Elasticsearch interaction index answers only when
// Postgres cannot.
package analytics

import (
	"context"
	"database/sql"
	"time"

	"proof-engine/internal/models"
)

type PostgresSource struct {
	db *sql.DB
}

func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

const originStatsQuery = `
	SELECT origin, COUNT(*), COALESCE(SUM(view_count), 0), COALESCE(SUM(click_count), 0)
	FROM notification_events
	WHERE widget_id = $1 AND status = 'approved' AND created_at >= $2 AND created_at < $3
	GROUP BY origin`

const totalsQuery = `
	SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'flagged')
	FROM notification_events
	WHERE widget_id = $1 AND created_at >= $2 AND created_at < $3`

const previousNaturalQuery = `
	SELECT COUNT(*)
	FROM notification_events
	WHERE widget_id = $1 AND origin = 'natural' AND status = 'approved'
	  AND created_at >= $2 AND created_at < $3`

func (s *PostgresSource) WindowStats(ctx context.Context, widgetID string, since, until time.Time) (*models.WindowStats, error) {
	stats := &models.WindowStats{ByOrigin: map[models.Origin]models.OriginAnalytics{}}

	rows, err := s.db.QueryContext(ctx, originStatsQuery, widgetID, since, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			origin string
			a      models.OriginAnalytics
		)
		if err := rows.Scan(&origin, &a.Count, &a.Views, &a.Clicks); err != nil {
			return nil, err
		}
		stats.ByOrigin[models.Origin(origin)] = a
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.db.QueryRowContext(ctx, totalsQuery, widgetID, since, until).
		Scan(&stats.TotalEvents, &stats.FlaggedEvents); err != nil {
		return nil, err
	}

	prevSince := since.Add(-until.Sub(since))
	if err := s.db.QueryRowContext(ctx, previousNaturalQuery, widgetID, prevSince, since).
		Scan(&stats.PreviousNaturalCount); err != nil {
		return nil, err
	}
	return stats, nil
}
