package postgres

import (
	"context"
	"database/sql"
	"errors"

	apperrors "proof-engine/internal/common/errors"
	"proof-engine/internal/models"

	"github.com/lib/pq"
)

const selectWidget = `
	SELECT id, website_id, business_type, allowed_event_sources, target_ratio,
	       graduated, graduated_at, version, updated_at
	FROM widgets
	WHERE id = $1`

func (s *Store) GetWidget(ctx context.Context, widgetID string) (*models.WidgetConfig, error) {
	var (
		w           models.WidgetConfig
		sources     pq.StringArray
		ratio       sql.NullFloat64
		graduatedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, selectWidget, widgetID).Scan(
		&w.ID, &w.WebsiteID, &w.BusinessType, &sources, &ratio,
		&w.Graduated, &graduatedAt, &w.Version, &w.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewWidgetNotFoundError(widgetID)
	}
	if err != nil {
		return nil, apperrors.NewStorageReadFailedError("get_widget", err)
	}

	for _, src := range sources {
		o := models.Origin(src)
		if models.ValidOrigin(o) {
			w.AllowedEventSources = append(w.AllowedEventSources, o)
		}
	}
	if ratio.Valid {
		r := ratio.Float64
		w.TargetRatio = &r
	}
	if graduatedAt.Valid {
		t := graduatedAt.Time
		w.GraduatedAt = &t
	}
	return &w, nil
}

const casWidget = `
	UPDATE widgets
	SET target_ratio = $1, graduated = $2, graduated_at = $3, version = $4, updated_at = $5
	WHERE id = $6 AND version = $7`

// CompareAndSwapWidget writes the mutable blending fields of next only if
// the stored version still equals expectedVersion. It reports whether the
// row was written.
func (s *Store) CompareAndSwapWidget(ctx context.Context, next *models.WidgetConfig, expectedVersion int64) (bool, error) {
	var ratio sql.NullFloat64
	if next.TargetRatio != nil {
		ratio = sql.NullFloat64{Float64: *next.TargetRatio, Valid: true}
	}
	var graduatedAt sql.NullTime
	if next.GraduatedAt != nil {
		graduatedAt = sql.NullTime{Time: *next.GraduatedAt, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, casWidget,
		ratio, next.Graduated, graduatedAt, next.Version, next.UpdatedAt,
		next.ID, expectedVersion,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) ListWidgetIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM widgets ORDER BY id`)
	if err != nil {
		return nil, apperrors.NewStorageReadFailedError("list_widgets", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewStorageReadFailedError("list_widgets", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageReadFailedError("list_widgets", err)
	}
	return ids, nil
}
