package analytics

import (
	"context"
	"database/sql"
	"time"

	"proof-engine/internal/common/logger"
	"proof-engine/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

type Source interface {
	WindowStats(ctx context.Context, widgetID string, since, until time.Time) (*models.WindowStats, error)
}

// Fallback asks primary first and secondary only when primary fails.
// If both fail, the secondary error is returned.
type Fallback struct {
	primary   Source
	secondary Source
	logger    logger.Logger
}

func NewFallback(primary, secondary Source, log logger.Logger) *Fallback {
	return &Fallback{primary: primary, secondary: secondary, logger: log}
}

func (f *Fallback) WindowStats(ctx context.Context, widgetID string, since, until time.Time) (*models.WindowStats, error) {
	stats, err := f.primary.WindowStats(ctx, widgetID, since, until)
	if err == nil {
		return stats, nil
	}
	f.logger.Warn("Primary analytics source failed, falling back", map[string]interface{}{
		"widgetId": widgetID,
		"error":    err.Error(),
	})
	return f.secondary.WindowStats(ctx, widgetID, since, until)
}

// NewGraduationSource reads window stats from Postgres, and from the
// interaction index only while Postgres is failing. A nil client disables
// the index.
func NewGraduationSource(db *sql.DB, client *elasticsearch.Client, index string, log logger.Logger) Source {
	pg := NewPostgresSource(db)
	if client == nil {
		return pg
	}
	return NewFallback(pg, NewElasticsearchSource(client, index), log)
}
