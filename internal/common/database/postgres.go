package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"proof-engine/internal/common/config"

	_ "github.com/lib/pq"
)

type PostgresClient struct {
	DB *sql.DB
}

func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// Migrate creates the engine tables if they do not exist. Statements run
// in one transaction.
func (c *PostgresClient) Migrate(ctx context.Context) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i, err)
		}
	}
	return tx.Commit()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS widgets (
		id                    TEXT PRIMARY KEY,
		website_id            TEXT NOT NULL,
		business_type         TEXT NOT NULL DEFAULT '',
		allowed_event_sources TEXT[] NOT NULL DEFAULT '{}',
		target_ratio          DOUBLE PRECISION,
		graduated             BOOLEAN NOT NULL DEFAULT FALSE,
		graduated_at          TIMESTAMPTZ,
		version               BIGINT NOT NULL DEFAULT 1,
		updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS campaigns (
		id            TEXT PRIMARY KEY,
		widget_id     TEXT NOT NULL REFERENCES widgets(id),
		status        TEXT NOT NULL,
		priority      INTEGER NOT NULL DEFAULT 0,
		display_rules JSONB,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS playlists (
		id             TEXT PRIMARY KEY,
		website_id     TEXT NOT NULL,
		campaign_order TEXT[] NOT NULL DEFAULT '{}',
		rules          JSONB
	)`,
	`CREATE TABLE IF NOT EXISTS notification_events (
		id            TEXT PRIMARY KEY,
		widget_id     TEXT NOT NULL REFERENCES widgets(id),
		campaign_id   TEXT,
		origin        TEXT NOT NULL,
		status        TEXT NOT NULL,
		quality_score INTEGER NOT NULL DEFAULT 0,
		view_count    BIGINT NOT NULL DEFAULT 0,
		click_count   BIGINT NOT NULL DEFAULT 0,
		payload       JSONB,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		expires_at    TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS notification_events_widget_created
		ON notification_events (widget_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS campaigns_widget ON campaigns (widget_id)`,
}
