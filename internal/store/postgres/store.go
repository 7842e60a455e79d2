// Package postgres persists widgets, campaigns, playlists and notification
// events, and owns the atomic counter and compare-and-set writes.
package postgres

import (
	"database/sql"

	"proof-engine/internal/common/logger"
)

// DefaultEventLimit caps how many eligible events a snapshot carries for each
// origin and campaign.
const DefaultEventLimit = 200

type Store struct {
	db         *sql.DB
	logger     logger.Logger
	eventLimit int
}

func NewStore(db *sql.DB, log logger.Logger) *Store {
	return &Store{db: db, logger: log, eventLimit: DefaultEventLimit}
}

// WithEventLimit returns a copy of s loading at most n events per origin and
// campaign.
func (s *Store) WithEventLimit(n int) *Store {
	cp := *s
	if n > 0 {
		cp.eventLimit = n
	}
	return &cp
}
