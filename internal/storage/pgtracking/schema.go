package pgtracking

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS delivery_trackings (
  delivery_id TEXT PRIMARY KEY,
  delivery_kind TEXT NOT NULL,
  subscription_id TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  driver JSONB NULL,
  current_location JSONB NULL,
  route JSONB NOT NULL,
  origin JSONB NULL,
  destination JSONB NULL,
  history JSONB NOT NULL DEFAULT '[]',
  last_updated TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_delivery_trackings_status ON delivery_trackings(status, last_updated)`,
		`
CREATE TABLE IF NOT EXISTS subscriptions (
  id TEXT PRIMARY KEY,
  plan TEXT NOT NULL,
  delivery_status TEXT NOT NULL,
  last_delivered_date TIMESTAMPTZ NULL,
  next_delivery TIMESTAMPTZ NULL,
  deliveries_in_cycle INT NOT NULL DEFAULT 0,
  updated_at TIMESTAMPTZ NOT NULL
)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
