package pgtracking

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/BearBump/DeliveryTrack/internal/models"
)

const selectTrackingCols = `
  delivery_id, delivery_kind, subscription_id, status,
  driver, current_location, route, origin, destination, history,
  last_updated, created_at`

func (s *Storage) GetTracking(ctx context.Context, deliveryID string) (*models.TrackingRecord, error) {
	row := s.db.QueryRow(ctx, `SELECT`+selectTrackingCols+`
FROM delivery_trackings
WHERE delivery_id = $1
`, deliveryID)

	t, err := scanTracking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrap(models.ErrNotFound, deliveryID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select tracking")
	}
	return t, nil
}

// SaveTracking пишет запись целиком одним upsert'ом.
func (s *Storage) SaveTracking(ctx context.Context, t *models.TrackingRecord) error {
	driver, err := marshalNullable(t.Driver != nil, t.Driver)
	if err != nil {
		return err
	}
	loc, err := marshalNullable(t.CurrentLocation != nil, t.CurrentLocation)
	if err != nil {
		return err
	}
	origin, err := marshalNullable(t.Origin != nil, t.Origin)
	if err != nil {
		return err
	}
	dest, err := marshalNullable(t.Destination != nil, t.Destination)
	if err != nil {
		return err
	}
	route, err := json.Marshal(t.Route)
	if err != nil {
		return errors.Wrap(err, "marshal route")
	}
	history := t.History
	if history == nil {
		history = []models.HistoryPoint{}
	}
	hist, err := json.Marshal(history)
	if err != nil {
		return errors.Wrap(err, "marshal history")
	}

	_, err = s.db.Exec(ctx, `
INSERT INTO delivery_trackings (
  delivery_id, delivery_kind, subscription_id, status,
  driver, current_location, route, origin, destination, history,
  last_updated, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (delivery_id) DO UPDATE SET
  delivery_kind = EXCLUDED.delivery_kind,
  subscription_id = EXCLUDED.subscription_id,
  status = EXCLUDED.status,
  driver = EXCLUDED.driver,
  current_location = EXCLUDED.current_location,
  route = EXCLUDED.route,
  origin = EXCLUDED.origin,
  destination = EXCLUDED.destination,
  history = EXCLUDED.history,
  last_updated = EXCLUDED.last_updated
`, t.DeliveryID, string(t.DeliveryKind), t.SubscriptionID, string(t.Status),
		driver, loc, route, origin, dest, hist,
		t.LastUpdated.UTC(), t.CreatedAt.UTC())
	if err != nil {
		return errors.Wrap(err, "upsert tracking")
	}
	return nil
}

// ListActiveTrackings — доставки, где курьер в движении, самые давно обновлённые первыми.
func (s *Storage) ListActiveTrackings(ctx context.Context, limit int) ([]*models.TrackingRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	active := []string{
		string(models.StatusPickingUp),
		string(models.StatusEnRoute),
		string(models.StatusNearby),
	}

	rows, err := s.db.Query(ctx, `SELECT`+selectTrackingCols+`
FROM delivery_trackings
WHERE status = ANY($1)
ORDER BY last_updated ASC
LIMIT $2
`, active, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select active trackings")
	}
	defer rows.Close()

	out := make([]*models.TrackingRecord, 0)
	for rows.Next() {
		t, err := scanTracking(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan tracking")
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func scanTracking(row pgx.Row) (*models.TrackingRecord, error) {
	var t models.TrackingRecord
	var kind, status string
	var driver, loc, route, origin, dest, h []byte
	if err := row.Scan(
		&t.DeliveryID, &kind, &t.SubscriptionID, &status,
		&driver, &loc, &route, &origin, &dest, &h,
		&t.LastUpdated, &t.CreatedAt,
	); err != nil {
		return nil, err
	}
	t.DeliveryKind = models.DeliveryKind(kind)
	t.Status = models.TrackingStatus(status)

	if err := unmarshalNullable(driver, &t.Driver); err != nil {
		return nil, errors.Wrap(err, "driver")
	}
	if err := unmarshalNullable(loc, &t.CurrentLocation); err != nil {
		return nil, errors.Wrap(err, "current_location")
	}
	if err := unmarshalNullable(origin, &t.Origin); err != nil {
		return nil, errors.Wrap(err, "origin")
	}
	if err := unmarshalNullable(dest, &t.Destination); err != nil {
		return nil, errors.Wrap(err, "destination")
	}
	if err := json.Unmarshal(route, &t.Route); err != nil {
		return nil, errors.Wrap(err, "route")
	}
	if err := json.Unmarshal(h, &t.History); err != nil {
		return nil, errors.Wrap(err, "history")
	}
	if t.Route.Points == nil {
		t.Route.Points = []models.LatLng{}
	}
	if t.History == nil {
		t.History = []models.HistoryPoint{}
	}
	return &t, nil
}

func marshalNullable(present bool, v any) ([]byte, error) {
	if !present {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshal jsonb")
	}
	return b, nil
}

func unmarshalNullable(b []byte, dst any) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, dst)
}
