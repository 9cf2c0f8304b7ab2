package pgtracking

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/BearBump/DeliveryTrack/internal/models"
)

func (s *Storage) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	var (
		sub          models.Subscription
		plan, status string
	)
	err := s.db.QueryRow(ctx, `
SELECT id, plan, delivery_status, last_delivered_date, next_delivery, deliveries_in_cycle, updated_at
FROM subscriptions
WHERE id = $1
`, id).Scan(&sub.ID, &plan, &status, &sub.LastDeliveredDate, &sub.NextDelivery, &sub.DeliveriesInCycle, &sub.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrap(models.ErrSubscriptionNotFound, id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select subscription")
	}
	sub.Plan = models.SubscriptionPlan(plan)
	sub.DeliveryStatus = models.SubscriptionDeliveryStatus(status)
	return &sub, nil
}

func (s *Storage) SaveSubscription(ctx context.Context, sub *models.Subscription) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO subscriptions (
  id, plan, delivery_status, last_delivered_date, next_delivery, deliveries_in_cycle, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
  plan = EXCLUDED.plan,
  delivery_status = EXCLUDED.delivery_status,
  last_delivered_date = EXCLUDED.last_delivered_date,
  next_delivery = EXCLUDED.next_delivery,
  deliveries_in_cycle = EXCLUDED.deliveries_in_cycle,
  updated_at = EXCLUDED.updated_at
`, sub.ID, string(sub.Plan), string(sub.DeliveryStatus),
		sub.LastDeliveredDate, sub.NextDelivery, sub.DeliveriesInCycle, sub.UpdatedAt.UTC())
	if err != nil {
		return errors.Wrap(err, "upsert subscription")
	}
	return nil
}
