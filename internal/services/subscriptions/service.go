package subscriptions

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/DeliveryTrack/internal/models"
)

type Store interface {
	GetSubscription(ctx context.Context, id string) (*models.Subscription, error)
	SaveSubscription(ctx context.Context, sub *models.Subscription) error
}

// Service отдаёт подписку с эффективным статусом доставки на сегодня.
type Service struct {
	store Store
	now   func() time.Time
}

func New(store Store, now func() time.Time) *Service {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{store: store, now: now}
}

// GetSubscription пересчитывает статус по расписанию. В день доставки статус pending
// продвигается до packed и сохраняется: это единственный побочный эффект чтения.
func (s *Service) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	if id == "" {
		return nil, errors.Wrap(models.ErrInvalidArgument, "subscription id is required")
	}
	sub, err := s.store.GetSubscription(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	status, promote := EffectiveStatus(sub, now)
	sub.DeliveryStatus = status
	if promote {
		sub.UpdatedAt = now
		if err := s.store.SaveSubscription(ctx, sub); err != nil {
			return nil, errors.Wrap(err, "save packed subscription")
		}
		slog.Info("subscription packed for today", "subscription_id", sub.ID)
	}
	return sub, nil
}

// EffectiveStatus: delivered держится до дня nextDelivery, с этого дня — pending.
// Продвигается до packed (promote=true) только сохранённый pending и только в сам день
// nextDelivery; pending, выведенный из delivered, не сохраняется.
func EffectiveStatus(sub *models.Subscription, now time.Time) (models.SubscriptionDeliveryStatus, bool) {
	stored := sub.DeliveryStatus
	if sub.NextDelivery == nil {
		return stored, false
	}
	today := models.StartOfDay(now)
	next := models.StartOfDay(*sub.NextDelivery)

	switch stored {
	case models.SubscriptionDelivered:
		if !today.Before(next) {
			return models.SubscriptionPending, false
		}
	case models.SubscriptionPending:
		if today.Equal(next) {
			return models.SubscriptionPacked, true
		}
	}
	return stored, false
}
