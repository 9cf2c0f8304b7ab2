package trackings

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/DeliveryTrack/internal/models"
)

// syncSubscription переносит статус трекинга в подписку. Ошибки только логируются:
// трекинг не должен зависеть от доступности подписок.
func (s *Service) syncSubscription(ctx context.Context, t *models.TrackingRecord, now time.Time) {
	subID := t.SubscriptionRef()
	if subID == "" {
		return
	}
	if s.subs == nil {
		slog.Warn("subscription sync skipped: no store", "delivery_id", t.DeliveryID, "subscription_id", subID)
		return
	}

	sub, err := s.subs.GetSubscription(ctx, subID)
	if err != nil {
		slog.Warn("subscription sync failed", "delivery_id", t.DeliveryID, "subscription_id", subID, "error", err.Error())
		return
	}
	if !ApplyTrackingStatus(sub, t.Status, now) {
		return
	}
	if err := s.subs.SaveSubscription(ctx, sub); err != nil {
		slog.Error("subscription sync save failed", "delivery_id", t.DeliveryID, "subscription_id", subID, "error", err.Error())
		return
	}
	slog.Info("subscription synced", "subscription_id", subID, "delivery_status", string(sub.DeliveryStatus))
}

// ApplyTrackingStatus меняет подписку по таблице статусов. На delivered сдвигает цикл:
// nextDelivery = начало дня now + интервал плана. Подписку, уже доставленную в этот же день,
// повторный delivered не трогает (false).
func ApplyTrackingStatus(sub *models.Subscription, status models.TrackingStatus, now time.Time) bool {
	target, ok := models.SubscriptionStatusFor(status)
	if !ok {
		return false
	}
	if status == models.StatusDelivered && deliveredOn(sub, now) {
		return false
	}
	sub.DeliveryStatus = target
	sub.UpdatedAt = now
	if status == models.StatusDelivered {
		delivered := now
		next := models.StartOfDay(now).AddDate(0, 0, sub.Plan.IntervalDays())
		sub.LastDeliveredDate = &delivered
		sub.NextDelivery = &next
		sub.DeliveriesInCycle++
	}
	return true
}

func deliveredOn(sub *models.Subscription, now time.Time) bool {
	return sub.DeliveryStatus == models.SubscriptionDelivered &&
		sub.LastDeliveredDate != nil &&
		models.StartOfDay(*sub.LastDeliveredDate).Equal(models.StartOfDay(now))
}
