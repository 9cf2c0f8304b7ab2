package trackings

import (
	"context"

	"github.com/pkg/errors"

	"github.com/BearBump/DeliveryTrack/internal/broker/messages"
	"github.com/BearBump/DeliveryTrack/internal/models"
)

// ApplyDriverReport — вход из топика driver.location: отчёт со статусом меняет статус,
// остальные двигают курьера.
func (s *Service) ApplyDriverReport(ctx context.Context, msg messages.DriverReported) (*models.TrackingRecord, error) {
	if msg.DeliveryID == "" {
		return nil, errors.Wrap(models.ErrInvalidArgument, "delivery_id is required")
	}
	if msg.Status != "" {
		return s.UpdateStatus(ctx, msg.DeliveryID, models.TrackingStatus(msg.Status))
	}
	return s.UpdateLocation(ctx, UpdateLocationCommand{
		DeliveryID: msg.DeliveryID,
		Lat:        msg.Lat,
		Lng:        msg.Lng,
		Heading:    valueOrZero(msg.Heading),
		Speed:      valueOrZero(msg.Speed),
		Accuracy:   valueOrZero(msg.Accuracy),
	})
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
