package broadcast

import (
	"time"

	"github.com/BearBump/DeliveryTrack/internal/models"
)

type EventKind string

const (
	EventTrackingStarted EventKind = "trackingStarted"
	EventDriverLocation  EventKind = "driverLocation"
	EventStatusUpdate    EventKind = "statusUpdate"
)

// Event — то, что получает подписчик топика.
type Event struct {
	Kind       EventKind `json:"kind"`
	DeliveryID string    `json:"deliveryId"`
	Payload    any       `json:"payload"`
}

// DriverLocationPayload — payload события driverLocation. OrderID дублирует DeliveryID
// для старых клиентов.
type DriverLocationPayload struct {
	DeliveryID   string                `json:"deliveryId"`
	OrderID      string                `json:"orderId"`
	DeliveryType models.DeliveryKind   `json:"deliveryType"`
	Latitude     float64               `json:"latitude"`
	Longitude    float64               `json:"longitude"`
	Heading      float64               `json:"heading"`
	Speed        float64               `json:"speed"`
	Status       models.TrackingStatus `json:"status"`
	ETA          *time.Time            `json:"eta,omitempty"`
	Timestamp    time.Time             `json:"timestamp"`
}

type StatusUpdatePayload struct {
	DeliveryID string                `json:"deliveryId"`
	Status     models.TrackingStatus `json:"status"`
	Timestamp  time.Time             `json:"timestamp"`
}

func NewDriverLocationPayload(t *models.TrackingRecord, at time.Time) DriverLocationPayload {
	p := DriverLocationPayload{
		DeliveryID:   t.DeliveryID,
		OrderID:      t.DeliveryID,
		DeliveryType: t.DeliveryKind,
		Status:       t.Status,
		ETA:          t.Route.ETA,
		Timestamp:    at,
	}
	if t.CurrentLocation != nil {
		p.Latitude = t.CurrentLocation.Lat
		p.Longitude = t.CurrentLocation.Lng
		p.Heading = t.CurrentLocation.Heading
		p.Speed = t.CurrentLocation.Speed
	}
	return p
}
