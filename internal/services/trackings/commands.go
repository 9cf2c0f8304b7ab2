package trackings

import "github.com/BearBump/DeliveryTrack/internal/models"

// StartTrackingCommand — маршрут приходит от вызывающего (routing-провайдер вызывается до старта).
// Если Route.Points пустой, точки берутся из Route.Polyline.
type StartTrackingCommand struct {
	DeliveryID     string
	DeliveryKind   models.DeliveryKind
	SubscriptionID string
	Driver         *models.Driver
	Origin         models.Place
	Destination    models.Place
	Route          models.Route
}

// UpdateLocationCommand — Heading и Speed по умолчанию 0.
type UpdateLocationCommand struct {
	DeliveryID string
	Lat        float64
	Lng        float64
	Heading    float64
	Speed      float64
	Accuracy   float64
}
