package trackings_api

import (
	"github.com/BearBump/DeliveryTrack/internal/integrations/routing"
	"github.com/BearBump/DeliveryTrack/internal/models"
	"github.com/BearBump/DeliveryTrack/internal/services/trackings"
)

// Координаты указателями: иначе required не отличит 0 от отсутствующего поля.
type placeDTO struct {
	Lat     *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng     *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
	Address string   `json:"address"`
}

type latLngDTO struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

type routeDTO struct {
	Polyline string      `json:"polyline"`
	Points   []latLngDTO `json:"points" validate:"omitempty,dive"`
	Distance float64     `json:"distance" validate:"gte=0"`
	Duration float64     `json:"duration" validate:"gte=0"`
}

type driverDTO struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Phone  string  `json:"phone"`
	Rating float64 `json:"rating" validate:"gte=0,lte=5"`
}

type startTrackingRequest struct {
	DeliveryKind   string     `json:"deliveryKind" validate:"omitempty,oneof=order subscription"`
	SubscriptionID string     `json:"subscriptionId"`
	Driver         *driverDTO `json:"driver"`
	Origin         placeDTO   `json:"origin"`
	Destination    placeDTO   `json:"destination"`
	Route          *routeDTO  `json:"route"`
}

func (r startTrackingRequest) toCommand(deliveryID string) trackings.StartTrackingCommand {
	cmd := trackings.StartTrackingCommand{
		DeliveryID:     deliveryID,
		DeliveryKind:   models.DeliveryKind(r.DeliveryKind),
		SubscriptionID: r.SubscriptionID,
		Origin:         models.Place{Lat: *r.Origin.Lat, Lng: *r.Origin.Lng, Address: r.Origin.Address},
		Destination:    models.Place{Lat: *r.Destination.Lat, Lng: *r.Destination.Lng, Address: r.Destination.Address},
	}
	if r.Driver != nil {
		cmd.Driver = &models.Driver{ID: r.Driver.ID, Name: r.Driver.Name, Phone: r.Driver.Phone, Rating: r.Driver.Rating}
	}
	if r.Route != nil {
		cmd.Route = models.Route{
			Polyline: r.Route.Polyline,
			Distance: r.Route.Distance,
			Duration: r.Route.Duration,
		}
		for _, p := range r.Route.Points {
			cmd.Route.Points = append(cmd.Route.Points, models.LatLng{Lat: p.Lat, Lng: p.Lng})
		}
	}
	return cmd
}

type locationRequest struct {
	Lat      *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng      *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
	Heading  float64  `json:"heading"`
	Speed    float64  `json:"speed" validate:"gte=0"`
	Accuracy float64  `json:"accuracy" validate:"gte=0"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

func routeFromResult(res routing.Result) models.Route {
	out := models.Route{
		Polyline: res.Polyline,
		Distance: res.Distance,
		Duration: res.Duration,
		Points:   make([]models.LatLng, 0, len(res.Points)),
	}
	for _, p := range res.Points {
		out.Points = append(out.Points, models.LatLng{Lat: p.Lat, Lng: p.Lng})
	}
	return out
}
