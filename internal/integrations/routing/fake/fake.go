package fake

import (
	"context"

	"github.com/BearBump/DeliveryTrack/internal/geo"
	"github.com/BearBump/DeliveryTrack/internal/integrations/routing"
)

// FakeClient — маршрут по прямой, без дорожного графа. Для локального запуска и тестов.
type FakeClient struct {
	speedKmh float64
}

func New() *FakeClient { return &FakeClient{speedKmh: geo.AssumedAvgSpeedKmh} }

func (f *FakeClient) Route(_ context.Context, origin, destination geo.Point) (routing.Result, error) {
	pts := []geo.Point{origin, destination}
	dist := geo.PathDistance(pts)
	return routing.Result{
		Points:   pts,
		Polyline: geo.EncodePolyline(pts),
		Distance: dist,
		Duration: dist / 1000 / f.speedKmh * 3600,
	}, nil
}
