package routing

import (
	"context"

	"github.com/pkg/errors"

	"github.com/BearBump/DeliveryTrack/internal/geo"
)

var (
	ErrNoRoute     = errors.New("no route found")
	ErrRateLimited = errors.New("routing provider rate limit")
)

// Result — маршрут от провайдера. Distance в метрах, Duration в секундах.
type Result struct {
	Points   []geo.Point
	Polyline string
	Distance float64
	Duration float64
}

type Client interface {
	Route(ctx context.Context, origin, destination geo.Point) (Result, error)
}
