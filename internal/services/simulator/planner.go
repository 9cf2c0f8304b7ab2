package simulator

import (
	"math/rand"
	"time"

	"github.com/BearBump/DeliveryTrack/internal/models"
)

type Rand interface {
	Intn(n int) int
}

// PlannerConfig — скорости курьера по статусам и паузы между повторами публикации.
type PlannerConfig struct {
	PickingUpSpeedKmh float64 // default: 20
	EnRouteSpeedKmh   float64 // default: 30
	NearbySpeedKmh    float64 // default: 12

	// JitterPercent — случайное отклонение скорости, ±%.
	JitterPercent int // default: 0

	Backoff1 time.Duration // default: 150ms
	Backoff2 time.Duration // default: 300ms
	Backoff3 time.Duration // default: 600ms
	Backoff4 time.Duration // default: 1s
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		PickingUpSpeedKmh: 20,
		EnRouteSpeedKmh:   30,
		NearbySpeedKmh:    12,

		Backoff1: 150 * time.Millisecond,
		Backoff2: 300 * time.Millisecond,
		Backoff3: 600 * time.Millisecond,
		Backoff4: 1 * time.Second,
	}
}

type Planner struct {
	cfg PlannerConfig
	r   Rand
}

func NewPlanner(cfg PlannerConfig, r Rand) *Planner {
	def := DefaultPlannerConfig()
	if cfg.PickingUpSpeedKmh <= 0 {
		cfg.PickingUpSpeedKmh = def.PickingUpSpeedKmh
	}
	if cfg.EnRouteSpeedKmh <= 0 {
		cfg.EnRouteSpeedKmh = def.EnRouteSpeedKmh
	}
	if cfg.NearbySpeedKmh <= 0 {
		cfg.NearbySpeedKmh = def.NearbySpeedKmh
	}
	if cfg.JitterPercent < 0 {
		cfg.JitterPercent = 0
	}
	if cfg.JitterPercent > 90 {
		cfg.JitterPercent = 90
	}
	if cfg.Backoff1 <= 0 {
		cfg.Backoff1 = def.Backoff1
	}
	if cfg.Backoff2 <= 0 {
		cfg.Backoff2 = def.Backoff2
	}
	if cfg.Backoff3 <= 0 {
		cfg.Backoff3 = def.Backoff3
	}
	if cfg.Backoff4 <= 0 {
		cfg.Backoff4 = def.Backoff4
	}
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Planner{cfg: cfg, r: r}
}

// SpeedKmh — скорость на следующем шаге для статуса доставки.
func (p *Planner) SpeedKmh(status models.TrackingStatus) float64 {
	var base float64
	switch status {
	case models.StatusPickingUp:
		base = p.cfg.PickingUpSpeedKmh
	case models.StatusNearby:
		base = p.cfg.NearbySpeedKmh
	default:
		base = p.cfg.EnRouteSpeedKmh
	}
	if p.cfg.JitterPercent == 0 {
		return base
	}
	j := p.r.Intn(2*p.cfg.JitterPercent+1) - p.cfg.JitterPercent
	return base * float64(100+j) / 100
}

func (p *Planner) BackoffDelay(attempt int) time.Duration {
	switch {
	case attempt <= 1:
		return p.cfg.Backoff1
	case attempt == 2:
		return p.cfg.Backoff2
	case attempt == 3:
		return p.cfg.Backoff3
	default:
		return p.cfg.Backoff4
	}
}
