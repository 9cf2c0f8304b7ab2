package simulator

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/DeliveryTrack/internal/broker/messages"
	"github.com/BearBump/DeliveryTrack/internal/cache"
	"github.com/BearBump/DeliveryTrack/internal/geo"
	"github.com/BearBump/DeliveryTrack/internal/models"
)

type Source interface {
	ListActiveTrackings(ctx context.Context, limit int) ([]*models.TrackingRecord, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

const publishAttempts = 5

// Simulator ведёт курьеров активных доставок по их маршрутам и шлёт отчёты в Kafka,
// как это делало бы приложение курьера. Ядро трекинга он не трогает напрямую.
type Simulator struct {
	src      Source
	producer Producer
	rl       RateLimiter

	topic string

	planner *Planner
	now     func() time.Time

	tickInterval       time.Duration
	batchSize          int
	concurrency        int
	baseSpeedKmh       float64
	completeDeliveries bool

	mu    sync.Mutex
	walks map[string]*walk

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalListed         atomic.Int64
	totalProcessed      atomic.Int64
	totalPublished      atomic.Int64
	totalErrors         atomic.Int64
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

// walk — уплотнённый маршрут и позиция курьера на нём.
type walk struct {
	signature string
	path      []geo.Point
	idx       int
}

func New(src Source, producer Producer, rl RateLimiter, topic string) *Simulator {
	return &Simulator{
		src:               src,
		producer:          producer,
		rl:                rl,
		topic:             topic,
		planner:           NewPlanner(DefaultPlannerConfig(), nil),
		now:               func() time.Time { return time.Now().UTC() },
		tickInterval:      2 * time.Second,
		batchSize:         100,
		concurrency:       10,
		baseSpeedKmh:      geo.AssumedAvgSpeedKmh,
		walks:             make(map[string]*walk),
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (s *Simulator) WithSettings(tick time.Duration, batchSize, concurrency int, baseSpeedKmh float64, completeDeliveries bool) *Simulator {
	if tick > 0 {
		s.tickInterval = tick
	}
	if batchSize > 0 {
		s.batchSize = batchSize
	}
	if concurrency > 0 {
		s.concurrency = concurrency
	}
	if baseSpeedKmh > 0 {
		s.baseSpeedKmh = baseSpeedKmh
	}
	s.completeDeliveries = completeDeliveries
	return s
}

func (s *Simulator) WithPlanner(cfg PlannerConfig, r Rand) *Simulator {
	s.planner = NewPlanner(cfg, r)
	return s
}

func (s *Simulator) WithClock(now func() time.Time) *Simulator {
	if now != nil {
		s.now = now
	}
	return s
}

// Trigger forces an immediate simulation step (best-effort, non-blocking).
func (s *Simulator) Trigger() {
	s.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastCycleAt    *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt  *time.Time `json:"lastTriggerAt,omitempty"`
	TotalListed    int64      `json:"totalListed"`
	TotalProcessed int64      `json:"totalProcessed"`
	TotalPublished int64      `json:"totalPublished"`
	TotalErrors    int64      `json:"totalErrors"`
	InFlight       int64      `json:"inFlight"`
	ActiveWalks    int        `json:"activeWalks"`
	LastError      string     `json:"lastError,omitempty"`
}

func (s *Simulator) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, s.startedAtUnixNano).UTC(),
		TotalListed:    s.totalListed.Load(),
		TotalProcessed: s.totalProcessed.Load(),
		TotalPublished: s.totalPublished.Load(),
		TotalErrors:    s.totalErrors.Load(),
		InFlight:       s.inFlight.Load(),
	}
	if n := s.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := s.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	s.mu.Lock()
	st.ActiveWalks = len(s.walks)
	s.mu.Unlock()
	s.lastErrorMu.Lock()
	st.LastError = s.lastError
	s.lastErrorMu.Unlock()
	return st
}

func (s *Simulator) Run(ctx context.Context) error {
	t := time.NewTicker(s.tickInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.runOnce(ctx)
		case <-s.triggerCh:
			s.runOnce(ctx)
		}
	}
}

func (s *Simulator) runOnce(ctx context.Context) {
	s.lastCycleUnixNano.Store(time.Now().UTC().UnixNano())

	items, err := s.src.ListActiveTrackings(ctx, s.batchSize)
	if err != nil {
		slog.Error("list active trackings", "error", err.Error())
		s.setLastError(err)
		return
	}
	s.totalListed.Add(int64(len(items)))
	s.forgetInactive(items)

	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for _, tr := range items {
		sem <- struct{}{}
		wg.Add(1)
		trCopy := tr
		s.inFlight.Add(1)
		go func() {
			defer func() {
				s.inFlight.Add(-1)
				<-sem
				wg.Done()
			}()
			if err := s.processOne(ctx, trCopy); err != nil {
				s.totalErrors.Add(1)
				s.setLastError(err)
				slog.Error("simulate delivery", "delivery_id", trCopy.DeliveryID, "error", err.Error())
			}
			s.totalProcessed.Add(1)
		}()
	}
	wg.Wait()
}

func (s *Simulator) processOne(ctx context.Context, tr *models.TrackingRecord) error {
	if s.rl != nil {
		allowed, err := s.rl.Allow(ctx, cache.RateKey("sim", tr.DeliveryID))
		if err != nil {
			return err
		}
		if !allowed {
			// другой инстанс воркера уже двигал этого курьера в текущем окне
			slog.Debug("simulation step skipped by rate limit", "delivery_id", tr.DeliveryID)
			return nil
		}
	}

	w, err := s.walkFor(tr)
	if err != nil {
		return err
	}

	now := s.now()
	status := tr.Status
	if status == models.StatusPickingUp {
		// груз забран в точке отправления, дальше едем к клиенту
		if err := s.publish(ctx, messages.DriverReported{DeliveryID: tr.DeliveryID, Status: string(models.StatusEnRoute), ReportedAt: now}); err != nil {
			return err
		}
		status = models.StatusEnRoute
	}

	speedKmh := s.planner.SpeedKmh(status)
	steps := int(math.Round(speedKmh / s.baseSpeedKmh))
	if steps < 1 {
		steps = 1
	}
	prev := w.path[w.idx]
	w.idx += steps
	if w.idx > len(w.path)-1 {
		w.idx = len(w.path) - 1
	}
	cur := w.path[w.idx]

	heading := geo.Bearing(prev.Lat, prev.Lng, cur.Lat, cur.Lng)
	speed := speedKmh / 3.6
	if err := s.publish(ctx, messages.DriverReported{
		DeliveryID: tr.DeliveryID,
		Lat:        cur.Lat,
		Lng:        cur.Lng,
		Heading:    &heading,
		Speed:      &speed,
		ReportedAt: now,
	}); err != nil {
		return err
	}

	if w.idx < len(w.path)-1 {
		return nil
	}

	s.mu.Lock()
	delete(s.walks, tr.DeliveryID)
	s.mu.Unlock()

	final := []models.TrackingStatus{models.StatusArrived}
	if s.completeDeliveries {
		final = append(final, models.StatusDelivered)
	}
	for _, st := range final {
		if err := s.publish(ctx, messages.DriverReported{DeliveryID: tr.DeliveryID, Status: string(st), ReportedAt: now}); err != nil {
			return err
		}
	}
	slog.Info("simulated delivery reached destination", "delivery_id", tr.DeliveryID)
	return nil
}

// walkFor возвращает маршрут курьера; новый маршрут продолжается с ближайшей
// к текущей позиции точки, чтобы рестарт воркера не телепортировал курьера.
func (s *Simulator) walkFor(tr *models.TrackingRecord) (*walk, error) {
	sig := routeSignature(tr)

	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.walks[tr.DeliveryID]; ok && w.signature == sig {
		return w, nil
	}

	pts := routePoints(tr)
	if len(pts) < 2 {
		return nil, errors.Errorf("delivery %s has no route to simulate", tr.DeliveryID)
	}
	path := geo.Densify(pts, s.baseSpeedKmh, s.tickInterval.Milliseconds())
	w := &walk{signature: sig, path: path}
	if loc := tr.CurrentLocation; loc != nil {
		w.idx = nearestIndex(path, geo.Point{Lat: loc.Lat, Lng: loc.Lng})
	}
	s.walks[tr.DeliveryID] = w
	return w, nil
}

func (s *Simulator) forgetInactive(active []*models.TrackingRecord) {
	keep := make(map[string]struct{}, len(active))
	for _, tr := range active {
		keep[tr.DeliveryID] = struct{}{}
	}
	s.mu.Lock()
	for id := range s.walks {
		if _, ok := keep[id]; !ok {
			delete(s.walks, id)
		}
	}
	s.mu.Unlock()
}

func (s *Simulator) publish(ctx context.Context, msg messages.DriverReported) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal kafka msg")
	}

	// Kafka может быть не готова сразу после старта docker compose.
	var pubErr error
	for i := 0; i < publishAttempts; i++ {
		if pubErr = s.producer.Publish(ctx, s.topic, []byte(msg.DeliveryID), b); pubErr == nil {
			s.totalPublished.Add(1)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.planner.BackoffDelay(i + 1)):
		}
	}
	return pubErr
}

func (s *Simulator) setLastError(err error) {
	s.lastErrorMu.Lock()
	s.lastError = err.Error()
	s.lastErrorMu.Unlock()
}

func routePoints(tr *models.TrackingRecord) []geo.Point {
	if len(tr.Route.Points) >= 2 {
		out := make([]geo.Point, 0, len(tr.Route.Points))
		for _, p := range tr.Route.Points {
			out = append(out, geo.Point{Lat: p.Lat, Lng: p.Lng})
		}
		return out
	}
	if tr.Route.Polyline != "" {
		if pts := geo.DecodePolyline(tr.Route.Polyline); len(pts) >= 2 {
			return pts
		}
	}
	if tr.Origin != nil && tr.Destination != nil {
		return []geo.Point{
			{Lat: tr.Origin.Lat, Lng: tr.Origin.Lng},
			{Lat: tr.Destination.Lat, Lng: tr.Destination.Lng},
		}
	}
	return nil
}

func routeSignature(tr *models.TrackingRecord) string {
	pts := routePoints(tr)
	if len(pts) == 0 {
		return ""
	}
	return geo.EncodePolyline(pts)
}

func nearestIndex(path []geo.Point, p geo.Point) int {
	best, bestD := 0, math.Inf(1)
	for i, q := range path {
		if d := geo.HaversineDistance(p.Lat, p.Lng, q.Lat, q.Lng); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}
