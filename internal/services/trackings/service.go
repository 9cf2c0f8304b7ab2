package trackings

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/DeliveryTrack/internal/broadcast"
	"github.com/BearBump/DeliveryTrack/internal/cache"
	"github.com/BearBump/DeliveryTrack/internal/geo"
	"github.com/BearBump/DeliveryTrack/internal/models"
)

// Пороги автоматического продвижения статуса по расстоянию до точки доставки.
const (
	NearbyThresholdMeters  = 500.0
	ArrivedThresholdMeters = 50.0
)

type Repository interface {
	GetTracking(ctx context.Context, deliveryID string) (*models.TrackingRecord, error)
	SaveTracking(ctx context.Context, t *models.TrackingRecord) error
	ListActiveTrackings(ctx context.Context, limit int) ([]*models.TrackingRecord, error)
}

type SubscriptionStore interface {
	GetSubscription(ctx context.Context, id string) (*models.Subscription, error)
	SaveSubscription(ctx context.Context, sub *models.Subscription) error
}

type Broadcaster interface {
	Broadcast(ctx context.Context, deliveryID string, kind broadcast.EventKind, payload any)
}

type Options struct {
	// CacheTTL — TTL снимка в Redis; 0 отключает кэш.
	CacheTTL time.Duration
	// AutoProximity включает продвижение статуса до nearby/arrived по расстоянию.
	AutoProximity bool
	Now           func() time.Time
}

type Service struct {
	repo  Repository
	subs  SubscriptionStore
	bc    Broadcaster
	cache cache.BytesCache

	cacheTTL      time.Duration
	autoProximity bool
	now           func() time.Time

	locks *keyLock
}

func New(repo Repository, subs SubscriptionStore, bc Broadcaster, c cache.BytesCache, opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		repo:          repo,
		subs:          subs,
		bc:            bc,
		cache:         c,
		cacheTTL:      opts.CacheTTL,
		autoProximity: opts.AutoProximity,
		now:           now,
		locks:         newKeyLock(),
	}
}

// GetOrCreate возвращает запись, создавая запись по умолчанию (assigned, пустой маршрут), если её нет.
func (s *Service) GetOrCreate(ctx context.Context, deliveryID string) (*models.TrackingRecord, error) {
	if deliveryID == "" {
		return nil, errors.Wrap(models.ErrInvalidArgument, "deliveryId is required")
	}
	unlock := s.locks.Lock(deliveryID)
	defer unlock()

	t, err := s.getOrCreateLocked(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

// GetTracking — GetOrCreate через кэш. Создание записи на чтении — часть контракта.
// Кэш заполняется под блокировкой deliveryId, иначе запись могла бы затереть снимок поновее.
func (s *Service) GetTracking(ctx context.Context, deliveryID string) (*models.TrackingRecord, error) {
	if t, ok := s.fromCache(ctx, deliveryID); ok {
		return t, nil
	}
	if deliveryID == "" {
		return nil, errors.Wrap(models.ErrInvalidArgument, "deliveryId is required")
	}
	unlock := s.locks.Lock(deliveryID)
	defer unlock()

	t, created, err := s.loadOrCreateLocked(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if !created {
		s.toCache(ctx, t)
	}
	return t.Clone(), nil
}

func (s *Service) StartTracking(ctx context.Context, cmd StartTrackingCommand) (*models.TrackingRecord, error) {
	if cmd.DeliveryID == "" {
		return nil, errors.Wrap(models.ErrInvalidArgument, "deliveryId is required")
	}
	if err := validateCoords(cmd.Origin.Lat, cmd.Origin.Lng); err != nil {
		return nil, errors.Wrap(err, "origin")
	}
	if err := validateCoords(cmd.Destination.Lat, cmd.Destination.Lng); err != nil {
		return nil, errors.Wrap(err, "destination")
	}

	unlock := s.locks.Lock(cmd.DeliveryID)
	defer unlock()

	t, err := s.getOrCreateLocked(ctx, cmd.DeliveryID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	origin, dest := cmd.Origin, cmd.Destination
	route := normalizeRoute(cmd.Route, origin, dest)
	eta := now.Add(time.Duration(route.Duration * float64(time.Second)))
	route.ETA = &eta

	t.Route = route
	t.Origin = &origin
	t.Destination = &dest
	t.CurrentLocation = &models.Location{Lat: origin.Lat, Lng: origin.Lng}
	t.Status = models.StatusPickingUp
	t.LastUpdated = now
	if cmd.DeliveryKind != "" {
		t.DeliveryKind = cmd.DeliveryKind
		t.SubscriptionID = cmd.SubscriptionID
	}
	if cmd.Driver != nil {
		d := *cmd.Driver
		t.Driver = &d
	}

	if err := s.save(ctx, t); err != nil {
		return nil, err
	}
	out := t.Clone()
	s.broadcast(ctx, t.DeliveryID, broadcast.EventTrackingStarted, out.Clone())
	slog.Info("tracking started", "delivery_id", t.DeliveryID, "points", len(t.Route.Points), "distance_m", t.Route.Distance)
	return out, nil
}

func (s *Service) UpdateLocation(ctx context.Context, cmd UpdateLocationCommand) (*models.TrackingRecord, error) {
	if cmd.DeliveryID == "" {
		return nil, errors.Wrap(models.ErrInvalidArgument, "deliveryId is required")
	}
	if err := validateCoords(cmd.Lat, cmd.Lng); err != nil {
		return nil, err
	}
	if cmd.Speed < 0 || math.IsNaN(cmd.Speed) {
		return nil, errors.Wrap(models.ErrInvalidArgument, "speed must be >= 0")
	}

	unlock := s.locks.Lock(cmd.DeliveryID)
	defer unlock()

	t, err := s.repo.GetTracking(ctx, cmd.DeliveryID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	t.CurrentLocation = &models.Location{
		Lat:      cmd.Lat,
		Lng:      cmd.Lng,
		Heading:  normalizeHeading(cmd.Heading),
		Speed:    cmd.Speed,
		Accuracy: cmd.Accuracy,
	}
	t.LastUpdated = now
	t.AppendHistory(models.HistoryPoint{Lat: cmd.Lat, Lng: cmd.Lng, Timestamp: now})

	promoted := false
	if t.Destination != nil {
		remaining := geo.HaversineDistance(cmd.Lat, cmd.Lng, t.Destination.Lat, t.Destination.Lng)
		eta := now.Add(geo.EstimateETA(cmd.Lat, cmd.Lng, t.Destination.Lat, t.Destination.Lng, geo.AssumedAvgSpeedKmh))
		t.Route.ETA = &eta

		if s.autoProximity {
			if next, ok := proximityStatus(t.Status, remaining); ok {
				t.Status = next
				s.syncSubscription(ctx, t, now)
				promoted = true
			}
		}
	}

	if err := s.save(ctx, t); err != nil {
		return nil, err
	}
	s.broadcast(ctx, t.DeliveryID, broadcast.EventDriverLocation, broadcast.NewDriverLocationPayload(t, now))
	if promoted {
		s.broadcast(ctx, t.DeliveryID, broadcast.EventStatusUpdate, broadcast.StatusUpdatePayload{
			DeliveryID: t.DeliveryID,
			Status:     t.Status,
			Timestamp:  now,
		})
	}
	return t.Clone(), nil
}

// UpdateStatus принимает любой из шести статусов в любом порядке; невалидный статус
// отклоняется до обращения к хранилищу.
func (s *Service) UpdateStatus(ctx context.Context, deliveryID string, status models.TrackingStatus) (*models.TrackingRecord, error) {
	if !status.Valid() {
		return nil, errors.Wrapf(models.ErrInvalidStatus, "%q", string(status))
	}
	if deliveryID == "" {
		return nil, errors.Wrap(models.ErrInvalidArgument, "deliveryId is required")
	}

	unlock := s.locks.Lock(deliveryID)
	defer unlock()

	t, err := s.repo.GetTracking(ctx, deliveryID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	prev := t.Status
	t.Status = status
	t.LastUpdated = now
	// повторный delivered (переотправленный отчёт) цикл подписки не трогает
	if !(prev == models.StatusDelivered && status == models.StatusDelivered) {
		s.syncSubscription(ctx, t, now)
	}

	if err := s.save(ctx, t); err != nil {
		return nil, err
	}
	s.broadcast(ctx, t.DeliveryID, broadcast.EventStatusUpdate, broadcast.StatusUpdatePayload{
		DeliveryID: t.DeliveryID,
		Status:     status,
		Timestamp:  now,
	})
	return t.Clone(), nil
}

func (s *Service) ListActive(ctx context.Context, limit int) ([]*models.TrackingRecord, error) {
	return s.repo.ListActiveTrackings(ctx, limit)
}

func (s *Service) getOrCreateLocked(ctx context.Context, deliveryID string) (*models.TrackingRecord, error) {
	t, _, err := s.loadOrCreateLocked(ctx, deliveryID)
	return t, err
}

// loadOrCreateLocked сообщает, создана ли запись: новая уже попала в кэш через save.
func (s *Service) loadOrCreateLocked(ctx context.Context, deliveryID string) (*models.TrackingRecord, bool, error) {
	t, err := s.repo.GetTracking(ctx, deliveryID)
	if err == nil {
		return t, false, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, false, err
	}
	t = models.NewTrackingRecord(deliveryID, s.now())
	if err := s.save(ctx, t); err != nil {
		return nil, false, err
	}
	return t, true, nil
}

func (s *Service) save(ctx context.Context, t *models.TrackingRecord) error {
	if err := s.repo.SaveTracking(ctx, t); err != nil {
		return errors.Wrap(err, "save tracking")
	}
	s.toCache(ctx, t)
	return nil
}

func (s *Service) broadcast(ctx context.Context, deliveryID string, kind broadcast.EventKind, payload any) {
	if s.bc == nil {
		return
	}
	s.bc.Broadcast(ctx, deliveryID, kind, payload)
}

func (s *Service) fromCache(ctx context.Context, deliveryID string) (*models.TrackingRecord, bool) {
	if s.cache == nil || s.cacheTTL <= 0 || deliveryID == "" {
		return nil, false
	}
	b, ok, err := s.cache.Get(ctx, cache.TrackingKey(deliveryID))
	if err != nil {
		slog.Warn("tracking cache get", "delivery_id", deliveryID, "error", err.Error())
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var t models.TrackingRecord
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, false
	}
	return &t, true
}

// toCache — лучшее усилие: если записать не удалось, удаляем ключ, чтобы не отдавать старый снимок.
func (s *Service) toCache(ctx context.Context, t *models.TrackingRecord) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	key := cache.TrackingKey(t.DeliveryID)
	b, err := json.Marshal(t)
	if err == nil {
		err = s.cache.Set(ctx, key, b, s.cacheTTL)
	}
	if err != nil {
		slog.Warn("tracking cache set", "delivery_id", t.DeliveryID, "error", err.Error())
		_ = s.cache.Delete(ctx, key)
	}
}

// proximityStatus двигает статус только вперёд и только у едущего курьера.
func proximityStatus(current models.TrackingStatus, remaining float64) (models.TrackingStatus, bool) {
	if !current.IsActive() {
		return "", false
	}
	var target models.TrackingStatus
	switch {
	case remaining <= ArrivedThresholdMeters:
		target = models.StatusArrived
	case remaining <= NearbyThresholdMeters:
		target = models.StatusNearby
	default:
		return "", false
	}
	if target.Rank() <= current.Rank() {
		return "", false
	}
	return target, true
}

func normalizeRoute(r models.Route, origin, dest models.Place) models.Route {
	out := models.Route{
		Polyline: r.Polyline,
		Distance: r.Distance,
		Duration: r.Duration,
		Points:   append([]models.LatLng{}, r.Points...),
	}
	if len(out.Points) == 0 && r.Polyline != "" {
		for _, p := range geo.DecodePolyline(r.Polyline) {
			out.Points = append(out.Points, models.LatLng{Lat: p.Lat, Lng: p.Lng})
		}
	}
	pts := make([]geo.Point, 0, len(out.Points))
	for _, p := range out.Points {
		pts = append(pts, geo.Point{Lat: p.Lat, Lng: p.Lng})
	}
	if out.Polyline == "" && len(pts) > 0 {
		out.Polyline = geo.EncodePolyline(pts)
	}
	if out.Distance <= 0 {
		if len(pts) >= 2 {
			out.Distance = geo.PathDistance(pts)
		} else {
			out.Distance = geo.HaversineDistance(origin.Lat, origin.Lng, dest.Lat, dest.Lng)
		}
	}
	if out.Duration <= 0 {
		out.Duration = out.Distance / 1000 / geo.AssumedAvgSpeedKmh * 3600
	}
	return out
}

func normalizeHeading(h float64) float64 {
	if math.IsNaN(h) || math.IsInf(h, 0) {
		return 0
	}
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	return h
}

func validateCoords(lat, lng float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return errors.Wrapf(models.ErrInvalidArgument, "lat %v out of range", lat)
	}
	if math.IsNaN(lng) || lng < -180 || lng > 180 {
		return errors.Wrapf(models.ErrInvalidArgument, "lng %v out of range", lng)
	}
	return nil
}
