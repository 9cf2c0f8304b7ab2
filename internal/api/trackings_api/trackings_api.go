package trackings_api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/BearBump/DeliveryTrack/internal/broadcast"
	"github.com/BearBump/DeliveryTrack/internal/cache"
	"github.com/BearBump/DeliveryTrack/internal/geo"
	"github.com/BearBump/DeliveryTrack/internal/integrations/routing"
	"github.com/BearBump/DeliveryTrack/internal/models"
	"github.com/BearBump/DeliveryTrack/internal/services/trackings"
)

type TrackingService interface {
	GetTracking(ctx context.Context, deliveryID string) (*models.TrackingRecord, error)
	StartTracking(ctx context.Context, cmd trackings.StartTrackingCommand) (*models.TrackingRecord, error)
	UpdateLocation(ctx context.Context, cmd trackings.UpdateLocationCommand) (*models.TrackingRecord, error)
	UpdateStatus(ctx context.Context, deliveryID string, status models.TrackingStatus) (*models.TrackingRecord, error)
}

type SubscriptionService interface {
	GetSubscription(ctx context.Context, id string) (*models.Subscription, error)
}

// Streamer — то, что нужно SSE-ручке от хаба.
type Streamer interface {
	Subscribe(sub *broadcast.Subscriber, deliveryID string)
	Disconnect(sub *broadcast.Subscriber)
}

type counter interface {
	Inc()
}

const defaultHeartbeat = 15 * time.Second

type TrackingsAPI struct {
	svc  TrackingService
	subs SubscriptionService
	hub  Streamer

	routing  routing.Client
	limiter  cache.Limiter
	rejected counter

	validate  *validator.Validate
	heartbeat time.Duration
}

func New(svc TrackingService, subs SubscriptionService, hub Streamer) *TrackingsAPI {
	return &TrackingsAPI{
		svc:       svc,
		subs:      subs,
		hub:       hub,
		validate:  validator.New(),
		heartbeat: defaultHeartbeat,
	}
}

// WithRouting включает построение маршрута, если клиент не прислал его в start.
func (a *TrackingsAPI) WithRouting(c routing.Client) *TrackingsAPI {
	a.routing = c
	return a
}

// WithRateLimiter ограничивает приём координат по доставке; rejected может быть nil.
func (a *TrackingsAPI) WithRateLimiter(l cache.Limiter, rejected counter) *TrackingsAPI {
	a.limiter = l
	a.rejected = rejected
	return a
}

func (a *TrackingsAPI) WithHeartbeat(d time.Duration) *TrackingsAPI {
	if d > 0 {
		a.heartbeat = d
	}
	return a
}

func (a *TrackingsAPI) Routes(r chi.Router) {
	r.Route("/v1/trackings/{deliveryId}", func(r chi.Router) {
		r.Get("/", a.getTracking)
		r.Post("/start", a.startTracking)
		r.Post("/location", a.updateLocation)
		r.Put("/status", a.updateStatus)
		r.Get("/stream", a.stream)
	})
	r.Get("/v1/subscriptions/{id}", a.getSubscription)
}

func (a *TrackingsAPI) getTracking(w http.ResponseWriter, r *http.Request) {
	t, err := a.svc.GetTracking(r.Context(), chi.URLParam(r, "deliveryId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (a *TrackingsAPI) startTracking(w http.ResponseWriter, r *http.Request) {
	var req startTrackingRequest
	if !a.decode(w, r, &req) {
		return
	}
	cmd := req.toCommand(chi.URLParam(r, "deliveryId"))

	if cmd.Route.Polyline == "" && len(cmd.Route.Points) == 0 && a.routing != nil {
		res, err := a.routing.Route(r.Context(),
			geo.Point{Lat: cmd.Origin.Lat, Lng: cmd.Origin.Lng},
			geo.Point{Lat: cmd.Destination.Lat, Lng: cmd.Destination.Lng},
		)
		if err != nil {
			// без провайдера едем по прямой
			slog.Warn("routing failed, falling back to straight line", "delivery_id", cmd.DeliveryID, "error", err.Error())
		} else {
			cmd.Route = routeFromResult(res)
		}
	}

	t, err := a.svc.StartTracking(r.Context(), cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (a *TrackingsAPI) updateLocation(w http.ResponseWriter, r *http.Request) {
	deliveryID := chi.URLParam(r, "deliveryId")
	if !a.allow(r.Context(), deliveryID) {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
		return
	}

	var req locationRequest
	if !a.decode(w, r, &req) {
		return
	}
	t, err := a.svc.UpdateLocation(r.Context(), trackings.UpdateLocationCommand{
		DeliveryID: deliveryID,
		Lat:        *req.Lat,
		Lng:        *req.Lng,
		Heading:    req.Heading,
		Speed:      req.Speed,
		Accuracy:   req.Accuracy,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (a *TrackingsAPI) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !a.decode(w, r, &req) {
		return
	}
	t, err := a.svc.UpdateStatus(r.Context(), chi.URLParam(r, "deliveryId"), models.TrackingStatus(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (a *TrackingsAPI) getSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := a.subs.GetSubscription(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// allow пропускает запрос, если Redis недоступен: трекинг важнее лимита.
func (a *TrackingsAPI) allow(ctx context.Context, deliveryID string) bool {
	if a.limiter == nil {
		return true
	}
	ok, err := a.limiter.Allow(ctx, cache.RateKey("location", deliveryID))
	if err != nil {
		slog.Warn("rate limiter unavailable", "delivery_id", deliveryID, "error", err.Error())
		return true
	}
	if !ok && a.rejected != nil {
		a.rejected.Inc()
	}
	return ok
}

func (a *TrackingsAPI) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json: " + err.Error()})
		return false
	}
	if err := a.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return false
	}
	return true
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrSubscriptionNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrInvalidStatus), errors.Is(err, models.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		slog.Error("request failed", "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func newSubscriberID() string {
	return uuid.NewString()
}
