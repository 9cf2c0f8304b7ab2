package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/BearBump/DeliveryTrack/config"
	trackingsapi "github.com/BearBump/DeliveryTrack/internal/api/trackings_api"
	"github.com/BearBump/DeliveryTrack/internal/broadcast"
	"github.com/BearBump/DeliveryTrack/internal/broker/kafka"
	"github.com/BearBump/DeliveryTrack/internal/cache/rediscache"
	"github.com/BearBump/DeliveryTrack/internal/integrations/routing"
	"github.com/BearBump/DeliveryTrack/internal/integrations/routing/fake"
	"github.com/BearBump/DeliveryTrack/internal/integrations/routing/osrmhttp"
	"github.com/BearBump/DeliveryTrack/internal/metrics"
	"github.com/BearBump/DeliveryTrack/internal/services/subscriptions"
	"github.com/BearBump/DeliveryTrack/internal/services/trackings"
	"github.com/BearBump/DeliveryTrack/internal/storage/memtracking"
	"github.com/BearBump/DeliveryTrack/internal/storage/pgtracking"
)

// store — хранилище доставок и подписок; обе реализации покрывают оба интерфейса.
type store interface {
	trackings.Repository
	trackings.SubscriptionStore
}

type trackAPIApp struct {
	ctx     context.Context
	cancel  context.CancelFunc
	opts    trackAPIOpts
	deps    trackAPIDeps
	closers []func()
}

func mustBootstrapTrackAPI() *trackAPIApp {
	cfg, err := config.Load("track-api", os.Args[1:])
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}
	tc := cfg.Tracking

	app := &trackAPIApp{}

	st, closeStore := mustOpenStore(cfg)
	app.closers = append(app.closers, closeStore)

	redisClient := rediscache.NewClient(cfg.Redis.Addr())
	app.closers = append(app.closers, func() { _ = redisClient.Close() })
	rc := rediscache.New(redisClient)
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := rc.Ping(pingCtx); err != nil {
		// кэш и лимитер best-effort: без Redis сервис работает напрямую с хранилищем
		slog.Warn("redis is not reachable", "addr", cfg.Redis.Addr(), "error", err.Error())
	}
	pingCancel()
	limiter := rediscache.NewRateLimiter(redisClient, int64(tc.LocationRateLimitPerMinute), time.Minute)

	counters := metrics.NewCounters(prometheus.DefaultRegisterer)
	hub := broadcast.NewHub().WithCounters(counters.BroadcastDelivered, counters.BroadcastDropped)

	brokers := cfg.Kafka.Brokers()
	producer := kafka.NewProducer(brokers)
	app.closers = append(app.closers, func() { _ = producer.Close() })

	instanceID := tc.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}
	rel := broadcast.NewRelay(hub, producer, cfg.Kafka.TrackingEventsTopicName, instanceID)

	svc := trackings.New(st, st, rel, rc, trackings.Options{
		CacheTTL:      tc.CacheTTL(),
		AutoProximity: tc.AutoProximity,
	})
	subsSvc := subscriptions.New(st, nil)

	api := trackingsapi.New(svc, subsSvc, hub).
		WithRouting(newRoutingClient(tc)).
		WithRateLimiter(limiter, counters.RateLimitExceeded).
		WithHeartbeat(tc.StreamHeartbeat())

	eventsGroup := "track-api-" + instanceID
	driverConsumer := kafka.NewConsumer(brokers, cfg.Kafka.DriverLocationTopicName, tc.DriverConsumerGroup)
	eventsConsumer := kafka.NewConsumer(brokers, cfg.Kafka.TrackingEventsTopicName, eventsGroup)
	app.closers = append(app.closers,
		func() { _ = driverConsumer.Close() },
		func() { _ = eventsConsumer.Close() },
	)

	app.ctx, app.cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	app.opts = trackAPIOpts{
		grpcAddr:     tc.GRPCAddr,
		httpAddr:     tc.HTTPAddr,
		grpcDialAddr: tc.GRPCAddr,
		swaggerPath:  tc.SwaggerPath,
		driverTopic:  cfg.Kafka.DriverLocationTopicName,
		driverGroup:  tc.DriverConsumerGroup,
		eventsTopic:  cfg.Kafka.TrackingEventsTopicName,
		eventsGroup:  eventsGroup,
	}
	app.deps = trackAPIDeps{
		api:            api,
		drivers:        svc,
		relay:          rel,
		counters:       counters,
		gatherer:       prometheus.DefaultGatherer,
		driverConsumer: driverConsumer,
		eventsConsumer: eventsConsumer,
	}
	slog.Info("track-api bootstrapped", "instance_id", instanceID, "storage", tc.Storage, "routing", tc.RoutingProvider)
	return app
}

func mustOpenStore(cfg *config.Config) (store, func()) {
	switch cfg.Tracking.Storage {
	case "memory":
		slog.Warn("in-memory storage: data is lost on restart and not shared between instances")
		return memtracking.New(), func() {}
	default:
		st := mustOpenPostgresWithRetry(cfg.Database.ConnString(), 60*time.Second)
		return st, st.Close
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgtracking.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		st, err := pgtracking.New(ctx, connString)
		cancel()
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func newRoutingClient(tc config.TrackingConfig) routing.Client {
	if tc.RoutingProvider == "osrm" && tc.OSRMBaseURL != "" {
		return osrmhttp.New(tc.OSRMBaseURL, tc.OSRMProfile)
	}
	return fake.New()
}

func (a *trackAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *trackAPIApp) Run() error {
	return runTrackAPI(a.ctx, a.opts, a.deps)
}
