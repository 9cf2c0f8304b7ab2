package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/DeliveryTrack/config"
	"github.com/BearBump/DeliveryTrack/internal/broker/kafka"
	"github.com/BearBump/DeliveryTrack/internal/cache/rediscache"
	"github.com/BearBump/DeliveryTrack/internal/services/simulator"
	"github.com/BearBump/DeliveryTrack/internal/storage/memtracking"
	"github.com/BearBump/DeliveryTrack/internal/storage/pgtracking"
)

type workerFactories struct {
	newStorage     func(cfg *config.Config) (src simulator.Source, closeFn func(), err error)
	newProducer    func(cfg *config.Config) (p simulator.Producer, closeFn func())
	newRateLimiter func(cfg *config.Config) simulator.RateLimiter
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (simulator.Source, func(), error) {
			if cfg.Tracking.Storage == "memory" {
				// только для локальных прогонов: воркер видит лишь свою пустую память
				return memtracking.New(), func() {}, nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			st, err := pgtracking.New(ctx, cfg.Database.ConnString())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) (simulator.Producer, func()) {
			p := kafka.NewProducer(cfg.Kafka.Brokers())
			return p, func() { _ = p.Close() }
		},
		newRateLimiter: func(cfg *config.Config) simulator.RateLimiter {
			c := rediscache.NewClient(cfg.Redis.Addr())
			return rediscache.NewRateLimiter(c, int64(cfg.Tracking.WorkerRateLimitPerMinute), time.Minute)
		},
	}
}

func newSimulator(cfg *config.Config, src simulator.Source, producer simulator.Producer, rl simulator.RateLimiter) *simulator.Simulator {
	tc := cfg.Tracking
	planner := simulator.DefaultPlannerConfig()
	planner.JitterPercent = tc.WorkerSpeedJitterPercent
	if tc.WorkerSpeedKmh > 0 {
		planner.EnRouteSpeedKmh = tc.WorkerSpeedKmh
	}
	return simulator.New(src, producer, rl, cfg.Kafka.DriverLocationTopicName).
		WithSettings(tc.WorkerTick(), tc.WorkerBatchSize, tc.WorkerConcurrency, tc.WorkerSpeedKmh, tc.WorkerCompleteDeliveries).
		WithPlanner(planner, nil)
}

func RunTrackWorker(ctx context.Context, cfg *config.Config, f workerFactories) error {
	src, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	producer, closeProducer := f.newProducer(cfg)
	if closeProducer != nil {
		defer closeProducer()
	}
	rl := f.newRateLimiter(cfg)

	sim := newSimulator(cfg, src, producer, rl)

	go func() {
		err := runWorkerHTTPServer(ctx, workerHTTPOpts{
			httpAddr:    cfg.Tracking.WorkerHTTPAddr,
			swaggerPath: cfg.Tracking.WorkerSwaggerPath,
			sim:         sim,
			cfg:         cfg,
		})
		if err != nil && ctx.Err() == nil {
			slog.Error("worker http server stopped", "error", err.Error())
		}
	}()

	slog.Info("simulator started",
		"topic", cfg.Kafka.DriverLocationTopicName,
		"tick", cfg.Tracking.WorkerTick().String(),
		"complete_deliveries", cfg.Tracking.WorkerCompleteDeliveries,
	)
	return sim.Run(ctx)
}
