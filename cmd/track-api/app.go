package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	trackingsapi "github.com/BearBump/DeliveryTrack/internal/api/trackings_api"
	"github.com/BearBump/DeliveryTrack/internal/broker/kafka"
	"github.com/BearBump/DeliveryTrack/internal/broker/messages"
	"github.com/BearBump/DeliveryTrack/internal/metrics"
	"github.com/BearBump/DeliveryTrack/internal/models"
)

type trackAPIOpts struct {
	grpcAddr     string
	httpAddr     string
	grpcDialAddr string
	swaggerPath  string

	driverTopic string
	driverGroup string
	eventsTopic string
	eventsGroup string

	onListen func(grpcAddr, httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler kafka.Handler) error
}

type driverReportApplier interface {
	ApplyDriverReport(ctx context.Context, msg messages.DriverReported) (*models.TrackingRecord, error)
}

type relay interface {
	Run(ctx context.Context) error
	HandleMessage(key, value []byte) error
}

type trackAPIDeps struct {
	api      *trackingsapi.TrackingsAPI
	drivers  driverReportApplier
	relay    relay
	counters *metrics.Counters
	gatherer prometheus.Gatherer

	driverConsumer kafkaConsumer
	eventsConsumer kafkaConsumer
}

// consumerRetryDelay — пауза перед переподключением упавшего консьюмера.
var consumerRetryDelay = time.Second

func runTrackAPI(ctx context.Context, opts trackAPIOpts, deps trackAPIDeps) error {
	if opts.swaggerPath == "" {
		return fmt.Errorf("swagger path is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	grpcLis, err := net.Listen("tcp", opts.grpcAddr)
	if err != nil {
		return err
	}
	httpLis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		_ = grpcLis.Close()
		return err
	}

	if opts.onListen != nil {
		opts.onListen(grpcLis.Addr().String(), httpLis.Addr().String())
	}

	dialAddr := opts.grpcDialAddr
	if dialAddr == "" || strings.HasSuffix(dialAddr, ":0") {
		dialAddr = grpcLis.Addr().String()
	}

	grpcErr := make(chan error, 1)
	go func() {
		grpcErr <- runGRPCServer(ctx, grpcLis)
	}()

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runGatewayServer(ctx, httpLis, dialAddr, opts.swaggerPath, deps)
	}()

	if deps.relay != nil {
		go func() {
			_ = deps.relay.Run(ctx)
		}()
	}
	if deps.driverConsumer != nil && deps.drivers != nil {
		var reports *prometheus.CounterVec
		if deps.counters != nil {
			reports = deps.counters.DriverReports
		}
		slog.Info("kafka consumer started", "topic", opts.driverTopic, "group", opts.driverGroup)
		go runConsumer(ctx, opts.driverTopic, deps.driverConsumer, driverReportHandler(ctx, deps.drivers, reports))
	}
	if deps.eventsConsumer != nil && deps.relay != nil {
		slog.Info("kafka consumer started", "topic", opts.eventsTopic, "group", opts.eventsGroup)
		go runConsumer(ctx, opts.eventsTopic, deps.eventsConsumer, deps.relay.HandleMessage)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-grpcErr:
		return err
	case err := <-httpErr:
		return err
	}
}

// runConsumer перезапускает Consume после ошибки, пока жив ctx.
func runConsumer(ctx context.Context, topic string, c kafkaConsumer, h kafka.Handler) {
	for {
		err := c.Consume(ctx, h)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			slog.Error("kafka consumer stopped", "topic", topic, "error", err.Error())
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(consumerRetryDelay):
		}
	}
}

// driverReportHandler применяет отчёты курьера. Отчёты, которые домен отверг
// (нет доставки, плохой статус или координаты), пропускаются с коммитом;
// остальные ошибки возвращаются консьюмеру.
func driverReportHandler(ctx context.Context, svc driverReportApplier, reports *prometheus.CounterVec) kafka.Handler {
	count := func(result string) {
		if reports != nil {
			reports.WithLabelValues(result).Inc()
		}
	}
	return func(_, value []byte) error {
		var m messages.DriverReported
		if err := json.Unmarshal(value, &m); err != nil {
			slog.Warn("bad driver report", "error", err.Error())
			count("bad")
			return nil
		}
		if _, err := svc.ApplyDriverReport(ctx, m); err != nil {
			if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrInvalidStatus) || errors.Is(err, models.ErrInvalidArgument) {
				slog.Warn("driver report rejected", "delivery_id", m.DeliveryID, "error", err.Error())
				count("rejected")
				return nil
			}
			count("error")
			return err
		}
		count("ok")
		return nil
	}
}

func runGRPCServer(ctx context.Context, lis net.Listener) error {
	s := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)

	go func() {
		<-ctx.Done()
		hs.Shutdown()
		stopped := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(2 * time.Second):
			s.Stop()
		}
		_ = lis.Close()
	}()

	slog.Info("gRPC server listening", "addr", lis.Addr().String())
	return s.Serve(lis)
}

func runGatewayServer(ctx context.Context, lis net.Listener, grpcAddr string, swaggerPath string, deps trackAPIDeps) error {
	conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(metrics.Observability)

	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, swaggerPath)
	})
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger.json"),
	))

	gatherer := deps.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// /healthz отвечает gRPC health-сервис через gateway
	mux := runtime.NewServeMux(runtime.WithHealthzEndpoint(healthpb.NewHealthClient(conn)))
	r.Method(http.MethodGet, "/healthz", mux)

	if deps.api != nil {
		deps.api.Routes(r)
	}

	srv := &http.Server{
		Handler: r,
		// SSE-потоки завершаются вместе с ctx, иначе Shutdown их ждёт
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("HTTP gateway listening", "addr", lis.Addr().String())
	return srv.Serve(lis)
}
