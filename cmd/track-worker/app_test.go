package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BearBump/DeliveryTrack/config"
	"github.com/BearBump/DeliveryTrack/internal/broker/messages"
	"github.com/BearBump/DeliveryTrack/internal/models"
	"github.com/BearBump/DeliveryTrack/internal/services/simulator"
	"github.com/BearBump/DeliveryTrack/internal/storage/memtracking"
)

type recordingProducer struct {
	mu   sync.Mutex
	msgs []messages.DriverReported
}

func (p *recordingProducer) Publish(_ context.Context, topic string, _, value []byte) error {
	var m messages.DriverReported
	if err := json.Unmarshal(value, &m); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, m)
	return nil
}

func (p *recordingProducer) snapshot() []messages.DriverReported {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]messages.DriverReported(nil), p.msgs...)
}

func testConfig() *config.Config {
	return &config.Config{
		Kafka: config.KafkaConfig{Host: "localhost", Port: 9092, DriverLocationTopicName: "driver.location"},
		Redis: config.RedisConfig{Host: "localhost", Port: 6379},
		Tracking: config.TrackingConfig{
			Storage:          "memory",
			WorkerHTTPAddr:   "127.0.0.1:0",
			WorkerTickMillis: 10,
		},
	}
}

func TestDefaultWorkerFactories_NonNil(t *testing.T) {
	f := defaultWorkerFactories()
	cfg := testConfig()

	src, closeFn, err := f.newStorage(cfg)
	require.NoError(t, err)
	_, ok := src.(*memtracking.Storage)
	require.True(t, ok)
	closeFn()

	p, closeProducer := f.newProducer(cfg)
	require.NotNil(t, p)
	closeProducer()
	require.NotNil(t, f.newRateLimiter(cfg))
}

func TestRunTrackWorker_ContextCanceled(t *testing.T) {
	calledClose := false

	f := workerFactories{
		newStorage: func(cfg *config.Config) (simulator.Source, func(), error) {
			return memtracking.New(), func() { calledClose = true }, nil
		},
		newProducer: func(cfg *config.Config) (simulator.Producer, func()) {
			return &recordingProducer{}, nil
		},
		newRateLimiter: func(cfg *config.Config) simulator.RateLimiter {
			return nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunTrackWorker(ctx, testConfig(), f)
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, calledClose)
}

func TestRunTrackWorker_PublishesDriverReports(t *testing.T) {
	st := memtracking.New()
	now := time.Now().UTC()
	rec := models.NewTrackingRecord("d1", now)
	rec.Status = models.StatusPickingUp
	rec.Origin = &models.Place{Lat: 55.75, Lng: 37.61}
	rec.Destination = &models.Place{Lat: 55.76, Lng: 37.62}
	rec.Route.Points = []models.LatLng{{Lat: 55.75, Lng: 37.61}, {Lat: 55.76, Lng: 37.62}}
	require.NoError(t, st.SaveTracking(context.Background(), rec))

	producer := &recordingProducer{}
	f := workerFactories{
		newStorage: func(*config.Config) (simulator.Source, func(), error) {
			return st, nil, nil
		},
		newProducer: func(*config.Config) (simulator.Producer, func()) {
			return producer, nil
		},
		newRateLimiter: func(*config.Config) simulator.RateLimiter { return nil },
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- RunTrackWorker(ctx, testConfig(), f) }()

	require.Eventually(t, func() bool {
		for _, m := range producer.snapshot() {
			if m.DeliveryID == "d1" && m.Status == "" {
				return true
			}
		}
		return false
	}, 3*time.Second, 10*time.Millisecond)

	msgs := producer.snapshot()
	require.Equal(t, string(models.StatusEnRoute), msgs[0].Status, "courier picked up the parcel first")

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
}

func TestWorkerHTTPServer(t *testing.T) {
	sw := filepath.Join(t.TempDir(), "worker.swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))

	cfg := testConfig()
	cfg.Tracking.WorkerCompleteDeliveries = true
	sim := newSimulator(cfg, memtracking.New(), &recordingProducer{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- runWorkerHTTPServer(ctx, workerHTTPOpts{
			httpAddr:    "127.0.0.1:0",
			swaggerPath: sw,
			onListen:    func(addr string) { addrCh <- addr },
			sim:         sim,
			cfg:         cfg,
		})
	}()
	base := "http://" + <-addrCh

	get := func(path string) (*http.Response, string) {
		resp, err := http.Get(base + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp, string(b)
	}

	resp, body := get("/healthz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "ok")

	resp, body = get("/stats")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "totalPublished")

	resp, body = get("/config")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, `"completeDeliveries":true`)

	resp, _ = get("/swagger.json")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	trig, err := http.Post(base+"/trigger", "application/json", nil)
	require.NoError(t, err)
	trig.Body.Close()
	require.Equal(t, http.StatusOK, trig.StatusCode)
	require.NotNil(t, sim.Stats().LastTriggerAt)

	cancel()
	select {
	case <-errCh:
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting worker http to stop")
	}
}

func TestWorkerHTTPServer_SwaggerRequired(t *testing.T) {
	err := runWorkerHTTPServer(context.Background(), workerHTTPOpts{httpAddr: "127.0.0.1:0"})
	require.Error(t, err)
}
