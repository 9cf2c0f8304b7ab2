package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadConfig(t *testing.T) {
	p := writeConfig(t, `
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "db"
kafka:
  host: "localhost"
  port: 9092
  driver_location_topic_name: "driver.location.v2"
redis:
  host: "localhost"
  port: 6379
tracking:
  grpc_addr: ":50051"
  http_addr: ":8080"
  storage: "memory"
  cache_ttl_seconds: 30
  auto_proximity: true
  routing_provider: "osrm"
  osrm_base_url: "http://osrm:5000"
  worker_speed_kmh: 45.5
  worker_complete_deliveries: true
`)

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "postgres://u:p@localhost:5432/db?sslmode=disable", cfg.Database.ConnString())
	require.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers())
	require.Equal(t, "driver.location.v2", cfg.Kafka.DriverLocationTopicName)
	require.Equal(t, "tracking.events", cfg.Kafka.TrackingEventsTopicName)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr())
	require.Equal(t, ":8080", cfg.Tracking.HTTPAddr)
	require.Equal(t, "memory", cfg.Tracking.Storage)
	require.Equal(t, 30*time.Second, cfg.Tracking.CacheTTL())
	require.True(t, cfg.Tracking.AutoProximity)
	require.Equal(t, "osrm", cfg.Tracking.RoutingProvider)
	require.Equal(t, "driving", cfg.Tracking.OSRMProfile)
	require.Equal(t, 45.5, cfg.Tracking.WorkerSpeedKmh)
	require.True(t, cfg.Tracking.WorkerCompleteDeliveries)
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("swaggerPath", "")
	t.Setenv("workerSwaggerPath", "")
	cfg, err := LoadConfig(writeConfig(t, "tracking: {}\n"))
	require.NoError(t, err)
	require.Equal(t, ":50051", cfg.Tracking.GRPCAddr)
	require.Equal(t, "postgres", cfg.Tracking.Storage)
	require.Equal(t, "track-api", cfg.Tracking.DriverConsumerGroup)
	require.Equal(t, 10*time.Minute, cfg.Tracking.CacheTTL())
	require.Equal(t, 15*time.Second, cfg.Tracking.StreamHeartbeat())
	require.Equal(t, 2*time.Second, cfg.Tracking.WorkerTick())
	require.Equal(t, "fake", cfg.Tracking.RoutingProvider)
	require.Equal(t, "api/swagger.json", cfg.Tracking.SwaggerPath)
	require.False(t, cfg.Tracking.AutoProximity)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "database: [1, 2"))
	require.Error(t, err)
}

func TestLoad_FlagOverridesEnv(t *testing.T) {
	fromEnv := writeConfig(t, "tracking:\n  http_addr: \":1111\"\n")
	fromFlag := writeConfig(t, "tracking:\n  http_addr: \":2222\"\n")
	t.Setenv("configPath", fromEnv)

	cfg, err := Load("test", nil)
	require.NoError(t, err)
	require.Equal(t, ":1111", cfg.Tracking.HTTPAddr)

	cfg, err = Load("test", []string{"--config", fromFlag})
	require.NoError(t, err)
	require.Equal(t, ":2222", cfg.Tracking.HTTPAddr)
}

func TestLoad_RequiresPath(t *testing.T) {
	t.Setenv("configPath", "")
	_, err := Load("test", nil)
	require.Error(t, err)

	_, err = Load("test", []string{"--unknown"})
	require.Error(t, err)
}
