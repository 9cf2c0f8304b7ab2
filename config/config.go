package config

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Tracking TrackingConfig `yaml:"tracking"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

type KafkaConfig struct {
	Host                    string `yaml:"host"`
	Port                    int    `yaml:"port"`
	DriverLocationTopicName string `yaml:"driver_location_topic_name"`
	TrackingEventsTopicName string `yaml:"tracking_events_topic_name"`
}

func (k KafkaConfig) Brokers() []string {
	return []string{fmt.Sprintf("%s:%d", k.Host, k.Port)}
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type TrackingConfig struct {
	GRPCAddr    string `yaml:"grpc_addr"`
	HTTPAddr    string `yaml:"http_addr"`
	SwaggerPath string `yaml:"swagger_path"`
	// Storage: "postgres" | "memory".
	Storage string `yaml:"storage"`
	// InstanceID отличает свои события от чужих в топике tracking.events; пусто — сгенерируется.
	InstanceID          string `yaml:"instance_id"`
	DriverConsumerGroup string `yaml:"driver_consumer_group"`

	CacheTTLSeconds            int  `yaml:"cache_ttl_seconds"`
	AutoProximity              bool `yaml:"auto_proximity"`
	LocationRateLimitPerMinute int  `yaml:"location_rate_limit_per_minute"`
	StreamHeartbeatSeconds     int  `yaml:"stream_heartbeat_seconds"`

	RoutingProvider string `yaml:"routing_provider"` // "fake" | "osrm"
	OSRMBaseURL     string `yaml:"osrm_base_url"`
	OSRMProfile     string `yaml:"osrm_profile"`

	WorkerHTTPAddr           string  `yaml:"worker_http_addr"`
	WorkerSwaggerPath        string  `yaml:"worker_swagger_path"`
	WorkerTickMillis         int     `yaml:"worker_tick_millis"`
	WorkerBatchSize          int     `yaml:"worker_batch_size"`
	WorkerConcurrency        int     `yaml:"worker_concurrency"`
	WorkerSpeedKmh           float64 `yaml:"worker_speed_kmh"`
	WorkerSpeedJitterPercent int     `yaml:"worker_speed_jitter_percent"`
	WorkerCompleteDeliveries bool    `yaml:"worker_complete_deliveries"`
	WorkerRateLimitPerMinute int     `yaml:"worker_rate_limit_per_minute"`
}

func (t TrackingConfig) CacheTTL() time.Duration {
	return time.Duration(t.CacheTTLSeconds) * time.Second
}

func (t TrackingConfig) StreamHeartbeat() time.Duration {
	return time.Duration(t.StreamHeartbeatSeconds) * time.Second
}

func (t TrackingConfig) WorkerTick() time.Duration {
	return time.Duration(t.WorkerTickMillis) * time.Millisecond
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}
	config.ApplyDefaults()

	return &config, nil
}

// Load читает конфиг в порядке: .env (если есть) → env configPath → флаг --config.
func Load(name string, args []string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn(".env not loaded", "error", err.Error())
	}

	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	path := flags.StringP("config", "c", os.Getenv("configPath"), "path to YAML config")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if *path == "" {
		return nil, fmt.Errorf("config path is required: --config or configPath env var")
	}
	return LoadConfig(*path)
}

// ApplyDefaults заполняет незаданные поля.
func (c *Config) ApplyDefaults() {
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Kafka.DriverLocationTopicName == "" {
		c.Kafka.DriverLocationTopicName = "driver.location"
	}
	if c.Kafka.TrackingEventsTopicName == "" {
		c.Kafka.TrackingEventsTopicName = "tracking.events"
	}

	t := &c.Tracking
	if t.GRPCAddr == "" {
		t.GRPCAddr = ":50051"
	}
	if t.HTTPAddr == "" {
		t.HTTPAddr = ":8080"
	}
	if t.SwaggerPath == "" {
		t.SwaggerPath = os.Getenv("swaggerPath")
	}
	if t.SwaggerPath == "" {
		t.SwaggerPath = "api/swagger.json"
	}
	if t.Storage == "" {
		t.Storage = "postgres"
	}
	if t.DriverConsumerGroup == "" {
		t.DriverConsumerGroup = "track-api"
	}
	if t.CacheTTLSeconds <= 0 {
		t.CacheTTLSeconds = 600
	}
	if t.LocationRateLimitPerMinute <= 0 {
		t.LocationRateLimitPerMinute = 120
	}
	if t.StreamHeartbeatSeconds <= 0 {
		t.StreamHeartbeatSeconds = 15
	}
	if t.RoutingProvider == "" {
		t.RoutingProvider = "fake"
	}
	if t.OSRMProfile == "" {
		t.OSRMProfile = "driving"
	}
	if t.WorkerHTTPAddr == "" {
		t.WorkerHTTPAddr = ":8081"
	}
	if t.WorkerSwaggerPath == "" {
		t.WorkerSwaggerPath = os.Getenv("workerSwaggerPath")
	}
	if t.WorkerSwaggerPath == "" {
		t.WorkerSwaggerPath = "api/worker.swagger.json"
	}
	if t.WorkerTickMillis <= 0 {
		t.WorkerTickMillis = 2000
	}
	if t.WorkerRateLimitPerMinute <= 0 {
		t.WorkerRateLimitPerMinute = 60
	}
}
