package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Log      LogConfig
	Redis    RedisConfig
	API      APIConfig
	Kafka    KafkaConfig
	Feed     FeedConfig
	Poll     PollConfig
	Geofence GeofenceConfig
	Notify   NotifyConfig
	Customer CustomerConfig
	Metrics  MetricsConfig
}

type LogConfig struct {
	Level    string
	Mode     string
	Encoding string
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	MaxRetries   int
	PoolSize     int
	MinIdleConns int
}

type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

type KafkaConfig struct {
	Brokers       []string
	Topic         string
	GroupIDPrefix string
}

type FeedConfig struct {
	// Driver is one of "kafka", "redis" or "none".
	Driver string
}

type PollConfig struct {
	SnapshotInterval       time.Duration
	OpportunityInterval    time.Duration
	DisappearanceThreshold int
}

type GeofenceConfig struct {
	Enabled        bool
	Source         string
	ShopLat        float64
	ShopLng        float64
	ArrivalMeters  float64
	WarningMeters  float64
	JitterMeters   float64
	WalkSpeedMPM   float64
	UploadInterval time.Duration
	DriftCooldown  time.Duration
}

type NotifyConfig struct {
	BaseTitle     string
	BlinkInterval time.Duration
}

// CustomerConfig describes who the agent acts for and what it joins.
type CustomerConfig struct {
	ClientID   string
	CustomerID string
	// ClientIDFile holds the generated client id when neither ClientID nor
	// CustomerID is set.
	ClientIDFile string
	Name         string
	BarberID     int64
	ServiceID    int64
	HeadCount    int
	IsVIP        bool
	AutoJoin     bool
}

type MetricsConfig struct {
	Addr      string
	Namespace string
}

func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfg := &Config{
		Env: getEnv("ENV", "development"),
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Mode:     getEnv("LOG_MODE", "development"),
			Encoding: getEnv("LOG_ENCODING", "console"),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			MaxRetries:   getEnvAsInt("REDIS_MAX_RETRIES", 3),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 4),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 1),
		},
		API: APIConfig{
			BaseURL: getEnv("API_BASE_URL", "http://localhost:3001"),
			Timeout: getEnvAsDuration("API_TIMEOUT", 10*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:       getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:         getEnv("FEED_KAFKA_TOPIC", "ticket.changes"),
			GroupIDPrefix: getEnv("FEED_KAFKA_GROUP_PREFIX", "dashq-agent"),
		},
		Feed: FeedConfig{
			Driver: getEnv("FEED_DRIVER", "redis"),
		},
		Poll: PollConfig{
			SnapshotInterval:       getEnvAsDuration("POLL_SNAPSHOT_INTERVAL", 15*time.Second),
			OpportunityInterval:    getEnvAsDuration("POLL_OPPORTUNITY_INTERVAL", 10*time.Second),
			DisappearanceThreshold: getEnvAsInt("POLL_DISAPPEARANCE_THRESHOLD", 2),
		},
		Geofence: GeofenceConfig{
			Enabled:        getEnvAsBool("GEO_ENABLED", true),
			Source:         getEnv("GEO_SOURCE", ""),
			ShopLat:        getEnvAsFloat("GEO_SHOP_LAT", 0),
			ShopLng:        getEnvAsFloat("GEO_SHOP_LNG", 0),
			ArrivalMeters:  getEnvAsFloat("GEO_ARRIVAL_METERS", 30),
			WarningMeters:  getEnvAsFloat("GEO_WARNING_METERS", 300),
			JitterMeters:   getEnvAsFloat("GEO_JITTER_METERS", 3),
			WalkSpeedMPM:   getEnvAsFloat("GEO_WALK_SPEED_MPM", 80),
			UploadInterval: getEnvAsDuration("GEO_UPLOAD_INTERVAL", 60*time.Second),
			DriftCooldown:  getEnvAsDuration("GEO_DRIFT_COOLDOWN", 5*time.Minute),
		},
		Notify: NotifyConfig{
			BaseTitle:     getEnv("NOTIFY_BASE_TITLE", "Dash-Q"),
			BlinkInterval: getEnvAsDuration("NOTIFY_BLINK_INTERVAL", time.Second),
		},
		Customer: CustomerConfig{
			ClientID:     getEnv("CLIENT_ID", ""),
			CustomerID:   getEnv("CUSTOMER_ID", ""),
			ClientIDFile: getEnv("CLIENT_ID_FILE", ".dashq-client-id"),
			Name:         getEnv("CUSTOMER_NAME", ""),
			BarberID:     getEnvAsInt64("CUSTOMER_BARBER_ID", 0),
			ServiceID:    getEnvAsInt64("CUSTOMER_SERVICE_ID", 0),
			HeadCount:    getEnvAsInt("CUSTOMER_HEAD_COUNT", 1),
			IsVIP:        getEnvAsBool("CUSTOMER_VIP", false),
			AutoJoin:     getEnvAsBool("CUSTOMER_AUTO_JOIN", false),
		},
		Metrics: MetricsConfig{
			Addr:      getEnv("METRICS_ADDR", ""),
			Namespace: getEnv("METRICS_NAMESPACE", "dashq_agent"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api base url is required")
	}

	switch c.Feed.Driver {
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka brokers are required for the kafka feed driver")
		}
	case "redis", "none":
	default:
		return fmt.Errorf("invalid feed driver: %s", c.Feed.Driver)
	}

	if c.Poll.SnapshotInterval <= 0 {
		return fmt.Errorf("invalid snapshot interval: %s", c.Poll.SnapshotInterval)
	}

	if c.Poll.DisappearanceThreshold < 1 {
		return fmt.Errorf("invalid disappearance threshold: %d", c.Poll.DisappearanceThreshold)
	}

	if c.Customer.ClientID == "" && c.Customer.CustomerID == "" && c.Customer.ClientIDFile == "" {
		return fmt.Errorf("no client identity: set CLIENT_ID, CUSTOMER_ID or CLIENT_ID_FILE")
	}

	if c.Customer.HeadCount < 1 {
		return fmt.Errorf("invalid head count: %d", c.Customer.HeadCount)
	}

	if c.Geofence.WalkSpeedMPM <= 0 {
		return fmt.Errorf("invalid walking speed: %v", c.Geofence.WalkSpeedMPM)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	// Split by comma
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
