package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the runtime configuration for both the concierge service and
// the deals worker, loaded from CONCIERGE_-prefixed environment variables.
type Config struct {
	ServiceName string
	Version     string
	Environment string

	HTTPHost string
	HTTPPort int

	DatabaseURL  string
	RedisURL     string
	AnalyticsURL string // Mongo connection string for the deals worker

	KafkaBrokers   []string
	DealTopic      string
	RawDealTopic   string
	ConsumerGroup  string
	TopicsManifest string

	FlightsServiceURL string
	HotelsServiceURL  string
	CarsServiceURL    string

	BundleLimit       int
	WatchPollInterval time.Duration
	PipelineInterval  time.Duration
	RequestTimeout    time.Duration
	DataDir           string

	IntentExtractorURL   string
	IntentExtractorModel string
}

const envPrefix = "CONCIERGE_"

func getenv(key, def string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(envPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Load reads configuration from the environment, applying defaults and
// clamping the tunables the service depends on for correctness.
func Load() (Config, error) {
	cfg := Config{
		ServiceName: "concierge-svc",
		Version:     "1.0.0",
		Environment: getenv("ENV", "development"),

		HTTPHost: getenv("HTTP_HOST", "0.0.0.0"),
		HTTPPort: getenvInt("HTTP_PORT", 8080),

		DatabaseURL:  getenv("DATABASE_URL", "postgres://localhost:5432/concierge?sslmode=disable"),
		RedisURL:     getenv("REDIS_URL", "redis://localhost:6379/0"),
		AnalyticsURL: getenv("ANALYTICS_URL", "mongodb://localhost:27017"),

		DealTopic:      getenv("KAFKA_DEAL_TOPIC", "deal.events"),
		RawDealTopic:   getenv("KAFKA_RAW_TOPIC", "deals.raw"),
		ConsumerGroup:  getenv("KAFKA_GROUP_ID", "concierge-consumer"),
		TopicsManifest: getenv("KAFKA_TOPICS_MANIFEST", "config/topics.yaml"),

		FlightsServiceURL: getenv("FLIGHTS_SERVICE_URL", "http://localhost:8002"),
		HotelsServiceURL:  getenv("HOTELS_SERVICE_URL", "http://localhost:8003"),
		CarsServiceURL:    getenv("CARS_SERVICE_URL", "http://localhost:8004"),

		BundleLimit:       getenvInt("BUNDLE_LIMIT", 5),
		WatchPollInterval: time.Duration(getenvInt("WATCH_POLL_INTERVAL_SECONDS", 30)) * time.Second,
		PipelineInterval:  time.Duration(getenvInt("PIPELINE_INTERVAL_SECONDS", 300)) * time.Second,
		RequestTimeout:    time.Duration(getenvInt("REQUEST_TIMEOUT_SECONDS", 5)) * time.Second,
		DataDir:           getenv("DATA_DIR", "data/raw"),

		IntentExtractorURL:   getenv("INTENT_EXTRACTOR_URL", "http://localhost:11434"),
		IntentExtractorModel: getenv("INTENT_EXTRACTOR_MODEL", "qwen2.5:3b"),
	}

	if brokers := getenv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = splitCSV(brokers)
	}

	if cfg.BundleLimit < 1 || cfg.BundleLimit > 10 {
		return cfg, fmt.Errorf("bundle_limit must be within [1, 10], got %d", cfg.BundleLimit)
	}
	if cfg.WatchPollInterval < 10*time.Second {
		return cfg, fmt.Errorf("watch_poll_interval_seconds must be at least 10")
	}
	if cfg.RequestTimeout <= 0 {
		return cfg, fmt.Errorf("request_timeout_seconds must be positive")
	}

	return cfg, nil
}

// BusEnabled reports whether the message bus is configured at all. An empty
// broker list means the service runs without event ingress.
func (c Config) BusEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
