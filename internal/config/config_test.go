package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "concierge-svc", cfg.ServiceName)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "deal.events", cfg.DealTopic)
	assert.Equal(t, "concierge-consumer", cfg.ConsumerGroup)
	assert.Equal(t, 5, cfg.BundleLimit)
	assert.Equal(t, 30*time.Second, cfg.WatchPollInterval)
	assert.Equal(t, 300*time.Second, cfg.PipelineInterval)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.False(t, cfg.BusEnabled())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONCIERGE_HTTP_PORT", "9090")
	t.Setenv("CONCIERGE_KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("CONCIERGE_BUNDLE_LIMIT", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 3, cfg.BundleLimit)
	assert.True(t, cfg.BusEnabled())
}

func TestLoadRejectsBadBundleLimit(t *testing.T) {
	t.Setenv("CONCIERGE_BUNDLE_LIMIT", "11")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsShortWatchInterval(t *testing.T) {
	t.Setenv("CONCIERGE_WATCH_POLL_INTERVAL_SECONDS", "5")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadIgnoresMalformedInt(t *testing.T) {
	t.Setenv("CONCIERGE_HTTP_PORT", "not-a-number")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTPPort)
}
