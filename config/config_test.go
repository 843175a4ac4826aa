package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FEED_DRIVER", "")
	t.Setenv("POLL_SNAPSHOT_INTERVAL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Feed.Driver)
	assert.Equal(t, 15*time.Second, cfg.Poll.SnapshotInterval)
	assert.Equal(t, 10*time.Second, cfg.Poll.OpportunityInterval)
	assert.Equal(t, 2, cfg.Poll.DisappearanceThreshold)
	assert.Equal(t, 30.0, cfg.Geofence.ArrivalMeters)
	assert.Equal(t, 300.0, cfg.Geofence.WarningMeters)
	assert.Equal(t, 3.0, cfg.Geofence.JitterMeters)
	assert.Equal(t, time.Minute, cfg.Geofence.UploadInterval)
	assert.Equal(t, 5*time.Minute, cfg.Geofence.DriftCooldown)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FEED_DRIVER", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("CUSTOMER_BARBER_ID", "7")
	t.Setenv("GEO_SHOP_LAT", "14.5995")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, int64(7), cfg.Customer.BarberID)
	assert.InDelta(t, 14.5995, cfg.Geofence.ShopLat, 1e-9)
}

func TestValidateRejectsUnknownFeedDriver(t *testing.T) {
	t.Setenv("FEED_DRIVER", "carrier-pigeon")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidateRequiresClientIdentity(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ".dashq-client-id", cfg.Customer.ClientIDFile)

	cfg.Customer.ClientID = ""
	cfg.Customer.CustomerID = ""
	cfg.Customer.ClientIDFile = ""
	assert.Error(t, cfg.Validate())

	cfg.Customer.CustomerID = "cust-1"
	assert.NoError(t, cfg.Validate())
}
