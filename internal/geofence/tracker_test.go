package geofence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrei1031/dash-q-v2-front-sub000/config"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/models"
)

func testConfig() config.GeofenceConfig {
	return config.GeofenceConfig{
		Enabled:        true,
		ShopLat:        14.5995,
		ShopLng:        120.9842,
		ArrivalMeters:  30,
		WarningMeters:  300,
		JitterMeters:   3,
		WalkSpeedMPM:   80,
		UploadInterval: time.Minute,
		DriftCooldown:  5 * time.Minute,
	}
}

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func TestApproachingShop(t *testing.T) {
	cfg := testConfig()
	cfg.ArrivalMeters = 50
	tr := NewTracker(cfg)

	r1 := tr.ObserveDistance(500, t0, models.TicketStatusWaiting, true)
	assert.Equal(t, DirectionUnknown, r1.Direction)
	assert.False(t, r1.Arrived)

	r2 := tr.ObserveDistance(250, t0.Add(time.Minute), models.TicketStatusWaiting, true)
	assert.Equal(t, DirectionClosing, r2.Direction)
	assert.False(t, r2.Arrived)

	r3 := tr.ObserveDistance(50, t0.Add(2*time.Minute), models.TicketStatusWaiting, true)
	assert.Equal(t, DirectionClosing, r3.Direction)
	assert.True(t, r3.Arrived)
	assert.True(t, r3.ArrivedNow)
}

func TestDirectionIgnoresJitter(t *testing.T) {
	tr := NewTracker(testConfig())

	tr.ObserveDistance(200, t0, models.TicketStatusWaiting, false)
	r := tr.ObserveDistance(190, t0.Add(time.Second), models.TicketStatusWaiting, false)
	require.Equal(t, DirectionClosing, r.Direction)

	r = tr.ObserveDistance(193, t0.Add(2*time.Second), models.TicketStatusWaiting, false)
	assert.Equal(t, DirectionClosing, r.Direction, "a 3m wobble keeps the previous direction")

	r = tr.ObserveDistance(197, t0.Add(3*time.Second), models.TicketStatusWaiting, false)
	assert.Equal(t, DirectionAway, r.Direction)
}

func TestArrivalIsInclusiveAndLatched(t *testing.T) {
	tr := NewTracker(testConfig())

	r := tr.ObserveDistance(30, t0, models.TicketStatusWaiting, true)
	assert.True(t, r.Arrived)
	assert.True(t, r.ArrivedNow)

	r = tr.ObserveDistance(12, t0.Add(time.Second), models.TicketStatusWaiting, true)
	assert.True(t, r.Arrived)
	assert.False(t, r.ArrivedNow)

	r = tr.ObserveDistance(31, t0.Add(2*time.Second), models.TicketStatusWaiting, true)
	assert.False(t, r.Arrived)
}

func TestDriftWarningIsStrict(t *testing.T) {
	tr := NewTracker(testConfig())

	r := tr.ObserveDistance(300, t0, models.TicketStatusUpNext, true)
	assert.False(t, r.DriftWarning)

	r = tr.ObserveDistance(300.5, t0.Add(time.Second), models.TicketStatusUpNext, true)
	assert.True(t, r.DriftWarning)
}

func TestDriftWarningOnlyWhenUpNext(t *testing.T) {
	tr := NewTracker(testConfig())

	r := tr.ObserveDistance(900, t0, models.TicketStatusWaiting, true)
	assert.False(t, r.DriftWarning)

	r = tr.ObserveDistance(900, t0.Add(time.Second), models.TicketStatusInProgress, true)
	assert.False(t, r.DriftWarning)
}

func TestDriftCooldownAfterAcknowledge(t *testing.T) {
	tr := NewTracker(testConfig())

	r := tr.ObserveDistance(500, t0, models.TicketStatusUpNext, true)
	require.True(t, r.DriftWarning)

	r = tr.ObserveDistance(520, t0.Add(10*time.Second), models.TicketStatusUpNext, true)
	assert.False(t, r.DriftWarning, "already active")

	require.True(t, tr.AcknowledgeDrift(t0.Add(20*time.Second)))
	assert.False(t, tr.AcknowledgeDrift(t0.Add(21*time.Second)))

	r = tr.ObserveDistance(520, t0.Add(4*time.Minute), models.TicketStatusUpNext, true)
	assert.False(t, r.DriftWarning, "cooling down")

	r = tr.ObserveDistance(520, t0.Add(20*time.Second+5*time.Minute), models.TicketStatusUpNext, true)
	assert.True(t, r.DriftWarning)
}

func TestDriftResolvesWhenBackInRange(t *testing.T) {
	tr := NewTracker(testConfig())

	require.True(t, tr.ObserveDistance(450, t0, models.TicketStatusUpNext, true).DriftWarning)

	r := tr.ObserveDistance(280, t0.Add(time.Minute), models.TicketStatusUpNext, true)
	assert.True(t, r.DriftResolved)
	assert.False(t, tr.warningActive)
}

func TestUploadThrottled(t *testing.T) {
	tr := NewTracker(testConfig())

	uploads := 0
	for i := 0; i < 120; i++ {
		if tr.ObserveDistance(100, t0.Add(time.Duration(i)*time.Second), models.TicketStatusWaiting, true).Upload {
			uploads++
		}
	}
	assert.Equal(t, 2, uploads)

	tr.Reset()
	assert.False(t, tr.ObserveDistance(100, t0.Add(3*time.Minute), models.TicketStatusWaiting, false).Upload,
		"never uploads without an active ticket")
}

func TestETAMinutes(t *testing.T) {
	assert.Equal(t, 0, ETAMinutes(0, 80))
	assert.Equal(t, 1, ETAMinutes(80, 80))
	assert.Equal(t, 2, ETAMinutes(81, 80))
	assert.Equal(t, 7, ETAMinutes(500, 80))
}

func TestHaversine(t *testing.T) {
	assert.InDelta(t, 0, Haversine(14.5995, 120.9842, 14.5995, 120.9842), 1e-9)

	// One degree of latitude is about 111.2 km.
	assert.InDelta(t, 111195, Haversine(0, 0, 1, 0), 50)
}
