package geofence

import (
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/andrei1031/dash-q-v2-front-sub000/config"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/models"
)

const earthRadiusMeters = 6371000.0

type Direction string

const (
	DirectionUnknown Direction = ""
	DirectionClosing Direction = "closing"
	DirectionAway    Direction = "away"
)

// Fix is one device position.
type Fix struct {
	Lat float64   `json:"lat"`
	Lng float64   `json:"lng"`
	At  time.Time `json:"at"`
}

// Reading is what the tracker derived from one fix.
type Reading struct {
	Distance   float64
	Direction  Direction
	ETAMinutes int
	Arrived    bool
	At         time.Time

	// Edge flags; each is set only on the fix that caused the change.
	ArrivedNow    bool
	DriftWarning  bool
	DriftResolved bool

	// Upload is set when the distance should be reported to the server.
	Upload bool
}

type sample struct {
	distance float64
	at       time.Time
}

// Tracker derives distance, direction, ETA, arrival and drift from a stream
// of fixes. It is not safe for concurrent use.
type Tracker struct {
	cfg     config.GeofenceConfig
	limiter *rate.Limiter

	prev          *sample
	direction     Direction
	arrived       bool
	warningActive bool
	cooldownUntil time.Time
}

func NewTracker(cfg config.GeofenceConfig) *Tracker {
	return &Tracker{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.UploadInterval), 1),
	}
}

// Observe handles one fix. status is our ticket's current status and active
// whether we hold a ticket at all.
func (t *Tracker) Observe(fix Fix, status models.TicketStatus, active bool) Reading {
	d := Haversine(fix.Lat, fix.Lng, t.cfg.ShopLat, t.cfg.ShopLng)
	return t.ObserveDistance(d, fix.At, status, active)
}

func (t *Tracker) ObserveDistance(d float64, at time.Time, status models.TicketStatus, active bool) Reading {
	if t.prev != nil {
		delta := d - t.prev.distance
		if math.Abs(delta) > t.cfg.JitterMeters {
			if delta < 0 {
				t.direction = DirectionClosing
			} else {
				t.direction = DirectionAway
			}
		}
	}
	t.prev = &sample{distance: d, at: at}

	r := Reading{
		Distance:   d,
		Direction:  t.direction,
		ETAMinutes: ETAMinutes(d, t.cfg.WalkSpeedMPM),
		At:         at,
	}

	wasArrived := t.arrived
	t.arrived = d <= t.cfg.ArrivalMeters
	r.Arrived = t.arrived
	r.ArrivedNow = t.arrived && !wasArrived

	switch {
	case t.warningActive && (d <= t.cfg.WarningMeters || status != models.TicketStatusUpNext):
		t.warningActive = false
		r.DriftResolved = true

	case !t.warningActive && status == models.TicketStatusUpNext &&
		d > t.cfg.WarningMeters && !at.Before(t.cooldownUntil):
		t.warningActive = true
		r.DriftWarning = true
	}

	r.Upload = active && t.limiter.AllowN(at, 1)

	return r
}

// AcknowledgeDrift silences the active warning and starts the cooldown. It
// reports whether a warning was active.
func (t *Tracker) AcknowledgeDrift(at time.Time) bool {
	if !t.warningActive {
		return false
	}

	t.warningActive = false
	t.cooldownUntil = at.Add(t.cfg.DriftCooldown)
	return true
}

// RestoreWarning marks a drift warning as already showing, e.g. one that was
// persisted before a restart.
func (t *Tracker) RestoreWarning() {
	t.warningActive = true
}

// Reset forgets everything learned for the previous ticket.
func (t *Tracker) Reset() {
	t.prev = nil
	t.direction = DirectionUnknown
	t.arrived = false
	t.warningActive = false
	t.cooldownUntil = time.Time{}
	t.limiter = rate.NewLimiter(rate.Every(t.cfg.UploadInterval), 1)
}

// ETAMinutes is the walking time, rounded up to whole minutes.
func ETAMinutes(distance, speedMetersPerMinute float64) int {
	if speedMetersPerMinute <= 0 || distance <= 0 {
		return 0
	}
	return int(math.Ceil(distance / speedMetersPerMinute))
}

// Haversine returns the great-circle distance in meters.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)

	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
