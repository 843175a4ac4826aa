package service

import (
	"time"

	"github.com/andrei1031/dash-q-v2-front-sub000/internal/geofence"
	"github.com/andrei1031/dash-q-v2-front-sub000/pkg/queueapi"
)

// AgentConfig holds the agent's schedule and the customer's join intent.
type AgentConfig struct {
	SnapshotInterval    time.Duration
	OpportunityInterval time.Duration
	ShutdownTimeout     time.Duration
	// BrowseBarberID is polled for estimates while no ticket is held; zero
	// disables browsing.
	BrowseBarberID int64
	// Join is the request used by Join and, with another barber, by SwitchTo.
	Join     queueapi.JoinRequest
	AutoJoin bool
}

// AgentDeps are the collaborators the agent drives. Feed and Geo may be nil.
type AgentDeps struct {
	API        queueapi.Client
	Sessions   SessionService
	Fetcher    SnapshotFetcher
	Reconciler Reconciler
	Probe      RecoveryProbe
	Queue      QueueService
	Scanner    OpportunityScanner
	Feed       ChangeFeed
	Geo        geofence.Source
	Tracker    *geofence.Tracker
	Bus        EventBus
	Notifier   Notifier
}
