package service

import (
	"context"
	"sync"
	"time"

	"github.com/andrei1031/dash-q-v2-front-sub000/internal/metrics"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/models"
	"github.com/andrei1031/dash-q-v2-front-sub000/pkg/logger"
	"github.com/andrei1031/dash-q-v2-front-sub000/pkg/queueapi"
)

// Snapshot is the ordered list of active tickets of one barber.
type Snapshot struct {
	BarberID    int64
	Tickets     []models.Ticket
	RequestedAt time.Time
	ReceivedAt  time.Time
	// Stale is set when the fetch failed and Tickets is the previous result.
	Stale bool
	// Superseded is set when a request started later already landed; Tickets
	// is that newer result.
	Superseded bool
}

// Fresh reports whether the snapshot carries new information.
func (s Snapshot) Fresh() bool {
	return !s.Stale && !s.Superseded
}

// Find returns the ticket and its queue position, or -1.
func (s Snapshot) Find(ticketID int64) (*models.Ticket, int) {
	for i := range s.Tickets {
		if s.Tickets[i].ID == ticketID {
			return &s.Tickets[i], i
		}
	}
	return nil, -1
}

type SnapshotFetcher interface {
	// Fetch never fails; on a transient error it returns the previous
	// snapshot for the barber marked Stale.
	Fetch(ctx context.Context, barberID int64) Snapshot
}

type snapshotFetcher struct {
	api queueapi.Client
	m   *metrics.Metrics
	l   logger.Logger
	now func() time.Time

	mu   sync.Mutex
	last map[int64]Snapshot
}

func NewSnapshotFetcher(api queueapi.Client, m *metrics.Metrics, l logger.Logger) SnapshotFetcher {
	return &snapshotFetcher{
		api:  api,
		m:    m,
		l:    l,
		now:  time.Now,
		last: make(map[int64]Snapshot),
	}
}

func (f *snapshotFetcher) Fetch(ctx context.Context, barberID int64) Snapshot {
	requestedAt := f.now()

	tickets, err := f.api.Snapshot(ctx, barberID)

	f.mu.Lock()
	defer f.mu.Unlock()

	prev, hasPrev := f.last[barberID]

	if err != nil {
		f.m.IncSnapshot("stale")
		f.l.Warnf(ctx, "snapshotFetcher.Fetch: barber_id=%d: %v", barberID, err)

		if !hasPrev {
			return Snapshot{BarberID: barberID, RequestedAt: requestedAt, Stale: true}
		}
		prev.Stale = true
		return prev
	}

	if hasPrev && prev.RequestedAt.After(requestedAt) {
		f.m.IncSnapshot("superseded")
		f.l.Debugf(ctx, "snapshotFetcher.Fetch: discarding response older than the stored snapshot, barber_id=%d", barberID)

		prev.Superseded = true
		return prev
	}

	snap := Snapshot{
		BarberID:    barberID,
		Tickets:     tickets,
		RequestedAt: requestedAt,
		ReceivedAt:  f.now(),
	}
	f.last[barberID] = snap
	f.m.IncSnapshot("ok")

	return snap
}
