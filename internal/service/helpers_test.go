package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/andrei1031/dash-q-v2-front-sub000/internal/errors"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/metrics"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/models"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/repository/memory"
	"github.com/andrei1031/dash-q-v2-front-sub000/pkg/logger"
	"github.com/andrei1031/dash-q-v2-front-sub000/pkg/queueapi"
)

type fakeAPI struct {
	mu sync.Mutex

	snapshots   map[int64][]models.Ticket
	snapshotErr error

	tickets   map[int64]*models.Ticket
	ticketErr error

	missed    *models.TicketStatus
	missedErr error

	joinFn     func(req queueapi.JoinRequest) (*models.Ticket, error)
	leaveErr   error
	confirmErr error

	barbers    []models.Barber
	barbersErr error

	uploads []float64
	calls   map[string]int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		snapshots: make(map[int64][]models.Ticket),
		tickets:   make(map[int64]*models.Ticket),
		calls:     make(map[string]int),
	}
}

func (f *fakeAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) setQueue(barberID int64, tickets ...models.Ticket) {
	f.mu.Lock()
	f.snapshots[barberID] = tickets
	f.mu.Unlock()
}

func (f *fakeAPI) Snapshot(ctx context.Context, barberID int64) ([]models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["Snapshot"]++
	if f.snapshotErr != nil {
		return nil, f.snapshotErr
	}
	return append([]models.Ticket(nil), f.snapshots[barberID]...), nil
}

func (f *fakeAPI) GetTicket(ctx context.Context, ticketID int64) (*models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["GetTicket"]++
	if f.ticketErr != nil {
		return nil, f.ticketErr
	}
	t, ok := f.tickets[ticketID]
	if !ok {
		return nil, errors.ErrTicketNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeAPI) MissedEvent(ctx context.Context, customerID string) (*models.TicketStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["MissedEvent"]++
	return f.missed, f.missedErr
}

func (f *fakeAPI) ConfirmAttendance(ctx context.Context, ticketID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ConfirmAttendance"]++
	return f.confirmErr
}

func (f *fakeAPI) UploadLocation(ctx context.Context, ticketID int64, distanceMeters float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["UploadLocation"]++
	f.uploads = append(f.uploads, distanceMeters)
	return nil
}

func (f *fakeAPI) JoinQueue(ctx context.Context, req queueapi.JoinRequest) (*models.Ticket, error) {
	f.mu.Lock()
	fn := f.joinFn
	f.calls["JoinQueue"]++
	f.mu.Unlock()

	if fn == nil {
		return &models.Ticket{ID: 100, BarberID: req.BarberID, ServiceID: req.ServiceID, Status: models.TicketStatusWaiting}, nil
	}
	return fn(req)
}

func (f *fakeAPI) LeaveQueue(ctx context.Context, ticketID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["LeaveQueue"]++
	return f.leaveErr
}

func (f *fakeAPI) ListBarbers(ctx context.Context) ([]models.Barber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ListBarbers"]++
	return f.barbers, f.barbersErr
}

type eventRecorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *eventRecorder) handle(_ context.Context, ev models.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) ofType(t models.EventType) []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type harness struct {
	t          *testing.T
	ctx        context.Context
	api        *fakeAPI
	bus        EventBus
	events     *eventRecorder
	sessions   SessionService
	fetcher    SnapshotFetcher
	probe      RecoveryProbe
	reconciler Reconciler
	queue      QueueService
	scanner    OpportunityScanner
	m          *metrics.Metrics
	l          logger.Logger
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	l := logger.InitializeTestZapLogger()
	m := metrics.NewNop()
	api := newFakeAPI()

	bus := NewEventBus(m, l)
	rec := &eventRecorder{}
	bus.Subscribe(rec.handle)

	sessions := NewSessionService(memory.NewSessionRepository(), bus, m, l)
	probe := NewRecoveryProbe(api, sessions, bus, "cust-1", m, l)
	queue := NewQueueService(api, sessions, bus, l)

	return &harness{
		t:          t,
		ctx:        context.Background(),
		api:        api,
		bus:        bus,
		events:     rec,
		sessions:   sessions,
		fetcher:    NewSnapshotFetcher(api, m, l),
		probe:      probe,
		reconciler: NewReconciler(sessions, probe, bus, 2, m, l),
		queue:      queue,
		scanner:    NewOpportunityScanner(api, sessions, queue, bus, l),
		m:          m,
		l:          l,
	}
}

func (h *harness) join(ticketID, barberID int64) {
	h.t.Helper()
	_, err := h.sessions.Save(h.ctx, ticketID, barberID)
	require.NoError(h.t, err)
}

func (h *harness) session() *models.Session {
	h.t.Helper()
	ss, err := h.sessions.Load(h.ctx)
	if err != nil {
		return nil
	}
	return ss
}

// poll fetches the barber's queue and applies it, running the probe inline
// when the reconciler asks for it.
func (h *harness) poll(barberID int64) ProbeOutcome {
	return h.apply(h.fetcher.Fetch(h.ctx, barberID))
}

func (h *harness) apply(snap Snapshot) ProbeOutcome {
	dec := h.reconciler.Apply(h.ctx, snap)
	if !dec.Probe {
		return ""
	}
	return h.reconciler.ResolveProbe(h.ctx, h.probe.Classify(h.ctx, dec.Session))
}

func ticket(id, barberID int64, status models.TicketStatus) models.Ticket {
	return models.Ticket{
		ID:                     id,
		BarberID:               barberID,
		Status:                 status,
		HeadCount:              1,
		ServiceDurationMinutes: 20,
		UpdatedAt:              time.Now(),
	}
}
