package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/andrei1031/dash-q-v2-front-sub000/internal/errors"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/geofence"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/metrics"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/models"
	"github.com/andrei1031/dash-q-v2-front-sub000/pkg/logger"
)

const taskBacklog = 64

// watch is the set of timers and subscriptions bound to one ticket, or to
// the browsed barber when ticketID is zero. They share ctx and are
// cancelled together.
type watch struct {
	ticketID int64
	barberID int64
	ctx      context.Context
	cancel   context.CancelFunc
	group    *errgroup.Group
	feed     ChangeFeedListener
}

// Agent runs one customer's session. A single loop goroutine owns the
// reconciler, the tracker and the current watch. Polls, probes and uploads
// run on other goroutines and post their results back to the loop; the
// server calls behind Join, Leave and SwitchTo run on the loop itself.
type Agent struct {
	cfg  AgentConfig
	deps AgentDeps
	m    *metrics.Metrics
	l    logger.Logger
	now  func() time.Time

	tasks    chan func(context.Context)
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup

	mu      sync.Mutex
	running bool

	// Loop-owned.
	rootCtx context.Context
	watch   *watch
}

func NewAgent(cfg AgentConfig, deps AgentDeps, m *metrics.Metrics, l logger.Logger) *Agent {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	return &Agent{
		cfg:    cfg,
		deps:   deps,
		m:      m,
		l:      l,
		now:    time.Now,
		tasks:  make(chan func(context.Context), taskBacklog),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Run blocks until ctx is done or Stop is called.
func (a *Agent) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return ErrAgentRunning
	}
	a.running = true
	a.mu.Unlock()

	defer close(a.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.rootCtx = ctx
	a.l.Infof(ctx, "Agent started - snapshot_interval: %s, opportunity_interval: %s",
		a.cfg.SnapshotInterval, a.cfg.OpportunityInterval)

	a.startup(ctx)

loop:
	for {
		select {
		case <-ctx.Done():
			a.l.Infof(ctx, "Agent stopping due to context cancellation")
			break loop
		case <-a.stopCh:
			a.l.Infof(ctx, "Agent stopping due to stop signal")
			break loop
		case task := <-a.tasks:
			task(ctx)
		}
	}

	a.stopWatch(ctx)
	cancel()

	finished := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		a.l.Infof(context.Background(), "Agent stopped gracefully")
	case <-time.After(a.cfg.ShutdownTimeout):
		a.l.Warnf(context.Background(), "Agent shutdown timeout exceeded")
	}

	return nil
}

// Stop ends Run and waits for it to return.
func (a *Agent) Stop() {
	a.stopOnce.Do(func() { close(a.stopCh) })

	a.mu.Lock()
	running := a.running
	a.mu.Unlock()

	if running {
		<-a.done
	}
}

// Join, Leave and SwitchTo run on the loop so no loop-side session write can
// interleave with them.
func (a *Agent) Join(ctx context.Context) (*models.Ticket, error) {
	var t *models.Ticket
	err := a.call(ctx, func(lctx context.Context) error {
		var err error
		t, err = a.deps.Queue.Join(ctx, a.cfg.Join)
		a.syncWatch(lctx)
		return err
	})
	return t, err
}

func (a *Agent) Leave(ctx context.Context) error {
	return a.call(ctx, func(lctx context.Context) error {
		err := a.deps.Queue.Leave(ctx)
		a.syncWatch(lctx)
		return err
	})
}

// SwitchTo gives up the current ticket for one with barberID. On a partial
// failure the customer holds no ticket and the error wraps
// errors.ErrCompoundPartialFailure.
func (a *Agent) SwitchTo(ctx context.Context, barberID int64) (*models.Ticket, error) {
	req := a.cfg.Join
	req.BarberID = barberID

	var t *models.Ticket
	err := a.call(ctx, func(lctx context.Context) error {
		var err error
		t, err = a.deps.Scanner.Switch(ctx, req)
		a.syncWatch(lctx)
		return err
	})
	return t, err
}

// Confirm acknowledges an Up Next ticket. The ticket reads as confirmed right
// away and is rolled back if the server refuses.
func (a *Agent) Confirm(ctx context.Context) error {
	return a.call(ctx, func(ctx context.Context) error {
		w := a.watch
		t, ok := a.deps.Reconciler.CurrentTicket()
		if w == nil || w.ticketID == 0 || !ok {
			return errors.ErrNoActiveTicket
		}

		if err := a.deps.Reconciler.BeginConfirm(ctx, t.ID); err != nil {
			return err
		}
		a.deps.Notifier.Acknowledge(ctx)

		a.goAsync(func() {
			err := a.deps.Queue.Confirm(w.ctx, t.ID)
			a.post(w.ctx, func(ctx context.Context) {
				if err != nil {
					a.deps.Reconciler.RejectConfirm(ctx, err)
					return
				}
				a.refresh(ctx, "confirm")
			})
		})

		return nil
	})
}

func (a *Agent) Acknowledge(ctx context.Context) {
	a.deps.Notifier.Acknowledge(ctx)
}

func (a *Agent) AcknowledgeDrift(ctx context.Context) error {
	return a.call(ctx, func(ctx context.Context) error {
		if a.deps.Tracker == nil || !a.deps.Tracker.AcknowledgeDrift(a.now()) {
			return nil
		}
		a.restoreTurnSticky(ctx)
		a.deps.Notifier.Acknowledge(ctx)
		return nil
	})
}

func (a *Agent) Refresh(ctx context.Context, reason string) {
	a.post(ctx, func(ctx context.Context) {
		a.refresh(ctx, reason)
	})
}

// SetVisible reports that the customer is looking at the agent again, which
// acknowledges alerts and triggers an immediate refresh.
func (a *Agent) SetVisible(ctx context.Context, visible bool) {
	if !visible {
		return
	}
	a.deps.Notifier.Acknowledge(ctx)
	a.Refresh(ctx, "visible")
}

func (a *Agent) OpenChat(ctx context.Context) error {
	return a.call(ctx, func(ctx context.Context) error {
		if err := a.deps.Sessions.SetUnreadChat(ctx, false); err != nil && !stderrors.Is(err, errors.ErrSessionNotFound) {
			return err
		}
		a.refresh(ctx, "chat")
		return nil
	})
}

func (a *Agent) MarkChatUnread(ctx context.Context) error {
	return a.call(ctx, func(ctx context.Context) error {
		if err := a.deps.Sessions.SetUnreadChat(ctx, true); err != nil {
			return err
		}

		ev := models.Event{Type: models.EventChatUnread, Message: "New message from your barber"}
		if w := a.watch; w != nil {
			ev.TicketID = w.ticketID
			ev.BarberID = w.barberID
		}
		a.deps.Bus.Publish(ctx, ev)
		return nil
	})
}

func (a *Agent) startup(ctx context.Context) {
	_, err := a.deps.Sessions.Load(ctx)
	switch {
	case err == nil:
		a.l.Infof(ctx, "Agent resuming persisted session")
	case stderrors.Is(err, errors.ErrSessionNotFound) && a.cfg.AutoJoin:
		a.goAsync(func() {
			if _, err := a.Join(ctx); err != nil {
				a.l.Errorf(ctx, "Agent auto join failed: %v", err)
			}
		})
	}

	a.syncWatch(ctx)
}

// syncWatch makes the running watch match the session: it starts, stops or
// retargets timers and subscriptions after anything that may have changed
// the session.
func (a *Agent) syncWatch(ctx context.Context) {
	var ticketID, barberID int64

	ss, err := a.deps.Sessions.Load(ctx)
	switch {
	case err == nil:
		ticketID, barberID = ss.TicketID, ss.BarberID
	case stderrors.Is(err, errors.ErrSessionNotFound):
		barberID = a.cfg.BrowseBarberID
	default:
		a.l.Errorf(ctx, "Agent.syncWatch: %v", err)
		return
	}

	if w := a.watch; w != nil && w.ticketID == ticketID {
		if w.barberID == barberID {
			return
		}

		// Transfer: same ticket, other barber.
		a.l.Infof(ctx, "Agent.syncWatch: following ticket_id=%d to barber_id=%d", ticketID, barberID)
		w.barberID = barberID
		if w.feed != nil {
			w.feed.Retarget(barberID)
		}
		a.deps.Scanner.Reset()
		a.refresh(ctx, "transfer")
		return
	}

	if a.watch != nil {
		a.stopWatch(ctx)
	}
	a.resetSessionState()

	if barberID == 0 {
		return
	}

	a.startWatch(ctx, ss, ticketID, barberID)
	a.refresh(ctx, "start")
}

func (a *Agent) startWatch(ctx context.Context, ss *models.Session, ticketID, barberID int64) {
	wctx, cancel := context.WithCancel(a.rootCtx)
	wctx = logger.WithFields(wctx, a.l, "ticket_id", ticketID, "barber_id", barberID)
	g, gctx := errgroup.WithContext(wctx)

	w := &watch{
		ticketID: ticketID,
		barberID: barberID,
		ctx:      gctx,
		cancel:   cancel,
		group:    g,
	}

	g.Go(func() error {
		a.every(gctx, a.cfg.SnapshotInterval, func(ctx context.Context) {
			a.refresh(ctx, "tick")
		})
		return nil
	})

	if ticketID != 0 {
		g.Go(func() error {
			a.every(gctx, a.cfg.OpportunityInterval, a.scan)
			return nil
		})

		if a.deps.Feed != nil {
			w.feed = NewChangeFeedListener(a.deps.Feed, a.cfg.SnapshotInterval, a.m, a.l)
			g.Go(func() error {
				return w.feed.Run(gctx, barberID, func(ch models.TicketChange) {
					a.l.Debugf(gctx, "Agent: feed %s ticket_id=%d", ch.Op, ch.TicketID)
					a.post(gctx, func(ctx context.Context) {
						a.refresh(ctx, "feed")
					})
				})
			})
		}

		if a.deps.Geo != nil && a.deps.Tracker != nil {
			if ss != nil && ss.StickyAlert == models.StickyAlertTooFar {
				a.deps.Tracker.RestoreWarning()
			}
			g.Go(func() error {
				a.watchPosition(gctx, w)
				return nil
			})
		}
	}

	a.watch = w
	a.l.Infof(ctx, "Agent watching barber_id=%d ticket_id=%d", barberID, ticketID)
}

func (a *Agent) stopWatch(ctx context.Context) {
	w := a.watch
	if w == nil {
		return
	}
	a.watch = nil

	w.cancel()
	a.goAsync(func() {
		if err := w.group.Wait(); err != nil {
			a.l.Warnf(ctx, "Agent.stopWatch: %v", err)
		}
	})

	a.l.Infof(ctx, "Agent stopped watching barber_id=%d ticket_id=%d", w.barberID, w.ticketID)
}

func (a *Agent) resetSessionState() {
	a.deps.Reconciler.Reset()
	a.deps.Scanner.Reset()
	if a.deps.Tracker != nil {
		a.deps.Tracker.Reset()
	}
}

func (a *Agent) refresh(ctx context.Context, reason string) {
	w := a.watch
	if w == nil {
		return
	}

	barberID := w.barberID
	a.l.Debugf(ctx, "Agent.refresh: barber_id=%d reason=%s", barberID, reason)

	a.goAsync(func() {
		snap := a.deps.Fetcher.Fetch(w.ctx, barberID)
		a.post(w.ctx, func(ctx context.Context) {
			a.applySnapshot(ctx, w, snap)
		})
	})
}

func (a *Agent) applySnapshot(ctx context.Context, w *watch, snap Snapshot) {
	if a.watch != w {
		return
	}

	dec := a.deps.Reconciler.Apply(ctx, snap)
	if dec.Probe {
		ss := dec.Session
		a.goAsync(func() {
			res := a.deps.Probe.Classify(w.ctx, ss)
			a.post(w.ctx, func(ctx context.Context) {
				a.deps.Reconciler.ResolveProbe(ctx, res)
				a.syncWatch(ctx)
			})
		})
	}

	a.syncWatch(ctx)
}

func (a *Agent) scan(ctx context.Context) {
	w := a.watch
	if w == nil || w.ticketID == 0 {
		return
	}

	ss := models.Session{TicketID: w.ticketID, BarberID: w.barberID}
	a.goAsync(func() {
		opp, err := a.deps.Scanner.Scan(w.ctx, ss)
		if err != nil {
			return
		}
		a.post(w.ctx, func(ctx context.Context) {
			if a.watch == w {
				a.deps.Scanner.Offer(ctx, opp)
			}
		})
	})
}

func (a *Agent) watchPosition(ctx context.Context, w *watch) {
	err := a.deps.Geo.Watch(ctx, func(f geofence.Fix) {
		a.post(ctx, func(ctx context.Context) {
			a.onFix(ctx, w, f)
		})
	})

	switch {
	case err == nil:
	case stderrors.Is(err, errors.ErrGeolocationUnavailable):
		a.l.Infof(ctx, "Agent: geofence disabled: %v", err)
	default:
		a.l.Warnf(ctx, "Agent: position source: %v", err)
	}
}

func (a *Agent) onFix(ctx context.Context, w *watch, f geofence.Fix) {
	if a.watch != w {
		return
	}

	var status models.TicketStatus
	if t, ok := a.deps.Reconciler.CurrentTicket(); ok {
		status = t.Status
	}

	r := a.deps.Tracker.Observe(f, status, w.ticketID != 0)

	a.deps.Bus.Publish(ctx, models.Event{
		Type:       models.EventGeoUpdate,
		TicketID:   w.ticketID,
		BarberID:   w.barberID,
		Distance:   r.Distance,
		ETAMinutes: r.ETAMinutes,
		Message:    string(r.Direction),
		At:         r.At,
	})

	if r.ArrivedNow {
		a.deps.Bus.Publish(ctx, models.Event{
			Type:     models.EventArrived,
			TicketID: w.ticketID,
			BarberID: w.barberID,
			Distance: r.Distance,
			Message:  "You're at the shop.",
		})
	}

	if r.DriftWarning {
		if err := a.deps.Sessions.SetStickyAlert(ctx, models.StickyAlertTooFar); err != nil {
			a.l.Warnf(ctx, "Agent.onFix: persist drift alert: %v", err)
		}
		a.deps.Bus.Publish(ctx, models.Event{
			Type:       models.EventDriftWarning,
			TicketID:   w.ticketID,
			BarberID:   w.barberID,
			Status:     status,
			Distance:   r.Distance,
			ETAMinutes: r.ETAMinutes,
			Message:    fmt.Sprintf("You're up next but %.0f m away (%d min walk). Please head back.", r.Distance, r.ETAMinutes),
		})
	}

	if r.DriftResolved {
		a.restoreTurnSticky(ctx)
		a.deps.Bus.Publish(ctx, models.Event{
			Type:     models.EventDriftResolved,
			TicketID: w.ticketID,
			BarberID: w.barberID,
			Distance: r.Distance,
		})
	}

	if r.Upload {
		ticketID, distance := w.ticketID, r.Distance
		a.goAsync(func() {
			if err := a.deps.API.UploadLocation(w.ctx, ticketID, distance); err != nil {
				a.m.IncUpload("error")
				a.l.Debugf(w.ctx, "Agent: location upload ticket_id=%d: %v", ticketID, err)
				return
			}
			a.m.IncUpload("ok")
		})
	}
}

// restoreTurnSticky puts the sticky alert back to yourTurn once a drift
// warning is over; the turn itself was already announced.
func (a *Agent) restoreTurnSticky(ctx context.Context) {
	ss, err := a.deps.Sessions.Load(ctx)
	if err != nil || ss.StickyAlert != models.StickyAlertTooFar {
		return
	}
	if err := a.deps.Sessions.SetStickyAlert(ctx, models.StickyAlertYourTurn); err != nil {
		a.l.Warnf(ctx, "Agent.restoreTurnSticky: %v", err)
	}
}

// every posts fn to the loop on each tick until ctx is done.
func (a *Agent) every(ctx context.Context, d time.Duration, fn func(context.Context)) {
	if d <= 0 {
		return
	}

	ticker := time.NewTicker(d)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.post(ctx, fn)
		}
	}
}

// post hands fn to the loop. It gives up when ctx is done or the agent stops.
func (a *Agent) post(ctx context.Context, fn func(context.Context)) bool {
	select {
	case a.tasks <- fn:
		return true
	case <-ctx.Done():
		return false
	case <-a.stopCh:
		return false
	}
}

// call runs fn on the loop and waits for its result.
func (a *Agent) call(ctx context.Context, fn func(context.Context) error) error {
	errCh := make(chan error, 1)

	if !a.post(ctx, func(ctx context.Context) { errCh <- fn(ctx) }) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrAgentStopped
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-a.done:
		return ErrAgentStopped
	}
}

func (a *Agent) goAsync(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}
