package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/andrei1031/dash-q-v2-front-sub000/internal/errors"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/metrics"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/models"
	"github.com/andrei1031/dash-q-v2-front-sub000/pkg/logger"
)

const (
	yourTurnMessage     = "It's your turn! Please head to the chair."
	upNextMessage       = "You're up next! Confirm you're on your way."
	turnRevertedMessage = "The barber moved you back to waiting."
	pendingRejected     = "We couldn't confirm your attendance. Please confirm again."

	// pendingDisagreements is how many newer snapshots may show the ticket
	// unconfirmed before an optimistic confirmation is dropped.
	pendingDisagreements = 2
)

// Decision tells the caller what to do after a snapshot was applied.
type Decision struct {
	// Probe is set when the session's ticket went missing too many times in a
	// row; the caller must run RecoveryProbe.Classify and hand the result to
	// ResolveProbe.
	Probe   bool
	Session models.Session
}

// Reconciler folds snapshots into the session. Apply and ResolveProbe are
// only called from the agent loop; the accessors may be read from anywhere.
type Reconciler interface {
	Apply(ctx context.Context, snap Snapshot) Decision
	ResolveProbe(ctx context.Context, res ProbeResult) ProbeOutcome
	// CurrentTicket returns the last known state of our ticket with any
	// pending confirmation overlaid.
	CurrentTicket() (models.Ticket, bool)
	BeginConfirm(ctx context.Context, ticketID int64) error
	RejectConfirm(ctx context.Context, cause error)
	Misses() int
	Reset()
}

type pendingConfirm struct {
	ticketID      int64
	since         time.Time
	disagreements int
}

type reconciler struct {
	sessions  SessionService
	probe     RecoveryProbe
	bus       EventBus
	threshold int
	m         *metrics.Metrics
	l         logger.Logger
	now       func() time.Time

	mu      sync.RWMutex
	current *models.Ticket
	misses  int
	probing bool
	pending *pendingConfirm
}

func NewReconciler(
	sessions SessionService,
	probe RecoveryProbe,
	bus EventBus,
	threshold int,
	m *metrics.Metrics,
	l logger.Logger,
) Reconciler {
	if threshold < 1 {
		threshold = 2
	}

	return &reconciler{
		sessions:  sessions,
		probe:     probe,
		bus:       bus,
		threshold: threshold,
		m:         m,
		l:         l,
		now:       time.Now,
	}
}

func (r *reconciler) Apply(ctx context.Context, snap Snapshot) Decision {
	// A failed or out-of-order fetch holds the last known state; it must not
	// count as a miss either.
	if !snap.Fresh() {
		r.l.Debugf(ctx, "reconciler.Apply: ignoring stale=%v superseded=%v snapshot for barber_id=%d",
			snap.Stale, snap.Superseded, snap.BarberID)
		return Decision{}
	}

	ss, err := r.sessions.Load(ctx)
	if err != nil {
		if !stderrors.Is(err, errors.ErrSessionNotFound) {
			r.l.Errorf(ctx, "reconciler.Apply: %v", err)
			return Decision{}
		}
		r.browse(ctx, snap)
		return Decision{}
	}

	if snap.BarberID != ss.BarberID {
		r.l.Debugf(ctx, "reconciler.Apply: snapshot for barber_id=%d, session is with barber_id=%d",
			snap.BarberID, ss.BarberID)
		return Decision{}
	}

	t, pos := snap.Find(ss.TicketID)
	if t == nil {
		return r.missing(ctx, ss)
	}

	r.mu.Lock()
	r.misses = 0
	r.mu.Unlock()

	if t.BarberID != 0 && t.BarberID != ss.BarberID {
		r.transfer(ctx, ss, t)
		return Decision{}
	}

	r.applyTicket(ctx, ss, t, snap.RequestedAt)
	r.estimate(ctx, ss, snap.Tickets[:pos])

	return Decision{}
}

func (r *reconciler) missing(ctx context.Context, ss *models.Session) Decision {
	r.mu.Lock()
	r.misses++
	misses := r.misses
	probing := r.probing
	if misses >= r.threshold && !probing {
		r.probing = true
	}
	r.mu.Unlock()

	if misses < r.threshold {
		r.l.Infof(ctx, "reconciler.Apply: ticket_id=%d missing from snapshot (%d/%d), waiting for the next poll",
			ss.TicketID, misses, r.threshold)
		return Decision{}
	}

	if probing {
		return Decision{}
	}

	r.l.Warnf(ctx, "reconciler.Apply: ticket_id=%d missing from %d snapshots, probing",
		ss.TicketID, misses)

	return Decision{Probe: true, Session: *ss}
}

func (r *reconciler) ResolveProbe(ctx context.Context, res ProbeResult) ProbeOutcome {
	r.mu.Lock()
	r.probing = false
	r.mu.Unlock()

	switch res.Outcome {
	case ProbeUnresolved:
		// Keep the miss count so the next fresh snapshot probes again.
		return res.Outcome

	case ProbeLag:
		r.mu.Lock()
		r.misses = 0
		r.mu.Unlock()

		ss, err := r.sessions.Load(ctx)
		if err != nil || ss.TicketID != res.TicketID || res.Ticket == nil {
			return res.Outcome
		}

		if res.Ticket.BarberID != ss.BarberID {
			r.transfer(ctx, ss, res.Ticket)
			return res.Outcome
		}

		r.applyTicket(ctx, ss, res.Ticket, time.Time{})
		return res.Outcome
	}

	outcome := r.probe.Settle(ctx, res)
	if outcome.IsTerminal() {
		r.Reset()
	}

	return outcome
}

func (r *reconciler) transfer(ctx context.Context, ss *models.Session, t *models.Ticket) {
	from := ss.BarberID

	if err := r.sessions.SetBarber(ctx, t.BarberID); err != nil {
		r.l.Errorf(ctx, "reconciler.transfer: %v", err)
		return
	}
	// The old target was computed against another queue.
	if err := r.sessions.SetTargetFinish(ctx, nil); err != nil {
		r.l.Warnf(ctx, "reconciler.transfer: reset target: %v", err)
	}

	r.mu.Lock()
	cp := *t
	r.current = &cp
	r.misses = 0
	r.mu.Unlock()

	r.l.Infof(ctx, "reconciler.transfer: ticket_id=%d moved from barber_id=%d to barber_id=%d",
		t.ID, from, t.BarberID)

	r.bus.Publish(ctx, models.Event{
		Type:         models.EventTransferred,
		TicketID:     t.ID,
		BarberID:     t.BarberID,
		FromBarberID: from,
		Status:       t.Status,
		Message:      "You were moved to another barber's queue.",
	})
}

func (r *reconciler) applyTicket(ctx context.Context, ss *models.Session, t *models.Ticket, requestedAt time.Time) {
	r.mu.Lock()
	prev := r.current
	cp := *t
	r.current = &cp
	rejected := r.reconcilePendingLocked(t, requestedAt)
	r.mu.Unlock()

	if rejected {
		r.publishPendingRejected(ctx, t, nil)
	}

	if prev == nil || prev.Status != t.Status {
		ev := models.Event{
			Type:     models.EventStatusChanged,
			TicketID: t.ID,
			BarberID: t.BarberID,
			Status:   t.Status,
		}
		if prev != nil {
			ev.Message = fmt.Sprintf("%s -> %s", prev.Status, t.Status)
		}
		r.bus.Publish(ctx, ev)
	}

	switch {
	case t.Status == models.TicketStatusWaiting:
		if ss.StickyAlert == models.StickyAlertNone {
			return
		}
		if err := r.sessions.ClearStickyAlert(ctx); err != nil {
			r.l.Errorf(ctx, "reconciler.applyTicket: clear sticky alert: %v", err)
			return
		}
		ss.StickyAlert = models.StickyAlertNone

		r.bus.Publish(ctx, models.Event{
			Type:     models.EventTurnReverted,
			TicketID: t.ID,
			BarberID: t.BarberID,
			Status:   t.Status,
			Message:  turnRevertedMessage,
		})

	case t.Status == models.TicketStatusInProgress || t.NeedsConfirmation():
		// tooFar replaces the Up Next announcement, so it only suppresses
		// the alert until the chair is actually ours.
		announced := ss.StickyAlert == models.StickyAlertYourTurn ||
			(ss.StickyAlert == models.StickyAlertTooFar && t.Status != models.TicketStatusInProgress)
		if announced {
			return
		}
		if err := r.sessions.SetStickyAlert(ctx, models.StickyAlertYourTurn); err != nil {
			r.l.Errorf(ctx, "reconciler.applyTicket: persist sticky alert: %v", err)
			return
		}
		ss.StickyAlert = models.StickyAlertYourTurn

		msg := upNextMessage
		if t.Status == models.TicketStatusInProgress {
			msg = yourTurnMessage
		}

		r.bus.Publish(ctx, models.Event{
			Type:     models.EventYourTurn,
			TicketID: t.ID,
			BarberID: t.BarberID,
			Status:   t.Status,
			Message:  msg,
		})
	}
}

// reconcilePendingLocked folds a snapshot into the optimistic confirmation
// and reports whether it has to be rejected. Must hold r.mu.
func (r *reconciler) reconcilePendingLocked(t *models.Ticket, requestedAt time.Time) bool {
	p := r.pending
	if p == nil || p.ticketID != t.ID {
		return false
	}

	if t.Confirmed || t.Status != models.TicketStatusUpNext {
		r.pending = nil
		return false
	}

	// Only snapshots requested after the confirmation was sent can disagree.
	if requestedAt.IsZero() || !requestedAt.After(p.since) {
		return false
	}

	p.disagreements++
	if p.disagreements < pendingDisagreements {
		return false
	}

	r.pending = nil
	return true
}

func (r *reconciler) publishPendingRejected(ctx context.Context, t *models.Ticket, cause error) {
	r.l.Warnf(ctx, "reconciler: optimistic confirmation of ticket_id=%d rejected: %v", t.ID, cause)

	r.bus.Publish(ctx, models.Event{
		Type:     models.EventPendingRejected,
		TicketID: t.ID,
		BarberID: t.BarberID,
		Status:   t.Status,
		Message:  pendingRejected,
	})
}

func (r *reconciler) estimate(ctx context.Context, ss *models.Session, ahead []models.Ticket) {
	now := r.now()
	candidate := now.Add(time.Duration(EstimateWait(ahead, now)) * time.Minute)
	target := StickyTarget(ss.TargetFinishAt, candidate, now)

	r.m.TicketsAhead.Set(float64(len(ahead)))

	if ss.TargetFinishAt != nil && ss.TargetFinishAt.Equal(target) {
		return
	}

	if err := r.sessions.SetTargetFinish(ctx, &target); err != nil {
		r.l.Errorf(ctx, "reconciler.estimate: %v", err)
		return
	}
	ss.TargetFinishAt = &target

	r.bus.Publish(ctx, models.Event{
		Type:     models.EventEstimate,
		TicketID: ss.TicketID,
		BarberID: ss.BarberID,
		FinishAt: &target,
	})
}

// browse recomputes the estimate for a customer who has not joined yet: the
// whole queue is ahead and nothing is sticky.
func (r *reconciler) browse(ctx context.Context, snap Snapshot) {
	now := r.now()
	target := now.Add(time.Duration(EstimateWait(snap.Tickets, now)) * time.Minute)

	r.m.TicketsAhead.Set(float64(len(snap.Tickets)))

	r.bus.Publish(ctx, models.Event{
		Type:     models.EventEstimate,
		BarberID: snap.BarberID,
		FinishAt: &target,
	})
}

func (r *reconciler) CurrentTicket() (models.Ticket, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.current == nil {
		return models.Ticket{}, false
	}

	t := *r.current
	if r.pending != nil && r.pending.ticketID == t.ID {
		t.Confirmed = true
	}

	return t, true
}

func (r *reconciler) BeginConfirm(ctx context.Context, ticketID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil || r.current.ID != ticketID || !r.current.NeedsConfirmation() {
		return errors.ErrConfirmationNotExpected
	}

	r.pending = &pendingConfirm{
		ticketID: ticketID,
		since:    r.now(),
	}

	return nil
}

func (r *reconciler) RejectConfirm(ctx context.Context, cause error) {
	r.mu.Lock()
	p := r.pending
	r.pending = nil
	var t models.Ticket
	if r.current != nil {
		t = *r.current
	}
	r.mu.Unlock()

	if p == nil || t.ID != p.ticketID {
		return
	}

	r.publishPendingRejected(ctx, &t, cause)
}

func (r *reconciler) Misses() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.misses
}

func (r *reconciler) Reset() {
	r.mu.Lock()
	r.current = nil
	r.misses = 0
	r.probing = false
	r.pending = nil
	r.mu.Unlock()
}
