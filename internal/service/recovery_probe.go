package service

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/andrei1031/dash-q-v2-front-sub000/internal/errors"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/metrics"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/models"
	"github.com/andrei1031/dash-q-v2-front-sub000/pkg/logger"
	"github.com/andrei1031/dash-q-v2-front-sub000/pkg/queueapi"
)

type ProbeOutcome string

const (
	// ProbeLag means the ticket is still active; the list view was behind.
	ProbeLag        ProbeOutcome = "lag"
	ProbeCompleted  ProbeOutcome = "completed"
	ProbeCancelled  ProbeOutcome = "cancelled"
	ProbeRemoved    ProbeOutcome = "removed"
	ProbeUnresolved ProbeOutcome = "unresolved"
	// ProbeSkipped means the outcome was already applied, or the session no
	// longer points at the probed ticket.
	ProbeSkipped ProbeOutcome = "skipped"
)

const (
	completedMessage = "Your cut is done. Thanks for visiting, tell us how it went!"
	cancelledMessage = "Your ticket was cancelled."
	removedMessage   = "Your ticket is no longer in the queue. Please rejoin if this was unexpected."
)

func (o ProbeOutcome) IsTerminal() bool {
	return o == ProbeCompleted || o == ProbeCancelled || o == ProbeRemoved
}

// ProbeResult is what the lookups found. Ticket is set for ProbeLag.
type ProbeResult struct {
	TicketID int64
	Outcome  ProbeOutcome
	Ticket   *models.Ticket
}

// RecoveryProbe disambiguates a ticket that vanished from the list view.
// Classify only talks to the server and may run off the agent loop; Settle
// applies a terminal outcome at most once per ticket.
type RecoveryProbe interface {
	Classify(ctx context.Context, ss models.Session) ProbeResult
	Settle(ctx context.Context, res ProbeResult) ProbeOutcome
}

type recoveryProbe struct {
	api        queueapi.Client
	sessions   SessionService
	bus        EventBus
	customerID string
	m          *metrics.Metrics
	l          logger.Logger

	mu      sync.Mutex
	handled map[int64]ProbeOutcome
}

func NewRecoveryProbe(
	api queueapi.Client,
	sessions SessionService,
	bus EventBus,
	customerID string,
	m *metrics.Metrics,
	l logger.Logger,
) RecoveryProbe {
	return &recoveryProbe{
		api:        api,
		sessions:   sessions,
		bus:        bus,
		customerID: customerID,
		m:          m,
		l:          l,
		handled:    make(map[int64]ProbeOutcome),
	}
}

func (p *recoveryProbe) Classify(ctx context.Context, ss models.Session) ProbeResult {
	res := ProbeResult{TicketID: ss.TicketID}

	t, err := p.api.GetTicket(ctx, ss.TicketID)
	if err != nil && !stderrors.Is(err, errors.ErrTicketNotFound) {
		p.l.Warnf(ctx, "recoveryProbe.Classify: point lookup ticket_id=%d: %v", ss.TicketID, err)
		res.Outcome = ProbeUnresolved
		p.m.IncProbe(string(res.Outcome))
		return res
	}

	if t != nil && t.IsActive() {
		res.Outcome = ProbeLag
		res.Ticket = t
		p.m.IncProbe(string(res.Outcome))
		return res
	}

	var status *models.TicketStatus
	if p.customerID != "" {
		status, err = p.api.MissedEvent(ctx, p.customerID)
		if err != nil {
			p.l.Warnf(ctx, "recoveryProbe.Classify: missed event customer_id=%s: %v", p.customerID, err)
			res.Outcome = ProbeUnresolved
			p.m.IncProbe(string(res.Outcome))
			return res
		}
	}

	if status == nil && t != nil && t.IsTerminal() {
		st := t.Status
		status = &st
	}

	switch {
	case status != nil && *status == models.TicketStatusDone:
		res.Outcome = ProbeCompleted
	case status != nil && *status == models.TicketStatusCancelled:
		res.Outcome = ProbeCancelled
	default:
		res.Outcome = ProbeRemoved
	}

	p.m.IncProbe(string(res.Outcome))
	p.l.Infof(ctx, "recoveryProbe.Classify: ticket_id=%d classified as %s", ss.TicketID, res.Outcome)

	return res
}

func (p *recoveryProbe) Settle(ctx context.Context, res ProbeResult) ProbeOutcome {
	if !res.Outcome.IsTerminal() {
		return res.Outcome
	}

	p.mu.Lock()
	if _, done := p.handled[res.TicketID]; done {
		p.mu.Unlock()
		return ProbeSkipped
	}

	ss, err := p.sessions.Load(ctx)
	if err != nil || ss.TicketID != res.TicketID {
		p.mu.Unlock()
		p.l.Debugf(ctx, "recoveryProbe.Settle: session no longer holds ticket_id=%d", res.TicketID)
		return ProbeSkipped
	}

	p.handled[res.TicketID] = res.Outcome

	// Cleared before publishing so a handler re-entering the probe sees no session.
	if err := p.sessions.Clear(ctx); err != nil {
		p.l.Errorf(ctx, "recoveryProbe.Settle: clear session: %v", err)
	}
	p.mu.Unlock()

	ev := models.Event{
		TicketID: ss.TicketID,
		BarberID: ss.BarberID,
	}

	switch res.Outcome {
	case ProbeCompleted:
		ev.Type = models.EventCompleted
		ev.Status = models.TicketStatusDone
		ev.Message = completedMessage
	case ProbeCancelled:
		ev.Type = models.EventCancelled
		ev.Status = models.TicketStatusCancelled
		ev.Message = cancelledMessage
	default:
		ev.Type = models.EventRemoved
		ev.Message = removedMessage
	}

	p.bus.Publish(ctx, ev)

	return res.Outcome
}
