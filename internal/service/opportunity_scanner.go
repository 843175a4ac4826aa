package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/andrei1031/dash-q-v2-front-sub000/internal/errors"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/models"
	pkgErrors "github.com/andrei1031/dash-q-v2-front-sub000/pkg/errors"
	"github.com/andrei1031/dash-q-v2-front-sub000/pkg/logger"
	"github.com/andrei1031/dash-q-v2-front-sub000/pkg/queueapi"
)

// PartialSwitchError means the old ticket was given up but the new barber
// could not be joined; the customer holds no ticket and must rejoin by hand.
type PartialSwitchError struct {
	FromTicketID int64
	ToBarberID   int64
	Err          error
}

func (e *PartialSwitchError) Error() string {
	return fmt.Sprintf("left ticket %d but could not join barber %d: %v", e.FromTicketID, e.ToBarberID, e.Err)
}

func (e *PartialSwitchError) Unwrap() []error {
	return []error{errors.ErrCompoundPartialFailure, e.Err}
}

// OpportunityScanner looks for an idle barber other than ours and performs
// the leave-then-join switch when asked.
type OpportunityScanner interface {
	Scan(ctx context.Context, ss models.Session) (*models.Opportunity, error)
	// Offer publishes opp unless the same barber was offered last time. A nil
	// opp forgets the last offer.
	Offer(ctx context.Context, opp *models.Opportunity) bool
	Switch(ctx context.Context, req queueapi.JoinRequest) (*models.Ticket, error)
	Reset()
}

type opportunityScanner struct {
	api      queueapi.Client
	sessions SessionService
	queue    QueueService
	bus      EventBus
	l        logger.Logger

	mu          sync.Mutex
	lastOffered int64
}

func NewOpportunityScanner(
	api queueapi.Client,
	sessions SessionService,
	queue QueueService,
	bus EventBus,
	l logger.Logger,
) OpportunityScanner {
	return &opportunityScanner{
		api:      api,
		sessions: sessions,
		queue:    queue,
		bus:      bus,
		l:        l,
	}
}

func (s *opportunityScanner) Scan(ctx context.Context, ss models.Session) (*models.Opportunity, error) {
	barbers, err := s.api.ListBarbers(ctx)
	if err != nil {
		s.l.Warnf(ctx, "opportunityScanner.Scan: %v", err)
		return nil, err
	}

	for _, b := range barbers {
		if b.ID == ss.BarberID || !b.IsIdle() {
			continue
		}
		return &models.Opportunity{Barber: b, FromBarberID: ss.BarberID}, nil
	}

	return nil, nil
}

func (s *opportunityScanner) Offer(ctx context.Context, opp *models.Opportunity) bool {
	s.mu.Lock()
	if opp == nil {
		s.lastOffered = 0
		s.mu.Unlock()
		return false
	}
	if opp.Barber.ID == s.lastOffered {
		s.mu.Unlock()
		return false
	}
	s.lastOffered = opp.Barber.ID
	s.mu.Unlock()

	b := opp.Barber
	s.bus.Publish(ctx, models.Event{
		Type:         models.EventOpportunity,
		BarberID:     b.ID,
		FromBarberID: opp.FromBarberID,
		Barber:       &b,
		Message:      fmt.Sprintf("%s is free right now. Switch for a faster seat?", b.Name),
	})

	return true
}

func (s *opportunityScanner) Switch(ctx context.Context, req queueapi.JoinRequest) (*models.Ticket, error) {
	ss, err := s.sessions.Load(ctx)
	if err != nil {
		if stderrors.Is(err, errors.ErrSessionNotFound) {
			return nil, errors.ErrNoActiveTicket
		}
		return nil, err
	}

	if ss.BarberID == req.BarberID {
		return nil, errors.ErrNoOpportunity
	}

	if err := s.api.LeaveQueue(ctx, ss.TicketID); err != nil && !pkgErrors.IsStatus(err, http.StatusNotFound) {
		s.l.Errorf(ctx, "opportunityScanner.Switch: leave ticket_id=%d: %v", ss.TicketID, err)
		return nil, fmt.Errorf("leave ticket %d: %w", ss.TicketID, err)
	}

	if err := s.sessions.Clear(ctx); err != nil {
		s.l.Errorf(ctx, "opportunityScanner.Switch: %v", err)
	}

	t, err := s.queue.Join(ctx, req)
	if err != nil {
		perr := &PartialSwitchError{
			FromTicketID: ss.TicketID,
			ToBarberID:   req.BarberID,
			Err:          err,
		}
		s.l.Errorf(ctx, "opportunityScanner.Switch: %v", perr)

		s.bus.Publish(ctx, models.Event{
			Type:         models.EventSwitchFailed,
			TicketID:     ss.TicketID,
			BarberID:     req.BarberID,
			FromBarberID: ss.BarberID,
			Message:      "You left your old spot but joining the new barber failed. Please rejoin the queue.",
		})

		return nil, perr
	}

	s.Reset()

	s.bus.Publish(ctx, models.Event{
		Type:         models.EventSwitched,
		TicketID:     t.ID,
		BarberID:     t.BarberID,
		FromBarberID: ss.BarberID,
		Status:       t.Status,
		Message:      "You switched to a faster barber.",
	})

	return t, nil
}

func (s *opportunityScanner) Reset() {
	s.mu.Lock()
	s.lastOffered = 0
	s.mu.Unlock()
}
