package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/andrei1031/dash-q-v2-front-sub000/internal/errors"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/models"
	pkgErrors "github.com/andrei1031/dash-q-v2-front-sub000/pkg/errors"
	"github.com/andrei1031/dash-q-v2-front-sub000/pkg/logger"
	"github.com/andrei1031/dash-q-v2-front-sub000/pkg/queueapi"
)

// QueueService performs the customer's own queue actions and keeps the
// session in step with them.
type QueueService interface {
	Join(ctx context.Context, req queueapi.JoinRequest) (*models.Ticket, error)
	Leave(ctx context.Context) error
	Confirm(ctx context.Context, ticketID int64) error
}

type queueService struct {
	api      queueapi.Client
	sessions SessionService
	bus      EventBus
	l        logger.Logger
}

func NewQueueService(api queueapi.Client, sessions SessionService, bus EventBus, l logger.Logger) QueueService {
	return &queueService{
		api:      api,
		sessions: sessions,
		bus:      bus,
		l:        l,
	}
}

func (s *queueService) Join(ctx context.Context, req queueapi.JoinRequest) (*models.Ticket, error) {
	if ss, err := s.sessions.Load(ctx); err == nil {
		s.l.Warnf(ctx, "queueService.Join: session already holds ticket_id=%d", ss.TicketID)
		return nil, fmt.Errorf("%w: ticket %d", errors.ErrConflict, ss.TicketID)
	}

	recovered := false

	t, err := s.api.JoinQueue(ctx, req)
	if err != nil {
		var conflict *queueapi.ConflictError
		if !stderrors.As(err, &conflict) || conflict.Existing == nil {
			s.l.Errorf(ctx, "queueService.Join: %v", err)
			return nil, err
		}

		// The server already holds an active ticket for us; adopt it. It may
		// not be the barber or service that was just picked.
		t = conflict.Existing
		recovered = true

		if t.BarberID != req.BarberID || (req.ServiceID != 0 && t.ServiceID != req.ServiceID) {
			s.l.Warnf(ctx, "queueService.Join: recovered ticket_id=%d is with barber_id=%d service_id=%d, requested barber_id=%d service_id=%d",
				t.ID, t.BarberID, t.ServiceID, req.BarberID, req.ServiceID)
		}
	}

	if _, err := s.sessions.Save(ctx, t.ID, t.BarberID); err != nil {
		s.l.Errorf(ctx, "queueService.Join: %v", err)
		return nil, err
	}

	ev := models.Event{
		Type:     models.EventJoined,
		TicketID: t.ID,
		BarberID: t.BarberID,
		Status:   t.Status,
		Message:  "You joined the queue.",
	}
	if recovered {
		ev.Message = "You already had a place in line; we picked it back up."
	}
	s.bus.Publish(ctx, ev)

	s.l.Infof(ctx, "Joined queue - ticket_id: %d, barber_id: %d, recovered: %v", t.ID, t.BarberID, recovered)
	return t, nil
}

func (s *queueService) Leave(ctx context.Context) error {
	ss, err := s.sessions.Load(ctx)
	if err != nil {
		if stderrors.Is(err, errors.ErrSessionNotFound) {
			return errors.ErrNoActiveTicket
		}
		return err
	}

	if err := s.leaveTicket(ctx, ss.TicketID); err != nil {
		return err
	}

	if err := s.sessions.Clear(ctx); err != nil {
		s.l.Errorf(ctx, "queueService.Leave: %v", err)
		return err
	}

	s.bus.Publish(ctx, models.Event{
		Type:     models.EventLeft,
		TicketID: ss.TicketID,
		BarberID: ss.BarberID,
		Message:  "You left the queue.",
	})

	return nil
}

// leaveTicket deletes the ticket on the server. A ticket the server no
// longer knows counts as left.
func (s *queueService) leaveTicket(ctx context.Context, ticketID int64) error {
	err := s.api.LeaveQueue(ctx, ticketID)
	if err == nil || pkgErrors.IsStatus(err, http.StatusNotFound) {
		return nil
	}

	s.l.Errorf(ctx, "queueService.leaveTicket: ticket_id=%d: %v", ticketID, err)
	return err
}

func (s *queueService) Confirm(ctx context.Context, ticketID int64) error {
	if err := s.api.ConfirmAttendance(ctx, ticketID); err != nil {
		s.l.Errorf(ctx, "queueService.Confirm: ticket_id=%d: %v", ticketID, err)
		return err
	}

	s.l.Infof(ctx, "Attendance confirmed - ticket_id: %d", ticketID)
	return nil
}
