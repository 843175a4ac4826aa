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
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/repository/memory"
	repo "github.com/andrei1031/dash-q-v2-front-sub000/internal/repository/redis"
	"github.com/andrei1031/dash-q-v2-front-sub000/pkg/logger"
)

const storageDegradedMessage = "Your place in line is only kept while the agent runs; restarting it will lose the session."

// SessionService owns the persisted "my active ticket" record. Every write
// replaces the whole record.
type SessionService interface {
	Save(ctx context.Context, ticketID, barberID int64) (*models.Session, error)
	// Load returns errors.ErrSessionNotFound when there is no active session.
	Load(ctx context.Context) (*models.Session, error)
	Clear(ctx context.Context) error
	SetStickyAlert(ctx context.Context, kind models.StickyAlert) error
	ClearStickyAlert(ctx context.Context) error
	SetBarber(ctx context.Context, barberID int64) error
	SetTargetFinish(ctx context.Context, at *time.Time) error
	SetUnreadChat(ctx context.Context, unread bool) error
	Degraded() bool
}

type sessionService struct {
	mu       sync.Mutex
	repo     repo.SessionRepository
	fallback *memory.SessionRepository
	degraded bool
	last     *models.Session

	bus EventBus
	m   *metrics.Metrics
	l   logger.Logger
}

func NewSessionService(
	repo repo.SessionRepository,
	bus EventBus,
	m *metrics.Metrics,
	l logger.Logger,
) SessionService {
	return &sessionService{
		repo:     repo,
		fallback: memory.NewSessionRepository(),
		bus:      bus,
		m:        m,
		l:        l,
	}
}

func (s *sessionService) Save(ctx context.Context, ticketID, barberID int64) (*models.Session, error) {
	ss := &models.Session{
		TicketID: ticketID,
		BarberID: barberID,
	}

	if err := s.put(ctx, ss); err != nil {
		s.l.Errorf(ctx, "sessionService.Save: %v", err)
		return nil, err
	}

	s.l.Infof(ctx, "Session saved - ticket_id: %d, barber_id: %d", ticketID, barberID)
	return ss, nil
}

func (s *sessionService) Load(ctx context.Context) (*models.Session, error) {
	var degradedEv *models.Event

	s.mu.Lock()
	ss, err := s.getLocked(ctx, &degradedEv)
	s.mu.Unlock()

	s.notifyDegraded(ctx, degradedEv)

	if err != nil {
		return nil, err
	}

	return ss, nil
}

func (s *sessionService) Clear(ctx context.Context) error {
	var degradedEv *models.Event

	s.mu.Lock()
	err := s.store().Delete(ctx)
	if err != nil && stderrors.Is(err, errors.ErrStorageUnavailable) {
		degradedEv = s.degradeLocked(ctx, err)
		err = s.fallback.Delete(ctx)
	}
	if err == nil {
		s.last = nil
	}
	s.mu.Unlock()

	s.notifyDegraded(ctx, degradedEv)

	if err != nil {
		s.l.Errorf(ctx, "sessionService.Clear: %v", err)
		return err
	}

	s.l.Infof(ctx, "Session cleared")
	return nil
}

func (s *sessionService) SetStickyAlert(ctx context.Context, kind models.StickyAlert) error {
	return s.update(ctx, "SetStickyAlert", func(ss *models.Session) {
		ss.StickyAlert = kind
	})
}

func (s *sessionService) ClearStickyAlert(ctx context.Context) error {
	return s.SetStickyAlert(ctx, models.StickyAlertNone)
}

func (s *sessionService) SetBarber(ctx context.Context, barberID int64) error {
	return s.update(ctx, "SetBarber", func(ss *models.Session) {
		ss.BarberID = barberID
	})
}

func (s *sessionService) SetTargetFinish(ctx context.Context, at *time.Time) error {
	return s.update(ctx, "SetTargetFinish", func(ss *models.Session) {
		if at == nil {
			ss.TargetFinishAt = nil
			return
		}
		t := *at
		ss.TargetFinishAt = &t
	})
}

func (s *sessionService) SetUnreadChat(ctx context.Context, unread bool) error {
	return s.update(ctx, "SetUnreadChat", func(ss *models.Session) {
		ss.UnreadChat = unread
	})
}

func (s *sessionService) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// update holds s.mu from read to write so a concurrent Clear either runs
// first and the update finds no session, or runs after and wins.
func (s *sessionService) update(ctx context.Context, op string, fn func(ss *models.Session)) error {
	var degradedEv *models.Event

	s.mu.Lock()
	ss, err := s.getLocked(ctx, &degradedEv)
	if err == nil {
		fn(ss)
		err = s.putLocked(ctx, ss, &degradedEv)
	}
	s.mu.Unlock()

	s.notifyDegraded(ctx, degradedEv)

	if err != nil {
		if !stderrors.Is(err, errors.ErrSessionNotFound) {
			s.l.Errorf(ctx, "sessionService.%s: %v", op, err)
		}
		return err
	}

	return nil
}

func (s *sessionService) put(ctx context.Context, ss *models.Session) error {
	var degradedEv *models.Event

	s.mu.Lock()
	err := s.putLocked(ctx, ss, &degradedEv)
	s.mu.Unlock()

	s.notifyDegraded(ctx, degradedEv)
	return err
}

func (s *sessionService) getLocked(ctx context.Context, degradedEv **models.Event) (*models.Session, error) {
	ss, err := s.store().Get(ctx)
	if err != nil && stderrors.Is(err, errors.ErrStorageUnavailable) {
		if ev := s.degradeLocked(ctx, err); ev != nil {
			*degradedEv = ev
		}
		ss, err = s.fallback.Get(ctx)
	}

	switch {
	case err == nil:
		cp := ss.Clone()
		s.last = &cp
	case stderrors.Is(err, errors.ErrSessionNotFound):
		s.last = nil
	}

	return ss, err
}

func (s *sessionService) putLocked(ctx context.Context, ss *models.Session, degradedEv **models.Event) error {
	err := s.store().Put(ctx, ss)
	if err != nil && stderrors.Is(err, errors.ErrStorageUnavailable) {
		if ev := s.degradeLocked(ctx, err); ev != nil {
			*degradedEv = ev
		}
		err = s.fallback.Put(ctx, ss)
	}
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}

	cp := ss.Clone()
	s.last = &cp
	return nil
}

func (s *sessionService) store() repo.SessionRepository {
	if s.degraded {
		return s.fallback
	}
	return s.repo
}

// degradeLocked switches to the in-memory store for the rest of the process,
// seeding it with the last record we know was written. It returns the
// warning to publish once s.mu is released, or nil if already degraded.
func (s *sessionService) degradeLocked(ctx context.Context, cause error) *models.Event {
	if s.degraded {
		return nil
	}

	s.degraded = true
	if s.last != nil {
		_ = s.fallback.Put(ctx, s.last)
	}

	s.m.StorageDegraded.Set(1)
	s.l.Warnf(ctx, "sessionService: session storage unavailable, keeping session in memory: %v", cause)

	ev := &models.Event{
		Type:    models.EventStorageDegraded,
		Message: storageDegradedMessage,
	}
	if s.last != nil {
		ev.TicketID = s.last.TicketID
		ev.BarberID = s.last.BarberID
	}

	return ev
}

func (s *sessionService) notifyDegraded(ctx context.Context, ev *models.Event) {
	if ev != nil {
		s.bus.Publish(ctx, *ev)
	}
}
