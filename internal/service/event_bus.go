package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/andrei1031/dash-q-v2-front-sub000/internal/metrics"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/models"
	"github.com/andrei1031/dash-q-v2-front-sub000/pkg/logger"
)

type EventHandler func(ctx context.Context, ev models.Event)

// EventBus delivers engine events to subscribers synchronously, in
// subscription order, on the publisher's goroutine.
type EventBus interface {
	Subscribe(h EventHandler)
	Publish(ctx context.Context, ev models.Event)
}

type eventBus struct {
	mu       sync.RWMutex
	handlers []EventHandler
	m        *metrics.Metrics
	l        logger.Logger
	now      func() time.Time
}

func NewEventBus(m *metrics.Metrics, l logger.Logger) EventBus {
	return &eventBus{
		m:   m,
		l:   l,
		now: time.Now,
	}
}

func (b *eventBus) Subscribe(h EventHandler) {
	b.mu.Lock()
	b.handlers = append(b.handlers, h)
	b.mu.Unlock()
}

func (b *eventBus) Publish(ctx context.Context, ev models.Event) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.At.IsZero() {
		ev.At = b.now()
	}

	b.mu.RLock()
	handlers := make([]EventHandler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	b.m.IncEvent(string(ev.Type))
	b.l.Debugf(ctx, "eventBus.Publish: type=%s ticket_id=%d barber_id=%d", ev.Type, ev.TicketID, ev.BarberID)

	for _, h := range handlers {
		h(ctx, ev)
	}
}
