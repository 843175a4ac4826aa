package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/andrei1031/dash-q-v2-front-sub000/internal/models"
	"github.com/andrei1031/dash-q-v2-front-sub000/pkg/logger"
)

var turnVibration = []time.Duration{
	200 * time.Millisecond,
	100 * time.Millisecond,
	200 * time.Millisecond,
}

type effect struct {
	tone    bool
	vibrate bool
	title   bool
	// priority decides whether the title may replace one already blinking.
	priority int
}

var effects = map[models.EventType]effect{
	models.EventYourTurn:        {tone: true, vibrate: true, title: true, priority: 3},
	models.EventDriftWarning:    {tone: true, title: true, priority: 2},
	models.EventCancelled:       {tone: true, title: true, priority: 3},
	models.EventRemoved:         {tone: true, title: true, priority: 3},
	models.EventCompleted:       {title: true, priority: 2},
	models.EventSwitchFailed:    {title: true, priority: 2},
	models.EventPendingRejected: {title: true, priority: 2},
	models.EventTransferred:     {title: true, priority: 1},
	models.EventOpportunity:     {title: true, priority: 1},
	models.EventStorageDegraded: {title: true, priority: 1},
	models.EventChatUnread:      {title: true, priority: 1},
}

// Director maps session events to alerts. A sounding alert fires at most once
// per transition until Acknowledge or the transition is undone.
type Director struct {
	effects Effects
	title   *TitleBlinker
	l       logger.Logger

	mu            sync.Mutex
	fired         map[string]struct{}
	titleType     models.EventType
	titlePriority int
}

func NewDirector(fx Effects, title *TitleBlinker, l logger.Logger) *Director {
	return &Director{
		effects: fx,
		title:   title,
		l:       l,
		fired:   make(map[string]struct{}),
	}
}

// Handle is an event bus subscriber.
func (d *Director) Handle(ctx context.Context, ev models.Event) {
	switch ev.Type {
	case models.EventTurnReverted:
		d.mu.Lock()
		delete(d.fired, transitionKey(models.EventYourTurn, ev.TicketID))
		stop := d.titleType == models.EventYourTurn
		d.mu.Unlock()

		if stop {
			d.stopTitle()
		}
		return

	case models.EventDriftResolved:
		d.mu.Lock()
		delete(d.fired, transitionKey(models.EventDriftWarning, ev.TicketID))
		stop := d.titleType == models.EventDriftWarning
		d.mu.Unlock()

		if stop {
			d.stopTitle()
		}
		return

	case models.EventLeft, models.EventSwitched:
		d.Acknowledge(ctx)
		return
	}

	fx, ok := effects[ev.Type]
	if !ok {
		return
	}

	if fx.tone || fx.vibrate {
		key := transitionKey(ev.Type, ev.TicketID)

		d.mu.Lock()
		_, already := d.fired[key]
		d.fired[key] = struct{}{}
		d.mu.Unlock()

		if already {
			d.l.Debugf(ctx, "notify.Director: %s already alerted for ticket_id=%d", ev.Type, ev.TicketID)
			return
		}

		if fx.tone {
			d.effects.Tone(ctx)
		}
		if fx.vibrate {
			d.effects.Vibrate(ctx, turnVibration)
		}
	}

	if fx.title {
		d.showTitle(ev, fx.priority)
	}
}

// Acknowledge stops every active alert. It is safe to call repeatedly.
func (d *Director) Acknowledge(ctx context.Context) {
	d.mu.Lock()
	d.fired = make(map[string]struct{})
	d.mu.Unlock()

	d.stopTitle()
}

func (d *Director) showTitle(ev models.Event, priority int) {
	d.mu.Lock()
	if _, blinking := d.title.Active(); blinking && priority < d.titlePriority {
		d.mu.Unlock()
		return
	}
	d.titleType = ev.Type
	d.titlePriority = priority
	d.mu.Unlock()

	msg := ev.Message
	if msg == "" {
		msg = string(ev.Type)
	}
	d.title.Start(msg)
}

func (d *Director) stopTitle() {
	d.mu.Lock()
	d.titleType = ""
	d.titlePriority = 0
	d.mu.Unlock()

	d.title.Stop()
}

func transitionKey(t models.EventType, ticketID int64) string {
	return fmt.Sprintf("%s:%d", t, ticketID)
}
