package service

import (
	"context"
	"time"

	"github.com/andrei1031/dash-q-v2-front-sub000/internal/metrics"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/models"
	"github.com/andrei1031/dash-q-v2-front-sub000/pkg/logger"
)

// FeedSubscription is one live subscription to a barber's ticket changes.
type FeedSubscription interface {
	Changes() <-chan models.TicketChange
	// Done is closed once the subscription is lost or closed; Err then
	// reports why.
	Done() <-chan struct{}
	Err() error
	Close() error
}

// ChangeFeed is a push transport for ticket row changes.
type ChangeFeed interface {
	Subscribe(ctx context.Context, barberID int64) (FeedSubscription, error)
}

// ChangeFeedListener turns change-feed traffic for one barber into refresh
// prompts. Changes are never applied as state.
type ChangeFeedListener interface {
	// Run blocks until ctx is done. onPrompt is called from Run's goroutine.
	Run(ctx context.Context, barberID int64, onPrompt func(models.TicketChange)) error
	Retarget(barberID int64)
}

type changeFeedListener struct {
	feed          ChangeFeed
	retryInterval time.Duration
	retarget      chan int64
	m             *metrics.Metrics
	l             logger.Logger
}

// NewChangeFeedListener makes one reconnect attempt per loss. A failed
// attempt is itself a loss and is retried after retryInterval, so a dead
// transport is never hammered faster than the poll.
func NewChangeFeedListener(feed ChangeFeed, retryInterval time.Duration, m *metrics.Metrics, l logger.Logger) ChangeFeedListener {
	return &changeFeedListener{
		feed:          feed,
		retryInterval: retryInterval,
		retarget:      make(chan int64, 1),
		m:             m,
		l:             l,
	}
}

func (c *changeFeedListener) Retarget(barberID int64) {
	for {
		select {
		case c.retarget <- barberID:
			return
		default:
		}

		// Replace a retarget nobody consumed yet.
		select {
		case <-c.retarget:
		default:
		}
	}
}

func (c *changeFeedListener) Run(ctx context.Context, barberID int64, onPrompt func(models.TicketChange)) error {
	sub := c.connect(ctx, barberID)
	defer func() {
		if sub != nil {
			_ = sub.Close()
		}
	}()

	var retry *time.Timer
	defer func() {
		if retry != nil {
			retry.Stop()
		}
	}()

	for {
		var (
			changes <-chan models.TicketChange
			done    <-chan struct{}
			retryC  <-chan time.Time
		)

		if sub != nil {
			changes = sub.Changes()
			done = sub.Done()
		} else {
			if retry == nil {
				retry = time.NewTimer(c.retryInterval)
			}
			retryC = retry.C
		}

		select {
		case <-ctx.Done():
			return nil

		case id := <-c.retarget:
			if id == barberID && sub != nil {
				continue
			}
			c.l.Infof(ctx, "changeFeedListener.Run: retargeting from barber_id=%d to barber_id=%d", barberID, id)
			if sub != nil {
				_ = sub.Close()
			}
			if retry != nil {
				retry.Stop()
				retry = nil
			}
			barberID = id
			sub = c.connect(ctx, barberID)

		case ch, ok := <-changes:
			if !ok {
				sub = c.reconnect(ctx, sub, barberID)
				continue
			}
			if ch.BarberID != 0 && ch.BarberID != barberID {
				continue
			}
			c.m.FeedEvents.Inc()
			onPrompt(ch)

		case <-done:
			sub = c.reconnect(ctx, sub, barberID)

		case <-retryC:
			retry = nil
			c.m.FeedReconnects.Inc()
			sub = c.connect(ctx, barberID)
		}
	}
}

func (c *changeFeedListener) reconnect(ctx context.Context, lost FeedSubscription, barberID int64) FeedSubscription {
	c.l.Warnf(ctx, "changeFeedListener: subscription for barber_id=%d lost: %v", barberID, lost.Err())
	_ = lost.Close()

	if ctx.Err() != nil {
		return nil
	}

	c.m.FeedReconnects.Inc()
	return c.connect(ctx, barberID)
}

func (c *changeFeedListener) connect(ctx context.Context, barberID int64) FeedSubscription {
	sub, err := c.feed.Subscribe(ctx, barberID)
	if err != nil {
		if ctx.Err() == nil {
			c.l.Warnf(ctx, "changeFeedListener: subscribe barber_id=%d: %v; polling continues", barberID, err)
		}
		return nil
	}

	c.l.Debugf(ctx, "changeFeedListener: subscribed to barber_id=%d", barberID)
	return sub
}
