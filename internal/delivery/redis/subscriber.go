package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/andrei1031/dash-q-v2-front-sub000/internal/models"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/service"
	pkgLog "github.com/andrei1031/dash-q-v2-front-sub000/pkg/logger"
	pkgRedis "github.com/andrei1031/dash-q-v2-front-sub000/pkg/redis"
)

func ChannelName(barberID int64) string {
	return fmt.Sprintf("dashq:barber:%d:tickets", barberID)
}

// Feed is a service.ChangeFeed over Redis Pub/Sub, one channel per barber.
type Feed struct {
	cli *pkgRedis.Client
	l   pkgLog.Logger
}

func NewFeed(cli *pkgRedis.Client, l pkgLog.Logger) *Feed {
	return &Feed{cli: cli, l: l}
}

func (f *Feed) Subscribe(ctx context.Context, barberID int64) (service.FeedSubscription, error) {
	channel := ChannelName(barberID)
	ps := f.cli.Subscribe(ctx, channel)

	// Wait for the subscription confirmation so a dead server fails here.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	s := &subscription{
		ps:       ps,
		barberID: barberID,
		changes:  make(chan models.TicketChange, 16),
		done:     make(chan struct{}),
		cancel:   cancel,
		l:        f.l,
	}

	s.wg.Go(func() {
		s.receive(subCtx)
	})

	return s, nil
}

type subscription struct {
	ps       *goredis.PubSub
	barberID int64
	changes  chan models.TicketChange
	done     chan struct{}
	cancel   context.CancelFunc
	l        pkgLog.Logger
	wg       sync.WaitGroup

	once      sync.Once
	closeOnce sync.Once
	closeErr  error
	errMu     sync.Mutex
	err       error
}

func (s *subscription) Changes() <-chan models.TicketChange { return s.changes }
func (s *subscription) Done() <-chan struct{}               { return s.done }

func (s *subscription) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *subscription) Close() error {
	s.closeOnce.Do(func() {
		s.finish(nil)
		s.closeErr = s.ps.Close()
		s.wg.Wait()
	})
	return s.closeErr
}

func (s *subscription) finish(err error) {
	s.once.Do(func() {
		s.errMu.Lock()
		s.err = err
		s.errMu.Unlock()
		s.cancel()
		close(s.done)
	})
}

func (s *subscription) receive(ctx context.Context) {
	for {
		msg, err := s.ps.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.finish(err)
			}
			return
		}

		ch, err := decodeChange(msg.Payload, s.barberID)
		if err != nil {
			s.l.Warnf(ctx, "delivery.redis.subscription.receive: %v", err)
			continue
		}

		select {
		case s.changes <- ch:
		case <-ctx.Done():
			return
		}
	}
}

type changeMessage struct {
	Op         string    `json:"op"`
	TicketID   int64     `json:"ticket_id"`
	BarberID   int64     `json:"barber_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// decodeChange reads a payload; the channel names the barber when the
// payload does not.
func decodeChange(payload string, barberID int64) (models.TicketChange, error) {
	var m changeMessage
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return models.TicketChange{}, fmt.Errorf("decode ticket change: %w", err)
	}

	if m.BarberID == 0 {
		m.BarberID = barberID
	}

	return models.TicketChange{
		Op:         models.ChangeOp(m.Op),
		TicketID:   m.TicketID,
		BarberID:   m.BarberID,
		OccurredAt: m.OccurredAt,
	}, nil
}
