package consumer

import (
	"context"
	"fmt"
	"sync"

	"github.com/IBM/sarama"

	"github.com/andrei1031/dash-q-v2-front-sub000/internal/delivery/kafka"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/models"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/service"
	"github.com/andrei1031/dash-q-v2-front-sub000/pkg/logger"
)

// GroupFactory opens a consumer group. Every subscription owns its group.
type GroupFactory func() (sarama.ConsumerGroup, error)

// Feed is a service.ChangeFeed over a Kafka topic keyed by barber id.
type Feed struct {
	topic    string
	newGroup GroupFactory
	l        logger.Logger
}

func NewFeed(topic string, newGroup GroupFactory, l logger.Logger) *Feed {
	if topic == "" {
		topic = kafka.TopicTicketChanges
	}

	return &Feed{
		topic:    topic,
		newGroup: newGroup,
		l:        l,
	}
}

func (f *Feed) Subscribe(ctx context.Context, barberID int64) (service.FeedSubscription, error) {
	consGr, err := f.newGroup()
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	s := &subscription{
		consGr:   consGr,
		barberID: barberID,
		key:      kafka.BarberKey(barberID),
		changes:  make(chan models.TicketChange, 16),
		done:     make(chan struct{}),
		cancel:   cancel,
		l:        f.l,
	}

	s.wg.Go(func() {
		s.consume(subCtx, f.topic)
	})

	s.wg.Go(func() {
		for err := range consGr.Errors() {
			f.l.Warnf(subCtx, "delivery.kafka.consumer.Feed: %v", err)
		}
	})

	f.l.Infof(ctx, "Consumer is consuming topic %s for barber_id=%d", f.topic, barberID)
	return s, nil
}

type subscription struct {
	consGr   sarama.ConsumerGroup
	barberID int64
	key      string
	changes  chan models.TicketChange
	done     chan struct{}
	cancel   context.CancelFunc
	l        logger.Logger
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
		s.closeErr = s.consGr.Close()
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

func (s *subscription) consume(ctx context.Context, topic string) {
	for {
		// Consume returns on every rebalance; only an error is a loss.
		if err := s.consGr.Consume(ctx, []string{topic}, s); err != nil {
			if ctx.Err() == nil {
				s.finish(fmt.Errorf("consume %s: %w", topic, err))
			}
			return
		}

		if ctx.Err() != nil {
			return
		}
	}
}

func (s *subscription) Setup(sarama.ConsumerGroupSession) error {
	s.l.Debug(context.Background(), "Consumer group session started")
	return nil
}

func (s *subscription) Cleanup(sarama.ConsumerGroupSession) error {
	s.l.Debug(context.Background(), "Consumer group session ended")
	return nil
}

func (s *subscription) ConsumeClaim(ss sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}

			ss.MarkMessage(message, "")

			if len(message.Key) > 0 && string(message.Key) != s.key {
				continue
			}

			ch, err := kafka.DecodeTicketChange(message)
			if err != nil {
				s.l.Warnf(ss.Context(), "delivery.kafka.consumer.ConsumeClaim: %v", err)
				continue
			}

			if ch.BarberID != s.barberID {
				continue
			}

			select {
			case s.changes <- ch:
			case <-ss.Context().Done():
				return nil
			}

		case <-ss.Context().Done():
			return nil
		}
	}
}
