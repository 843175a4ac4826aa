package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"

	"github.com/andrei1031/dash-q-v2-front-sub000/internal/delivery/kafka"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/models"
	"github.com/andrei1031/dash-q-v2-front-sub000/pkg/logger"
)

// Producer writes ticket change prompts, keyed by barber id so one barber's
// changes stay on one partition.
type Producer interface {
	PublishTicketChange(ctx context.Context, ch models.TicketChange) error
	Close() error
}

type implProducer struct {
	l     logger.Logger
	prod  sarama.SyncProducer
	topic string
}

func NewProducer(prod sarama.SyncProducer, topic string, l logger.Logger) Producer {
	if topic == "" {
		topic = kafka.TopicTicketChanges
	}

	return &implProducer{
		l:     l,
		prod:  prod,
		topic: topic,
	}
}

func (p *implProducer) PublishTicketChange(ctx context.Context, ch models.TicketChange) error {
	if ch.OccurredAt.IsZero() {
		ch.OccurredAt = time.Now()
	}

	val, err := json.Marshal(kafka.NewTicketChangeMessage(ch))
	if err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.PublishTicketChange: %v", err)
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(kafka.BarberKey(ch.BarberID)),
		Value: sarama.ByteEncoder(val),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte(kafka.HeaderOccurredAt),
				Value: []byte(ch.OccurredAt.Format(time.RFC3339)),
			},
		},
	}

	if _, _, err = p.prod.SendMessage(msg); err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.PublishTicketChange: %v", err)
		return err
	}

	return nil
}

func (p *implProducer) Close() error {
	return p.prod.Close()
}
