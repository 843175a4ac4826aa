package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/andrei1031/dash-q-v2-front-sub000/internal/models"
	pkgLog "github.com/andrei1031/dash-q-v2-front-sub000/pkg/logger"
	pkgRedis "github.com/andrei1031/dash-q-v2-front-sub000/pkg/redis"
)

type Publisher struct {
	cli *pkgRedis.Client
	l   pkgLog.Logger
}

func NewPublisher(cli *pkgRedis.Client, l pkgLog.Logger) *Publisher {
	return &Publisher{cli: cli, l: l}
}

func (p *Publisher) PublishTicketChange(ctx context.Context, ch models.TicketChange) error {
	if ch.OccurredAt.IsZero() {
		ch.OccurredAt = time.Now()
	}

	payload, err := json.Marshal(changeMessage{
		Op:         string(ch.Op),
		TicketID:   ch.TicketID,
		BarberID:   ch.BarberID,
		OccurredAt: ch.OccurredAt,
	})
	if err != nil {
		return err
	}

	if err := p.cli.Publish(ctx, ChannelName(ch.BarberID), payload); err != nil {
		p.l.Errorf(ctx, "delivery.redis.Publisher.PublishTicketChange: %v", err)
		return err
	}

	return nil
}

func (p *Publisher) Close() error {
	return nil
}
