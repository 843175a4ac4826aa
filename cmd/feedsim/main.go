// Command feedsim publishes ticket change prompts for one barber, to drive a
// local agent's change feed without the queue server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andrei1031/dash-q-v2-front-sub000/config"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/delivery/kafka/producer"
	redisFeed "github.com/andrei1031/dash-q-v2-front-sub000/internal/delivery/redis"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/infra/redis"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/models"
	pkgKafka "github.com/andrei1031/dash-q-v2-front-sub000/pkg/kafka"
	pkgLog "github.com/andrei1031/dash-q-v2-front-sub000/pkg/logger"
)

var (
	barberID = flag.Int64("barber", 0, "Barber ID (required)")
	ticketID = flag.Int64("ticket", 0, "Ticket ID carried by the change")
	op       = flag.String("op", "UPDATE", "Change operation: INSERT, UPDATE or DELETE")
	count    = flag.Int("count", 1, "Number of changes to publish (0 = until interrupted)")
	interval = flag.Duration("interval", 2*time.Second, "Time between changes")
)

type publisher interface {
	PublishTicketChange(ctx context.Context, ch models.TicketChange) error
	Close() error
}

func main() {
	flag.Parse()

	if *barberID <= 0 {
		fmt.Println("Error: --barber flag is required")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{
		Level:    cfg.Log.Level,
		Mode:     cfg.Log.Mode,
		Encoding: cfg.Log.Encoding,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pub, err := newPublisher(ctx, cfg, l)
	if err != nil {
		l.Fatalf(ctx, "Failed to initialize publisher: %v", err)
	}
	defer pub.Close()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for sent := 0; *count == 0 || sent < *count; sent++ {
		ch := models.TicketChange{
			Op:         models.ChangeOp(*op),
			TicketID:   *ticketID,
			BarberID:   *barberID,
			OccurredAt: time.Now(),
		}
		if err := pub.PublishTicketChange(ctx, ch); err != nil {
			l.Errorf(ctx, "Publish failed: %v", err)
		} else {
			l.Infof(ctx, "Published %s ticket_id=%d barber_id=%d via %s", ch.Op, ch.TicketID, ch.BarberID, cfg.Feed.Driver)
		}

		if *count != 0 && sent+1 == *count {
			break
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func newPublisher(ctx context.Context, cfg *config.Config, l pkgLog.Logger) (publisher, error) {
	switch cfg.Feed.Driver {
	case "kafka":
		prod, err := pkgKafka.NewProducer(pkgKafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			RetryMax:     3,
			RequiredAcks: 1,
		})
		if err != nil {
			return nil, err
		}
		return producer.NewProducer(prod, cfg.Kafka.Topic, l), nil

	case "redis":
		cli, err := redis.Connect(ctx, cfg.Redis, l)
		if err != nil {
			return nil, err
		}
		return redisFeed.NewPublisher(cli, l), nil

	default:
		return nil, fmt.Errorf("feed driver %q has nothing to publish to", cfg.Feed.Driver)
	}
}
