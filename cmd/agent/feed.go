package main

import (
	"fmt"

	"github.com/IBM/sarama"

	"github.com/andrei1031/dash-q-v2-front-sub000/config"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/delivery/kafka/consumer"
	redisFeed "github.com/andrei1031/dash-q-v2-front-sub000/internal/delivery/redis"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/service"
	pkgKafka "github.com/andrei1031/dash-q-v2-front-sub000/pkg/kafka"
	pkgLog "github.com/andrei1031/dash-q-v2-front-sub000/pkg/logger"
	pkgRedis "github.com/andrei1031/dash-q-v2-front-sub000/pkg/redis"
)

// newChangeFeed picks the push transport. A nil feed means polling only.
func newChangeFeed(cfg *config.Config, clientID string, redisCli *pkgRedis.Client, l pkgLog.Logger) (service.ChangeFeed, error) {
	switch cfg.Feed.Driver {
	case "kafka":
		groupID := fmt.Sprintf("%s-%s", cfg.Kafka.GroupIDPrefix, clientID)
		newGroup := func() (sarama.ConsumerGroup, error) {
			return pkgKafka.NewConsumer(pkgKafka.ConsumerConfig{
				Brokers: cfg.Kafka.Brokers,
				GroupID: groupID,
			})
		}
		return consumer.NewFeed(cfg.Kafka.Topic, newGroup, l), nil

	case "redis":
		return redisFeed.NewFeed(redisCli, l), nil

	case "none":
		return nil, nil

	default:
		return nil, fmt.Errorf("invalid feed driver: %s", cfg.Feed.Driver)
	}
}
