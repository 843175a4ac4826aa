package kafka

import (
	"fmt"

	"github.com/IBM/sarama"
)

type ConsumerConfig struct {
	Brokers []string
	GroupID string
}

// NewConsumerConfig starts at the newest offset: a change feed only prompts
// refreshes, so history is worthless.
func NewConsumerConfig() *sarama.Config {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Version = sarama.V2_8_0_0
	saramaCfg.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaCfg.Consumer.Return.Errors = true
	return saramaCfg
}

func NewConsumer(cfg ConsumerConfig) (sarama.ConsumerGroup, error) {
	consGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, NewConsumerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer group: %w", err)
	}

	return consGroup, nil
}
