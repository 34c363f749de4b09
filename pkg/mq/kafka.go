package mq

import (
	"fmt"

	"github.com/IBM/sarama"
)

const clientID = "talentmatch"

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Enabled   bool             `toml:"enabled"`
	Brokers   []string         `toml:"brokers"`
	Topic     string           `toml:"topic"` // 异步索引事件写入的 topic
	Consumers []ConsumerConfig `toml:"consumers"`
}

// ConsumerConfig 单个消费组配置
type ConsumerConfig struct {
	Name   string   `toml:"name"` // 仅用于日志，默认取 group
	Group  string   `toml:"group"`
	Topics []string `toml:"topics"`
}

// Validate 验证配置
func (c *KafkaConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Brokers) == 0 {
		return fmt.Errorf("brokers is required when kafka is enabled")
	}
	if c.Topic == "" {
		return fmt.Errorf("topic is required when kafka is enabled")
	}
	for i, consumer := range c.Consumers {
		if consumer.Group == "" {
			return fmt.Errorf("consumers[%d].group is required", i)
		}
		if len(consumer.Topics) == 0 {
			return fmt.Errorf("consumers[%d].topics is required", i)
		}
	}
	return nil
}

// producerConfig 同步生产者：等待所有副本确认，按 key 哈希分区
func producerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	// 重试不能打乱同一分区内的顺序
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	return cfg
}

// consumerConfig 新消费组从最新位点开始
func consumerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	cfg.Consumer.Return.Errors = true
	return cfg
}
