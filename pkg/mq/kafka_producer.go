package mq

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"github.com/Zereker/talentmatch/pkg/log"
)

// KafkaProducer 同步 Kafka 生产者，只负责发布
type KafkaProducer struct {
	logger *slog.Logger
	client sarama.SyncProducer
}

var _ MessageQueue = (*KafkaProducer)(nil)

// NewKafkaProducer 连接 broker 并创建生产者
func NewKafkaProducer(config KafkaConfig) (*KafkaProducer, error) {
	if !config.Enabled {
		return nil, fmt.Errorf("kafka is not enabled")
	}

	client, err := sarama.NewSyncProducer(config.Brokers, producerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	return newKafkaProducer(client), nil
}

func newKafkaProducer(client sarama.SyncProducer) *KafkaProducer {
	return &KafkaProducer{
		logger: log.Logger("mq.kafka").With("role", "producer"),
		client: client,
	}
}

// Publish 同步发送，返回时消息已被所有副本确认
func (p *KafkaProducer) Publish(ctx context.Context, topic, key string, message []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(message),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	partition, offset, err := p.client.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send message to %s: %w", topic, err)
	}

	p.logger.Debug("message sent", "topic", topic, "key", key, "partition", partition, "offset", offset)
	return nil
}

// Close 关闭生产者
func (p *KafkaProducer) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

// Subscribe 生产者不消费消息，请使用 KafkaConsumer
func (p *KafkaProducer) Subscribe(string, MessageHandler) error {
	return fmt.Errorf("kafka producer does not support subscribe, use KafkaConsumer instead")
}
