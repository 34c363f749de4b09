package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Zereker/talentmatch/internal/domain"
	"github.com/Zereker/talentmatch/internal/matching"
	"github.com/Zereker/talentmatch/pkg/log"
	"github.com/Zereker/talentmatch/pkg/mq"
)

// Consumer 异步索引消费者，把队列中的 IndexEvent 写入引擎
type Consumer struct {
	logger    *slog.Logger
	engine    *matching.Engine
	consumers []*mq.KafkaConsumer
}

// Config 消费者配置
type Config struct {
	Kafka mq.KafkaConfig
}

// NewConsumer 创建消费者，Kafka 未启用时不创建任何 Kafka 消费者
func NewConsumer(engine *matching.Engine, cfg Config) (*Consumer, error) {
	c := &Consumer{
		logger: log.Logger("consumer"),
		engine: engine,
	}

	if !cfg.Kafka.Enabled {
		c.logger.Info("kafka disabled, consumer not started")
		return c, nil
	}

	for _, cc := range cfg.Kafka.Consumers {
		kc, err := mq.NewKafkaConsumer(cfg.Kafka.Brokers, cc, c.Handle)
		if err != nil {
			_ = c.Stop()
			return nil, errors.WithMessagef(err, "create kafka consumer %s", cc.Group)
		}
		c.consumers = append(c.consumers, kc)
	}

	return c, nil
}

// Subscribe 在队列的 topic 上注册 Handle（单进程部署使用内存队列）
func (c *Consumer) Subscribe(queue mq.MessageQueue, topic string) error {
	if err := queue.Subscribe(topic, c.Handle); err != nil {
		return errors.WithMessagef(err, "subscribe %s", topic)
	}
	c.logger.Info("subscribed", "topic", topic)
	return nil
}

// Handle 处理一条索引消息
// 无法解析或校验失败的消息记录日志后跳过，不返回错误
func (c *Consumer) Handle(ctx context.Context, topic string, message []byte) error {
	var event domain.IndexEvent
	if err := json.Unmarshal(message, &event); err != nil {
		c.logger.Warn("skipping malformed message", "topic", topic, "error", err)
		return nil
	}

	if err := event.Validate(); err != nil {
		c.logger.Warn("skipping invalid event", "topic", topic, "id", event.ID, "error", err)
		return nil
	}

	if err := c.engine.Index(ctx, event.Type, event.ID, event.Text, event.Metadata); err != nil {
		return errors.WithMessagef(err, "index %s %s", event.Type, event.ID)
	}

	c.logger.Debug("indexed from queue", "topic", topic, "type", event.Type, "id", event.ID)
	return nil
}

// Start 启动所有消费者
func (c *Consumer) Start(ctx context.Context) error {
	if len(c.consumers) == 0 {
		c.logger.Info("no consumers configured, skipping start")
		return nil
	}

	c.logger.Info("starting consumers", "count", len(c.consumers))

	// 消费循环沿用调用方的 ctx
	var g errgroup.Group
	for _, consumer := range c.consumers {
		g.Go(func() error {
			return consumer.Start(ctx)
		})
	}

	return g.Wait()
}

// Stop 停止所有消费者
func (c *Consumer) Stop() error {
	c.logger.Info("stopping consumers")

	for _, consumer := range c.consumers {
		if err := consumer.Stop(); err != nil {
			c.logger.Error("failed to stop consumer", "error", err)
		}
	}

	return nil
}
