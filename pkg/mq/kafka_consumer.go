package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/Zereker/talentmatch/pkg/log"
)

// retryDelay 消费组会话异常退出后重新加入前的等待
const retryDelay = time.Second

// KafkaConsumer 一个 Kafka 消费组
type KafkaConsumer struct {
	logger  *slog.Logger
	topics  []string
	group   sarama.ConsumerGroup
	handler MessageHandler

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewKafkaConsumer 创建消费组，Start 之前不会拉取消息
func NewKafkaConsumer(brokers []string, config ConsumerConfig, handler MessageHandler) (*KafkaConsumer, error) {
	group, err := sarama.NewConsumerGroup(brokers, config.Group, consumerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group %s: %w", config.Group, err)
	}

	name := config.Name
	if name == "" {
		name = config.Group
	}

	return &KafkaConsumer{
		logger:  log.Logger("mq.kafka").With("consumer", name),
		topics:  config.Topics,
		group:   group,
		handler: handler,
	}, nil
}

// Start 在后台加入消费组，阻塞到第一次分区分配完成或 ctx 结束
func (c *KafkaConsumer) Start(ctx context.Context) error {
	if c == nil {
		return nil
	}

	ctx, c.cancel = context.WithCancel(ctx)
	ready := make(chan struct{})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consume(ctx, ready)
	}()

	select {
	case <-ready:
		c.logger.Info("consumer started", "topics", c.topics)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// consume 循环加入消费组；每次 rebalance 后 Consume 返回，需要重新调用
func (c *KafkaConsumer) consume(ctx context.Context, ready chan struct{}) {
	var once sync.Once
	session := &claimHandler{
		handler: c.handler,
		logger:  c.logger,
		onSetup: func() { once.Do(func() { close(ready) }) },
	}

	for {
		err := c.group.Consume(ctx, c.topics, session)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, sarama.ErrClosedConsumerGroup):
			return
		case err != nil:
			c.logger.Error("consumer session failed", "error", err)
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
			}
		}

		if ctx.Err() != nil {
			return
		}
	}
}

// Stop 停止消费并关闭消费组，可重复调用
func (c *KafkaConsumer) Stop() error {
	if c == nil {
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	if err := c.group.Close(); err != nil && !errors.Is(err, sarama.ErrClosedConsumerGroup) {
		return err
	}
	return nil
}

// claimHandler 实现 sarama.ConsumerGroupHandler
type claimHandler struct {
	handler MessageHandler
	logger  *slog.Logger
	onSetup func()
}

func (h *claimHandler) Setup(sarama.ConsumerGroupSession) error {
	h.onSetup()
	return nil
}

func (h *claimHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim 逐条处理；处理失败只记录日志，消息仍然提交，不会阻塞分区
func (h *claimHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			if err := h.handler(session.Context(), msg.Topic, msg.Value); err != nil {
				h.logger.Error("failed to handle message",
					"topic", msg.Topic,
					"partition", msg.Partition,
					"offset", msg.Offset,
					"key", string(msg.Key),
					"error", err,
				)
			}

			session.MarkMessage(msg, "")

		case <-session.Context().Done():
			return nil
		}
	}
}
