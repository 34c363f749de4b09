package mq

import (
	"context"
	"sync"
)

// Message 内存队列记录的一条消息
type Message struct {
	Key   string
	Value []byte
}

// InMemoryQueue 内存消息队列，单进程部署和测试使用
// Publish 同步调用订阅者，因此天然按发布顺序处理
type InMemoryQueue struct {
	mu       sync.RWMutex
	handlers map[string][]MessageHandler
	messages map[string][]Message
}

var _ MessageQueue = (*InMemoryQueue)(nil)

// NewInMemoryQueue 创建内存消息队列
func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		handlers: make(map[string][]MessageHandler),
		messages: make(map[string][]Message),
	}
}

// Publish 记录消息并依次交给订阅者，返回第一个 handler 错误
func (q *InMemoryQueue) Publish(ctx context.Context, topic, key string, message []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	q.messages[topic] = append(q.messages[topic], Message{Key: key, Value: message})
	handlers := append([]MessageHandler(nil), q.handlers[topic]...)
	q.mu.Unlock()

	// 在锁外调用，handler 可以再次 Publish
	for _, handler := range handlers {
		if err := handler(ctx, topic, message); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe 订阅 topic
func (q *InMemoryQueue) Subscribe(topic string, handler MessageHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// Close 关闭
func (q *InMemoryQueue) Close() error {
	return nil
}

// Messages 返回 topic 上已发布消息的副本
func (q *InMemoryQueue) Messages(topic string) []Message {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return append([]Message(nil), q.messages[topic]...)
}
