// Package mq 定义消息队列抽象，异步索引请求通过它投递给消费者
package mq

import "context"

// MessageQueue 消息队列接口
//
// key 决定分区：同一条记录（同一 id）的多次更新必须按发布顺序被消费，
// 否则旧版本可能覆盖新版本。key 为空时不保证顺序。
type MessageQueue interface {
	Publish(ctx context.Context, topic, key string, message []byte) error
	Subscribe(topic string, handler MessageHandler) error
	Close() error
}

// MessageHandler 消息处理函数
type MessageHandler func(ctx context.Context, topic string, message []byte) error
