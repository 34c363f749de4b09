package mq

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueue(t *testing.T) {
	ctx := context.Background()
	q := NewInMemoryQueue()

	var got []string
	require.NoError(t, q.Subscribe("index", func(_ context.Context, topic string, message []byte) error {
		got = append(got, topic+":"+string(message))
		return nil
	}))

	require.NoError(t, q.Publish(ctx, "index", "job_1", []byte("a")))
	require.NoError(t, q.Publish(ctx, "index", "job_1", []byte("b")))
	require.NoError(t, q.Publish(ctx, "other", "", []byte("c")))

	assert.Equal(t, []string{"index:a", "index:b"}, got)
	assert.Equal(t, []Message{{Key: "job_1", Value: []byte("a")}, {Key: "job_1", Value: []byte("b")}}, q.Messages("index"))
	assert.Len(t, q.Messages("other"), 1)
	assert.Empty(t, q.Messages("missing"))

	ctx, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, q.Publish(ctx, "index", "job_1", []byte("d")), context.Canceled)
	assert.Len(t, q.Messages("index"), 2)
}

func TestInMemoryQueue_HandlerError(t *testing.T) {
	q := NewInMemoryQueue()
	boom := errors.New("boom")

	require.NoError(t, q.Subscribe("index", func(context.Context, string, []byte) error { return boom }))

	err := q.Publish(context.Background(), "index", "", []byte("a"))
	assert.ErrorIs(t, err, boom)
	// 消息仍然被记录
	assert.Len(t, q.Messages("index"), 1)
}

func TestInMemoryQueue_RepublishFromHandler(t *testing.T) {
	ctx := context.Background()
	q := NewInMemoryQueue()

	require.NoError(t, q.Subscribe("first", func(ctx context.Context, _ string, message []byte) error {
		return q.Publish(ctx, "second", "k", message)
	}))

	require.NoError(t, q.Publish(ctx, "first", "k", []byte("x")))
	assert.Equal(t, []Message{{Key: "k", Value: []byte("x")}}, q.Messages("second"))
}

func TestKafkaProducer_Publish(t *testing.T) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true

	sp := mocks.NewSyncProducer(t, cfg)
	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "job_1" {
			return fmt.Errorf("unexpected key %q", key)
		}
		return nil
	})
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := newKafkaProducer(sp)
	defer p.Close()

	assert.NoError(t, p.Publish(context.Background(), "talentmatch.index", "job_1", []byte(`{"type":"job"}`)))
	assert.Error(t, p.Publish(context.Background(), "talentmatch.index", "job_1", []byte(`{"type":"job"}`)))
	assert.Error(t, p.Subscribe("talentmatch.index", nil))
}

func TestKafkaProducer_CancelledContext(t *testing.T) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true

	p := newKafkaProducer(mocks.NewSyncProducer(t, cfg))
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, "talentmatch.index", "", []byte("x")), context.Canceled)
}

func TestSaramaConfigs(t *testing.T) {
	assert.NoError(t, producerConfig().Validate())
	assert.NoError(t, consumerConfig().Validate())
}

func TestKafkaConfigValidate(t *testing.T) {
	assert.NoError(t, (&KafkaConfig{}).Validate())

	cfg := KafkaConfig{
		Enabled: true,
		Brokers: []string{"localhost:9092"},
		Topic:   "talentmatch.index",
		Consumers: []ConsumerConfig{
			{Name: "indexer", Group: "talentmatch", Topics: []string{"talentmatch.index"}},
		},
	}
	assert.NoError(t, cfg.Validate())

	cfg.Topic = ""
	assert.Error(t, cfg.Validate())

	cfg.Topic = "talentmatch.index"
	cfg.Consumers[0].Topics = nil
	assert.Error(t, cfg.Validate())
}
