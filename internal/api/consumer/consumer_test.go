package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zereker/talentmatch/internal/domain"
	"github.com/Zereker/talentmatch/internal/matching"
	"github.com/Zereker/talentmatch/pkg/embedding"
	"github.com/Zereker/talentmatch/pkg/log"
	"github.com/Zereker/talentmatch/pkg/mq"
	"github.com/Zereker/talentmatch/pkg/vector"
)

const topic = "talentmatch.index"

func newTestConsumer(t *testing.T, store vector.Store) *Consumer {
	t.Helper()
	engine := matching.NewEngine(
		embedding.NewFingerprintEmbedder(64),
		store,
		matching.WithLogger(log.Discard()),
	)
	c, err := NewConsumer(engine, Config{})
	require.NoError(t, err)
	c.logger = log.Discard()
	return c
}

func event(t *testing.T, ev domain.IndexEvent) []byte {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	return data
}

func TestConsumer_IndexesFromQueue(t *testing.T) {
	ctx := context.Background()
	store := vector.NewMemoryStore(vector.WithLogger(log.Discard()))
	c := newTestConsumer(t, store)

	queue := mq.NewInMemoryQueue()
	require.NoError(t, c.Subscribe(queue, topic))

	require.NoError(t, queue.Publish(ctx, topic, "", event(t, domain.IndexEvent{
		Type:     domain.EntityJob,
		ID:       "job_1",
		Text:     "Go backend developer",
		Metadata: map[string]any{"title": "Backend"},
	})))
	require.NoError(t, queue.Publish(ctx, topic, "", event(t, domain.IndexEvent{
		Type: domain.EntityCandidate,
		ID:   "cand_1",
		Text: "Go developer",
	})))

	assert.Equal(t, 1, store.Count("job"))
	assert.Equal(t, 1, store.Count("candidate"))

	found, err := store.Fetch(ctx, []string{"job_1"})
	require.NoError(t, err)
	assert.Equal(t, "Backend", found["job_1"].Metadata["title"])
	assert.Equal(t, "Go backend developer", found["job_1"].Metadata[domain.MetaText])

	// 其他 topic 不处理
	require.NoError(t, queue.Publish(ctx, "other", "", event(t, domain.IndexEvent{Type: domain.EntityJob, ID: "job_2", Text: "x"})))
	assert.Equal(t, 2, store.Len())
}

func TestConsumer_SkipsInvalidMessages(t *testing.T) {
	ctx := context.Background()
	store := vector.NewMemoryStore(vector.WithLogger(log.Discard()))
	c := newTestConsumer(t, store)

	messages := [][]byte{
		[]byte("not json"),
		event(t, domain.IndexEvent{Type: "resume", ID: "x", Text: "Go"}),
		event(t, domain.IndexEvent{Type: domain.EntityJob, Text: "Go"}),
		event(t, domain.IndexEvent{Type: domain.EntityJob, ID: "job_1"}),
	}
	for _, msg := range messages {
		assert.NoError(t, c.Handle(ctx, topic, msg))
	}
	assert.Equal(t, 0, store.Len())
}

type failingStore struct {
	vector.Store
}

func (failingStore) Upsert(context.Context, []vector.Record) error {
	return errors.New("store down")
}

func TestConsumer_IndexFailure(t *testing.T) {
	c := newTestConsumer(t, failingStore{})

	err := c.Handle(context.Background(), topic, event(t, domain.IndexEvent{
		Type: domain.EntityCandidate,
		ID:   "cand_1",
		Text: "Go developer",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cand_1")
}

func TestConsumer_NoKafka(t *testing.T) {
	c := newTestConsumer(t, vector.NewMemoryStore())

	assert.NoError(t, c.Start(context.Background()))
	assert.NoError(t, c.Stop())
}
