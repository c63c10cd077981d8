package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"docqa-go/pkg/tasks"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

type fakeReader struct {
	committed []kafka.Message
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeReader) Close() error { return nil }

type memCounter struct {
	counts map[string]int64
	err    error
}

func (m *memCounter) Incr(_ context.Context, key string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.counts[key]++
	return m.counts[key], nil
}

func (m *memCounter) Reset(_ context.Context, key string) error {
	delete(m.counts, key)
	return nil
}

type flakyProcessor struct {
	failures int
	calls    int
}

func (p *flakyProcessor) Process(context.Context, tasks.IngestTask) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("ocr unavailable")
	}
	return nil
}

func message(t *testing.T, task tasks.IngestTask) kafka.Message {
	b, err := json.Marshal(task)
	assert.NoError(t, err)
	return kafka.Message{Value: b}
}

func newTestConsumer(r messageReader, p TaskProcessor, c AttemptCounter, max int) *Consumer {
	consumer := newConsumer(r, p, c, max)
	consumer.backoff = time.Millisecond
	return consumer
}

func TestHandleRetriesThenCommits(t *testing.T) {
	r := &fakeReader{}
	counter := &memCounter{counts: map[string]int64{}}
	p := &flakyProcessor{failures: 1}
	c := newTestConsumer(r, p, counter, 3)

	c.handle(context.Background(), message(t, tasks.NewIngestTask("fp", "b", "docs/fp.pdf", "a.pdf")))

	assert.Equal(t, 2, p.calls)
	assert.Len(t, r.committed, 1)
	assert.Empty(t, counter.counts, "counter reset after success")
}

func TestHandleGivesUpAfterMaxAttempts(t *testing.T) {
	r := &fakeReader{}
	counter := &memCounter{counts: map[string]int64{}}
	p := &flakyProcessor{failures: 100}
	c := newTestConsumer(r, p, counter, 3)

	c.handle(context.Background(), message(t, tasks.NewIngestTask("fp", "b", "k", "a.pdf")))

	assert.Equal(t, 3, p.calls)
	assert.Len(t, r.committed, 1)
	assert.Empty(t, counter.counts, "counter reset after giving up")

	// 同一文档再次上传时重新获得完整的重试次数
	p.calls = 0
	c.handle(context.Background(), message(t, tasks.NewIngestTask("fp", "b", "k", "a.pdf")))
	assert.Equal(t, 3, p.calls)
	assert.Len(t, r.committed, 2)
}

func TestHandleCountsLocallyWhenRedisFails(t *testing.T) {
	r := &fakeReader{}
	counter := &memCounter{err: errors.New("redis down")}
	p := &flakyProcessor{failures: 100}
	c := newTestConsumer(r, p, counter, 2)

	c.handle(context.Background(), message(t, tasks.NewIngestTask("fp", "b", "k", "a.pdf")))

	assert.Equal(t, 2, p.calls)
	assert.Len(t, r.committed, 1)
}

func TestHandleCommitsMalformedMessages(t *testing.T) {
	r := &fakeReader{}
	p := &flakyProcessor{}
	c := newTestConsumer(r, p, &memCounter{counts: map[string]int64{}}, 3)

	c.handle(context.Background(), kafka.Message{Value: []byte("{not json")})
	c.handle(context.Background(), kafka.Message{Value: []byte(`{"task_id":"x"}`)})

	assert.Equal(t, 0, p.calls)
	assert.Len(t, r.committed, 2)
}

func TestRunStopsOnCancel(t *testing.T) {
	c := newTestConsumer(&fakeReader{}, &flakyProcessor{}, &memCounter{counts: map[string]int64{}}, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, c.Run(ctx))
}

func TestHandleWithoutCounterUsesLocalCounts(t *testing.T) {
	r := &fakeReader{}
	p := &flakyProcessor{failures: 1}
	c := newTestConsumer(r, p, nil, 3)

	c.handle(context.Background(), message(t, tasks.NewIngestTask("fp", "b", "k", "a.pdf")))

	assert.Equal(t, 2, p.calls)
	assert.Len(t, r.committed, 1)
	assert.Empty(t, c.attempts.(*localAttemptCounter).counts)
}
