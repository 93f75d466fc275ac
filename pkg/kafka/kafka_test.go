package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/config"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type submission struct {
	ID   string `json:"id"`
	Form string `json:"form"`
}

func TestDecodeJSON(t *testing.T) {
	got, err := DecodeJSON[submission]([]byte(`{"id":"42","form":"contact"}`))
	require.NoError(t, err)
	assert.Equal(t, submission{ID: "42", Form: "contact"}, got)

	_, err = DecodeJSON[submission]([]byte(`{`))
	assert.Error(t, err)
}

func TestPublishRejectsUnencodableValue(t *testing.T) {
	p := NewProducer(config.KafkaConfig{Brokers: []string{"127.0.0.1:1"}}, "form-submissions")
	defer p.Close()

	err := p.Publish(context.Background(), Event{Key: "k", Value: make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshaling event value")
}

type fakeReader struct {
	msgs      []kafka.Message
	fetchErrs int
	committed []int64
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if r.fetchErrs > 0 {
		r.fetchErrs--
		return kafka.Message{}, errors.New("broker not available")
	}
	if len(r.msgs) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestConsumerCommitsFailedMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reader := &fakeReader{
		msgs: []kafka.Message{
			{Offset: 1, Value: []byte(`{"id":"1","form":"contact"}`)},
			{Offset: 2, Value: []byte(`not json`)},
			{Offset: 3, Value: []byte(`{"id":"3","form":"newsletter"}`)},
		},
		fetchErrs: 1,
		cancel:    cancel,
	}
	var got []submission
	c := newConsumer(reader, "form-submissions", func(_ context.Context, _, value []byte) error {
		s, err := DecodeJSON[submission](value)
		if err != nil {
			return err
		}
		got = append(got, s)
		return nil
	})

	require.NoError(t, c.Start(ctx))
	assert.Equal(t, []int64{1, 2, 3}, reader.committed)
	assert.Equal(t, []submission{{ID: "1", Form: "contact"}, {ID: "3", Form: "newsletter"}}, got)
	processed, failed := c.Stats()
	assert.Equal(t, int64(2), processed)
	assert.Equal(t, int64(1), failed)
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(errors.New("dial tcp: i/o timeout")))
	assert.True(t, retryable(kafka.LeaderNotAvailable))
	assert.False(t, retryable(kafka.MessageTooLargeError{}))
}
