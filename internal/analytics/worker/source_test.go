package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	msgs      []kafka.Message
	committed []int64
	fetchErr  error
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		if r.fetchErr != nil {
			return kafka.Message{}, r.fetchErr
		}
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestKafkaSourceCommitsHandledMessages(t *testing.T) {
	reader := &fakeReader{
		msgs: []kafka.Message{
			{Topic: "orders", Offset: 1, Value: []byte("a"), Headers: []kafka.Header{{Key: "event_type", Value: []byte("order_paid")}}},
			{Topic: "orders", Offset: 2, Value: []byte("b")},
		},
		fetchErr: errors.New("eof"),
	}
	source, err := NewKafkaSource(reader, testLogger(), 3, time.Millisecond)
	require.NoError(t, err)

	var seen []Delivery
	err = source.Receive(context.Background(), func(ctx context.Context, d Delivery) bool {
		seen = append(seen, d)
		return false
	})
	require.ErrorContains(t, err, "kafka fetch")
	require.Len(t, seen, 2)
	require.Equal(t, "orders/0/1", seen[0].ID)
	require.Equal(t, "order_paid", seen[0].Attributes["event_type"])
	require.Equal(t, []int64{1, 2}, reader.committed)
}

func TestKafkaSourceRetriesThenCommits(t *testing.T) {
	reader := &fakeReader{
		msgs:     []kafka.Message{{Topic: "orders", Offset: 7}},
		fetchErr: errors.New("eof"),
	}
	source, err := NewKafkaSource(reader, testLogger(), 3, time.Millisecond)
	require.NoError(t, err)

	calls := 0
	_ = source.Receive(context.Background(), func(ctx context.Context, d Delivery) bool {
		calls++
		return true
	})
	require.Equal(t, 3, calls)
	require.Equal(t, []int64{7}, reader.committed)
}

func TestKafkaSourceStopsOnCancel(t *testing.T) {
	reader := &fakeReader{}
	source, err := NewKafkaSource(reader, testLogger(), 0, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = source.Receive(ctx, func(context.Context, Delivery) bool { return false })
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewPubSubSourceRequiresSubscriber(t *testing.T) {
	_, err := NewPubSubSource(nil)
	require.Error(t, err)
}
