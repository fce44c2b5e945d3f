package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-order-inventory/internal/logger"
	"github.com/ariefcatur/go-order-inventory/internal/orders"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader hands out queued messages, then blocks until ctx is done.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	fetchErr  error
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if r.fetchErr != nil {
		err := r.fetchErr
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// committedOffsets lists committed offsets of one partition in commit order.
func (r *fakeReader) committedOffsets(partition int) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int64
	for _, m := range r.committed {
		if m.Partition == partition {
			out = append(out, m.Offset)
		}
	}
	return out
}

func TestConsumerCommitsEachPartitionInOrder(t *testing.T) {
	var queue []kafka.Message
	for off := int64(1); off <= 20; off++ {
		queue = append(queue, kafka.Message{Partition: 0, Offset: off}, kafka.Message{Partition: 1, Offset: off})
	}
	r := &fakeReader{queue: queue}
	c := newConsumer(r, 4, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx, func(_ context.Context, m kafka.Message) error {
			if m.Partition == 0 {
				time.Sleep(time.Millisecond) // slower partition
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		return len(r.committedOffsets(0)) == 20 && len(r.committedOffsets(1)) == 20
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	for p := 0; p < 2; p++ {
		offs := r.committedOffsets(p)
		assert.IsIncreasing(t, offs, "partition %d", p)
	}
	assert.True(t, r.closed)
}

func TestConsumerStopsOnHandlerFailure(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{{Offset: 1}, {Offset: 2}, {Offset: 3}}}
	c := newConsumer(r, 1, logger.Nop())

	boom := errors.New("boom")
	err := c.Start(context.Background(), func(_ context.Context, m kafka.Message) error {
		if m.Offset == 2 {
			return boom
		}
		return nil
	})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "offset 2")
	assert.Equal(t, []int64{1}, r.committedOffsets(0), "nothing is committed past the failed message")
	assert.True(t, r.closed)
}

func TestConsumerReturnsFetchErrors(t *testing.T) {
	r := &fakeReader{fetchErr: errors.New("broker gone")}
	c := newConsumer(r, 0, logger.Nop())

	err := c.Start(context.Background(), func(context.Context, kafka.Message) error { return nil })
	assert.EqualError(t, err, "broker gone")
	assert.True(t, r.closed)
}

func TestAuditHandler(t *testing.T) {
	h := AuditHandler(logger.Nop())
	b, err := EncodeEvent(orders.Event{EventID: "e", Action: orders.ActionCreate, OrderID: "o"})
	require.NoError(t, err)

	assert.NoError(t, h(context.Background(), kafka.Message{Value: b}))
	assert.NoError(t, h(context.Background(), kafka.Message{Value: []byte("garbage")}), "malformed events are skipped")
}
