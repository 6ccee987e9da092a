package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"kasapos/backend/internal/domain"
	"kasapos/backend/internal/store/memory"
)

type gatedSink struct {
	mu      sync.Mutex
	release chan struct{}
	written []string
}

func (s *gatedSink) AppendTransaction(ctx context.Context, tx domain.Transaction) error {
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = append(s.written, tx.ID)
	return nil
}

func (s *gatedSink) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.written...)
}

func startOutbox(t *testing.T, o *Outbox) (context.CancelFunc, <-chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		o.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return cancel, stopped
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSubmitPersists(t *testing.T) {
	sink := memory.New()
	o := New(sink, zaptest.NewLogger(t), 8)
	startOutbox(t, o)

	d := o.Submit(domain.Transaction{ID: "tx-1", Branch: "Merkez", CreatedAt: time.Now()})
	require.NoError(t, d.Wait(waitCtx(t)))
	assert.Equal(t, StatusPersisted, d.Status())
	assert.Equal(t, "tx-1", d.TransactionID())
	assert.Empty(t, o.Failed())

	txs, err := sink.ListTransactions(context.Background(), "", time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, txs, 1)
}

func TestSubmitDoesNotBlockOnSlowSink(t *testing.T) {
	sink := &gatedSink{release: make(chan struct{})}
	o := New(sink, zaptest.NewLogger(t), 4)
	startOutbox(t, o)

	submitted := make(chan *Delivery, 1)
	go func() { submitted <- o.Submit(domain.Transaction{ID: "tx-slow"}) }()

	var d *Delivery
	select {
	case d = <-submitted:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on the sink")
	}
	assert.Equal(t, StatusPending, d.Status())

	close(sink.release)
	require.NoError(t, d.Wait(waitCtx(t)))
	assert.Equal(t, []string{"tx-slow"}, sink.ids())
}

func TestFailedWriteIsKeptAndReplayed(t *testing.T) {
	sink := memory.New()
	boom := errors.New("remote unavailable")
	sink.FailAppends(boom)

	o := New(sink, zaptest.NewLogger(t), 8)
	startOutbox(t, o)

	d := o.Submit(domain.Transaction{ID: "tx-lost", CreatedAt: time.Now()})
	err := d.Wait(waitCtx(t))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StatusFailed, d.Status())

	failed := o.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "tx-lost", failed[0].Transaction.ID)
	assert.Equal(t, 1, failed[0].Attempts)
	assert.Equal(t, boom.Error(), failed[0].Error)

	// still failing: the record comes back with a higher attempt count
	again, err := o.Replay(context.Background())
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Error(t, again[0].Wait(waitCtx(t)))
	require.Len(t, o.Failed(), 1)
	assert.Equal(t, 2, o.Failed()[0].Attempts)

	sink.FailAppends(nil)
	replayed, err := o.Replay(context.Background())
	require.NoError(t, err)
	require.Len(t, replayed, 1)
	require.NoError(t, replayed[0].Wait(waitCtx(t)))
	assert.Empty(t, o.Failed())
}

func TestQueueFullFailsImmediately(t *testing.T) {
	sink := &gatedSink{release: make(chan struct{})}
	o := New(sink, zaptest.NewLogger(t), 1)

	first := o.Submit(domain.Transaction{ID: "tx-1"})
	second := o.Submit(domain.Transaction{ID: "tx-2"})

	assert.Equal(t, StatusPending, first.Status())
	assert.Equal(t, StatusFailed, second.Status())
	assert.ErrorIs(t, second.Err(), ErrQueueFull)
	require.Len(t, o.Failed(), 1)
	assert.Equal(t, "tx-2", o.Failed()[0].Transaction.ID)
}

func TestRunFlushesQueueOnShutdown(t *testing.T) {
	sink := &gatedSink{release: make(chan struct{})}
	close(sink.release)
	o := New(sink, zaptest.NewLogger(t), 8, WithFlushTimeout(time.Second))

	queued := []*Delivery{
		o.Submit(domain.Transaction{ID: "tx-1"}),
		o.Submit(domain.Transaction{ID: "tx-2"}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o.Run(ctx)

	for _, d := range queued {
		select {
		case <-d.Done():
		default:
			t.Fatalf("delivery %s not finished after shutdown", d.TransactionID())
		}
	}
	assert.ElementsMatch(t, []string{"tx-1", "tx-2"}, sink.ids())

	late := o.Submit(domain.Transaction{ID: "tx-late"})
	assert.ErrorIs(t, late.Err(), ErrClosed)
}

func TestFlushIsBounded(t *testing.T) {
	sink := &gatedSink{release: make(chan struct{})}
	o := New(sink, zaptest.NewLogger(t), 8, WithFlushTimeout(50*time.Millisecond))
	d := o.Submit(domain.Transaction{ID: "tx-hung"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	o.Run(ctx)
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, d.Err(), context.DeadlineExceeded)
	require.Len(t, o.Failed(), 1)
}

func TestReplayHonoursCancelledContext(t *testing.T) {
	o := New(memory.New(), zaptest.NewLogger(t), 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Replay(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
