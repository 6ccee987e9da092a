package outbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"kasapos/backend/internal/domain"
	"kasapos/backend/internal/store"
)

var (
	ErrQueueFull = errors.New("outbox queue full")
	ErrClosed    = errors.New("outbox closed")
)

const defaultFlushTimeout = 5 * time.Second

// Outbox hands completed transactions to the remote sink without blocking
// the till. Failed writes are kept until an operator replays them; nothing
// is retried automatically.
type Outbox struct {
	sink         store.TransactionSink
	logger       *zap.Logger
	queue        chan *Delivery
	flushTimeout time.Duration
	now          func() time.Time

	mu     sync.Mutex
	closed bool
	failed []*Delivery
}

type Option func(*Outbox)

// WithFlushTimeout bounds how long Run keeps draining the queue after its
// context is cancelled.
func WithFlushTimeout(d time.Duration) Option {
	return func(o *Outbox) {
		if d > 0 {
			o.flushTimeout = d
		}
	}
}

func New(sink store.TransactionSink, logger *zap.Logger, buffer int, opts ...Option) *Outbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer < 1 {
		buffer = 1
	}
	o := &Outbox{
		sink:         sink,
		logger:       logger.Named("outbox"),
		queue:        make(chan *Delivery, buffer),
		flushTimeout: defaultFlushTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit queues tx and returns immediately. When the queue is full or the
// outbox has shut down the delivery fails at once and lands in Failed.
func (o *Outbox) Submit(tx domain.Transaction) *Delivery {
	return o.submit(newDelivery(tx, 1))
}

func (o *Outbox) submit(d *Delivery) *Delivery {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		o.failLocked(d, ErrClosed)
		return d
	}
	select {
	case o.queue <- d:
	default:
		o.failLocked(d, ErrQueueFull)
	}
	return d
}

// Run writes queued deliveries until ctx is cancelled, then flushes what is
// still queued using a fresh context bounded by the flush timeout.
func (o *Outbox) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			o.flush()
			return
		}
		select {
		case d := <-o.queue:
			o.deliver(ctx, d)
		case <-ctx.Done():
			o.flush()
			return
		}
	}
}

func (o *Outbox) flush() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), o.flushTimeout)
	defer cancel()

	flushed := 0
	for {
		select {
		case d := <-o.queue:
			o.deliver(ctx, d)
			flushed++
		default:
			if flushed > 0 {
				o.logger.Info("outbox flushed on shutdown", zap.Int("deliveries", flushed))
			}
			return
		}
	}
}

func (o *Outbox) deliver(ctx context.Context, d *Delivery) {
	err := o.sink.AppendTransaction(ctx, d.tx)
	if err != nil {
		o.mu.Lock()
		o.failLocked(d, err)
		o.mu.Unlock()
		return
	}
	d.finish(StatusPersisted, nil, o.now())
	o.logger.Debug("transaction persisted", zap.String("tx_id", d.tx.ID), zap.Int("attempt", d.attempt))
}

func (o *Outbox) failLocked(d *Delivery, err error) {
	d.finish(StatusFailed, err, o.now())
	o.failed = append(o.failed, d)
	o.logger.Error("transaction write failed",
		zap.String("tx_id", d.tx.ID),
		zap.String("branch", d.tx.Branch),
		zap.Int("attempt", d.attempt),
		zap.Error(err),
	)
}

// Failed lists deliveries whose last attempt failed, oldest first.
func (o *Outbox) Failed() []FailedRecord {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]FailedRecord, 0, len(o.failed))
	for _, d := range o.failed {
		out = append(out, d.record())
	}
	return out
}

// Replay re-submits every failed delivery and clears the failed list.
// Records that fail again reappear in Failed with a higher attempt count.
func (o *Outbox) Replay(ctx context.Context) ([]*Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	pending := o.failed
	o.failed = nil
	o.mu.Unlock()

	deliveries := make([]*Delivery, 0, len(pending))
	for _, d := range pending {
		deliveries = append(deliveries, o.submit(newDelivery(d.tx, d.attempt+1)))
	}
	if len(deliveries) > 0 {
		o.logger.Info("replaying failed transactions", zap.Int("count", len(deliveries)))
	}
	return deliveries, nil
}
