package outbox

import (
	"context"
	"sync"
	"time"

	"kasapos/backend/internal/domain"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPersisted Status = "persisted"
	StatusFailed    Status = "failed"
)

// Delivery is the eventual remote outcome of one submitted transaction.
type Delivery struct {
	tx      domain.Transaction
	attempt int
	done    chan struct{}

	mu       sync.Mutex
	status   Status
	err      error
	finished time.Time
}

type FailedRecord struct {
	Transaction domain.Transaction `json:"transaction"`
	Error       string             `json:"error"`
	Attempts    int                `json:"attempts"`
	FailedAt    time.Time          `json:"failed_at"`
}

func newDelivery(tx domain.Transaction, attempt int) *Delivery {
	return &Delivery{
		tx:      tx,
		attempt: attempt,
		done:    make(chan struct{}),
		status:  StatusPending,
	}
}

func (d *Delivery) TransactionID() string {
	return d.tx.ID
}

// Done is closed once the delivery is persisted or failed.
func (d *Delivery) Done() <-chan struct{} {
	return d.done
}

func (d *Delivery) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

func (d *Delivery) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Wait blocks until the delivery finishes or ctx ends and returns the
// write error, if any.
func (d *Delivery) Wait(ctx context.Context) error {
	select {
	case <-d.done:
		return d.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Delivery) finish(status Status, err error, at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.status != StatusPending {
		return
	}
	d.status = status
	d.err = err
	d.finished = at
	close(d.done)
}

func (d *Delivery) record() FailedRecord {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec := FailedRecord{
		Transaction: d.tx,
		Attempts:    d.attempt,
		FailedAt:    d.finished,
	}
	if d.err != nil {
		rec.Error = d.err.Error()
	}
	return rec
}
