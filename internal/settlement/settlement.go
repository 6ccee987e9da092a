package settlement

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"kasapos/backend/internal/cart"
	"kasapos/backend/internal/domain"
	"kasapos/backend/internal/ledger"
	"kasapos/backend/internal/outbox"
	"kasapos/backend/internal/xid"
)

type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StatePersisting State = "persisting"
	StateCommitted  State = "committed"
	StateFailed     State = "failed"
)

var (
	ErrEmptyCart        = cart.ErrEmptyCart
	ErrUnknownMethod    = errors.New("unknown payment method")
	ErrMethodDisabled   = errors.New("payment method disabled in refund mode")
	ErrProviderRequired = errors.New("meal card provider required")
	ErrZeroTotal        = errors.New("cart total must be positive")
)

const displayTimeLayout = "15:04:05"

// Submitter accepts a completed transaction for asynchronous persistence.
type Submitter interface {
	Submit(tx domain.Transaction) *outbox.Delivery
}

type Engine struct {
	outbox Submitter
	logger *zap.Logger
	now    func() time.Time
}

func New(submitter Submitter, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		outbox: submitter,
		logger: logger.Named("settlement"),
		now:    time.Now,
	}
}

// Result describes a locally committed sale. The remote write continues in
// the background and is observable through Delivery.
type Result struct {
	Transaction domain.Transaction
	State       State
	Delivery    *outbox.Delivery
}

// Remote maps the delivery outcome onto the settlement states.
func (r Result) Remote() State {
	if r.Delivery == nil {
		return StateIdle
	}
	switch r.Delivery.Status() {
	case outbox.StatusPersisted:
		return StateCommitted
	case outbox.StatusFailed:
		return StateFailed
	default:
		return StatePersisting
	}
}

// Validate checks choice against the cart without changing anything.
func Validate(c *cart.Cart, choice domain.PaymentChoice) error {
	if c.IsEmpty() {
		return ErrEmptyCart
	}
	// Refunds are told apart by a negative total, so zero cannot settle.
	if !c.Total().IsPositive() {
		return ErrZeroTotal
	}
	if !domain.IsPaymentMethod(choice.Method) {
		return fmt.Errorf("%w: %q", ErrUnknownMethod, choice.Method)
	}
	if c.RefundMode() && !domain.RefundAllowed(choice.Method) {
		return ErrMethodDisabled
	}
	if choice.Method == domain.PaymentMealCard && !domain.IsMealCardProvider(choice.Provider) {
		return ErrProviderRequired
	}
	return nil
}

// Complete turns the cart into a transaction, queues it for the remote sink,
// appends it to the session ledger and clears the cart. Validation failures
// leave cart and ledger untouched.
func (e *Engine) Complete(c *cart.Cart, l *ledger.Ledger, session domain.Session, choice domain.PaymentChoice) (Result, error) {
	if err := Validate(c, choice); err != nil {
		return Result{State: StateIdle}, err
	}

	refund := c.RefundMode()
	amount := c.Total()
	if refund {
		amount = amount.Neg()
	}

	payment := domain.PaymentType{Method: choice.Method, Refund: refund}
	if choice.Method == domain.PaymentMealCard {
		payment.Provider = choice.Provider
	}

	customer := ""
	if choice.Method == domain.PaymentStoreCredit {
		customer = strings.TrimSpace(choice.CustomerName)
		if customer == "" {
			customer = domain.UnnamedAccount
		}
	}

	now := e.now()
	tx := domain.Transaction{
		ID:           xid.New("tx"),
		Items:        c.Lines(),
		TotalAmount:  amount,
		Payment:      payment,
		IsRefund:     refund,
		CustomerName: customer,
		Branch:       session.Branch,
		CashierName:  session.User.Name,
		TerminalID:   session.TerminalID,
		CreatedAt:    now.UTC(),
		DisplayTime:  now.Format(displayTimeLayout),
	}

	delivery := e.outbox.Submit(tx)
	l.Append(tx)
	c.Clear()

	e.logger.Info("sale completed",
		zap.String("tx_id", tx.ID),
		zap.String("payment", payment.Label()),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("branch", tx.Branch),
		zap.String("terminal_id", tx.TerminalID),
	)

	return Result{Transaction: tx, State: StateCommitted, Delivery: delivery}, nil
}
