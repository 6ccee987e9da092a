package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"kasapos/backend/internal/advisory"
	"kasapos/backend/internal/cart"
	"kasapos/backend/internal/catalog"
	"kasapos/backend/internal/domain"
	"kasapos/backend/internal/ledger"
	"kasapos/backend/internal/money"
	"kasapos/backend/internal/settlement"
)

const (
	ActionCancelReceipt = "cancel_receipt"
	ActionRetrieve      = "retrieve_parked"
	ActionImportCatalog = "import_catalog"
)

// PendingConfirmation is a destructive action waiting for Confirm or Decline.
type PendingConfirmation struct {
	Action  string `json:"action"`
	SlotID  int    `json:"slot_id,omitempty"`
	Message string `json:"message"`
}

// ConfirmOutcome reports what a confirmed action did.
type ConfirmOutcome struct {
	Action    string             `json:"action"`
	Retrieved *domain.ParkedSlot `json:"retrieved,omitempty"`
	Imported  int                `json:"imported,omitempty"`
}

// View is a read-only snapshot of a till for rendering.
type View struct {
	TerminalID      string               `json:"terminal_id"`
	Session         *domain.Session      `json:"session,omitempty"`
	Lines           []domain.CartLine    `json:"lines"`
	Total           decimal.Decimal      `json:"total"`
	TotalDisplay    string               `json:"total_display"`
	RefundMode      bool                 `json:"refund_mode"`
	Parked          []domain.ParkedSlot  `json:"parked"`
	Pending         *PendingConfirmation `json:"pending,omitempty"`
	PaymentDialog   string               `json:"payment_dialog,omitempty"`
	AdvisoryLoading []string             `json:"advisory_loading"`
	LedgerCount     int                  `json:"ledger_count"`
}

// Till is one terminal's application state. Every mutation runs under mu,
// so operations on a till are applied one at a time. Network calls made on
// behalf of the till (advisory, catalog import) run outside the lock.
type Till struct {
	terminalID string
	catalog    *catalog.Catalog
	engine     *settlement.Engine
	advisor    *advisory.Advisor
	money      *money.Formatter
	logger     *zap.Logger
	now        func() time.Time

	mu      sync.Mutex
	session *domain.Session
	cart    *cart.Cart
	ledger  *ledger.Ledger
	pending *PendingConfirmation
	dialog  string
	loading map[string]bool
}

func (t *Till) TerminalID() string {
	return t.terminalID
}

func (t *Till) requireSessionLocked() error {
	if t.session == nil {
		return ErrNoSession
	}
	return nil
}

// touchLocked is called by every cart mutation; a stale confirmation must
// not fire against a cart the operator has since changed.
func (t *Till) touchLocked() {
	t.pending = nil
}

func (t *Till) View() View {
	t.mu.Lock()
	defer t.mu.Unlock()

	loading := make([]string, 0, len(t.loading))
	for kind, busy := range t.loading {
		if busy {
			loading = append(loading, kind)
		}
	}
	sort.Strings(loading)

	var session *domain.Session
	if t.session != nil {
		s := *t.session
		session = &s
	}
	var pending *PendingConfirmation
	if t.pending != nil {
		p := *t.pending
		pending = &p
	}

	total := t.cart.Total()
	return View{
		TerminalID:      t.terminalID,
		Session:         session,
		Lines:           t.cart.Lines(),
		Total:           total,
		TotalDisplay:    t.money.Format(total),
		RefundMode:      t.cart.RefundMode(),
		Parked:          t.cart.Parked(),
		Pending:         pending,
		PaymentDialog:   t.dialog,
		AdvisoryLoading: loading,
		LedgerCount:     t.ledger.Len(),
	}
}

// Scan resolves a barcode or name fragment and adds one unit to the cart.
func (t *Till) Scan(input string) (domain.CartLine, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.requireSessionLocked(); err != nil {
		return domain.CartLine{}, err
	}
	product, err := t.catalog.Resolve(input)
	if err != nil {
		return domain.CartLine{}, err
	}
	t.touchLocked()
	return t.cart.AddLine(product), nil
}

// AddProduct adds one unit of the product with the exact barcode.
func (t *Till) AddProduct(barcode string) (domain.CartLine, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.requireSessionLocked(); err != nil {
		return domain.CartLine{}, err
	}
	product, err := t.catalog.Lookup(barcode)
	if err != nil {
		return domain.CartLine{}, err
	}
	t.touchLocked()
	return t.cart.AddLine(product), nil
}

func (t *Till) RemoveLine(barcode string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.requireSessionLocked(); err != nil {
		return err
	}
	t.touchLocked()
	t.cart.RemoveLine(barcode)
	return nil
}

func (t *Till) ChangeQuantity(barcode string, delta int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.requireSessionLocked(); err != nil {
		return err
	}
	t.touchLocked()
	t.cart.ChangeQuantity(barcode, delta)
	return nil
}

// ToggleRefundMode flips refund mode. Entering refund mode closes an open
// meal card or store credit dialog since those methods become unavailable.
func (t *Till) ToggleRefundMode() (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.requireSessionLocked(); err != nil {
		return false, err
	}
	t.touchLocked()
	on := t.cart.ToggleRefundMode()
	if on {
		t.dialog = ""
	}
	return on, nil
}

// RequestCancelReceipt asks for confirmation before clearing a non-empty
// cart. An empty cart is cleared at once and nil is returned.
func (t *Till) RequestCancelReceipt() (*PendingConfirmation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.requireSessionLocked(); err != nil {
		return nil, err
	}
	if t.cart.IsEmpty() {
		t.touchLocked()
		t.cart.Clear()
		return nil, nil
	}
	t.pending = &PendingConfirmation{
		Action:  ActionCancelReceipt,
		Message: fmt.Sprintf("Cancel the receipt and discard %d line(s)?", len(t.cart.Lines())),
	}
	p := *t.pending
	return &p, nil
}

func (t *Till) Park() (domain.ParkedSlot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.requireSessionLocked(); err != nil {
		return domain.ParkedSlot{}, err
	}
	slot, err := t.cart.Park(t.now())
	if err != nil {
		return domain.ParkedSlot{}, err
	}
	t.touchLocked()
	t.dialog = ""
	return slot, nil
}

// RequestRetrieve asks for confirmation when retrieving would discard a
// non-empty cart. Onto an empty cart the slot is retrieved at once and nil
// is returned.
func (t *Till) RequestRetrieve(slotID int) (*PendingConfirmation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.requireSessionLocked(); err != nil {
		return nil, err
	}
	if !t.cart.HasSlot(slotID) {
		return nil, cart.ErrSlotNotFound
	}
	if t.cart.IsEmpty() {
		t.touchLocked()
		if _, err := t.cart.Retrieve(slotID); err != nil {
			return nil, err
		}
		return nil, nil
	}
	t.pending = &PendingConfirmation{
		Action:  ActionRetrieve,
		SlotID:  slotID,
		Message: fmt.Sprintf("The current receipt will be discarded to retrieve parked receipt #%d. Continue?", slotID),
	}
	p := *t.pending
	return &p, nil
}

// RequestCatalogImport always needs confirmation.
func (t *Till) RequestCatalogImport() (PendingConfirmation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.requireSessionLocked(); err != nil {
		return PendingConfirmation{}, err
	}
	t.pending = &PendingConfirmation{
		Action:  ActionImportCatalog,
		Message: "Import the default product list into the empty catalog?",
	}
	return *t.pending, nil
}

func (t *Till) Pending() *PendingConfirmation {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == nil {
		return nil
	}
	p := *t.pending
	return &p
}

// Confirm executes the pending action.
func (t *Till) Confirm(ctx context.Context) (ConfirmOutcome, error) {
	t.mu.Lock()
	if err := t.requireSessionLocked(); err != nil {
		t.mu.Unlock()
		return ConfirmOutcome{}, err
	}
	pending := t.pending
	t.pending = nil
	if pending == nil {
		t.mu.Unlock()
		return ConfirmOutcome{}, ErrNothingPending
	}

	outcome := ConfirmOutcome{Action: pending.Action}
	switch pending.Action {
	case ActionCancelReceipt:
		t.cart.Clear()
		t.dialog = ""
		t.mu.Unlock()
		t.logger.Info("receipt cancelled", zap.String("terminal_id", t.terminalID))
		return outcome, nil
	case ActionRetrieve:
		slot, err := t.cart.Retrieve(pending.SlotID)
		t.mu.Unlock()
		if err != nil {
			return ConfirmOutcome{}, err
		}
		outcome.Retrieved = &slot
		return outcome, nil
	case ActionImportCatalog:
		t.mu.Unlock()
		n, err := t.catalog.Import(ctx)
		if err != nil {
			return ConfirmOutcome{}, err
		}
		outcome.Imported = n
		return outcome, nil
	default:
		t.mu.Unlock()
		return ConfirmOutcome{}, fmt.Errorf("unknown pending action %q", pending.Action)
	}
}

// Decline drops the pending action without changing anything else.
func (t *Till) Decline() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending == nil {
		return ErrNothingPending
	}
	t.pending = nil
	return nil
}

// OpenPaymentDialog starts the detail step for meal card or store credit.
func (t *Till) OpenPaymentDialog(method string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.requireSessionLocked(); err != nil {
		return err
	}
	if !domain.NeedsDialog(method) {
		return fmt.Errorf("%w: %q", ErrNoDialog, method)
	}
	if t.cart.RefundMode() {
		return settlement.ErrMethodDisabled
	}
	if t.cart.IsEmpty() {
		return cart.ErrEmptyCart
	}
	t.dialog = method
	return nil
}

func (t *Till) ClosePaymentDialog() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dialog = ""
}

// Complete settles the cart. A meal card choice without a provider leaves
// the provider dialog open.
func (t *Till) Complete(choice domain.PaymentChoice) (settlement.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.requireSessionLocked(); err != nil {
		return settlement.Result{}, err
	}
	res, err := t.engine.Complete(t.cart, t.ledger, *t.session, choice)
	if err != nil {
		if errors.Is(err, settlement.ErrProviderRequired) {
			t.dialog = domain.PaymentMealCard
		}
		return res, err
	}
	t.pending = nil
	t.dialog = ""
	return res, nil
}

// Suggest runs one advisory call. Only one call per kind may be in flight
// on a till; a second one gets ErrAdvisoryBusy.
func (t *Till) Suggest(ctx context.Context, kind string) (domain.Advice, error) {
	t.mu.Lock()
	if err := t.requireSessionLocked(); err != nil {
		t.mu.Unlock()
		return domain.Advice{}, err
	}
	if !advisory.IsKind(kind) {
		t.mu.Unlock()
		return domain.Advice{}, fmt.Errorf("%w: %q", advisory.ErrUnknownKind, kind)
	}
	if t.cart.IsEmpty() {
		t.mu.Unlock()
		return domain.Advice{}, cart.ErrEmptyCart
	}
	if t.loading[kind] {
		t.mu.Unlock()
		return domain.Advice{}, ErrAdvisoryBusy
	}
	t.loading[kind] = true
	lines := t.cart.Lines()
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.loading, kind)
		t.mu.Unlock()
	}()

	return t.advisor.Suggest(ctx, kind, lines)
}

func (t *Till) Summary() domain.DailySummary {
	return t.ledger.Summary()
}

func (t *Till) Transactions() []domain.Transaction {
	return t.ledger.Entries()
}

func (t *Till) currentSession() *domain.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return nil
	}
	s := *t.session
	return &s
}

func (t *Till) start(session domain.Session) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session != nil {
		return ErrSessionActive
	}
	t.session = &session
	return nil
}

// end clears everything but the ledger.
func (t *Till) end() (domain.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session == nil {
		return domain.Session{}, ErrNoSession
	}
	ended := *t.session
	t.session = nil
	t.cart.Reset()
	t.pending = nil
	t.dialog = ""
	return ended, nil
}
