package cart

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"kasapos/backend/internal/domain"
)

var (
	ErrEmptyCart    = errors.New("cart is empty")
	ErrSlotNotFound = errors.New("parked slot not found")
)

// Cart is the active receipt of one session plus its parked slots.
// It is not safe for concurrent use; the owning till serializes access.
type Cart struct {
	lines      []domain.CartLine
	refundMode bool
	parked     []domain.ParkedSlot
	nextSlotID int
}

func New() *Cart {
	return &Cart{nextSlotID: 1}
}

// AddLine increments the quantity of an existing barcode or appends a new line.
func (c *Cart) AddLine(p domain.Product) domain.CartLine {
	for i := range c.lines {
		if c.lines[i].Barcode == p.Barcode {
			c.lines[i].Quantity++
			return c.lines[i]
		}
	}
	line := domain.NewCartLine(p)
	c.lines = append(c.lines, line)
	return line
}

// RemoveLine drops the line for barcode. Missing barcodes are ignored.
func (c *Cart) RemoveLine(barcode string) bool {
	for i := range c.lines {
		if c.lines[i].Barcode == barcode {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return true
		}
	}
	return false
}

// ChangeQuantity adds delta to the line's quantity, clamping at 1.
func (c *Cart) ChangeQuantity(barcode string, delta int) (domain.CartLine, bool) {
	for i := range c.lines {
		if c.lines[i].Barcode == barcode {
			c.lines[i].Quantity = max(1, c.lines[i].Quantity+delta)
			return c.lines[i], true
		}
	}
	return domain.CartLine{}, false
}

func (c *Cart) ToggleRefundMode() bool {
	c.refundMode = !c.refundMode
	return c.refundMode
}

func (c *Cart) RefundMode() bool {
	return c.refundMode
}

// Clear empties the active receipt and leaves refund mode.
func (c *Cart) Clear() {
	c.lines = nil
	c.refundMode = false
}

func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

func (c *Cart) Total() decimal.Decimal {
	return sum(c.lines)
}

// Lines returns a copy; callers may keep it past later mutations.
func (c *Cart) Lines() []domain.CartLine {
	return cloneLines(c.lines)
}

// Park moves the active lines into a new slot and empties the receipt.
func (c *Cart) Park(now time.Time) (domain.ParkedSlot, error) {
	if c.IsEmpty() {
		return domain.ParkedSlot{}, ErrEmptyCart
	}

	slot := domain.ParkedSlot{
		ID:       c.nextSlotID,
		Items:    cloneLines(c.lines),
		Total:    c.Total(),
		ParkedAt: now,
	}
	c.nextSlotID++
	c.parked = append(c.parked, slot)
	c.Clear()
	return cloneSlot(slot), nil
}

// Retrieve replaces the active lines with the slot's lines and removes the
// slot. The retrieved receipt is always a sale. Discarding a non-empty
// receipt must be confirmed by the caller first.
func (c *Cart) Retrieve(slotID int) (domain.ParkedSlot, error) {
	for i, slot := range c.parked {
		if slot.ID != slotID {
			continue
		}
		c.lines = cloneLines(slot.Items)
		c.refundMode = false
		c.parked = append(c.parked[:i], c.parked[i+1:]...)
		return cloneSlot(slot), nil
	}
	return domain.ParkedSlot{}, ErrSlotNotFound
}

func (c *Cart) HasSlot(slotID int) bool {
	for _, slot := range c.parked {
		if slot.ID == slotID {
			return true
		}
	}
	return false
}

func (c *Cart) Parked() []domain.ParkedSlot {
	out := make([]domain.ParkedSlot, 0, len(c.parked))
	for _, slot := range c.parked {
		out = append(out, cloneSlot(slot))
	}
	return out
}

// Reset drops everything, including parked slots and the slot counter.
func (c *Cart) Reset() {
	c.Clear()
	c.parked = nil
	c.nextSlotID = 1
}

func sum(lines []domain.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return total.Round(domain.MoneyPlaces)
}

func cloneLines(lines []domain.CartLine) []domain.CartLine {
	if len(lines) == 0 {
		return []domain.CartLine{}
	}
	out := make([]domain.CartLine, len(lines))
	copy(out, lines)
	return out
}

func cloneSlot(slot domain.ParkedSlot) domain.ParkedSlot {
	slot.Items = cloneLines(slot.Items)
	return slot
}
