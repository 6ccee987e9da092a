package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the minor-unit precision of the till currency.
const MoneyPlaces = 2

type Product struct {
	ID        string          `json:"id,omitempty"`
	Barcode   string          `json:"barcode"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Category  string          `json:"category"`
	QuickPick bool            `json:"quick_pick"`
}

type CartLine struct {
	Barcode  string          `json:"barcode"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
	Quantity int             `json:"quantity"`
}

func NewCartLine(p Product) CartLine {
	return CartLine{
		Barcode:  p.Barcode,
		Name:     p.Name,
		Price:    p.Price,
		Category: p.Category,
		Quantity: 1,
	}
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type ParkedSlot struct {
	ID       int             `json:"id"`
	Items    []CartLine      `json:"items"`
	Total    decimal.Decimal `json:"total"`
	ParkedAt time.Time       `json:"parked_at"`
}

type Transaction struct {
	ID           string          `json:"id"`
	Items        []CartLine      `json:"items"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Payment      PaymentType     `json:"payment"`
	IsRefund     bool            `json:"is_refund"`
	CustomerName string          `json:"customer_name,omitempty"`
	Branch       string          `json:"branch"`
	CashierName  string          `json:"cashier_name"`
	TerminalID   string          `json:"terminal_id"`
	CreatedAt    time.Time       `json:"created_at"`
	DisplayTime  string          `json:"display_time"`
}

type User struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Role     string   `json:"role"`
	Branches []string `json:"branches"`
}

func (u User) CanUseBranch(branch string) bool {
	for _, b := range u.Branches {
		if b == branch {
			return true
		}
	}
	return false
}

type Session struct {
	ID         string    `json:"id"`
	TerminalID string    `json:"terminal_id"`
	User       User      `json:"user"`
	Branch     string    `json:"branch"`
	StartedAt  time.Time `json:"started_at"`
}

type DailySummary struct {
	Count            int             `json:"count"`
	CashTotal        decimal.Decimal `json:"cash_total"`
	CardTotal        decimal.Decimal `json:"card_total"`
	MealCardTotal    decimal.Decimal `json:"meal_card_total"`
	StoreCreditTotal decimal.Decimal `json:"store_credit_total"`
	RefundTotal      decimal.Decimal `json:"refund_total"`
	NetTotal         decimal.Decimal `json:"net_total"`
}

type DailyReport struct {
	Branch  string       `json:"branch,omitempty"`
	Date    string       `json:"date"`
	Source  string       `json:"source"`
	Summary DailySummary `json:"summary"`
}

type Advice struct {
	Kind     string `json:"kind"`
	Title    string `json:"title"`
	Text     string `json:"text"`
	Fallback bool   `json:"fallback"`
}

const (
	RoleManager = "manager"
	RoleCashier = "cashier"
)

const (
	ReportSourceSession = "session"
	ReportSourceRemote  = "remote"
)
