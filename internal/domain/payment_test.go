package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestPaymentTypeLabel(t *testing.T) {
	cases := []struct {
		payment PaymentType
		want    string
	}{
		{PaymentType{Method: PaymentCash}, "Cash"},
		{PaymentType{Method: PaymentCard, Refund: true}, "Card Refund"},
		{PaymentType{Method: PaymentMealCard, Provider: MealCardMultinet}, "Meal Card (Multinet)"},
		{PaymentType{Method: PaymentMealCard}, "Meal Card"},
		{PaymentType{Method: PaymentStoreCredit}, "Store Credit"},
	}
	for _, tc := range cases {
		if got := tc.payment.Label(); got != tc.want {
			t.Fatalf("label for %+v: expected %q, got %q", tc.payment, tc.want, got)
		}
	}
}

func TestRefundOnlyThroughCashOrCard(t *testing.T) {
	if !RefundAllowed(PaymentCash) || !RefundAllowed(PaymentCard) {
		t.Fatalf("expected cash and card refunds to be allowed")
	}
	if RefundAllowed(PaymentMealCard) || RefundAllowed(PaymentStoreCredit) {
		t.Fatalf("expected meal card and store credit refunds to be disabled")
	}
}

func TestMealCardProvidersAreKnown(t *testing.T) {
	providers := MealCardProviders()
	if len(providers) != 4 {
		t.Fatalf("expected four providers, got %d", len(providers))
	}
	for _, p := range providers {
		if !IsMealCardProvider(p) {
			t.Fatalf("provider %q not recognised", p)
		}
	}
	if IsMealCardProvider("") {
		t.Fatalf("empty provider must not be accepted")
	}
}

func TestRosterBranches(t *testing.T) {
	roster := DefaultRoster()
	if !roster[0].CanUseBranch("Şube 2") {
		t.Fatalf("manager should be allowed in Şube 2")
	}
	if roster[1].CanUseBranch("Şube 2") {
		t.Fatalf("cashier of Merkez must not use Şube 2")
	}
}

func TestCartLineSubtotal(t *testing.T) {
	line := NewCartLine(Product{Barcode: "869001", Name: "Ekmek", Price: decimal.RequireFromString("10.00")})
	line.Quantity = 3
	if !line.Subtotal().Equal(decimal.RequireFromString("30")) {
		t.Fatalf("expected subtotal 30, got %s", line.Subtotal())
	}
}
