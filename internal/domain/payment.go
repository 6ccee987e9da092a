package domain

import (
	"fmt"
	"strings"
)

const (
	PaymentCash        = "cash"
	PaymentCard        = "card"
	PaymentMealCard    = "meal_card"
	PaymentStoreCredit = "store_credit"
)

const (
	MealCardSodexo   = "sodexo"
	MealCardTicket   = "ticket"
	MealCardMultinet = "multinet"
	MealCardSetcard  = "setcard"
)

// UnnamedAccount replaces a blank store-credit customer name.
const UnnamedAccount = "unnamed account"

var mealCardProviderNames = map[string]string{
	MealCardSodexo:   "Sodexo",
	MealCardTicket:   "Ticket",
	MealCardMultinet: "Multinet",
	MealCardSetcard:  "Setcard",
}

func MealCardProviders() []string {
	return []string{MealCardSodexo, MealCardTicket, MealCardMultinet, MealCardSetcard}
}

func IsMealCardProvider(provider string) bool {
	_, ok := mealCardProviderNames[provider]
	return ok
}

func IsPaymentMethod(method string) bool {
	switch method {
	case PaymentCash, PaymentCard, PaymentMealCard, PaymentStoreCredit:
		return true
	default:
		return false
	}
}

// RefundAllowed reports whether a refund may be issued through method.
func RefundAllowed(method string) bool {
	return method == PaymentCash || method == PaymentCard
}

// NeedsDialog reports whether method requires a detail step before completion.
func NeedsDialog(method string) bool {
	return method == PaymentMealCard || method == PaymentStoreCredit
}

type PaymentType struct {
	Method   string `json:"method"`
	Provider string `json:"provider,omitempty"`
	Refund   bool   `json:"refund"`
}

func (p PaymentType) Label() string {
	var label string
	switch p.Method {
	case PaymentCash:
		label = "Cash"
	case PaymentCard:
		label = "Card"
	case PaymentMealCard:
		label = "Meal Card"
		if name, ok := mealCardProviderNames[p.Provider]; ok {
			label = fmt.Sprintf("Meal Card (%s)", name)
		}
	case PaymentStoreCredit:
		label = "Store Credit"
	default:
		label = strings.ToUpper(p.Method)
	}
	if p.Refund {
		label += " Refund"
	}
	return label
}

// PaymentChoice is what the operator submits when completing a sale.
type PaymentChoice struct {
	Method       string `json:"method"`
	Provider     string `json:"provider,omitempty"`
	CustomerName string `json:"customer_name,omitempty"`
}
