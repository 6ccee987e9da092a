package money

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"kasapos/backend/internal/domain"
)

var maxInt64 = decimal.NewFromInt(1<<63 - 1)

// Formatter renders amounts for display only; arithmetic stays on decimal values.
type Formatter struct {
	printer *message.Printer
	symbol  string
	point   string
}

func NewFormatter(locale string, symbol string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Turkish
	}
	if symbol == "" {
		symbol = "₺"
	}
	printer := message.NewPrinter(tag)
	// The locale's decimal separator, e.g. "," for tr and "." for en.
	point := strings.TrimSuffix(strings.TrimPrefix(printer.Sprint(number.Decimal(1.5, number.Scale(1))), "1"), "5")
	if point == "" {
		point = "."
	}
	return &Formatter{printer: printer, symbol: symbol, point: point}
}

// Format groups the whole part with the locale printer and appends the
// minor units taken from the exact decimal string.
func (f *Formatter) Format(amount decimal.Decimal) string {
	rounded := amount.Round(domain.MoneyPlaces)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Neg()
	}

	fixed := rounded.StringFixed(domain.MoneyPlaces)
	dot := strings.IndexByte(fixed, '.')
	whole, minor := fixed[:dot], fixed[dot+1:]

	if units := rounded.Truncate(0); units.LessThanOrEqual(maxInt64) {
		return sign + f.symbol + f.printer.Sprint(number.Decimal(units.IntPart())) + f.point + minor
	}
	// Beyond int64 the whole part is printed ungrouped.
	return sign + f.symbol + whole + f.point + minor
}
