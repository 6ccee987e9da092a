package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatTurkishLira(t *testing.T) {
	f := NewFormatter("tr", "₺")

	assert.Equal(t, "₺1.234,50", f.Format(decimal.RequireFromString("1234.5")))
	assert.Equal(t, "₺25,00", f.Format(decimal.NewFromInt(25)))
	assert.Equal(t, "-₺25,00", f.Format(decimal.NewFromInt(-25)))
}

func TestFormatFallsBackOnUnknownLocale(t *testing.T) {
	f := NewFormatter("not a locale!!", "")

	assert.Equal(t, "₺0,00", f.Format(decimal.Zero))
}

func TestFormatEnglish(t *testing.T) {
	f := NewFormatter("en", "$")

	assert.Equal(t, "$1,000.05", f.Format(decimal.RequireFromString("1000.049")))
}

func TestFormatKeepsPrecisionOfLargeAmounts(t *testing.T) {
	f := NewFormatter("tr-TR", "₺")

	assert.Equal(t, "₺1.234.567.890.123.456,78", f.Format(decimal.RequireFromString("1234567890123456.78")))
	assert.Equal(t, "-₺9.007.199.254.740.993,01", f.Format(decimal.RequireFromString("-9007199254740993.01")))
	assert.Equal(t, "₺0,05", f.Format(decimal.RequireFromString("0.049")))
}

func TestFormatBeyondInt64IsUngrouped(t *testing.T) {
	f := NewFormatter("tr-TR", "₺")

	assert.Equal(t, "₺12345678901234567890,10", f.Format(decimal.RequireFromString("12345678901234567890.1")))
}
