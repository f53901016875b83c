package currency

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Formatter renders amounts with two decimals and the currency symbol.
type Formatter struct {
	code    string
	unit    currency.Unit
	printer *message.Printer
}

// localeForCurrency gives each supported display currency a home locale.
var localeForCurrency = map[string]language.Tag{
	"USD": language.AmericanEnglish,
	"EUR": language.German,
	"UAH": language.Ukrainian,
}

// NewFormatter builds a formatter for an ISO code. CRYPTO and unknown codes
// format like USD numbers with the code as suffix.
func NewFormatter(code string) Formatter {
	code = strings.ToUpper(strings.TrimSpace(code))
	unit, err := currency.ParseISO(code)
	if err != nil {
		unit = currency.USD
	}
	tag, ok := localeForCurrency[code]
	if !ok {
		tag = language.English
	}
	return Formatter{code: code, unit: unit, printer: message.NewPrinter(tag)}
}

func (f Formatter) symbol() string {
	if _, err := currency.ParseISO(f.code); err != nil {
		return f.code
	}
	return f.printer.Sprint(currency.NarrowSymbol(f.unit))
}

// Format renders the amount rounded to cents.
func (f Formatter) Format(amount decimal.Decimal) string {
	v := amount.Round(2).InexactFloat64()
	formatted := f.printer.Sprint(number.Decimal(v, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
	if f.code == "USD" {
		return f.symbol() + formatted
	}
	return formatted + " " + f.symbol()
}
