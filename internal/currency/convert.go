package currency

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"moneymanager/internal/core"
)

// Display is the currency totals are rendered in: USD or the table's secondary.
type Display string

const DisplayUSD Display = "USD"

// ParseDisplay accepts USD or the configured secondary currency code.
func ParseDisplay(s, secondary string) (Display, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch {
	case s == "" || s == string(DisplayUSD):
		return DisplayUSD, nil
	case strings.EqualFold(s, secondary):
		return Display(strings.ToUpper(secondary)), nil
	}
	return "", fmt.Errorf("%w: display %q", core.ErrInvalidCurrency, s)
}

// ToUSD converts an amount to USD. CRYPTO is already USD-denominated.
func ToUSD(amount decimal.Decimal, from core.Currency, t Table) decimal.Decimal {
	if from == core.EUR {
		return amount.Mul(t.EURToUSD)
	}
	return amount
}

// FromUSD converts a USD amount to the display currency.
func FromUSD(amountUSD decimal.Decimal, to Display, t Table) decimal.Decimal {
	if to == DisplayUSD || to == "" {
		return amountUSD
	}
	return amountUSD.Mul(t.USDToSecondary)
}

// Convert maps an amount in from to the display currency.
func Convert(amount decimal.Decimal, from core.Currency, to Display, t Table) decimal.Decimal {
	return FromUSD(ToUSD(amount, from, t), to, t)
}
