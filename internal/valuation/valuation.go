// Package valuation turns a holdings state into a portfolio valuation.
package valuation

import (
	"fmt"

	"github.com/KotFed0t/portfolio_snapshots/internal/model"
	"github.com/KotFed0t/portfolio_snapshots/internal/service"
	"github.com/shopspring/decimal"
)

// ValuationPlaces is the precision snapshots are stored with.
const ValuationPlaces = 2

type PriceLookup interface {
	PriceAt(key model.InstrumentKey, date model.Date) (decimal.Decimal, error)
}

type RateLookup interface {
	Rate(from, to string, date model.Date) (decimal.Decimal, error)
}

// Compute values every held position on date in baseCurrency. Prices and rates
// fall back to the latest value on or before date. If any holding cannot be
// priced the result is ErrIncompleteSnapshot and must not be persisted.
func Compute(holdings model.HoldingsState, date model.Date, baseCurrency string, prices PriceLookup, rates RateLookup) (decimal.Decimal, error) {
	total := decimal.Zero

	for _, key := range holdings.HeldInstruments() {
		pos := holdings.Positions[key]

		price, err := prices.PriceAt(key, date)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("%w: %w", service.ErrIncompleteSnapshot, err)
		}

		value := pos.Quantity.Mul(price)
		if pos.Currency != "" && pos.Currency != baseCurrency {
			rate, err := rates.Rate(pos.Currency, baseCurrency, date)
			if err != nil {
				return decimal.Decimal{}, fmt.Errorf("%w: %w", service.ErrIncompleteSnapshot, err)
			}
			value = value.Mul(rate)
		}

		total = total.Add(value)
	}

	return total.Round(ValuationPlaces), nil
}
