package valuation

import (
	"fmt"

	"github.com/KotFed0t/portfolio_snapshots/internal/model"
	"github.com/KotFed0t/portfolio_snapshots/internal/service"
	"github.com/shopspring/decimal"
)

// PivotCurrency is the currency FX series are quoted in.
const PivotCurrency = "RUB"

// PriceBook answers price lookups from series already fetched for a run.
type PriceBook map[model.InstrumentKey]Series

func (b PriceBook) PriceAt(key model.InstrumentKey, date model.Date) (decimal.Decimal, error) {
	series, ok := b[key]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: no series for %s", service.ErrMissingPrice, key)
	}
	point, ok := series.AtOrBefore(date)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: no price for %s on or before %s", service.ErrMissingPrice, key, date)
	}
	return point.Close, nil
}

// RateBook holds the value of one unit of each currency in PivotCurrency.
type RateBook map[string]Series

// Rate returns how many units of to one unit of from is worth on date.
func (b RateBook) Rate(from, to string, date model.Date) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	fromRate, err := b.pivot(from, date)
	if err != nil {
		return decimal.Decimal{}, err
	}
	toRate, err := b.pivot(to, date)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if toRate.IsZero() {
		return decimal.Decimal{}, fmt.Errorf("%w: zero rate for %s on %s", service.ErrMissingPrice, to, date)
	}
	return fromRate.Div(toRate), nil
}

func (b RateBook) pivot(currency string, date model.Date) (decimal.Decimal, error) {
	if currency == PivotCurrency {
		return decimal.NewFromInt(1), nil
	}
	series, ok := b[currency]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: no rate series for %s", service.ErrMissingPrice, currency)
	}
	point, ok := series.AtOrBefore(date)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: no %s rate on or before %s", service.ErrMissingPrice, currency, date)
	}
	return point.Close, nil
}
