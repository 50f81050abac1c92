package model

import "github.com/shopspring/decimal"

// PricePoint is a provider closing value for one trading day.
type PricePoint struct {
	Date  Date
	Close decimal.Decimal
}
