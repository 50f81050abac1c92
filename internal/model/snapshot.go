package model

import "github.com/shopspring/decimal"

// PortfolioSnapshot is the valuation of a portfolio on one calendar date,
// in the portfolio base currency. (PortfolioID, Date) is unique.
type PortfolioSnapshot struct {
	PortfolioID int64
	Date        Date
	Valuation   decimal.Decimal
	Currency    string
}
