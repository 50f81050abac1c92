package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type Transaction struct {
	ID            int64           `db:"transaction_id"`
	PortfolioID   int64           `db:"portfolio_id"`
	InstrumentKey string          `db:"instrument_key"`
	Side          string          `db:"side"`
	Quantity      decimal.Decimal `db:"quantity"`
	PricePerUnit  decimal.Decimal `db:"price_per_unit"`
	Currency      string          `db:"currency"`
	OccurredAt    time.Time       `db:"occurred_at"`
}
