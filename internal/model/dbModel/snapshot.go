package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type Snapshot struct {
	PortfolioID  int64           `db:"portfolio_id"`
	SnapshotDate time.Time       `db:"snapshot_date"`
	Valuation    decimal.Decimal `db:"valuation"`
	Currency     string          `db:"currency"`
}
