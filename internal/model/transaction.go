package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy        Side = "BUY"
	SideSell       Side = "SELL"
	SideDeposit    Side = "DEPOSIT"
	SideWithdrawal Side = "WITHDRAWAL"
)

func ParseSide(s string) (Side, error) {
	switch side := Side(strings.ToUpper(strings.TrimSpace(s))); side {
	case SideBuy, SideSell, SideDeposit, SideWithdrawal:
		return side, nil
	default:
		return "", fmt.Errorf("unknown transaction side %q", s)
	}
}

// IsCashFlow reports whether the side moves money in or out of the portfolio
// rather than changing a position.
func (s Side) IsCashFlow() bool {
	return s == SideDeposit || s == SideWithdrawal
}

// InstrumentKey identifies a priced instrument, either a bare ticker ("SBER")
// or a board-qualified one ("TQTF:FXUS").
type InstrumentKey string

// Board splits the key into board and ticker. The board is empty for bare tickers.
func (k InstrumentKey) Board() (board, ticker string) {
	if b, t, ok := strings.Cut(string(k), ":"); ok {
		return b, t
	}
	return "", string(k)
}

// Transaction is an immutable ledger entry. ID is the insertion sequence and
// breaks ties between transactions with the same OccurredAt.
type Transaction struct {
	ID            int64
	PortfolioID   int64
	InstrumentKey InstrumentKey
	Side          Side
	Quantity      decimal.Decimal
	PricePerUnit  decimal.Decimal
	Currency      string
	OccurredAt    time.Time
}

// Amount is quantity times price per unit.
func (t Transaction) Amount() decimal.Decimal {
	return t.Quantity.Mul(t.PricePerUnit)
}
