// Package holdings replays a transaction ledger into point-in-time holdings.
//
// Sells reduce cost basis with the average cost method. FIFO and LIFO lots are
// not modeled.
package holdings

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/KotFed0t/portfolio_snapshots/internal/model"
	"github.com/KotFed0t/portfolio_snapshots/internal/service"
)

// CostBasisMethod names the policy used to remove cost basis on a sell.
type CostBasisMethod int

const (
	AverageCost CostBasisMethod = iota
)

func (m CostBasisMethod) String() string {
	switch m {
	case AverageCost:
		return "average"
	default:
		return "unknown"
	}
}

// Method is the policy applied by Reconstruct and Replayer.
const Method = AverageCost

// Reconstruct replays txs up to and including asOf. The input slice is not modified.
func Reconstruct(txs []model.Transaction, asOf model.Date) (model.HoldingsState, error) {
	r := NewReplayer(txs)
	return r.AdvanceTo(asOf)
}

// Sorted returns a copy of txs in replay order: by OccurredAt, then by insertion sequence.
func Sorted(txs []model.Transaction) []model.Transaction {
	sorted := slices.Clone(txs)
	slices.SortStableFunc(sorted, func(a, b model.Transaction) int {
		if c := a.OccurredAt.Compare(b.OccurredAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return sorted
}

// TradeDate is the calendar day a transaction counts towards, in UTC.
func TradeDate(tx model.Transaction) model.Date {
	return model.DateOf(tx.OccurredAt.UTC())
}

func apply(state *model.HoldingsState, tx model.Transaction) error {
	if !tx.Quantity.IsPositive() {
		return fmt.Errorf("%w: transaction %d has non-positive quantity %s", service.ErrDataIntegrity, tx.ID, tx.Quantity)
	}
	if tx.PricePerUnit.IsNegative() {
		return fmt.Errorf("%w: transaction %d has negative price %s", service.ErrDataIntegrity, tx.ID, tx.PricePerUnit)
	}

	switch tx.Side {
	case model.SideBuy:
		pos := state.Positions[tx.InstrumentKey]
		if pos.Currency != "" && pos.Currency != tx.Currency {
			return fmt.Errorf("%w: transaction %d buys %s in %s, position is held in %s",
				service.ErrDataIntegrity, tx.ID, tx.InstrumentKey, tx.Currency, pos.Currency)
		}
		pos.Currency = tx.Currency
		pos.Quantity = pos.Quantity.Add(tx.Quantity)
		pos.CostBasis = pos.CostBasis.Add(tx.Amount())
		state.Positions[tx.InstrumentKey] = pos

	case model.SideSell:
		pos, ok := state.Positions[tx.InstrumentKey]
		if !ok || tx.Quantity.GreaterThan(pos.Quantity) {
			return fmt.Errorf("%w: transaction %d sells %s of %s, held %s",
				service.ErrDataIntegrity, tx.ID, tx.Quantity, tx.InstrumentKey, pos.Quantity)
		}
		removed := pos.CostBasis
		if !tx.Quantity.Equal(pos.Quantity) {
			removed = pos.CostBasis.Mul(tx.Quantity).Div(pos.Quantity)
		}
		state.RealizedPnL[pos.Currency] = state.RealizedPnL[pos.Currency].Add(tx.Amount().Sub(removed))

		pos.Quantity = pos.Quantity.Sub(tx.Quantity)
		pos.CostBasis = pos.CostBasis.Sub(removed)
		if pos.Quantity.IsZero() {
			delete(state.Positions, tx.InstrumentKey)
		} else {
			state.Positions[tx.InstrumentKey] = pos
		}

	case model.SideDeposit:
		state.CashFlows[tx.Currency] = state.CashFlows[tx.Currency].Add(tx.Amount())

	case model.SideWithdrawal:
		state.CashFlows[tx.Currency] = state.CashFlows[tx.Currency].Sub(tx.Amount())

	default:
		return fmt.Errorf("%w: transaction %d has unknown side %q", service.ErrDataIntegrity, tx.ID, tx.Side)
	}

	return nil
}
