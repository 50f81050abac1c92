package holdings

import (
	"fmt"

	"github.com/KotFed0t/portfolio_snapshots/internal/model"
)

// Replayer walks a ledger forward one date at a time, so valuing a portfolio
// on many consecutive dates costs a single pass over its transactions.
// AdvanceTo(d) returns the same state as Reconstruct(txs, d).
type Replayer struct {
	txs   []model.Transaction
	next  int
	state model.HoldingsState
	at    model.Date
	err   error
}

func NewReplayer(txs []model.Transaction) *Replayer {
	return &Replayer{
		txs:   Sorted(txs),
		state: model.NewHoldingsState(model.Date{}),
	}
}

// AdvanceTo applies every transaction dated on or before asOf. Dates must not
// decrease between calls. After an integrity error every later call returns it.
func (r *Replayer) AdvanceTo(asOf model.Date) (model.HoldingsState, error) {
	if r.err != nil {
		return model.HoldingsState{}, r.err
	}
	if !r.at.IsZero() && asOf.Before(r.at) {
		return model.HoldingsState{}, fmt.Errorf("replayer is at %s, cannot rewind to %s", r.at, asOf)
	}

	for ; r.next < len(r.txs); r.next++ {
		tx := r.txs[r.next]
		if TradeDate(tx).After(asOf) {
			break
		}
		if err := apply(&r.state, tx); err != nil {
			r.err = err
			return model.HoldingsState{}, err
		}
	}

	r.at = asOf
	r.state.AsOf = asOf
	return r.state.Clone(), nil
}

// FirstDate returns the trade date of the earliest transaction, false for an empty ledger.
func (r *Replayer) FirstDate() (model.Date, bool) {
	if len(r.txs) == 0 {
		return model.Date{}, false
	}
	return TradeDate(r.txs[0]), true
}

// LastDate returns the trade date of the latest transaction, false for an empty ledger.
func (r *Replayer) LastDate() (model.Date, bool) {
	if len(r.txs) == 0 {
		return model.Date{}, false
	}
	return TradeDate(r.txs[len(r.txs)-1]), true
}
