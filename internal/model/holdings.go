package model

import (
	"maps"
	"slices"

	"github.com/shopspring/decimal"
)

type Position struct {
	Quantity  decimal.Decimal
	CostBasis decimal.Decimal
	Currency  string
}

// HoldingsState is the replayed state of a portfolio as of a date. It is derived
// from the ledger and never persisted.
type HoldingsState struct {
	AsOf      Date
	Positions map[InstrumentKey]Position
	// CashFlows is deposits minus withdrawals per currency.
	CashFlows map[string]decimal.Decimal
	// RealizedPnL is sell proceeds minus average cost removed, per currency.
	RealizedPnL map[string]decimal.Decimal
}

func NewHoldingsState(asOf Date) HoldingsState {
	return HoldingsState{
		AsOf:        asOf,
		Positions:   make(map[InstrumentKey]Position),
		CashFlows:   make(map[string]decimal.Decimal),
		RealizedPnL: make(map[string]decimal.Decimal),
	}
}

// Clone returns a deep copy safe to hand out while the original keeps changing.
func (h HoldingsState) Clone() HoldingsState {
	return HoldingsState{
		AsOf:        h.AsOf,
		Positions:   maps.Clone(h.Positions),
		CashFlows:   maps.Clone(h.CashFlows),
		RealizedPnL: maps.Clone(h.RealizedPnL),
	}
}

// HeldInstruments returns the keys with non-zero quantity, sorted.
func (h HoldingsState) HeldInstruments() []InstrumentKey {
	keys := make([]InstrumentKey, 0, len(h.Positions))
	for key, pos := range h.Positions {
		if !pos.Quantity.IsZero() {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys
}
