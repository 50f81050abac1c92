package snapshotService

import (
	"context"
	"log/slog"
	"time"

	"github.com/KotFed0t/portfolio_snapshots/internal/holdings"
	"github.com/KotFed0t/portfolio_snapshots/internal/model"
	"github.com/KotFed0t/portfolio_snapshots/internal/valuation"
	"github.com/KotFed0t/portfolio_snapshots/utils"
)

type seriesKind int

const (
	kindPrice seriesKind = iota
	kindRate
)

type memoKey struct {
	kind seriesKind
	id   string
}

type memoEntry struct {
	from, till model.Date
	points     []model.PricePoint
	failed     bool
	// frozen entries failed to extend and are served as they are for the rest of the run
	frozen bool
}

func (e *memoEntry) covers(from, till model.Date) bool {
	return !e.from.After(from) && !e.till.Before(till)
}

// seriesMemo remembers what was fetched during one run, so portfolios sharing
// an instrument hit the provider once. A failed fetch is not retried in the same run.
type seriesMemo struct {
	entries map[memoKey]*memoEntry
}

func newSeriesMemo() *seriesMemo {
	return &seriesMemo{entries: make(map[memoKey]*memoEntry)}
}

// loadBooks fetches the price and rate series needed to value the portfolio on
// dates within [from, till]. Series that fail to load are left out, so the dates
// that depend on them come out incomplete and stay gapped until a later run.
//
// A series is first fetched with a short lookback before from. When that window
// holds no close on or before from, it is widened back to the instrument's first
// trade, so a halted instrument still carries its last close forward.
//
// loaded is false when the time budget ran out between fetches.
func (r *run) loadBooks(ctx context.Context, portfolio model.Portfolio, txs []model.Transaction, from, till model.Date) (prices valuation.PriceBook, rates valuation.RateBook, loaded bool) {
	fetchFrom := from.AddDays(-r.s.cfg.Jobs.PriceLookbackDays)

	var inception model.Date
	firstTrades := make(map[model.InstrumentKey]model.Date)
	currencies := make(map[string]struct{})
	for _, tx := range txs {
		date := holdings.TradeDate(tx)
		if inception.IsZero() || date.Before(inception) {
			inception = date
		}
		if tx.Side.IsCashFlow() {
			continue
		}
		if first, ok := firstTrades[tx.InstrumentKey]; !ok || date.Before(first) {
			firstTrades[tx.InstrumentKey] = date
		}
		if tx.Currency != "" && tx.Currency != portfolio.BaseCurrency {
			currencies[tx.Currency] = struct{}{}
		}
	}
	if len(currencies) > 0 {
		currencies[portfolio.BaseCurrency] = struct{}{}
	}
	delete(currencies, valuation.PivotCurrency)

	prices = make(valuation.PriceBook, len(firstTrades))
	for key, first := range firstTrades {
		points, ok, stopped := r.loadSeries(ctx, memoKey{kind: kindPrice, id: string(key)}, fetchFrom, from, till, first)
		if stopped {
			return nil, nil, false
		}
		if ok {
			prices[key] = valuation.NewSeries(points)
		}
	}

	rates = make(valuation.RateBook, len(currencies))
	for currency := range currencies {
		points, ok, stopped := r.loadSeries(ctx, memoKey{kind: kindRate, id: currency}, fetchFrom, from, till, inception)
		if stopped {
			return nil, nil, false
		}
		if ok {
			rates[currency] = valuation.NewSeries(points)
		}
	}

	return prices, rates, true
}

// loadSeries fetches [fetchFrom, till] and widens it back to earliest when no
// point falls on or before from. stopped reports that the budget ran out first.
func (r *run) loadSeries(ctx context.Context, key memoKey, fetchFrom, from, till, earliest model.Date) (points []model.PricePoint, ok, stopped bool) {
	left := r.remaining()
	if left <= 0 {
		return nil, false, true
	}
	points, ok = r.series(ctx, key, fetchFrom, till, left)
	if !ok || hasPointAtOrBefore(points, from) || !earliest.Before(fetchFrom) {
		return points, ok, false
	}

	left = r.remaining()
	if left <= 0 {
		return nil, false, true
	}
	if wider, widened := r.series(ctx, key, earliest, till, left); widened {
		points = wider
	}
	return points, true, false
}

// series returns the memoized series or fetches it. The call is bounded by the
// port timeout and by the budget left.
func (r *run) series(ctx context.Context, key memoKey, from, till model.Date, left time.Duration) ([]model.PricePoint, bool) {
	entry, ok := r.memo.entries[key]
	if ok {
		switch {
		case entry.failed:
			return nil, false
		case entry.covers(from, till):
			return entry.points, true
		case entry.frozen:
			// a shorter history can only leave dates incomplete, a shorter tail would value them wrong
			if entry.till.Before(till) {
				return nil, false
			}
			return entry.points, true
		}
		from, till = model.MinDate(from, entry.from), model.MaxDate(till, entry.till)
	}

	timeout := min(r.s.cfg.Jobs.PortCallTimeout, left)
	portCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		points []model.PricePoint
		err    error
	)
	switch key.kind {
	case kindRate:
		points, err = r.s.prices.GetRateSeries(portCtx, key.id, from, till)
	default:
		points, err = r.s.prices.GetPriceSeries(portCtx, model.InstrumentKey(key.id), from, till)
	}
	if err != nil {
		slog.Warn("price series unavailable, dependent dates stay gapped", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)),
			slog.String("id", key.id), slog.String("from", from.String()), slog.String("err", err.Error()))
		if ok {
			entry.frozen = true
		} else {
			r.memo.entries[key] = &memoEntry{failed: true}
		}
		return nil, false
	}

	r.memo.entries[key] = &memoEntry{from: from, till: till, points: points}
	return points, true
}

func hasPointAtOrBefore(points []model.PricePoint, date model.Date) bool {
	for _, p := range points {
		if !p.Date.After(date) {
			return true
		}
	}
	return false
}
