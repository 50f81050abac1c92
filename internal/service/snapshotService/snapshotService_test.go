package snapshotService

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/KotFed0t/portfolio_snapshots/config"
	"github.com/KotFed0t/portfolio_snapshots/internal/externalApi"
	"github.com/KotFed0t/portfolio_snapshots/internal/model"
	"github.com/KotFed0t/portfolio_snapshots/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	users      []int64
	portfolios map[int64][]model.Portfolio
	txs        map[int64][]model.Transaction
	snapshots  map[int64]map[model.Date]model.PortfolioSnapshot
	upsertErr  error
	upserts    int
	commits    int
	cutoffs    []model.Date
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		portfolios: map[int64][]model.Portfolio{},
		txs:        map[int64][]model.Transaction{},
		snapshots:  map[int64]map[model.Date]model.PortfolioSnapshot{},
	}
}

func (f *fakeRepo) addPortfolio(userID, portfolioID int64, base string, txs ...model.Transaction) {
	if !slices.Contains(f.users, userID) {
		f.users = append(f.users, userID)
		slices.Sort(f.users)
	}
	f.portfolios[userID] = append(f.portfolios[userID], model.Portfolio{PortfolioID: portfolioID, UserID: userID, BaseCurrency: base})
	for i := range txs {
		txs[i].PortfolioID = portfolioID
	}
	f.txs[portfolioID] = txs
}

func (f *fakeRepo) WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error {
	if err := tFunc(ctx); err != nil {
		return err
	}
	f.commits++
	return nil
}

func (f *fakeRepo) ListUserIDs(_ context.Context, fromUserID int64, limit int) ([]int64, error) {
	var res []int64
	for _, id := range f.users {
		if id >= fromUserID && len(res) < limit {
			res = append(res, id)
		}
	}
	return res, nil
}

func (f *fakeRepo) GetUserPortfolios(_ context.Context, userID int64) ([]model.Portfolio, error) {
	return f.portfolios[userID], nil
}

func (f *fakeRepo) GetPortfolioTransactions(_ context.Context, portfolioID int64) ([]model.Transaction, error) {
	return f.txs[portfolioID], nil
}

func (f *fakeRepo) GetSnapshotDates(_ context.Context, portfolioID int64, from, till model.Date) ([]model.Date, error) {
	var res []model.Date
	for d := range f.snapshots[portfolioID] {
		if !d.Before(from) && !d.After(till) {
			res = append(res, d)
		}
	}
	slices.SortFunc(res, model.Date.Compare)
	return res, nil
}

func (f *fakeRepo) UpsertSnapshots(_ context.Context, snapshots []model.PortfolioSnapshot) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts++
	for _, s := range snapshots {
		if f.snapshots[s.PortfolioID] == nil {
			f.snapshots[s.PortfolioID] = map[model.Date]model.PortfolioSnapshot{}
		}
		f.snapshots[s.PortfolioID][s.Date] = s
	}
	return nil
}

func (f *fakeRepo) PruneSnapshots(_ context.Context, portfolioID int64, cutoff model.Date) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	rows := f.snapshots[portfolioID]
	var oldest, latestBefore model.Date
	for d := range rows {
		if oldest.IsZero() || d.Before(oldest) {
			oldest = d
		}
		if d.Before(cutoff) && (latestBefore.IsZero() || d.After(latestBefore)) {
			latestBefore = d
		}
	}
	var deleted int64
	for d := range rows {
		if d.Before(cutoff) && d != oldest && d != latestBefore {
			delete(rows, d)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeRepo) valuation(t *testing.T, portfolioID int64, date string) decimal.Decimal {
	t.Helper()
	s, ok := f.snapshots[portfolioID][model.MustParseDate(date)]
	require.True(t, ok, "no snapshot for %d on %s", portfolioID, date)
	return s.Valuation
}

type fakePrices struct {
	prices map[model.InstrumentKey]decimal.Decimal
	rates  map[string]decimal.Decimal
	errs   map[string]error
	// sparse series served as they are, clipped to the requested range
	sparse   map[model.InstrumentKey][]model.PricePoint
	calls    int
	ranges   [][2]model.Date
	timeouts []time.Duration
	onCall   func()
}

func flatPrices(prices map[model.InstrumentKey]string) *fakePrices {
	f := &fakePrices{prices: map[model.InstrumentKey]decimal.Decimal{}, rates: map[string]decimal.Decimal{}, errs: map[string]error{}}
	for k, v := range prices {
		f.prices[k] = decimal.RequireFromString(v)
	}
	return f
}

func daily(value decimal.Decimal, from, till model.Date) []model.PricePoint {
	var res []model.PricePoint
	for d := from; !d.After(till); d = d.AddDays(1) {
		res = append(res, model.PricePoint{Date: d, Close: value})
	}
	return res
}

func (f *fakePrices) GetPriceSeries(ctx context.Context, key model.InstrumentKey, from, till model.Date) ([]model.PricePoint, error) {
	f.calls++
	f.ranges = append(f.ranges, [2]model.Date{from, till})
	if deadline, ok := ctx.Deadline(); ok {
		f.timeouts = append(f.timeouts, time.Until(deadline))
	}
	if f.onCall != nil {
		f.onCall()
	}
	if err := f.errs[string(key)]; err != nil {
		return nil, err
	}
	if points, ok := f.sparse[key]; ok {
		var res []model.PricePoint
		for _, p := range points {
			if !p.Date.Before(from) && !p.Date.After(till) {
				res = append(res, p)
			}
		}
		return res, nil
	}
	price, ok := f.prices[key]
	if !ok {
		return nil, nil
	}
	return daily(price, from, till), nil
}

func (f *fakePrices) GetRateSeries(_ context.Context, currency string, from, till model.Date) ([]model.PricePoint, error) {
	f.calls++
	if err := f.errs[currency]; err != nil {
		return nil, err
	}
	rate, ok := f.rates[currency]
	if !ok {
		return nil, nil
	}
	return daily(rate, from, till), nil
}

type memCursor struct {
	cursor model.Cursor
	saves  int
	resets int
}

func (c *memCursor) Load(context.Context) (model.Cursor, error) { return c.cursor, nil }

func (c *memCursor) Save(_ context.Context, cursor model.Cursor) error {
	c.cursor = cursor
	c.saves++
	return nil
}

func (c *memCursor) Reset(context.Context) error {
	c.cursor = model.Cursor{}
	c.resets++
	return nil
}

type recordingNotifier struct {
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, text string) error {
	n.messages = append(n.messages, text)
	return nil
}

type stepClock struct {
	t    time.Time
	step time.Duration
}

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

var runTime = time.Date(2024, 2, 20, 12, 0, 0, 0, time.UTC)

type fixture struct {
	repo     *fakeRepo
	prices   *fakePrices
	cursor   *memCursor
	notifier *recordingNotifier
	svc      *SnapshotService
}

func newFixture(prices *fakePrices) *fixture {
	f := &fixture{
		repo:     newFakeRepo(),
		prices:   prices,
		cursor:   &memCursor{},
		notifier: &recordingNotifier{},
	}
	cfg := &config.Config{Jobs: config.Jobs{
		PortCallTimeout:   time.Second,
		UpsertChunkSize:   7,
		PriceLookbackDays: 14,
	}}
	f.svc = New(cfg, f.repo, f.prices, f.cursor, f.notifier)
	f.svc.now = func() time.Time { return runTime }
	return f
}

func tx(id int64, side model.Side, key string, qty, price, at string) model.Transaction {
	return model.Transaction{
		ID:            id,
		InstrumentKey: model.InstrumentKey(key),
		Side:          side,
		Quantity:      decimal.RequireFromString(qty),
		PricePerUnit:  decimal.RequireFromString(price),
		Currency:      "RUB",
		OccurredAt:    model.MustParseDate(at).Time().Add(10 * time.Hour),
	}
}

func buySellLedger() []model.Transaction {
	return []model.Transaction{
		tx(1, model.SideBuy, "SBER", "10", "100", "2024-01-01"),
		tx(2, model.SideSell, "SBER", "4", "120", "2024-02-01"),
	}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestRunEndToEnd(t *testing.T) {
	f := newFixture(flatPrices(map[model.InstrumentKey]string{"SBER": "100"}))
	f.repo.addPortfolio(1, 10, "RUB", buySellLedger()...)

	res, err := f.svc.Run(context.Background(), 100, time.Minute, 0)
	require.NoError(t, err)

	assert.True(t, res.Done)
	assert.Equal(t, model.RunStateExhausted, res.State)
	assert.Equal(t, 1, res.ProcessedUsers)
	assert.Equal(t, 1, res.ProcessedPortfolios)
	assertDecimal(t, "1000", f.repo.valuation(t, 10, "2024-01-15"))
	assertDecimal(t, "600", f.repo.valuation(t, 10, "2024-02-15"))

	// 2024-01-01 through 2024-02-19; today is not final yet
	assert.Len(t, f.repo.snapshots[10], 50)
	assert.NotContains(t, f.repo.snapshots[10], model.MustParseDate("2024-02-20"))
	assert.Equal(t, 50, res.SnapshotsWritten)
	assert.Equal(t, 1, f.repo.commits)
	assert.Equal(t, 1, f.cursor.resets)
	assert.True(t, f.cursor.cursor.IsZero())
}

func TestRunIsIdempotent(t *testing.T) {
	f := newFixture(flatPrices(map[model.InstrumentKey]string{"SBER": "100"}))
	f.repo.addPortfolio(1, 10, "RUB", buySellLedger()...)

	_, err := f.svc.Run(context.Background(), 100, time.Minute, 0)
	require.NoError(t, err)
	first := f.repo.snapshots[10]
	firstCopy := make(map[model.Date]model.PortfolioSnapshot, len(first))
	for k, v := range first {
		firstCopy[k] = v
	}
	upserts := f.repo.upserts

	res, err := f.svc.Run(context.Background(), 100, time.Minute, 0)
	require.NoError(t, err)

	assert.True(t, res.Done)
	assert.Zero(t, res.SnapshotsWritten)
	assert.Equal(t, upserts, f.repo.upserts)
	assert.Equal(t, firstCopy, f.repo.snapshots[10])
}

func TestRunZeroBudget(t *testing.T) {
	f := newFixture(flatPrices(map[model.InstrumentKey]string{"SBER": "100"}))
	f.repo.addPortfolio(1, 10, "RUB", buySellLedger()...)

	res, err := f.svc.Run(context.Background(), 100, 0, 0)
	require.NoError(t, err)

	assert.False(t, res.Done)
	assert.Zero(t, res.ProcessedUsers)
	assert.Equal(t, model.RunStateBudgetExceeded, res.State)
	assert.Empty(t, f.repo.snapshots)
	assert.Zero(t, f.prices.calls)
}

func TestRunRejectsBadArguments(t *testing.T) {
	f := newFixture(flatPrices(nil))

	_, err := f.svc.Run(context.Background(), 0, time.Minute, 0)
	assert.ErrorIs(t, err, service.ErrInvalidArgument)

	_, err = f.svc.Run(context.Background(), 10, -time.Second, 0)
	assert.ErrorIs(t, err, service.ErrInvalidArgument)
	assert.Empty(t, f.notifier.messages)
}

func TestRunSkipsInconsistentPortfolio(t *testing.T) {
	f := newFixture(flatPrices(map[model.InstrumentKey]string{"SBER": "100"}))
	f.repo.addPortfolio(1, 10, "RUB",
		tx(1, model.SideBuy, "SBER", "10", "100", "2024-01-01"),
		tx(2, model.SideSell, "SBER", "11", "100", "2024-02-01"),
	)
	f.repo.addPortfolio(1, 11, "RUB", buySellLedger()...)

	res, err := f.svc.Run(context.Background(), 100, time.Minute, 0)
	require.NoError(t, err)

	assert.True(t, res.Done)
	assert.Equal(t, 1, res.SkippedPortfolios)
	assert.Equal(t, 2, res.ProcessedPortfolios, "a skipped portfolio still counts as visited")
	assert.Empty(t, f.repo.snapshots[10], "nothing is written before the oversell either")
	assertDecimal(t, "600", f.repo.valuation(t, 11, "2024-02-15"))
}

func TestRunFatalStorage(t *testing.T) {
	f := newFixture(flatPrices(map[model.InstrumentKey]string{"SBER": "100"}))
	f.repo.addPortfolio(1, 10, "RUB", buySellLedger()...)
	f.repo.upsertErr = errors.New("connection reset")

	res, err := f.svc.Run(context.Background(), 100, time.Minute, 0)
	require.ErrorIs(t, err, service.ErrFatalStorage)

	assert.Equal(t, model.RunStateFailed, res.State)
	assert.False(t, res.Done)
	require.Len(t, f.notifier.messages, 1)
	assert.Contains(t, f.notifier.messages[0], "connection reset")
	assert.Zero(t, f.repo.commits)
	assert.Zero(t, f.cursor.resets)
}

func TestRunUserLimitResumes(t *testing.T) {
	f := newFixture(flatPrices(map[model.InstrumentKey]string{"SBER": "100"}))
	f.repo.addPortfolio(3, 30, "RUB", buySellLedger()...)
	f.repo.addPortfolio(5, 50, "RUB", buySellLedger()...)
	f.repo.addPortfolio(9, 90, "RUB", buySellLedger()...)

	res, err := f.svc.Run(context.Background(), 2, time.Minute, 0)
	require.NoError(t, err)
	assert.False(t, res.Done)
	assert.Equal(t, model.RunStateLimitReached, res.State)
	assert.Equal(t, 2, res.ProcessedUsers)
	assert.Equal(t, model.Cursor{LastUserID: 9}, f.cursor.cursor)
	assert.Empty(t, f.repo.snapshots[90])

	res, err = f.svc.Run(context.Background(), 2, time.Minute, 0)
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, model.RunStateExhausted, res.State)
	assert.Equal(t, 1, res.ProcessedUsers)
	assert.Len(t, f.repo.snapshots[90], 50)
	assert.True(t, f.cursor.cursor.IsZero())
}

func TestRunResumesAfterBudgetStop(t *testing.T) {
	build := func() *fixture {
		f := newFixture(flatPrices(map[model.InstrumentKey]string{"SBER": "100", "GAZP": "150"}))
		f.repo.addPortfolio(1, 10, "RUB", buySellLedger()...)
		f.repo.addPortfolio(1, 11, "RUB", tx(1, model.SideBuy, "GAZP", "3", "140", "2024-01-20"))
		f.repo.addPortfolio(2, 20, "RUB", tx(1, model.SideBuy, "GAZP", "1", "140", "2024-02-05"))
		return f
	}

	reference := build()
	_, err := reference.svc.Run(context.Background(), 100, time.Minute, 0)
	require.NoError(t, err)

	f := build()
	clock := &stepClock{t: runTime, step: time.Millisecond}
	f.svc.now = clock.now

	invocations := 0
	for ; invocations < 100; invocations++ {
		res, err := f.svc.Run(context.Background(), 100, 15*time.Millisecond, 0)
		require.NoError(t, err)
		if res.Done {
			break
		}
		assert.Equal(t, model.RunStateBudgetExceeded, res.State)
	}

	assert.Greater(t, invocations, 1, "budget should have interrupted at least one run")
	assert.Equal(t, reference.repo.snapshots, f.repo.snapshots)
}

func TestRunTransientProviderLeavesGaps(t *testing.T) {
	prices := flatPrices(map[model.InstrumentKey]string{"SBER": "100", "GAZP": "150"})
	prices.errs["GAZP"] = service.ErrTransientProvider
	f := newFixture(prices)
	f.repo.addPortfolio(1, 10, "RUB",
		tx(1, model.SideBuy, "SBER", "10", "100", "2024-01-01"),
		tx(2, model.SideBuy, "GAZP", "2", "150", "2024-02-01"),
	)

	res, err := f.svc.Run(context.Background(), 100, time.Minute, 0)
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Len(t, f.repo.snapshots[10], 31, "only January can be valued")
	assertDecimal(t, "1000", f.repo.valuation(t, 10, "2024-01-31"))

	delete(prices.errs, "GAZP")
	_, err = f.svc.Run(context.Background(), 100, time.Minute, 0)
	require.NoError(t, err)
	assert.Len(t, f.repo.snapshots[10], 50)
	assertDecimal(t, "1300", f.repo.valuation(t, 10, "2024-02-01"))
}

func TestRunConvertsForeignInstruments(t *testing.T) {
	prices := flatPrices(map[model.InstrumentKey]string{"TQTF:FXUS": "11"})
	prices.rates["USD"] = decimal.RequireFromString("90")
	f := newFixture(prices)
	buy := tx(1, model.SideBuy, "TQTF:FXUS", "2", "10", "2024-02-10")
	buy.Currency = "USD"
	f.repo.addPortfolio(1, 10, "RUB", buy)

	_, err := f.svc.Run(context.Background(), 100, time.Minute, 0)
	require.NoError(t, err)
	assertDecimal(t, "1980", f.repo.valuation(t, 10, "2024-02-12"))
}

func TestRunSharesFetchedSeriesAcrossPortfolios(t *testing.T) {
	prices := flatPrices(map[model.InstrumentKey]string{"SBER": "100"})
	f := newFixture(prices)
	f.repo.addPortfolio(1, 10, "RUB", buySellLedger()...)
	f.repo.addPortfolio(2, 20, "RUB", tx(1, model.SideBuy, "SBER", "1", "100", "2024-01-10"))

	_, err := f.svc.Run(context.Background(), 100, time.Minute, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, prices.calls)
}

func TestRunRetention(t *testing.T) {
	f := newFixture(flatPrices(map[model.InstrumentKey]string{"SBER": "100"}))
	f.repo.addPortfolio(1, 10, "RUB", buySellLedger()...)

	// a previous run without retention left the full history
	_, err := f.svc.Run(context.Background(), 100, time.Minute, 0)
	require.NoError(t, err)
	require.Len(t, f.repo.snapshots[10], 50)

	_, err = f.svc.Run(context.Background(), 100, time.Minute, 10)
	require.NoError(t, err)

	assert.Equal(t, model.MustParseDate("2024-02-10"), f.repo.cutoffs[len(f.repo.cutoffs)-1])
	kept := f.repo.snapshots[10]
	assert.Contains(t, kept, model.MustParseDate("2024-01-01"), "inception survives")
	assert.Contains(t, kept, model.MustParseDate("2024-02-09"), "carry-in row survives")
	assert.NotContains(t, kept, model.MustParseDate("2024-01-15"))
	// inception + carry-in + 2024-02-10..2024-02-19
	assert.Len(t, kept, 12)
}

func TestRunRetentionOnFreshPortfolio(t *testing.T) {
	f := newFixture(flatPrices(map[model.InstrumentKey]string{"SBER": "100"}))
	f.repo.addPortfolio(1, 10, "RUB", buySellLedger()...)

	res, err := f.svc.Run(context.Background(), 100, time.Minute, 10)
	require.NoError(t, err)

	assert.Equal(t, 11, res.SnapshotsWritten)
	assertDecimal(t, "1000", f.repo.valuation(t, 10, "2024-01-01"))

	res, err = f.svc.Run(context.Background(), 100, time.Minute, 10)
	require.NoError(t, err)
	assert.Zero(t, res.SnapshotsWritten, "pruned dates are not recomputed")
}

func TestRunProviderNotFoundIsGap(t *testing.T) {
	prices := flatPrices(nil)
	prices.errs["DELISTED"] = externalApi.ErrNotFound
	f := newFixture(prices)
	f.repo.addPortfolio(1, 10, "RUB", tx(1, model.SideBuy, "DELISTED", "1", "1", "2024-02-01"))

	res, err := f.svc.Run(context.Background(), 100, time.Minute, 0)
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Empty(t, f.repo.snapshots[10])
}

func TestRunCarriesStaleCloseForward(t *testing.T) {
	prices := flatPrices(nil)
	prices.sparse = map[model.InstrumentKey][]model.PricePoint{
		"HALT": {{Date: model.MustParseDate("2024-01-01"), Close: decimal.NewFromInt(100)}},
	}
	f := newFixture(prices)
	f.repo.addPortfolio(1, 10, "RUB", tx(1, model.SideBuy, "HALT", "10", "100", "2024-01-01"))
	stored := map[model.Date]model.PortfolioSnapshot{}
	for d := model.MustParseDate("2024-01-01"); !d.After(model.MustParseDate("2024-02-17")); d = d.AddDays(1) {
		stored[d] = model.PortfolioSnapshot{PortfolioID: 10, Date: d, Valuation: decimal.NewFromInt(1000), Currency: "RUB"}
	}
	f.repo.snapshots[10] = stored

	res, err := f.svc.Run(context.Background(), 100, time.Minute, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, res.SnapshotsWritten)
	assertDecimal(t, "1000", f.repo.valuation(t, 10, "2024-02-18"))
	assertDecimal(t, "1000", f.repo.valuation(t, 10, "2024-02-19"))
	require.Len(t, prices.ranges, 2)
	assert.Equal(t, model.MustParseDate("2024-02-04"), prices.ranges[0][0])
	assert.Equal(t, model.MustParseDate("2024-01-01"), prices.ranges[1][0], "window widened to the first trade")
}

func TestRunKeepsShortWindowWhenWideningFails(t *testing.T) {
	prices := flatPrices(nil)
	prices.sparse = map[model.InstrumentKey][]model.PricePoint{
		"THIN": {{Date: model.MustParseDate("2024-02-10"), Close: decimal.NewFromInt(50)}},
	}
	f := newFixture(prices)
	f.repo.addPortfolio(1, 10, "RUB", tx(1, model.SideBuy, "THIN", "2", "50", "2024-01-01"))
	stored := map[model.Date]model.PortfolioSnapshot{}
	for d := model.MustParseDate("2024-01-01"); !d.After(model.MustParseDate("2024-01-31")); d = d.AddDays(1) {
		stored[d] = model.PortfolioSnapshot{PortfolioID: 10, Date: d, Valuation: decimal.NewFromInt(100), Currency: "RUB"}
	}
	f.repo.snapshots[10] = stored
	calls := 0
	prices.onCall = func() {
		calls++
		if calls == 2 {
			prices.errs["THIN"] = service.ErrTransientProvider
		}
	}

	_, err := f.svc.Run(context.Background(), 100, time.Minute, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, prices.calls)
	assertDecimal(t, "100", f.repo.valuation(t, 10, "2024-02-19"))
	assert.NotContains(t, f.repo.snapshots[10], model.MustParseDate("2024-02-05"), "no close on or before it in the short window")
}

func TestRunStopsBetweenSlowFetches(t *testing.T) {
	quotes := map[model.InstrumentKey]string{}
	var ledger []model.Transaction
	for i, key := range []string{"A", "B", "C", "D", "E", "F", "G", "H"} {
		quotes[model.InstrumentKey(key)] = "10"
		ledger = append(ledger, tx(int64(i+1), model.SideBuy, key, "1", "10", "2024-02-01"))
	}
	prices := flatPrices(quotes)
	f := newFixture(prices)
	f.svc.cfg.Jobs.PortCallTimeout = time.Minute
	f.repo.addPortfolio(1, 10, "RUB", ledger...)

	clock := runTime
	f.svc.now = func() time.Time { return clock }
	prices.onCall = func() { clock = clock.Add(5 * time.Second) }

	res, err := f.svc.Run(context.Background(), 100, 12*time.Second, 0)
	require.NoError(t, err)

	assert.Equal(t, model.RunStateBudgetExceeded, res.State)
	assert.Equal(t, 3, prices.calls)
	assert.LessOrEqual(t, clock.Sub(runTime), 15*time.Second)
	assert.Zero(t, res.SnapshotsWritten)
	assert.Equal(t, model.Cursor{LastUserID: 1}, f.cursor.cursor)

	require.Len(t, prices.timeouts, 3)
	assert.LessOrEqual(t, prices.timeouts[2], 2*time.Second, "a fetch never outlives the budget left")
}

func TestRunUsesUTCCalendarDay(t *testing.T) {
	f := newFixture(flatPrices(map[model.InstrumentKey]string{"SBER": "100"}))
	f.repo.addPortfolio(1, 10, "RUB", buySellLedger()...)
	// 01:00 on the 21st in Moscow is still the 20th in UTC
	f.svc.now = func() time.Time { return time.Date(2024, 2, 21, 1, 0, 0, 0, time.FixedZone("MSK", 3*60*60)) }

	_, err := f.svc.Run(context.Background(), 100, time.Minute, 0)
	require.NoError(t, err)

	assert.Len(t, f.repo.snapshots[10], 50)
	assert.NotContains(t, f.repo.snapshots[10], model.MustParseDate("2024-02-20"))
}

func TestCandidateDates(t *testing.T) {
	today := model.MustParseDate("2024-02-20")

	tests := []struct {
		name      string
		inception string
		retention int
		want      int
		first     string
		second    string
	}{
		{name: "no retention", inception: "2024-02-15", retention: 0, want: 5, first: "2024-02-15", second: "2024-02-16"},
		{name: "window inside history", inception: "2024-01-01", retention: 3, want: 4, first: "2024-01-01", second: "2024-02-17"},
		{name: "history inside window", inception: "2024-02-18", retention: 30, want: 2, first: "2024-02-18", second: "2024-02-19"},
		{name: "inception today", inception: "2024-02-20", retention: 30, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dates := candidateDates(model.MustParseDate(tt.inception), today, tt.retention)
			require.Len(t, dates, tt.want)
			if tt.want == 0 {
				return
			}
			assert.Equal(t, model.MustParseDate(tt.first), dates[0])
			assert.Equal(t, model.MustParseDate(tt.second), dates[1])
			assert.Equal(t, today.AddDays(-1), dates[len(dates)-1])
		})
	}
}

func TestMissingDates(t *testing.T) {
	d := model.MustParseDate
	candidates := []model.Date{d("2024-01-01"), d("2024-01-02"), d("2024-01-03"), d("2024-01-04")}
	persisted := []model.Date{d("2023-12-01"), d("2024-01-02"), d("2024-01-04")}

	assert.Equal(t, []model.Date{d("2024-01-01"), d("2024-01-03")}, missingDates(candidates, persisted))
	assert.Equal(t, candidates, missingDates(candidates, nil))
}
