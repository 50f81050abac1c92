package snapshotService

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/KotFed0t/portfolio_snapshots/internal/holdings"
	"github.com/KotFed0t/portfolio_snapshots/internal/model"
	"github.com/KotFed0t/portfolio_snapshots/internal/service"
	"github.com/KotFed0t/portfolio_snapshots/internal/valuation"
	"github.com/KotFed0t/portfolio_snapshots/utils"
)

// run is the state of a single invocation of Run.
type run struct {
	s             *SnapshotService
	started       time.Time
	budget        time.Duration
	today         model.Date
	retentionDays int
	memo          *seriesMemo
	buffer        []model.PortfolioSnapshot
	res           model.RunResult
}

// remaining is the part of the time budget not yet spent.
func (r *run) remaining() time.Duration {
	return r.budget - r.s.now().Sub(r.started)
}

func (r *run) exceeded() bool {
	return r.remaining() <= 0
}

func (r *run) execute(ctx context.Context, limit int) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	cursor, err := r.loadCursor(ctx)
	if err != nil {
		return err
	}
	if !cursor.IsZero() {
		slog.Info("resuming from cursor", slog.String("rqID", rqID),
			slog.Int64("lastUserID", cursor.LastUserID), slog.Int64("lastPortfolioID", cursor.LastPortfolioID))
	}

	// one extra id tells whether users remain past the limit
	userIDs, err := r.listUserIDs(ctx, cursor.LastUserID, limit+1)
	if err != nil {
		return err
	}
	var next int64
	hasMore := len(userIDs) > limit
	if hasMore {
		next = userIDs[limit]
		userIDs = userIDs[:limit]
	}

	for _, userID := range userIDs {
		var afterPortfolio int64
		if userID == cursor.LastUserID {
			afterPortfolio = cursor.LastPortfolioID
		}

		if r.exceeded() {
			return r.stopOnBudget(ctx, model.Cursor{LastUserID: userID, LastPortfolioID: afterPortfolio})
		}

		stop, completed, err := r.processUser(ctx, userID, afterPortfolio)
		if err != nil {
			return err
		}
		if !completed {
			return r.stopOnBudget(ctx, stop)
		}
		r.res.ProcessedUsers++
	}

	if hasMore {
		if err = r.saveCursor(ctx, model.Cursor{LastUserID: next}); err != nil {
			return err
		}
		r.res.State = model.RunStateLimitReached
		slog.Info("user limit reached", slog.String("rqID", rqID), slog.Int("limit", limit), slog.Int64("nextUserID", next))
		return nil
	}

	if err = r.resetCursor(ctx); err != nil {
		return err
	}
	r.res.State = model.RunStateExhausted
	r.res.Done = true
	return nil
}

func (r *run) stopOnBudget(ctx context.Context, cursor model.Cursor) error {
	if err := r.flush(ctx); err != nil {
		return err
	}
	if err := r.saveCursor(ctx, cursor); err != nil {
		return err
	}
	r.res.State = model.RunStateBudgetExceeded
	slog.Info("time budget exceeded", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)),
		slog.Int64("lastUserID", cursor.LastUserID), slog.Int64("lastPortfolioID", cursor.LastPortfolioID),
		slog.String("lastDate", cursor.LastDate.String()))
	return nil
}

// processUser walks the user's portfolios after afterPortfolio. When the budget
// runs out it returns completed=false and the cursor to resume at.
func (r *run) processUser(ctx context.Context, userID, afterPortfolio int64) (stop model.Cursor, completed bool, err error) {
	portfolios, err := r.getUserPortfolios(ctx, userID)
	if err != nil {
		return model.Cursor{}, false, err
	}

	lastDone := afterPortfolio
	for _, portfolio := range portfolios {
		if portfolio.PortfolioID <= afterPortfolio {
			continue
		}
		if r.exceeded() {
			return model.Cursor{LastUserID: userID, LastPortfolioID: lastDone}, false, nil
		}

		lastDate, finished, err := r.processPortfolio(ctx, portfolio)
		if err != nil {
			return model.Cursor{}, false, err
		}
		if !finished {
			return model.Cursor{LastUserID: userID, LastPortfolioID: lastDone, LastDate: lastDate}, false, nil
		}
		r.res.ProcessedPortfolios++
		lastDone = portfolio.PortfolioID
	}

	return model.Cursor{}, true, nil
}

// processPortfolio writes snapshots for every missing candidate date and prunes
// old rows. finished=false means the budget ran out; lastDate is then the
// latest date computed for the portfolio in this run.
func (r *run) processPortfolio(ctx context.Context, portfolio model.Portfolio) (lastDate model.Date, finished bool, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "SnapshotService.processPortfolio"
	portfolioID := portfolio.PortfolioID

	slog.Debug("processPortfolio start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("portfolioID", portfolioID))

	txs, err := r.getTransactions(ctx, portfolioID)
	if err != nil {
		return model.Date{}, false, err
	}
	if len(txs) == 0 {
		return model.Date{}, true, nil
	}

	replayer := holdings.NewReplayer(txs)
	first, _ := replayer.FirstDate()
	last, _ := replayer.LastDate()

	// a corrupt ledger is skipped as a whole, before anything is written for it
	if _, err = holdings.Reconstruct(txs, last); err != nil {
		if errors.Is(err, service.ErrDataIntegrity) {
			slog.Warn("skipping portfolio with inconsistent ledger", slog.String("rqID", rqID), slog.String("op", op),
				slog.Int64("portfolioID", portfolioID), slog.String("err", err.Error()))
			r.res.SkippedPortfolios++
			return model.Date{}, true, nil
		}
		return model.Date{}, false, err
	}

	candidates := candidateDates(first, r.today, r.retentionDays)
	if len(candidates) == 0 {
		return model.Date{}, true, r.prune(ctx, portfolioID)
	}

	persisted, err := r.getSnapshotDates(ctx, portfolioID, candidates[0], candidates[len(candidates)-1])
	if err != nil {
		return model.Date{}, false, err
	}
	missing := missingDates(candidates, persisted)

	if len(missing) > 0 {
		prices, rates, loaded := r.loadBooks(ctx, portfolio, txs, missing[0], missing[len(missing)-1])
		if !loaded {
			return lastDate, false, nil
		}

		incomplete := 0
		for _, date := range missing {
			if r.exceeded() {
				return lastDate, false, nil
			}

			state, err := replayer.AdvanceTo(date)
			if err != nil {
				return lastDate, false, err
			}

			value, err := valuation.Compute(state, date, portfolio.BaseCurrency, prices, rates)
			if err != nil {
				if errors.Is(err, service.ErrIncompleteSnapshot) {
					incomplete++
					continue
				}
				return lastDate, false, err
			}

			if err = r.add(ctx, model.PortfolioSnapshot{
				PortfolioID: portfolioID,
				Date:        date,
				Valuation:   value,
				Currency:    portfolio.BaseCurrency,
			}); err != nil {
				return lastDate, false, err
			}
			lastDate = date
		}

		if incomplete > 0 {
			slog.Warn("dates left without snapshot", slog.String("rqID", rqID), slog.String("op", op),
				slog.Int64("portfolioID", portfolioID), slog.Int("dates", incomplete))
		}
	}

	// the portfolio's remaining rows and its pruning commit together
	err = r.s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := r.flush(ctx); err != nil {
			return err
		}
		return r.prune(ctx, portfolioID)
	})
	if err != nil {
		return lastDate, false, fatal("commit portfolio", err)
	}

	slog.Debug("processPortfolio completed", slog.String("rqID", rqID), slog.String("op", op),
		slog.Int64("portfolioID", portfolioID), slog.Int("missing", len(missing)))

	return lastDate, true, nil
}

func (r *run) add(ctx context.Context, snapshot model.PortfolioSnapshot) error {
	r.buffer = append(r.buffer, snapshot)
	if len(r.buffer) >= max(r.s.cfg.Jobs.UpsertChunkSize, 1) {
		return r.flush(ctx)
	}
	return nil
}

func (r *run) flush(ctx context.Context) error {
	if len(r.buffer) == 0 {
		return nil
	}

	portCtx, cancel := r.s.portCtx(ctx)
	defer cancel()

	if err := r.s.repo.UpsertSnapshots(portCtx, r.buffer); err != nil {
		return fatal("upsert snapshots", err)
	}
	r.res.SnapshotsWritten += len(r.buffer)
	r.buffer = r.buffer[:0]
	return nil
}

func (r *run) prune(ctx context.Context, portfolioID int64) error {
	if r.retentionDays <= 0 {
		return nil
	}

	portCtx, cancel := r.s.portCtx(ctx)
	defer cancel()

	cutoff := r.today.AddDays(-r.retentionDays)
	deleted, err := r.s.repo.PruneSnapshots(portCtx, portfolioID, cutoff)
	if err != nil {
		return fatal("prune snapshots", err)
	}
	if deleted > 0 {
		slog.Debug("pruned snapshots", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)),
			slog.Int64("portfolioID", portfolioID), slog.Int64("deleted", deleted), slog.String("cutoff", cutoff.String()))
	}
	return nil
}

// candidateDates lists the dates a portfolio should have a snapshot for: the
// inception date plus every day of the retention window up to yesterday.
// Today is excluded because its close is not final yet.
func candidateDates(inception, today model.Date, retentionDays int) []model.Date {
	if !inception.Before(today) {
		return nil
	}

	dates := []model.Date{inception}
	start := inception.AddDays(1)
	if retentionDays > 0 {
		start = model.MaxDate(start, today.AddDays(-retentionDays))
	}
	for d := start; d.Before(today); d = d.AddDays(1) {
		dates = append(dates, d)
	}
	return dates
}

// missingDates returns candidates not present in persisted. Both are ascending.
func missingDates(candidates, persisted []model.Date) []model.Date {
	res := make([]model.Date, 0, len(candidates))
	j := 0
	for _, d := range candidates {
		for j < len(persisted) && persisted[j].Before(d) {
			j++
		}
		if j < len(persisted) && persisted[j] == d {
			continue
		}
		res = append(res, d)
	}
	return res
}
