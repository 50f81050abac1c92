package snapshotService

import (
	"context"

	"github.com/KotFed0t/portfolio_snapshots/internal/model"
)

// Every call below gets its own deadline; any failure is fatal for the run.

func (r *run) loadCursor(ctx context.Context) (model.Cursor, error) {
	ctx, cancel := r.s.portCtx(ctx)
	defer cancel()

	cursor, err := r.s.cursor.Load(ctx)
	if err != nil {
		return model.Cursor{}, fatal("load cursor", err)
	}
	return cursor, nil
}

func (r *run) saveCursor(ctx context.Context, cursor model.Cursor) error {
	ctx, cancel := r.s.portCtx(ctx)
	defer cancel()

	if err := r.s.cursor.Save(ctx, cursor); err != nil {
		return fatal("save cursor", err)
	}
	return nil
}

func (r *run) resetCursor(ctx context.Context) error {
	ctx, cancel := r.s.portCtx(ctx)
	defer cancel()

	if err := r.s.cursor.Reset(ctx); err != nil {
		return fatal("reset cursor", err)
	}
	return nil
}

func (r *run) listUserIDs(ctx context.Context, fromUserID int64, limit int) ([]int64, error) {
	ctx, cancel := r.s.portCtx(ctx)
	defer cancel()

	ids, err := r.s.repo.ListUserIDs(ctx, fromUserID, limit)
	if err != nil {
		return nil, fatal("list users", err)
	}
	return ids, nil
}

func (r *run) getUserPortfolios(ctx context.Context, userID int64) ([]model.Portfolio, error) {
	ctx, cancel := r.s.portCtx(ctx)
	defer cancel()

	portfolios, err := r.s.repo.GetUserPortfolios(ctx, userID)
	if err != nil {
		return nil, fatal("get user portfolios", err)
	}
	return portfolios, nil
}

func (r *run) getTransactions(ctx context.Context, portfolioID int64) ([]model.Transaction, error) {
	ctx, cancel := r.s.portCtx(ctx)
	defer cancel()

	txs, err := r.s.repo.GetPortfolioTransactions(ctx, portfolioID)
	if err != nil {
		return nil, fatal("get portfolio transactions", err)
	}
	return txs, nil
}

func (r *run) getSnapshotDates(ctx context.Context, portfolioID int64, from, till model.Date) ([]model.Date, error) {
	ctx, cancel := r.s.portCtx(ctx)
	defer cancel()

	dates, err := r.s.repo.GetSnapshotDates(ctx, portfolioID, from, till)
	if err != nil {
		return nil, fatal("get snapshot dates", err)
	}
	return dates, nil
}
