package postgres

import (
	"context"
	"log/slog"

	"github.com/KotFed0t/portfolio_snapshots/internal/converter/dbConverter"
	"github.com/KotFed0t/portfolio_snapshots/internal/model"
	"github.com/KotFed0t/portfolio_snapshots/internal/model/dbModel"
	"github.com/KotFed0t/portfolio_snapshots/utils"
)

// GetPortfolioTransactions returns the whole ledger of a portfolio in replay order.
func (r *Postgres) GetPortfolioTransactions(ctx context.Context, portfolioID int64) (transactions []model.Transaction, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetPortfolioTransactions"
	query := `
		SELECT transaction_id, portfolio_id, instrument_key, side, quantity, price_per_unit, currency, occurred_at
		FROM transactions
		WHERE portfolio_id = $1
		ORDER BY occurred_at, transaction_id
		`

	slog.Debug("GetPortfolioTransactions start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("portfolioID", portfolioID))
	defer func() {
		if err != nil {
			slog.Error("GetPortfolioTransactions failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetPortfolioTransactions completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("count", len(transactions)))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, portfolioID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var tx dbModel.Transaction
		err = rows.StructScan(&tx)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, dbConverter.ConvertTransaction(tx))
	}

	return transactions, rows.Err()
}
