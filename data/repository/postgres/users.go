package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/KotFed0t/portfolio_snapshots/data/repository"
	"github.com/KotFed0t/portfolio_snapshots/internal/converter/dbConverter"
	"github.com/KotFed0t/portfolio_snapshots/internal/model"
	"github.com/KotFed0t/portfolio_snapshots/internal/model/dbModel"
	"github.com/KotFed0t/portfolio_snapshots/utils"
)

// ListUserIDs returns up to limit user ids starting at fromUserID inclusive, ascending.
func (r *Postgres) ListUserIDs(ctx context.Context, fromUserID int64, limit int) (userIDs []int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.ListUserIDs"
	query := `
		SELECT user_id FROM users
		WHERE user_id >= $1
		ORDER BY user_id
		LIMIT $2
		`

	slog.Debug("ListUserIDs start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("fromUserID", fromUserID), slog.Int("limit", limit))
	defer func() {
		if err != nil {
			slog.Error("ListUserIDs failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("ListUserIDs completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("count", len(userIDs)))
		}
	}()

	err = r.txOrDb(ctx).SelectContext(ctx, &userIDs, query, fromUserID, limit)
	if err != nil {
		return nil, err
	}

	return userIDs, nil
}

func (r *Postgres) GetUserPortfolios(ctx context.Context, userID int64) (portfolios []model.Portfolio, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetUserPortfolios"
	query := `
		SELECT portfolio_id, user_id, name, base_currency
		FROM portfolios
		WHERE user_id = $1
		ORDER BY portfolio_id
		`

	slog.Debug("GetUserPortfolios start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	defer func() {
		if err != nil {
			slog.Error("GetUserPortfolios failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetUserPortfolios completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var portfolio dbModel.Portfolio
		err = rows.StructScan(&portfolio)
		if err != nil {
			return nil, err
		}
		portfolios = append(portfolios, dbConverter.ConvertPortfolio(portfolio))
	}

	return portfolios, rows.Err()
}

func (r *Postgres) GetPortfolio(ctx context.Context, portfolioID int64) (portfolio model.Portfolio, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetPortfolio"
	query := `
		SELECT portfolio_id, user_id, name, base_currency
		FROM portfolios
		WHERE portfolio_id = $1
		`

	slog.Debug("GetPortfolio start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("portfolioID", portfolioID))
	defer func() {
		if err != nil {
			slog.Error("GetPortfolio failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetPortfolio completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbPortfolio := dbModel.Portfolio{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, portfolioID).StructScan(&dbPortfolio)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Portfolio{}, repository.ErrNotFound
		}
		return model.Portfolio{}, err
	}

	return dbConverter.ConvertPortfolio(dbPortfolio), nil
}
