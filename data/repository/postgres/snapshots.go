package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/KotFed0t/portfolio_snapshots/internal/converter/dbConverter"
	"github.com/KotFed0t/portfolio_snapshots/internal/model"
	"github.com/KotFed0t/portfolio_snapshots/internal/model/dbModel"
	"github.com/KotFed0t/portfolio_snapshots/utils"
)

// GetSnapshotDates returns the dates already snapshotted for a portfolio within [from, till].
func (r *Postgres) GetSnapshotDates(ctx context.Context, portfolioID int64, from, till model.Date) (dates []model.Date, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetSnapshotDates"
	query := `
		SELECT snapshot_date FROM portfolio_snapshots
		WHERE portfolio_id = $1 AND snapshot_date BETWEEN $2 AND $3
		ORDER BY snapshot_date
		`

	slog.Debug("GetSnapshotDates start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("portfolioID", portfolioID))
	defer func() {
		if err != nil {
			slog.Error("GetSnapshotDates failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetSnapshotDates completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("count", len(dates)))
		}
	}()

	var raw []time.Time
	err = r.txOrDb(ctx).SelectContext(ctx, &raw, query, portfolioID, from.Time(), till.Time())
	if err != nil {
		return nil, err
	}

	dates = make([]model.Date, 0, len(raw))
	for _, t := range raw {
		dates = append(dates, model.DateOf(t))
	}

	return dates, nil
}

// UpsertSnapshots writes all snapshots in one statement; an existing (portfolio, date) row is overwritten.
func (r *Postgres) UpsertSnapshots(ctx context.Context, snapshots []model.PortfolioSnapshot) (err error) {
	if len(snapshots) == 0 {
		return nil
	}

	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpsertSnapshots"
	slog.Debug("UpsertSnapshots start", slog.String("rqID", rqID), slog.String("op", op), slog.Int("count", len(snapshots)))
	sb := strings.Builder{}
	args := make([]any, 0, len(snapshots)*4)

	defer func() {
		if err != nil {
			slog.Error("UpsertSnapshots failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpsertSnapshots completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	sb.WriteString(`INSERT INTO portfolio_snapshots (portfolio_id, snapshot_date, valuation, currency) VALUES `)

	for i, snapshot := range snapshots {
		args = append(args, snapshot.PortfolioID, snapshot.Date.Time(), snapshot.Valuation, snapshot.Currency)

		start := i*4 + 1
		sb.WriteString(fmt.Sprintf("($%d, $%d, $%d, $%d)", start, start+1, start+2, start+3))

		if i < len(snapshots)-1 {
			sb.WriteString(",")
		}
	}

	sb.WriteString(`
		ON CONFLICT (portfolio_id, snapshot_date) DO UPDATE SET
			valuation = EXCLUDED.valuation,
			currency = EXCLUDED.currency,
			updated_at = now();
	`)

	_, err = r.txOrDb(ctx).ExecContext(ctx, sb.String(), args...)
	return err
}

func (r *Postgres) ListSnapshots(ctx context.Context, portfolioID int64, from, till model.Date) (snapshots []model.PortfolioSnapshot, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.ListSnapshots"
	query := `
		SELECT portfolio_id, snapshot_date, valuation, currency
		FROM portfolio_snapshots
		WHERE portfolio_id = $1 AND snapshot_date BETWEEN $2 AND $3
		ORDER BY snapshot_date
		`

	slog.Debug("ListSnapshots start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("portfolioID", portfolioID))
	defer func() {
		if err != nil {
			slog.Error("ListSnapshots failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("ListSnapshots completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("count", len(snapshots)))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, portfolioID, from.Time(), till.Time())
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var snapshot dbModel.Snapshot
		err = rows.StructScan(&snapshot)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, dbConverter.ConvertSnapshot(snapshot))
	}

	return snapshots, rows.Err()
}

// PruneSnapshots deletes snapshots older than cutoff. The inception snapshot and the
// latest snapshot before cutoff survive so the series keeps its start and a carry-in value.
func (r *Postgres) PruneSnapshots(ctx context.Context, portfolioID int64, cutoff model.Date) (deleted int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.PruneSnapshots"
	query := `
		DELETE FROM portfolio_snapshots
		WHERE portfolio_id = $1
			AND snapshot_date < $2
			AND snapshot_date <> (SELECT MIN(snapshot_date) FROM portfolio_snapshots WHERE portfolio_id = $1)
			AND snapshot_date <> (SELECT MAX(snapshot_date) FROM portfolio_snapshots WHERE portfolio_id = $1 AND snapshot_date < $2)
		`

	slog.Debug("PruneSnapshots start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("portfolioID", portfolioID), slog.String("cutoff", cutoff.String()))
	defer func() {
		if err != nil {
			slog.Error("PruneSnapshots failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("PruneSnapshots completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("deleted", deleted))
		}
	}()

	res, err := r.txOrDb(ctx).ExecContext(ctx, query, portfolioID, cutoff.Time())
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
