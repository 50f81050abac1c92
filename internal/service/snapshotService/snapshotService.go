package snapshotService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KotFed0t/portfolio_snapshots/config"
	"github.com/KotFed0t/portfolio_snapshots/internal/holdings"
	"github.com/KotFed0t/portfolio_snapshots/internal/model"
	"github.com/KotFed0t/portfolio_snapshots/internal/service"
	"github.com/KotFed0t/portfolio_snapshots/utils"
)

type Repository interface {
	WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error
	ListUserIDs(ctx context.Context, fromUserID int64, limit int) ([]int64, error)
	GetUserPortfolios(ctx context.Context, userID int64) ([]model.Portfolio, error)
	GetPortfolioTransactions(ctx context.Context, portfolioID int64) ([]model.Transaction, error)
	GetSnapshotDates(ctx context.Context, portfolioID int64, from, till model.Date) ([]model.Date, error)
	UpsertSnapshots(ctx context.Context, snapshots []model.PortfolioSnapshot) error
	PruneSnapshots(ctx context.Context, portfolioID int64, cutoff model.Date) (int64, error)
}

type PriceProvider interface {
	GetPriceSeries(ctx context.Context, key model.InstrumentKey, from, till model.Date) ([]model.PricePoint, error)
	GetRateSeries(ctx context.Context, currency string, from, till model.Date) ([]model.PricePoint, error)
}

type CursorStore interface {
	Load(ctx context.Context) (model.Cursor, error)
	Save(ctx context.Context, cursor model.Cursor) error
	Reset(ctx context.Context) error
}

type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// SnapshotService fills the gaps in daily portfolio snapshots, resuming from a
// cursor and stopping when the time budget runs out.
type SnapshotService struct {
	cfg      *config.Config
	repo     Repository
	prices   PriceProvider
	cursor   CursorStore
	notifier Notifier
	now      func() time.Time
}

func New(cfg *config.Config, repo Repository, prices PriceProvider, cursor CursorStore, notifier Notifier) *SnapshotService {
	return &SnapshotService{
		cfg:      cfg,
		repo:     repo,
		prices:   prices,
		cursor:   cursor,
		notifier: notifier,
		now:      time.Now,
	}
}

// Run processes at most limit users. The result is Done only when every user
// was processed and the cursor was reset. A storage failure aborts the run
// with service.ErrFatalStorage.
func (s *SnapshotService) Run(ctx context.Context, limit int, timeBudget time.Duration, retentionDays int) (res model.RunResult, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "SnapshotService.Run"

	if limit <= 0 {
		return model.RunResult{State: model.RunStateIdle}, fmt.Errorf("%w: limit must be positive", service.ErrInvalidArgument)
	}
	if timeBudget < 0 {
		return model.RunResult{State: model.RunStateIdle}, fmt.Errorf("%w: time budget must not be negative", service.ErrInvalidArgument)
	}

	started := s.now()
	r := &run{
		s:             s,
		started:       started,
		budget:        timeBudget,
		today:         model.DateOf(started.UTC()),
		retentionDays: retentionDays,
		memo:          newSeriesMemo(),
		res:           model.RunResult{State: model.RunStateRunning},
	}

	slog.Info("snapshot run start", slog.String("rqID", rqID), slog.String("op", op), slog.Int("limit", limit),
		slog.Duration("timeBudget", timeBudget), slog.Int("retentionDays", retentionDays), slog.String("today", r.today.String()),
		slog.String("costBasis", holdings.Method.String()))
	defer func() {
		if err != nil {
			r.res.State = model.RunStateFailed
			res = r.res
			slog.Error("snapshot run failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			s.notifyFailure(ctx, err)
			return
		}
		res = r.res
		slog.Info("snapshot run completed", slog.String("rqID", rqID), slog.String("op", op),
			slog.String("state", string(res.State)),
			slog.Int("processedUsers", res.ProcessedUsers),
			slog.Int("processedPortfolios", res.ProcessedPortfolios),
			slog.Int("skippedPortfolios", res.SkippedPortfolios),
			slog.Int("snapshotsWritten", res.SnapshotsWritten),
			slog.Bool("done", res.Done),
			slog.Duration("elapsed", s.now().Sub(started)),
		)
	}()

	err = r.execute(ctx, limit)
	return r.res, err
}

func (s *SnapshotService) portCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.Jobs.PortCallTimeout)
}

func (s *SnapshotService) notifyFailure(ctx context.Context, runErr error) {
	ctx, cancel := s.portCtx(context.WithoutCancel(ctx))
	defer cancel()

	text := fmt.Sprintf("snapshot run failed (rqID %s): %s", utils.GetRequestIDFromCtx(ctx), runErr)
	if err := s.notifier.Notify(ctx, text); err != nil {
		slog.Error("failed to send run failure alert", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()))
	}
}

func fatal(action string, err error) error {
	if errors.Is(err, service.ErrFatalStorage) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", service.ErrFatalStorage, action, err)
}
