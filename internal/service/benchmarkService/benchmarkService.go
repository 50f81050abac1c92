package benchmarkService

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/portfolio_snapshots/config"
	"github.com/KotFed0t/portfolio_snapshots/internal/benchmark"
	"github.com/KotFed0t/portfolio_snapshots/internal/model"
	"github.com/KotFed0t/portfolio_snapshots/internal/service"
	"github.com/KotFed0t/portfolio_snapshots/utils"
	"github.com/shopspring/decimal"
)

type PriceProvider interface {
	GetBenchmarkSeries(ctx context.Context, id model.BenchmarkID, from, till model.Date) ([]model.BenchmarkPoint, error)
}

type BenchmarkService struct {
	cfg    *config.Config
	prices PriceProvider
}

func New(cfg *config.Config, prices PriceProvider) *BenchmarkService {
	return &BenchmarkService{cfg: cfg, prices: prices}
}

// GetAlignedSeries returns the benchmark value carried forward onto every bucket.
// The series is fetched with some lookback so the earliest bucket can pick up
// the last close before it (weekends, holidays). When the lookback holds no
// close on or before the earliest bucket, as after a long market closure, the
// window is widened once to the maximum lookback.
func (s *BenchmarkService) GetAlignedSeries(ctx context.Context, id model.BenchmarkID, buckets []model.Date) (res map[model.Date]decimal.Decimal, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "BenchmarkService.GetAlignedSeries"

	slog.Debug("GetAlignedSeries start", slog.String("rqID", rqID), slog.String("op", op),
		slog.String("benchmarkID", string(id)), slog.Int("buckets", len(buckets)))
	defer func() {
		if err != nil {
			slog.Error("GetAlignedSeries failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetAlignedSeries completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("points", len(res)))
		}
	}()

	if id.SecID() == "" {
		return nil, fmt.Errorf("%w: %s", service.ErrUnknownBenchmark, id)
	}

	dates := benchmark.NormalizeBuckets(buckets)
	if len(dates) == 0 {
		return nil, fmt.Errorf("%w: no bucket dates", service.ErrInvalidArgument)
	}

	first, till := dates[0], dates[len(dates)-1]

	series, err := s.fetch(ctx, id, first.AddDays(-s.cfg.Benchmark.LookbackDays), till)
	if err != nil {
		return nil, err
	}

	if !hasPointAtOrBefore(series, first) && s.cfg.Benchmark.MaxLookbackDays > s.cfg.Benchmark.LookbackDays {
		slog.Debug("widening benchmark lookback", slog.String("rqID", rqID), slog.String("op", op),
			slog.Int("days", s.cfg.Benchmark.MaxLookbackDays))
		series, err = s.fetch(ctx, id, first.AddDays(-s.cfg.Benchmark.MaxLookbackDays), till)
		if err != nil {
			return nil, err
		}
	}

	return benchmark.Align(series, dates), nil
}

func (s *BenchmarkService) fetch(ctx context.Context, id model.BenchmarkID, from, till model.Date) ([]model.BenchmarkPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Jobs.PortCallTimeout)
	defer cancel()

	return s.prices.GetBenchmarkSeries(ctx, id, from, till)
}

func hasPointAtOrBefore(series []model.BenchmarkPoint, date model.Date) bool {
	for _, p := range series {
		if !p.Date.After(date) {
			return true
		}
	}
	return false
}
