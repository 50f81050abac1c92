package reportService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/portfolio_snapshots/data/repository"
	"github.com/KotFed0t/portfolio_snapshots/internal/model"
	"github.com/KotFed0t/portfolio_snapshots/internal/service"
	"github.com/KotFed0t/portfolio_snapshots/utils"
	"github.com/shopspring/decimal"
)

type Repository interface {
	GetPortfolio(ctx context.Context, portfolioID int64) (model.Portfolio, error)
	ListSnapshots(ctx context.Context, portfolioID int64, from, till model.Date) ([]model.PortfolioSnapshot, error)
}

type BenchmarkAligner interface {
	GetAlignedSeries(ctx context.Context, id model.BenchmarkID, buckets []model.Date) (map[model.Date]decimal.Decimal, error)
}

type ReportGenerator interface {
	Generate(ctx context.Context, report model.SnapshotReport) (fileBytes []byte, fileExtension string, err error)
}

// ReportService serves persisted snapshots, alone or next to a benchmark.
type ReportService struct {
	repo       Repository
	benchmarks BenchmarkAligner
	generator  ReportGenerator
}

func New(repo Repository, benchmarks BenchmarkAligner, generator ReportGenerator) *ReportService {
	return &ReportService{repo: repo, benchmarks: benchmarks, generator: generator}
}

func (s *ReportService) GetSnapshots(ctx context.Context, portfolioID int64, from, till model.Date) ([]model.PortfolioSnapshot, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "ReportService.GetSnapshots"

	slog.Debug("GetSnapshots start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("portfolioID", portfolioID))

	if _, err := s.getPortfolio(ctx, portfolioID); err != nil {
		return nil, err
	}
	if from.After(till) {
		return nil, fmt.Errorf("%w: from %s is after till %s", service.ErrInvalidArgument, from, till)
	}

	snapshots, err := s.repo.ListSnapshots(ctx, portfolioID, from, till)
	if err != nil {
		slog.Error("got error from repo.ListSnapshots", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	return snapshots, nil
}

// BuildReport renders the snapshots in [from, till] with the benchmark aligned
// to the snapshot dates.
func (s *ReportService) BuildReport(ctx context.Context, portfolioID int64, benchmarkID model.BenchmarkID, from, till model.Date) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "ReportService.BuildReport"

	slog.Debug("BuildReport start", slog.String("rqID", rqID), slog.String("op", op),
		slog.Int64("portfolioID", portfolioID), slog.String("benchmarkID", string(benchmarkID)))
	defer func() {
		if err != nil {
			slog.Error("BuildReport failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("BuildReport completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	portfolio, err := s.getPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, "", err
	}

	snapshots, err := s.GetSnapshots(ctx, portfolioID, from, till)
	if err != nil {
		return nil, "", err
	}
	if len(snapshots) == 0 {
		return nil, "", fmt.Errorf("%w: no snapshots between %s and %s", service.ErrNotFound, from, till)
	}

	dates := make([]model.Date, 0, len(snapshots))
	for _, snapshot := range snapshots {
		dates = append(dates, snapshot.Date)
	}

	aligned, err := s.benchmarks.GetAlignedSeries(ctx, benchmarkID, dates)
	if err != nil {
		return nil, "", err
	}

	report := model.SnapshotReport{
		Portfolio:   portfolio,
		BenchmarkID: benchmarkID,
		From:        from,
		Till:        till,
		Rows:        make([]model.ReportRow, 0, len(snapshots)),
	}
	for _, snapshot := range snapshots {
		value, ok := aligned[snapshot.Date]
		report.Rows = append(report.Rows, model.ReportRow{
			Date:         snapshot.Date,
			Valuation:    snapshot.Valuation,
			Benchmark:    value,
			HasBenchmark: ok,
		})
	}

	return s.generator.Generate(ctx, report)
}

func (s *ReportService) getPortfolio(ctx context.Context, portfolioID int64) (model.Portfolio, error) {
	portfolio, err := s.repo.GetPortfolio(ctx, portfolioID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Portfolio{}, fmt.Errorf("%w: portfolio %d", service.ErrNotFound, portfolioID)
		}
		slog.Error("got error from repo.GetPortfolio", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()))
		return model.Portfolio{}, err
	}
	return portfolio, nil
}
