package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/KotFed0t/portfolio_snapshots/config"
	"github.com/KotFed0t/portfolio_snapshots/internal/model"
	"github.com/KotFed0t/portfolio_snapshots/internal/service"
	"github.com/KotFed0t/portfolio_snapshots/utils"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// defaultRangeDays is the snapshot window served when the caller gives no from date.
const defaultRangeDays = 365

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type SnapshotRunner interface {
	Run(ctx context.Context, limit int, timeBudget time.Duration, retentionDays int) (model.RunResult, error)
}

type BenchmarkAligner interface {
	GetAlignedSeries(ctx context.Context, id model.BenchmarkID, buckets []model.Date) (map[model.Date]decimal.Decimal, error)
}

type ReportService interface {
	GetSnapshots(ctx context.Context, portfolioID int64, from, till model.Date) ([]model.PortfolioSnapshot, error)
	BuildReport(ctx context.Context, portfolioID int64, benchmarkID model.BenchmarkID, from, till model.Date) (fileBytes []byte, fileExtension string, err error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Controller struct {
	cfg        *config.Config
	snapshots  SnapshotRunner
	benchmarks BenchmarkAligner
	reports    ReportService
	checks     map[string]HealthCheck
	today      func() model.Date
}

func NewController(cfg *config.Config, snapshots SnapshotRunner, benchmarks BenchmarkAligner, reports ReportService, checks map[string]HealthCheck) *Controller {
	return &Controller{
		cfg:        cfg,
		snapshots:  snapshots,
		benchmarks: benchmarks,
		reports:    reports,
		checks:     checks,
		today:      model.Today,
	}
}

// RunSnapshots triggers one invocation of the batch runner.
// Query: limit (users, default from config), timeBudgetMs (default from config).
func (c *Controller) RunSnapshots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := intParam(q.Get("limit"), c.cfg.Jobs.SnapshotsUserLimit)
	if err != nil || limit <= 0 {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("%w: limit must be a positive integer", service.ErrInvalidArgument))
		return
	}

	budgetMs, err := intParam(q.Get("timeBudgetMs"), int(c.cfg.Jobs.SnapshotsTimeBudget.Milliseconds()))
	if err != nil || budgetMs < 0 {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("%w: timeBudgetMs must be a non-negative integer", service.ErrInvalidArgument))
		return
	}

	// the budget bounds the run; a caller hanging up must not fail it halfway
	ctx := context.WithoutCancel(r.Context())

	res, err := c.snapshots.Run(ctx, limit, time.Duration(budgetMs)*time.Millisecond, c.cfg.Jobs.SnapshotsRetention)
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// GetBenchmark aligns a benchmark onto the dates given as a comma separated
// and/or repeated dates parameter.
func (c *Controller) GetBenchmark(w http.ResponseWriter, r *http.Request) {
	id, err := model.ParseBenchmarkID(chi.URLParam(r, "benchmarkID"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("%w: %w", service.ErrUnknownBenchmark, err))
		return
	}

	dates, err := parseDates(r.URL.Query()["dates"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	points, err := c.benchmarks.GetAlignedSeries(r.Context(), id, dates)
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, benchmarkResponse{BenchmarkID: id, Points: points})
}

func (c *Controller) GetSnapshots(w http.ResponseWriter, r *http.Request) {
	portfolioID, from, to, err := c.portfolioRange(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	snapshots, err := c.reports.GetSnapshots(r.Context(), portfolioID, from, to)
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}

	res := snapshotsResponse{PortfolioID: portfolioID, From: from, To: to, Snapshots: make([]snapshotResponse, 0, len(snapshots))}
	for _, s := range snapshots {
		res.Snapshots = append(res.Snapshots, snapshotResponse{Date: s.Date, Valuation: s.Valuation, Currency: s.Currency})
	}

	writeJSON(w, http.StatusOK, res)
}

func (c *Controller) GetReport(w http.ResponseWriter, r *http.Request) {
	portfolioID, from, to, err := c.portfolioRange(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	benchmarkID := model.BenchmarkIMOEX
	if raw := r.URL.Query().Get("benchmark"); raw != "" {
		if benchmarkID, err = model.ParseBenchmarkID(raw); err != nil {
			writeError(w, r, http.StatusBadRequest, fmt.Errorf("%w: %w", service.ErrUnknownBenchmark, err))
			return
		}
	}

	fileBytes, ext, err := c.reports.BuildReport(r.Context(), portfolioID, benchmarkID, from, to)
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="portfolio_%d_%s_%s%s"`, portfolioID, from, to, ext))
	w.WriteHeader(http.StatusOK)
	if _, err = w.Write(fileBytes); err != nil {
		slog.Error("failed to write report", slog.String("rqID", utils.GetRequestIDFromCtx(r.Context())), slog.String("err", err.Error()))
	}
}

func (c *Controller) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), c.cfg.Jobs.PortCallTimeout)
	defer cancel()

	status := http.StatusOK
	res := make(map[string]string, len(c.checks))
	for name, check := range c.checks {
		if err := check(ctx); err != nil {
			res[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		res[name] = "ok"
	}

	writeJSON(w, status, res)
}

// portfolioRange reads the portfolio id and the from/to query dates. to defaults
// to yesterday, the latest date a snapshot can exist for.
func (c *Controller) portfolioRange(r *http.Request) (portfolioID int64, from, to model.Date, err error) {
	portfolioID, err = strconv.ParseInt(chi.URLParam(r, "portfolioID"), 10, 64)
	if err != nil || portfolioID <= 0 {
		return 0, model.Date{}, model.Date{}, fmt.Errorf("%w: invalid portfolio id", service.ErrInvalidArgument)
	}

	q := r.URL.Query()
	to = c.today().AddDays(-1)
	if raw := q.Get("to"); raw != "" {
		if to, err = model.ParseDate(raw); err != nil {
			return 0, model.Date{}, model.Date{}, fmt.Errorf("%w: %w", service.ErrInvalidArgument, err)
		}
	}
	from = to.AddDays(-defaultRangeDays)
	if raw := q.Get("from"); raw != "" {
		if from, err = model.ParseDate(raw); err != nil {
			return 0, model.Date{}, model.Date{}, fmt.Errorf("%w: %w", service.ErrInvalidArgument, err)
		}
	}
	if from.After(to) {
		return 0, model.Date{}, model.Date{}, fmt.Errorf("%w: from %s is after to %s", service.ErrInvalidArgument, from, to)
	}

	return portfolioID, from, to, nil
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// parseDates accepts both dates=a,b and dates=a&dates=b.
func parseDates(values []string) ([]model.Date, error) {
	var dates []model.Date
	for _, value := range values {
		for _, raw := range strings.Split(value, ",") {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			date, err := model.ParseDate(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", service.ErrInvalidArgument, err)
			}
			dates = append(dates, date)
		}
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("%w: dates must not be empty", service.ErrInvalidArgument)
	}
	return dates, nil
}
