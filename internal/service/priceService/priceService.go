package priceService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/portfolio_snapshots/data/cache"
	"github.com/KotFed0t/portfolio_snapshots/internal/externalApi"
	"github.com/KotFed0t/portfolio_snapshots/internal/model"
	"github.com/KotFed0t/portfolio_snapshots/internal/service"
	"github.com/KotFed0t/portfolio_snapshots/utils"
)

const (
	kindShare = "share"
	kindIndex = "index"
	kindFX    = "fx"
)

type MoexApi interface {
	GetSharePriceHistory(ctx context.Context, key model.InstrumentKey, from, till model.Date) ([]model.PricePoint, error)
	GetIndexHistory(ctx context.Context, secID string, from, till model.Date) ([]model.PricePoint, error)
	GetCurrencyRateHistory(ctx context.Context, currency string, from, till model.Date) ([]model.PricePoint, error)
}

type Cache interface {
	GetPriceSeries(ctx context.Context, kind, id string, from, till model.Date) ([]model.PricePoint, error)
	SetPriceSeries(ctx context.Context, kind, id string, from, till model.Date, points []model.PricePoint) error
}

// PriceService serves daily close series, reading through the cache.
// Provider failures are reported as service.ErrTransientProvider; an instrument
// the exchange does not know yields an empty series.
type PriceService struct {
	moexApi MoexApi
	cache   Cache
}

func New(moexApi MoexApi, cache Cache) *PriceService {
	return &PriceService{moexApi: moexApi, cache: cache}
}

func (s *PriceService) GetPriceSeries(ctx context.Context, key model.InstrumentKey, from, till model.Date) ([]model.PricePoint, error) {
	return s.getSeries(ctx, "PriceService.GetPriceSeries", kindShare, string(key), from, till,
		func(ctx context.Context) ([]model.PricePoint, error) {
			return s.moexApi.GetSharePriceHistory(ctx, key, from, till)
		})
}

// GetRateSeries returns the RUB price of one unit of currency.
func (s *PriceService) GetRateSeries(ctx context.Context, currency string, from, till model.Date) ([]model.PricePoint, error) {
	return s.getSeries(ctx, "PriceService.GetRateSeries", kindFX, currency, from, till,
		func(ctx context.Context) ([]model.PricePoint, error) {
			return s.moexApi.GetCurrencyRateHistory(ctx, currency, from, till)
		})
}

func (s *PriceService) GetBenchmarkSeries(ctx context.Context, id model.BenchmarkID, from, till model.Date) ([]model.BenchmarkPoint, error) {
	points, err := s.getSeries(ctx, "PriceService.GetBenchmarkSeries", kindIndex, id.SecID(), from, till,
		func(ctx context.Context) ([]model.PricePoint, error) {
			return s.moexApi.GetIndexHistory(ctx, id.SecID(), from, till)
		})
	if err != nil {
		return nil, err
	}

	res := make([]model.BenchmarkPoint, 0, len(points))
	for _, p := range points {
		res = append(res, model.BenchmarkPoint{Date: p.Date, Value: p.Close})
	}
	return res, nil
}

func (s *PriceService) getSeries(
	ctx context.Context,
	op, kind, id string,
	from, till model.Date,
	fetch func(ctx context.Context) ([]model.PricePoint, error),
) ([]model.PricePoint, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	slog.Debug("getSeries start", slog.String("rqID", rqID), slog.String("op", op), slog.String("id", id),
		slog.String("from", from.String()), slog.String("till", till.String()))

	points, err := s.cache.GetPriceSeries(ctx, kind, id, from, till)
	if err == nil {
		slog.Debug("got series from cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("id", id))
		return points, nil
	}
	if !errors.Is(err, cache.ErrNotFound) {
		slog.Warn("cache read failed, fetching from provider", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	points, err = fetch(ctx)
	if err != nil {
		if !errors.Is(err, externalApi.ErrNotFound) {
			slog.Error("provider request failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("id", id), slog.String("err", err.Error()))
			return nil, fmt.Errorf("%w: %s %s: %w", service.ErrTransientProvider, kind, id, err)
		}
		slog.Warn("instrument not found on provider", slog.String("rqID", rqID), slog.String("op", op), slog.String("id", id))
		points = []model.PricePoint{}
	}

	if err = s.cache.SetPriceSeries(ctx, kind, id, from, till, points); err != nil {
		slog.Warn("cache write failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	slog.Debug("getSeries completed", slog.String("rqID", rqID), slog.String("op", op), slog.String("id", id), slog.Int("points", len(points)))

	return points, nil
}
