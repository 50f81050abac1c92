package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/portfolio_snapshots/config"
	"github.com/KotFed0t/portfolio_snapshots/internal/model"
	"github.com/KotFed0t/portfolio_snapshots/utils"
	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("error not found in cache")

type RedisCache struct {
	redis *redis.Client
	cfg   *config.Config
}

func NewRedisCache(redisClient *redis.Client, cfg *config.Config) *RedisCache {
	return &RedisCache{redis: redisClient, cfg: cfg}
}

func seriesKey(kind, id string, from, till model.Date) string {
	return fmt.Sprintf("prices:%s:%s:%s:%s", kind, id, from, till)
}

func (r *RedisCache) SetPriceSeries(ctx context.Context, kind, id string, from, till model.Date, points []model.PricePoint) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	key := seriesKey(kind, id, from, till)
	slog.Debug("start SetPriceSeries", slog.String("rqID", rqID), slog.String("key", key))

	seriesJson, err := json.Marshal(points)
	if err != nil {
		slog.Error("can't marshall series in SetPriceSeries", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.String("key", key))
		return errors.New("can't marshall series")
	}

	err = r.redis.Set(ctx, key, seriesJson, r.cfg.Cache.PriceSeriesExpiration).Err()
	if err != nil {
		slog.Error("failed on redis.Set", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.String("key", key))
		return err
	}

	slog.Debug("SetPriceSeries completed", slog.String("rqID", rqID), slog.String("key", key))

	return nil
}

func (r *RedisCache) GetPriceSeries(ctx context.Context, kind, id string, from, till model.Date) ([]model.PricePoint, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	key := seriesKey(kind, id, from, till)
	slog.Debug("GetPriceSeries start", slog.String("rqID", rqID), slog.String("key", key))

	res, err := r.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		slog.Error("failed on redis.Get", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.String("key", key))
		return nil, err
	}

	var points []model.PricePoint
	err = json.Unmarshal([]byte(res), &points)
	if err != nil {
		slog.Error(
			"can't unmarshall series in GetPriceSeries",
			slog.String("rqID", rqID),
			slog.String("err", err.Error()),
			slog.String("key", key),
		)
		return nil, errors.New("can't unmarshall series")
	}

	slog.Debug("GetPriceSeries finished", slog.String("rqID", rqID), slog.String("key", key))

	return points, nil
}
