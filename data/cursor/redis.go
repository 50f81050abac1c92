package cursor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/KotFed0t/portfolio_snapshots/config"
	"github.com/KotFed0t/portfolio_snapshots/internal/model"
	"github.com/KotFed0t/portfolio_snapshots/utils"
	"github.com/redis/go-redis/v9"
)

const snapshotsCursorKey = "snapshots:cursor"

// RedisCursor keeps the batch cursor between invocations of one logical run.
// It expires so a stale cursor never outlives the run it belongs to.
type RedisCursor struct {
	redis *redis.Client
	cfg   *config.Config
}

func NewRedisCursor(redisClient *redis.Client, cfg *config.Config) *RedisCursor {
	return &RedisCursor{redis: redisClient, cfg: cfg}
}

// Load returns the zero cursor when none is stored.
func (r *RedisCursor) Load(ctx context.Context) (model.Cursor, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	res, err := r.redis.Get(ctx, snapshotsCursorKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Cursor{}, nil
		}
		slog.Error("failed on redis.Get", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return model.Cursor{}, err
	}

	cursor := model.Cursor{}
	if err = json.Unmarshal([]byte(res), &cursor); err != nil {
		slog.Warn("can't unmarshall cursor, starting over", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return model.Cursor{}, nil
	}

	return cursor, nil
}

func (r *RedisCursor) Save(ctx context.Context, cursor model.Cursor) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	cursorJson, err := json.Marshal(cursor)
	if err != nil {
		return err
	}

	err = r.redis.Set(ctx, snapshotsCursorKey, cursorJson, r.cfg.Jobs.CursorExpiration).Err()
	if err != nil {
		slog.Error("failed on redis.Set", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("cursor saved", slog.String("rqID", rqID), slog.Any("cursor", cursor))

	return nil
}

func (r *RedisCursor) Reset(ctx context.Context) error {
	err := r.redis.Del(ctx, snapshotsCursorKey).Err()
	if err != nil {
		slog.Error("failed on redis.Del", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()))
	}
	return err
}
