package cursor

import (
	"context"
	"testing"
	"time"

	"github.com/KotFed0t/portfolio_snapshots/config"
	"github.com/KotFed0t/portfolio_snapshots/internal/model"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorLifecycle(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := &config.Config{}
	cfg.Jobs.CursorExpiration = 30 * time.Minute
	store := NewRedisCursor(client, cfg)
	ctx := context.Background()

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	want := model.Cursor{LastUserID: 42, LastPortfolioID: 7, LastDate: model.MustParseDate("2024-05-01")}
	require.NoError(t, store.Save(ctx, want))
	assert.Equal(t, 30*time.Minute, mr.TTL(snapshotsCursorKey))

	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, store.Reset(ctx))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestCursorWithoutDate(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisCursor(client, &config.Config{})
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, model.Cursor{LastUserID: 3}))
	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Cursor{LastUserID: 3}, got)
}

func TestCursorCorruptValueStartsOver(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, mr.Set(snapshotsCursorKey, "{not json"))

	got, err := NewRedisCursor(client, &config.Config{}).Load(context.Background())
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}
