package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KotFed0t/portfolio_snapshots/config"
	"github.com/KotFed0t/portfolio_snapshots/data"
	"github.com/KotFed0t/portfolio_snapshots/data/cache"
	"github.com/KotFed0t/portfolio_snapshots/data/cursor"
	"github.com/KotFed0t/portfolio_snapshots/data/repository/postgres"
	"github.com/KotFed0t/portfolio_snapshots/internal/externalApi/moexApi"
	"github.com/KotFed0t/portfolio_snapshots/internal/notifier/telegramNotifier"
	"github.com/KotFed0t/portfolio_snapshots/internal/reportGenerator/xslsxGenerator"
	"github.com/KotFed0t/portfolio_snapshots/internal/scheduler"
	"github.com/KotFed0t/portfolio_snapshots/internal/service/benchmarkService"
	"github.com/KotFed0t/portfolio_snapshots/internal/service/priceService"
	"github.com/KotFed0t/portfolio_snapshots/internal/service/reportService"
	"github.com/KotFed0t/portfolio_snapshots/internal/service/snapshotService"
	"github.com/KotFed0t/portfolio_snapshots/internal/transport/httpapi"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.MustLoad()

	setupLogger(cfg)

	slog.Debug("config", slog.Any("cfg", cfg))

	pgClient := data.NewPostgresClient(cfg)
	defer pgClient.Close()

	pgRepo := postgres.NewPostgres(cfg, pgClient)

	redisClient := data.NewRedisClient(cfg)
	defer redisClient.Close()

	redisCache := cache.NewRedisCache(redisClient, cfg)
	redisCursor := cursor.NewRedisCursor(redisClient, cfg)

	moexApiClient := moexApi.New(cfg)
	prices := priceService.New(moexApiClient, redisCache)

	notifier := telegramNotifier.New(cfg)

	snapshotSrv := snapshotService.New(cfg, pgRepo, prices, redisCursor, notifier)
	benchmarkSrv := benchmarkService.New(cfg, prices)
	reportSrv := reportService.New(pgRepo, benchmarkSrv, xslsxGenerator.New())

	checks := map[string]httpapi.HealthCheck{
		"postgres": pgRepo.Ping,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	}

	ctrl := httpapi.NewController(cfg, snapshotSrv, benchmarkSrv, reportSrv, checks)
	server := httpapi.NewServer(cfg, httpapi.NewRouter(cfg, ctrl))
	server.Start()

	sched := scheduler.New()
	sched.NewCrontabJob("portfolio snapshots", func(ctx context.Context) error {
		res, err := snapshotSrv.Run(ctx, cfg.Jobs.SnapshotsUserLimit, cfg.Jobs.SnapshotsTimeBudget, cfg.Jobs.SnapshotsRetention)
		if err != nil {
			return err
		}
		slog.Info("snapshots job result",
			slog.Int("processedUsers", res.ProcessedUsers),
			slog.Int("processedPortfolios", res.ProcessedPortfolios),
			slog.Bool("done", res.Done),
		)
		return nil
	}, cfg.Jobs.SnapshotsCrontab, false)
	sched.Start()
	defer sched.Stop()

	// Waiting interruption signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-interrupt

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	server.Stop(ctx)
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
