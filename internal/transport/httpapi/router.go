package httpapi

import (
	"net/http"

	"github.com/KotFed0t/portfolio_snapshots/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

func NewRouter(cfg *config.Config, ctrl *Controller) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(Logger)

	r.Get("/healthz", ctrl.Healthz)

	r.Route("/api", func(r chi.Router) {
		r.Use(BearerAuth(cfg.HTTP.CronSecret))

		r.Post("/cron/snapshots", ctrl.RunSnapshots)
		r.Get("/portfolios/{portfolioID}/snapshots", ctrl.GetSnapshots)

		// these reach the price provider
		r.Group(func(r chi.Router) {
			r.Use(RateLimit(rate.NewLimiter(rate.Limit(cfg.HTTP.BenchmarkRateLimit), cfg.HTTP.BenchmarkRateBurst)))
			r.Get("/benchmarks/{benchmarkID}", ctrl.GetBenchmark)
			r.Get("/portfolios/{portfolioID}/report.xlsx", ctrl.GetReport)
		})
	})

	return r
}
