package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/KotFed0t/portfolio_snapshots/internal/model"
	"github.com/KotFed0t/portfolio_snapshots/internal/service"
	"github.com/KotFed0t/portfolio_snapshots/utils"
	"github.com/shopspring/decimal"
)

type errorResponse struct {
	Error string `json:"error"`
}

type benchmarkResponse struct {
	BenchmarkID model.BenchmarkID              `json:"benchmarkId"`
	Points      map[model.Date]decimal.Decimal `json:"points"`
}

type snapshotResponse struct {
	Date      model.Date      `json:"date"`
	Valuation decimal.Decimal `json:"valuation"`
	Currency  string          `json:"currency"`
}

type snapshotsResponse struct {
	PortfolioID int64              `json:"portfolioId"`
	From        model.Date         `json:"from"`
	To          model.Date         `json:"to"`
	Snapshots   []snapshotResponse `json:"snapshots"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("err", err.Error()))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	rqID := utils.GetRequestIDFromCtx(r.Context())
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", slog.String("rqID", rqID), slog.Int("status", status), slog.String("err", err.Error()))
	} else {
		slog.Warn("request rejected", slog.String("rqID", rqID), slog.Int("status", status), slog.String("err", err.Error()))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFor maps service errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidArgument), errors.Is(err, service.ErrUnknownBenchmark):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrTransientProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
