package moexApi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/KotFed0t/portfolio_snapshots/config"
	"github.com/KotFed0t/portfolio_snapshots/internal/externalApi"
	"github.com/KotFed0t/portfolio_snapshots/internal/model"
	"github.com/KotFed0t/portfolio_snapshots/internal/model/moexModel"
	"github.com/KotFed0t/portfolio_snapshots/utils"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// maxPages bounds pagination in case the cursor block is inconsistent.
const maxPages = 500

// currencySecIDs maps ISO currency codes to their TOM instruments on the CETS board, quoted in RUB.
var currencySecIDs = map[string]string{
	"USD": "USD000UTSTOM",
	"EUR": "EUR_RUB__TOM",
	"CNY": "CNYRUB_TOM",
	"HKD": "HKDRUB_TOM",
	"GBP": "GBPRUB_TOM",
}

type MoexApi struct {
	client     *resty.Client
	shareBoard string
}

func New(cfg *config.Config) *MoexApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.MoexApi.Url)
	return &MoexApi{client: client, shareBoard: cfg.API.MoexApi.ShareBoard}
}

// GetSharePriceHistory returns daily closes of a share or fund between from and till inclusive.
// Bare tickers are looked up on the default share board.
func (a *MoexApi) GetSharePriceHistory(ctx context.Context, key model.InstrumentKey, from, till model.Date) ([]model.PricePoint, error) {
	board, ticker := key.Board()
	if board == "" {
		board = a.shareBoard
	}
	url := fmt.Sprintf("/iss/history/engines/stock/markets/shares/boards/%s/securities/%s.json", board, ticker)
	return a.getHistory(ctx, "MoexApi.GetSharePriceHistory", url, from, till)
}

// GetIndexHistory returns daily closes of an index such as IMOEX.
func (a *MoexApi) GetIndexHistory(ctx context.Context, secID string, from, till model.Date) ([]model.PricePoint, error) {
	url := fmt.Sprintf("/iss/history/engines/stock/markets/index/securities/%s.json", secID)
	return a.getHistory(ctx, "MoexApi.GetIndexHistory", url, from, till)
}

// GetCurrencyRateHistory returns the daily RUB price of one unit of currency.
func (a *MoexApi) GetCurrencyRateHistory(ctx context.Context, currency string, from, till model.Date) ([]model.PricePoint, error) {
	secID, ok := currencySecIDs[currency]
	if !ok {
		return nil, fmt.Errorf("%w: no exchange instrument for currency %s", externalApi.ErrNotFound, currency)
	}
	url := fmt.Sprintf("/iss/history/engines/currency/markets/selt/boards/CETS/securities/%s.json", secID)
	return a.getHistory(ctx, "MoexApi.GetCurrencyRateHistory", url, from, till)
}

func (a *MoexApi) getHistory(ctx context.Context, op, url string, from, till model.Date) ([]model.PricePoint, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	slog.Debug("start request", slog.String("rqID", rqID), slog.String("op", op), slog.String("url", url),
		slog.String("from", from.String()), slog.String("till", till.String()))

	var res []model.PricePoint
	start := 0
	for page := 0; page < maxPages; page++ {
		raw, err := a.requestHistoryPage(ctx, url, from, till, start)
		if err != nil {
			slog.Error("history request failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			return nil, err
		}

		points, err := parseHistory(raw.History)
		if err != nil {
			slog.Error("can't parse raw history", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			return nil, err
		}
		res = append(res, points...)

		cursor, ok, err := parseCursor(raw.HistoryCursor)
		if err != nil {
			slog.Error("can't parse history cursor", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			return nil, err
		}
		if !ok || cursor.PageSize <= 0 || cursor.Index+cursor.PageSize >= cursor.Total || len(raw.History.Data) == 0 {
			break
		}
		start = cursor.Index + cursor.PageSize
	}

	slog.Debug("request complete", slog.String("rqID", rqID), slog.String("op", op), slog.Int("points", len(res)))

	return res, nil
}

func (a *MoexApi) requestHistoryPage(ctx context.Context, url string, from, till model.Date, start int) (moexModel.RawHistory, error) {
	params := map[string]string{
		"iss.meta":        "off",
		"history.columns": "TRADEDATE,CLOSE",
		"from":            from.String(),
		"till":            till.String(),
		"start":           strconv.Itoa(start),
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(params).
		Get(url)
	if err != nil {
		return moexModel.RawHistory{}, fmt.Errorf("%w: %w", externalApi.ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return moexModel.RawHistory{}, externalApi.ErrNotFound
	case resp.IsError():
		return moexModel.RawHistory{}, fmt.Errorf("%w: status %d", externalApi.ErrUnavailable, resp.StatusCode())
	}

	raw := moexModel.RawHistory{}
	dec := json.NewDecoder(bytes.NewReader(resp.Body()))
	dec.UseNumber()
	if err = dec.Decode(&raw); err != nil {
		return moexModel.RawHistory{}, fmt.Errorf("can't unmarshall response into moexModel.RawHistory: %w", err)
	}

	return raw, nil
}

// parseHistory reads TRADEDATE/CLOSE rows. Rows without a close (no trades that day) are skipped.
func parseHistory(table moexModel.Table) ([]model.PricePoint, error) {
	dateCol, closeCol := -1, -1
	for i, col := range table.Columns {
		switch col {
		case "TRADEDATE":
			dateCol = i
		case "CLOSE":
			closeCol = i
		}
	}
	if len(table.Data) == 0 {
		return nil, nil
	}
	if dateCol < 0 || closeCol < 0 {
		return nil, errors.New("history has no TRADEDATE or CLOSE column")
	}

	res := make([]model.PricePoint, 0, len(table.Data))
	for _, row := range table.Data {
		if len(row) != len(table.Columns) {
			return nil, errors.New("invalid history row")
		}

		rawDate, ok := row[dateCol].(string)
		if !ok {
			return nil, fmt.Errorf("invalid type TRADEDATE = %v", row[dateCol])
		}
		date, err := model.ParseDate(rawDate)
		if err != nil {
			return nil, err
		}

		if row[closeCol] == nil {
			continue
		}
		price, err := toDecimal(row[closeCol])
		if err != nil {
			return nil, fmt.Errorf("invalid CLOSE on %s: %w", rawDate, err)
		}

		res = append(res, model.PricePoint{Date: date, Close: price})
	}

	return res, nil
}

func parseCursor(table moexModel.Table) (moexModel.Cursor, bool, error) {
	if len(table.Data) == 0 {
		return moexModel.Cursor{}, false, nil
	}
	row := table.Data[0]
	if len(row) != len(table.Columns) {
		return moexModel.Cursor{}, false, errors.New("invalid history.cursor row")
	}

	cursor := moexModel.Cursor{}
	for i, col := range table.Columns {
		v, err := toDecimal(row[i])
		if err != nil {
			return moexModel.Cursor{}, false, fmt.Errorf("invalid %s: %w", col, err)
		}
		switch col {
		case "INDEX":
			cursor.Index = int(v.IntPart())
		case "TOTAL":
			cursor.Total = int(v.IntPart())
		case "PAGESIZE":
			cursor.PageSize = int(v.IntPart())
		}
	}
	return cursor, true, nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case json.Number:
		return decimal.NewFromString(n.String())
	case float64:
		return decimal.NewFromFloat(n), nil
	case string:
		return decimal.NewFromString(n)
	default:
		return decimal.Decimal{}, fmt.Errorf("unexpected type %T", v)
	}
}
