package xslsxGenerator

import (
	"bytes"
	"context"
	"testing"

	"github.com/KotFed0t/portfolio_snapshots/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestGenerate(t *testing.T) {
	d := model.MustParseDate
	report := model.SnapshotReport{
		Portfolio:   model.Portfolio{PortfolioID: 10, Name: "main", BaseCurrency: "RUB"},
		BenchmarkID: model.BenchmarkIMOEX,
		From:        d("2024-01-01"),
		Till:        d("2024-01-03"),
		Rows: []model.ReportRow{
			{Date: d("2024-01-01"), Valuation: decimal.NewFromInt(1000)},
			{Date: d("2024-01-02"), Valuation: decimal.NewFromInt(1100), Benchmark: decimal.NewFromInt(3000), HasBenchmark: true},
			{Date: d("2024-01-03"), Valuation: decimal.NewFromInt(900), Benchmark: decimal.NewFromInt(3300), HasBenchmark: true},
		},
	}

	fileBytes, ext, err := New().Generate(context.Background(), report)
	require.NoError(t, err)
	assert.Equal(t, ".xlsx", ext)

	f, err := excelize.OpenReader(bytes.NewReader(fileBytes))
	require.NoError(t, err)
	defer f.Close()

	cell := func(axis string) string {
		v, err := f.GetCellValue(sheetName, axis)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, "IMOEX", cell("C2"))
	assert.Equal(t, "2024-01-01", cell("A3"))
	assert.Equal(t, "1000", cell("B3"))
	assert.Equal(t, "", cell("C3"), "no benchmark before its first point")
	assert.Equal(t, "100", cell("D3"))
	assert.Equal(t, "110", cell("D4"))
	assert.Equal(t, "100", cell("E4"))
	assert.Equal(t, "110", cell("E5"))
	assert.Equal(t, "90", cell("D5"))
}

func TestGenerateEmptyReport(t *testing.T) {
	_, _, err := New().Generate(context.Background(), model.SnapshotReport{})
	assert.Error(t, err)
}
