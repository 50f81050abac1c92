package xslsxGenerator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/portfolio_snapshots/internal/model"
	"github.com/KotFed0t/portfolio_snapshots/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	sheetName    = "Snapshots"
	firstDataRow = 3
)

var hundred = decimal.NewFromInt(100)

type XSLSXGenerator struct{}

func New() *XSLSXGenerator {
	return &XSLSXGenerator{}
}

func (g *XSLSXGenerator) Generate(ctx context.Context, report model.SnapshotReport) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XSLSXGenerator.Generate"

	if len(report.Rows) == 0 {
		return nil, "", errors.New("empty report")
	}

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op), slog.Int("rows", len(report.Rows)))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	if err = f.SetSheetName("Sheet1", sheetName); err != nil {
		slog.Error("got error while renaming Sheet1", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	if err = g.fillSheet(f, report); err != nil {
		slog.Error("got error while filling sheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while Saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}

func (g *XSLSXGenerator) fillSheet(f *excelize.File, report model.SnapshotReport) error {
	title := fmt.Sprintf("%s (%s), %s - %s", report.Portfolio.Name, report.Portfolio.BaseCurrency, report.From, report.Till)
	if err := g.header(f, "A1", "C1", title, "#cfe2f3"); err != nil {
		return err
	}
	if err := g.header(f, "D1", "E1", fmt.Sprintf("Rebased to 100, benchmark %s", report.BenchmarkID), "#d9ead3"); err != nil {
		return err
	}

	_ = f.SetCellStr(sheetName, "A2", "date")
	_ = f.SetCellStr(sheetName, "B2", "valuation")
	_ = f.SetCellStr(sheetName, "C2", string(report.BenchmarkID))
	_ = f.SetCellStr(sheetName, "D2", "portfolio")
	_ = f.SetCellStr(sheetName, "E2", "benchmark")

	// rebasing starts at the first row where each series has a non-zero value
	var valuationBase, benchmarkBase decimal.Decimal
	for i, row := range report.Rows {
		n := i + firstDataRow
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", n), row.Date.String())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", n), row.Valuation.InexactFloat64())

		if valuationBase.IsZero() && !row.Valuation.IsZero() {
			valuationBase = row.Valuation
		}
		if !valuationBase.IsZero() {
			_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", n), rebase(row.Valuation, valuationBase))
		}

		if !row.HasBenchmark {
			continue
		}
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", n), row.Benchmark.InexactFloat64())
		if benchmarkBase.IsZero() && !row.Benchmark.IsZero() {
			benchmarkBase = row.Benchmark
		}
		if !benchmarkBase.IsZero() {
			_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", n), rebase(row.Benchmark, benchmarkBase))
		}
	}

	return f.SetColWidth(sheetName, "A", "E", 16)
}

func (g *XSLSXGenerator) header(f *excelize.File, from, to, text, color string) error {
	if err := f.MergeCell(sheetName, from, to); err != nil {
		return err
	}
	_ = f.SetCellStr(sheetName, from, text)

	styleID, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{color},
		},
	})
	if err != nil {
		return err
	}

	if err = f.SetCellStyle(sheetName, from, from, styleID); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}
	return nil
}

func rebase(value, base decimal.Decimal) float64 {
	return value.Div(base).Mul(hundred).Round(2).InexactFloat64()
}
