package model

import "github.com/shopspring/decimal"

// SnapshotReport is a portfolio's stored valuations next to a benchmark over a date range.
type SnapshotReport struct {
	Portfolio   Portfolio
	BenchmarkID BenchmarkID
	From, Till  Date
	Rows        []ReportRow
}

type ReportRow struct {
	Date      Date
	Valuation decimal.Decimal
	// Benchmark is zero when HasBenchmark is false, i.e. the date precedes the benchmark series.
	Benchmark    decimal.Decimal
	HasBenchmark bool
}
