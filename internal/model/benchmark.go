package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type BenchmarkPoint struct {
	Date  Date
	Value decimal.Decimal
}

// BenchmarkID is the closed set of supported benchmarks.
type BenchmarkID string

const (
	BenchmarkIMOEX  BenchmarkID = "IMOEX"
	BenchmarkRTSI   BenchmarkID = "RTSI"
	BenchmarkMCFTR  BenchmarkID = "MCFTR"
	BenchmarkRGBITR BenchmarkID = "RGBITR"
)

var benchmarkSecIDs = map[BenchmarkID]string{
	BenchmarkIMOEX:  "IMOEX",
	BenchmarkRTSI:   "RTSI",
	BenchmarkMCFTR:  "MCFTR",
	BenchmarkRGBITR: "RGBITR",
}

func ParseBenchmarkID(s string) (BenchmarkID, error) {
	id := BenchmarkID(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := benchmarkSecIDs[id]; !ok {
		return "", fmt.Errorf("unknown benchmark %q", s)
	}
	return id, nil
}

// SecID returns the exchange index identifier the benchmark is quoted under.
func (b BenchmarkID) SecID() string {
	return benchmarkSecIDs[b]
}
