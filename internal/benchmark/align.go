// Package benchmark resamples benchmark series onto caller-chosen bucket dates.
package benchmark

import (
	"slices"

	"github.com/KotFed0t/portfolio_snapshots/internal/model"
	"github.com/shopspring/decimal"
)

// NormalizeBuckets returns the buckets deduplicated and sorted ascending.
func NormalizeBuckets(buckets []model.Date) []model.Date {
	sorted := slices.Clone(buckets)
	slices.SortFunc(sorted, model.Date.Compare)
	return slices.Compact(sorted)
}

// Align maps every bucket date to the last series value observed on or before
// it. Buckets earlier than the first point get no entry. Both inputs are sorted
// once and then swept together, so the cost is linear after sorting.
func Align(series []model.BenchmarkPoint, buckets []model.Date) map[model.Date]decimal.Decimal {
	points := slices.Clone(series)
	slices.SortStableFunc(points, func(a, b model.BenchmarkPoint) int { return a.Date.Compare(b.Date) })
	dates := NormalizeBuckets(buckets)

	res := make(map[model.Date]decimal.Decimal, len(dates))

	var (
		i       int
		last    decimal.Decimal
		hasLast bool
	)
	for _, bucket := range dates {
		for i < len(points) && !points[i].Date.After(bucket) {
			last, hasLast = points[i].Value, true
			i++
		}
		if hasLast {
			res[bucket] = last
		}
	}

	return res
}
