package valuation

import (
	"slices"
	"sort"

	"github.com/KotFed0t/portfolio_snapshots/internal/model"
)

// Series is a date-sorted list of closes with at most one point per date.
type Series struct {
	points []model.PricePoint
}

// NewSeries sorts a copy of points. On duplicate dates the later point in the input wins.
func NewSeries(points []model.PricePoint) Series {
	sorted := slices.Clone(points)
	slices.SortStableFunc(sorted, func(a, b model.PricePoint) int { return a.Date.Compare(b.Date) })

	deduped := sorted[:0]
	for _, p := range sorted {
		if n := len(deduped); n > 0 && deduped[n-1].Date == p.Date {
			deduped[n-1] = p
			continue
		}
		deduped = append(deduped, p)
	}
	return Series{points: deduped}
}

func (s Series) Len() int { return len(s.points) }

// AtOrBefore returns the last point dated on or before date.
func (s Series) AtOrBefore(date model.Date) (model.PricePoint, bool) {
	i := sort.Search(len(s.points), func(i int) bool { return s.points[i].Date.After(date) })
	if i == 0 {
		return model.PricePoint{}, false
	}
	return s.points[i-1], true
}
