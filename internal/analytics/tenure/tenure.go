// Package tenure scores how many months each customer stayed in the snapshot
// and classifies them into permanence buckets.
package tenure

import (
	"fmt"
	"sort"

	"github.com/easymoney/easymoney-bi/internal/analytics/presence"
	apperrors "github.com/easymoney/easymoney-bi/internal/errors"
)

// Bucket is a tenure classification. BucketNone tags customers with no months present.
type Bucket string

const (
	BucketNone     Bucket = "none"
	BucketLow      Bucket = "low"
	BucketMedium   Bucket = "medium"
	BucketHigh     Bucket = "high"
	BucketComplete Bucket = "complete"
)

// Range is an inclusive months-present interval mapped to a bucket.
type Range struct {
	Bucket Bucket
	Min    int
	Max    int
}

// Label renders the range the way the dashboard shows it, e.g. "[1-6]".
func (r Range) Label() string {
	return fmt.Sprintf("[%d-%d]", r.Min, r.Max)
}

// Boundaries are the ordered bucket ranges.
type Boundaries []Range

// DefaultBoundaries covers the 17-month EasyMoney observation window.
func DefaultBoundaries() Boundaries {
	return Boundaries{
		{Bucket: BucketLow, Min: 1, Max: 6},
		{Bucket: BucketMedium, Min: 7, Max: 10},
		{Bucket: BucketHigh, Min: 11, Max: 15},
		{Bucket: BucketComplete, Min: 16, Max: 17},
	}
}

// Validate checks the ranges are non-empty, ascending, contiguous from 1 and
// reach at least maxMonths. Bucket names must be unique.
func (b Boundaries) Validate(maxMonths int) error {
	if len(b) == 0 {
		return apperrors.NewValidationError(apperrors.CodeInvalidBoundaries, "no bucket boundaries")
	}
	next := 1
	seen := make(map[Bucket]bool, len(b))
	for i, r := range b {
		if r.Bucket == "" || r.Bucket == BucketNone {
			return apperrors.NewValidationError(apperrors.CodeInvalidBoundaries,
				fmt.Sprintf("range %d has an invalid bucket name %q", i, r.Bucket))
		}
		if seen[r.Bucket] {
			return apperrors.NewValidationError(apperrors.CodeInvalidBoundaries,
				fmt.Sprintf("bucket %s appears more than once", r.Bucket))
		}
		seen[r.Bucket] = true
		if r.Max < r.Min {
			return apperrors.NewValidationError(apperrors.CodeInvalidBoundaries,
				fmt.Sprintf("range %s %s is empty", r.Bucket, r.Label()))
		}
		if r.Min != next {
			return apperrors.NewValidationError(apperrors.CodeInvalidBoundaries,
				fmt.Sprintf("range %s %s must start at %d", r.Bucket, r.Label(), next))
		}
		next = r.Max + 1
	}
	if last := b[len(b)-1].Max; last < maxMonths {
		return apperrors.NewValidationError(apperrors.CodeInvalidBoundaries,
			fmt.Sprintf("last range ends at %d but customers can be present %d months", last, maxMonths))
	}
	return nil
}

// Classify returns the bucket for a months-present count.
func (b Boundaries) Classify(months int) Bucket {
	for _, r := range b {
		if months >= r.Min && months <= r.Max {
			return r.Bucket
		}
	}
	return BucketNone
}

// Record is one customer's tenure.
type Record struct {
	CustomerID    string
	MonthsPresent int
	Score         float64
	Bucket        Bucket
}

// Score computes one Record per matrix row, in row order. periodLength <= 0
// means the number of matrix columns.
func Score(m *presence.Matrix, periodLength int, boundaries Boundaries) ([]Record, error) {
	if periodLength <= 0 {
		periodLength = m.Cols()
	}
	if err := boundaries.Validate(m.Cols()); err != nil {
		return nil, err
	}
	if periodLength < m.Cols() {
		return nil, apperrors.NewValidationError(apperrors.CodeInvalidPeriod,
			fmt.Sprintf("period length %d is shorter than the %d observed partitions", periodLength, m.Cols()))
	}

	records := make([]Record, m.Rows())
	for i, id := range m.Customers {
		months := m.RowSum(i)
		records[i] = Record{
			CustomerID:    id,
			MonthsPresent: months,
			Score:         float64(months) / float64(periodLength),
			Bucket:        boundaries.Classify(months),
		}
	}
	return records, nil
}

// Share is one row of a distribution table.
type Share struct {
	Key       string
	Label     string
	Customers int
	Share     float64
}

// Distribution returns the share of classified customers per bucket, sorted by
// share descending. Customers in BucketNone are excluded from the denominator.
func Distribution(records []Record, boundaries Boundaries) []Share {
	counts := make(map[Bucket]int)
	total := 0
	for _, r := range records {
		if r.Bucket == BucketNone {
			continue
		}
		counts[r.Bucket]++
		total++
	}

	var out []Share
	for _, rng := range boundaries {
		n := counts[rng.Bucket]
		if n == 0 {
			continue
		}
		out = append(out, Share{
			Key:       string(rng.Bucket),
			Label:     rng.Label(),
			Customers: n,
			Share:     float64(n) / float64(total),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Share > out[j].Share })
	return out
}

// MonthsDistribution returns the share of customers per months-present value,
// ordered by months ascending.
func MonthsDistribution(records []Record) []Share {
	counts := make(map[int]int)
	for _, r := range records {
		counts[r.MonthsPresent]++
	}

	months := make([]int, 0, len(counts))
	for m := range counts {
		months = append(months, m)
	}
	sort.Ints(months)

	out := make([]Share, 0, len(months))
	for _, m := range months {
		out = append(out, Share{
			Key:       fmt.Sprintf("%d", m),
			Label:     fmt.Sprintf("%d", m),
			Customers: counts[m],
			Share:     float64(counts[m]) / float64(len(records)),
		})
	}
	return out
}
