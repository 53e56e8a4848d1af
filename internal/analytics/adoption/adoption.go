// Package adoption computes the product contract index: how often each product
// is active, overall, per calendar year and per partition.
package adoption

import (
	"fmt"
	"sort"
	"time"

	apperrors "github.com/easymoney/easymoney-bi/internal/errors"
	"github.com/easymoney/easymoney-bi/pkg/types"
)

// Rate is a mean activation rate over a group of rows.
type Rate struct {
	Key   string
	Value float64
}

// Index is the contract index of one product.
type Index struct {
	Product string
	General float64
	ByYear  []Rate
	ByMonth []Rate
}

// ContractIndex returns one Index per snapshot product, sorted by general rate
// descending and then by product name. Year keys are "2006", month keys "2006-01".
// Flags must be 0 or 1.
func ContractIndex(snap *types.Snapshot) ([]Index, error) {
	if i, k, ok := snap.FirstNonBinary(); ok {
		r := snap.Rows[i]
		return nil, apperrors.NewValidationError(apperrors.CodeMalformedHistory,
			fmt.Sprintf("flag %d for product %s is not binary", r.Flags[k], snap.Products[k])).
			WithDetails(map[string]interface{}{"customer": r.CustomerID, "product": snap.Products[k]})
	}

	partitions := snap.Partitions()

	var years []int
	yearIdx := make(map[int]int)
	monthIdx := make(map[time.Time]int, len(partitions))
	for j, p := range partitions {
		monthIdx[p] = j
		if _, ok := yearIdx[p.Year()]; !ok {
			yearIdx[p.Year()] = len(years)
			years = append(years, p.Year())
		}
	}

	n := len(snap.Products)
	total := make([]int, n)
	yearActive := make([][]int, len(years))
	yearRows := make([]int, len(years))
	monthActive := make([][]int, len(partitions))
	monthRows := make([]int, len(partitions))
	for y := range yearActive {
		yearActive[y] = make([]int, n)
	}
	for m := range monthActive {
		monthActive[m] = make([]int, n)
	}

	for _, r := range snap.Rows {
		y := yearIdx[r.Partition.Year()]
		m := monthIdx[r.Partition]
		yearRows[y]++
		monthRows[m]++
		for k, f := range r.Flags {
			if f == 1 {
				total[k]++
				yearActive[y][k]++
				monthActive[m][k]++
			}
		}
	}

	out := make([]Index, n)
	for k, product := range snap.Products {
		idx := Index{
			Product: product,
			General: mean(total[k], len(snap.Rows)),
			ByYear:  make([]Rate, len(years)),
			ByMonth: make([]Rate, len(partitions)),
		}
		for y, year := range years {
			idx.ByYear[y] = Rate{Key: time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).Format("2006"), Value: mean(yearActive[y][k], yearRows[y])}
		}
		for m, p := range partitions {
			idx.ByMonth[m] = Rate{Key: p.Format("2006-01"), Value: mean(monthActive[m][k], monthRows[m])}
		}
		out[k] = idx
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].General != out[j].General {
			return out[i].General > out[j].General
		}
		return out[i].Product < out[j].Product
	})
	return out, nil
}

func mean(active, rows int) float64 {
	if rows == 0 {
		return 0
	}
	return float64(active) / float64(rows)
}
