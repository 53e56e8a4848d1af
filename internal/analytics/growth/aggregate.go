// Package growth derives the monthly active/inactive counts per product and the
// month-over-month adoption and growth series built on them.
package growth

import (
	"fmt"
	"time"

	apperrors "github.com/easymoney/easymoney-bi/internal/errors"
	"github.com/easymoney/easymoney-bi/pkg/types"
)

// MonthlyAggregate holds one partition's per-product counts.
type MonthlyAggregate struct {
	Partition time.Time
	// Customers is the number of distinct customers observed in the partition
	Customers int
	// Active[p] counts rows with product p active
	Active []int
	// Inactive[p] counts observed rows with product p not active
	Inactive []int
}

// ContractedProducts is the sum of active counts over all products.
func (m MonthlyAggregate) ContractedProducts() int {
	total := 0
	for _, n := range m.Active {
		total += n
	}
	return total
}

// Aggregates is the chronological series of MonthlyAggregate for a product list.
type Aggregates struct {
	Products []string
	Months   []MonthlyAggregate
}

// Aggregate counts, per partition in chronological order, active and inactive
// customers for every snapshot product. A flag other than 0 or 1 fails with
// MALFORMED_HISTORY.
func Aggregate(snap *types.Snapshot) (*Aggregates, error) {
	if err := checkFlags(snap); err != nil {
		return nil, err
	}
	partitions := snap.Partitions()
	idx := make(map[time.Time]int, len(partitions))
	agg := &Aggregates{
		Products: append([]string(nil), snap.Products...),
		Months:   make([]MonthlyAggregate, len(partitions)),
	}
	for j, p := range partitions {
		idx[p] = j
		agg.Months[j] = MonthlyAggregate{
			Partition: p,
			Active:    make([]int, len(snap.Products)),
			Inactive:  make([]int, len(snap.Products)),
		}
	}

	for _, r := range snap.Rows {
		m := &agg.Months[idx[r.Partition]]
		m.Customers++
		for k, f := range r.Flags {
			if f == 1 {
				m.Active[k]++
			} else {
				m.Inactive[k]++
			}
		}
	}
	return agg, nil
}

func checkFlags(snap *types.Snapshot) error {
	i, k, ok := snap.FirstNonBinary()
	if !ok {
		return nil
	}
	r := snap.Rows[i]
	return apperrors.NewValidationError(apperrors.CodeMalformedHistory,
		fmt.Sprintf("flag %d for product %s is not binary", r.Flags[k], snap.Products[k])).
		WithDetails(map[string]interface{}{
			"customer":  r.CustomerID,
			"partition": r.Partition.Format("2006-01-02"),
			"product":   snap.Products[k],
			"value":     int(r.Flags[k]),
		})
}

// Inputs converts the aggregates into the series consumed by Compute.
func (a *Aggregates) Inputs() []Input {
	inputs := make([]Input, len(a.Months))
	for j, m := range a.Months {
		inputs[j] = Input{
			Partition:     m.Partition,
			Customers:     m.Customers,
			ProductActive: append([]int(nil), m.Active...),
		}
	}
	return inputs
}
