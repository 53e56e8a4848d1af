package snapshot

import (
	"time"

	"github.com/easymoney/easymoney-bi/pkg/types"
)

// Summary is the dataset overview printed by the describe mode.
type Summary struct {
	Rows       int              `json:"rows"`
	Columns    int              `json:"columns"`
	Customers  int              `json:"customers"`
	Partitions int              `json:"partitions"`
	First      time.Time        `json:"first_partition"`
	Last       time.Time        `json:"last_partition"`
	Products   []ProductSummary `json:"products"`
}

// ProductSummary describes one product flag column.
type ProductSummary struct {
	Name           string  `json:"name"`
	Active         int     `json:"active"`
	ActivationMean float64 `json:"activation_mean"`
	NullsFilled    int     `json:"nulls_filled"`
}

// Describe summarizes a loaded snapshot. Columns counts the customer and
// partition columns plus one per product.
func Describe(s *types.Snapshot) Summary {
	sum := Summary{
		Rows:      s.Len(),
		Columns:   len(s.Products) + 2,
		Customers: len(s.Customers()),
	}

	partitions := s.Partitions()
	sum.Partitions = len(partitions)
	if len(partitions) > 0 {
		sum.First = partitions[0]
		sum.Last = partitions[len(partitions)-1]
	}

	active := make([]int, len(s.Products))
	for _, r := range s.Rows {
		for j, f := range r.Flags {
			if f == 1 {
				active[j]++
			}
		}
	}

	sum.Products = make([]ProductSummary, len(s.Products))
	for j, name := range s.Products {
		ps := ProductSummary{
			Name:        name,
			Active:      active[j],
			NullsFilled: s.NullsFilled[name],
		}
		if sum.Rows > 0 {
			ps.ActivationMean = float64(active[j]) / float64(sum.Rows)
		}
		sum.Products[j] = ps
	}
	return sum
}
